package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	activeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	stoppedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("228"))
)

func (m Model) View() string {
	headerText := fmt.Sprintf("gosniff - Capturing: %s", m.status.Interface)
	if m.status.Filter != "" {
		headerText += fmt.Sprintf(" [Filter: %s]", m.status.Filter)
	}
	title := titleStyle.Render(headerText)

	state := stoppedStyle.Render("STOPPED")
	if m.status.IsCapturing {
		state = activeStyle.Render("ACTIVE")
	}
	statusLine := fmt.Sprintf("%s | Packets: %d | Stored: %d", state, m.status.PacketCount, m.stats.TotalPackets)
	statusBox := infoStyle.Render(statusLine)

	// Protocol distribution, busiest first.
	var protoStrs []string
	protos := make([]string, 0, len(m.stats.ProtocolCounts))
	for proto := range m.stats.ProtocolCounts {
		protos = append(protos, proto)
	}
	sort.Slice(protos, func(i, j int) bool {
		return m.stats.ProtocolCounts[protos[i]] > m.stats.ProtocolCounts[protos[j]]
	})
	for _, proto := range protos {
		protoStrs = append(protoStrs, fmt.Sprintf("%s: %d", proto, m.stats.ProtocolCounts[proto]))
	}
	if len(protoStrs) == 0 {
		protoStrs = append(protoStrs, "Waiting for data...")
	}
	protoBox := infoStyle.Render("Protocols:\n" + strings.Join(protoStrs, "\n"))

	var srcStrs []string
	limit := 5
	if len(m.stats.TopSources) < limit {
		limit = len(m.stats.TopSources)
	}
	for i := 0; i < limit; i++ {
		src := m.stats.TopSources[i]
		srcStrs = append(srcStrs, fmt.Sprintf("%s: %d", src.Address, src.Count))
	}
	if len(srcStrs) == 0 {
		srcStrs = append(srcStrs, "-")
	}
	srcBox := infoStyle.Render("Top Sources:\n" + strings.Join(srcStrs, "\n"))

	packetBox := infoStyle.Render("Recent Packets\n" + m.table.View())

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, statusBox, protoBox, srcBox)
	body := lipgloss.JoinVertical(lipgloss.Left, title, row1, packetBox)

	footer := "\nPress q to quit, c to clear, e to export."
	if m.notice != "" {
		footer = "\n" + noticeStyle.Render(m.notice) + footer
	}
	return body + footer
}
