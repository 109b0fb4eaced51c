package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"gosniff/internal/export"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.session.Stop()
			return m, tea.Quit

		case "c":
			m.session.Clear()
			m.notice = "history cleared"
			return m, nil

		case "e":
			path, err := export.WriteSnapshot(m.session.Export(), m.exportDir)
			if err != nil {
				m.notice = fmt.Sprintf("export failed: %v", err)
			} else {
				m.notice = "exported to " + path
			}
			return m, nil
		}

	case TickMsg:
		m.status = m.session.Status()
		m.stats = m.session.Stats()
		m.records = m.session.RecentRecords(recentRows)

		rows := make([]table.Row, len(m.records))
		for i, rec := range m.records {
			rows[i] = table.Row{
				rec.Timestamp.Format("15:04:05"),
				rec.Protocol,
				endpoint(rec.SourceAddress, rec.SourcePort),
				endpoint(rec.DestAddress, rec.DestPort),
				fmt.Sprintf("%d", rec.Length),
			}
		}
		m.table.SetRows(rows)

		return m, tickCmd()
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func endpoint(addr string, port int) string {
	if port > 0 {
		return fmt.Sprintf("%s:%d", addr, port)
	}
	return addr
}
