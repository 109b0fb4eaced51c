package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gosniff/internal/analysis"
	"gosniff/internal/capture"
	"gosniff/internal/models"
)

// TickMsg drives the periodic refresh.
type TickMsg time.Time

// recentRows is how many packets the table shows per refresh.
const recentRows = 10

type Model struct {
	session   *capture.Session
	exportDir string

	status  capture.Status
	stats   analysis.Stats
	records []models.PacketRecord
	table   table.Model
	notice  string
}

func NewModel(session *capture.Session, exportDir string) Model {
	columns := []table.Column{
		{Title: "Time", Width: 10},
		{Title: "Proto", Width: 8},
		{Title: "Source", Width: 24},
		{Title: "Destination", Width: 24},
		{Title: "Length", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(recentRows),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return Model{
		session:   session,
		exportDir: exportDir,
		table:     t,
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
