package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	src   Source
	label string // journal path shown in the header
	now   func() time.Time

	width  int
	height int

	// State
	snap Snapshot
	seen map[string]bool

	// Live indicators
	ticker  Ticker
	spinner Spinner

	// UI state
	theme    Theme
	runTable table.Model

	// Error display
	lastError string
}

// New creates a new watch TUI model reading from src.
func New(src Source, label string) *Model {
	t := table.New(
		table.WithColumns(runColumns(80)),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		src:      src,
		label:    label,
		now:      time.Now,
		seen:     make(map[string]bool),
		ticker:   NewTicker(),
		spinner:  NewSpinner(),
		theme:    NewDefaultTheme(),
		runTable: t,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchSnapshot(m.src, m.now),
		scheduleTick(),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, fetchSnapshot(m.src, m.now)
		}
		var cmd tea.Cmd
		m.runTable, cmd = m.runTable.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.runTable.SetColumns(runColumns(msg.Width - 6))
		m.runTable.SetRows(runRows(m.snap.Runs(), m.snap.At))

	case tickMsg:
		m.ticker.Tick()
		m.spinner.Decay(time.Time(msg))
		return m, tea.Batch(fetchSnapshot(m.src, m.now), scheduleTick())

	case snapshotMsg:
		m.apply(Snapshot(msg))

	case errMsg:
		m.lastError = msg.Error()
	}

	return m, nil
}

func (m *Model) apply(s Snapshot) {
	fresh := false
	for _, r := range s.Active {
		if !m.seen[r.ID] {
			m.seen[r.ID] = true
			fresh = true
		}
	}
	// The first snapshot is history, not activity.
	if fresh && !m.snap.At.IsZero() {
		m.spinner.OnEvent(s.At)
	}
	m.snap = s
	m.runTable.SetRows(runRows(s.Runs(), s.At))
	m.lastError = ""
}

func (m Model) View() string {
	if m.width == 0 {
		return "Reading journal..."
	}

	header := renderHeader(m.snap, m.label, m.ticker, m.spinner, m.theme, m.width)
	runs := renderRuns(m.runTable, m.theme, m.width)
	flushes := renderFlushes(m.snap.Flushes, m.theme, m.width)

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [r] Refresh • [↑/↓] Scroll runs")

	parts := []string{header, runs, flushes}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
