// Package watch implements the spool-watch journal viewer TUI.
package watch

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/spoolrunner/internal/journal"
)

// Theme centralizes all styling for the watch TUI.
type Theme struct {
	// Status colors
	StatusOK        lipgloss.Style
	StatusRunning   lipgloss.Style
	StatusFailed    lipgloss.Style
	StatusNoData    lipgloss.Style
	StatusAbandoned lipgloss.Style

	// UI elements
	Border    lipgloss.Style
	Title     lipgloss.Style
	Header    lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	// Indicators
	TickerActive   lipgloss.Style
	TickerInactive lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		StatusOK:        lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StatusRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		StatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		StatusNoData:    lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		StatusAbandoned: lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#61AFEF")),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),

		TickerActive:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		TickerInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("#444444")),
	}
}

// StatusStyle picks the color for a run status.
func (t Theme) StatusStyle(s journal.Status) lipgloss.Style {
	switch s {
	case journal.StatusSucceeded:
		return t.StatusOK
	case journal.StatusRunning:
		return t.StatusRunning
	case journal.StatusFailed, journal.StatusKilled:
		return t.StatusFailed
	case journal.StatusNoData:
		return t.StatusNoData
	default:
		return t.StatusAbandoned
	}
}

// StatusIcon is the one-cell marker shown in the ST column.
func StatusIcon(s journal.Status) string {
	switch s {
	case journal.StatusSucceeded:
		return "✓"
	case journal.StatusRunning:
		return "▶"
	case journal.StatusFailed:
		return "✗"
	case journal.StatusKilled:
		return "☠"
	case journal.StatusNoData:
		return "∅"
	default:
		return "?"
	}
}
