package watch

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/spoolrunner/internal/journal"
)

func runColumns(width int) []table.Column {
	fixed := 2 + 8 + 10 + 9 + 8 + 9 + 10
	file := width - fixed - 2*7
	if file < 16 {
		file = 16
	}
	return []table.Column{
		{Title: "ST", Width: 2},
		{Title: "File", Width: file},
		{Title: "PID", Width: 8},
		{Title: "Status", Width: 10},
		{Title: "Started", Width: 9},
		{Title: "Took", Width: 8},
		{Title: "Metrics", Width: 9},
		{Title: "Bytes", Width: 10},
	}
}

func runRows(runs []journal.Run, now time.Time) []table.Row {
	rows := make([]table.Row, 0, len(runs))
	for _, r := range runs {
		end := now
		if r.FinishedAt != nil {
			end = *r.FinishedAt
		}
		status := string(r.Status)
		if r.ExitCode != nil && r.Status == journal.StatusFailed {
			status = "exit " + strconv.Itoa(*r.ExitCode)
		}
		rows = append(rows, table.Row{
			StatusIcon(r.Status),
			r.Filename,
			strconv.Itoa(r.PID),
			status,
			r.StartedAt.Local().Format("15:04:05"),
			formatDuration(end.Sub(r.StartedAt)),
			fmt.Sprintf("%.0f", r.Metrics),
			fmt.Sprintf("%.0f", r.Bytes),
		})
	}
	return rows
}

func renderRuns(t table.Model, theme Theme, width int) string {
	innerWidth := width - 4
	body := t.View()
	if len(t.Rows()) == 0 {
		body = theme.Dim.Render("  No runs recorded yet...")
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("RUNS"),
		body,
	)
	return theme.Border.Width(innerWidth).Render(content)
}
