package watch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/spoolrunner/internal/stats"
)

func renderFlushes(flushes []stats.Flush, theme Theme, width int) string {
	innerWidth := width - 4

	if len(flushes) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("STATS FLUSHES"),
			theme.Dim.Render("  Waiting for the first interval..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for _, f := range flushes {
		lines = append(lines, formatFlush(f, theme))
	}

	text := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("STATS FLUSHES"),
		text,
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatFlush(f stats.Flush, theme Theme) string {
	ts := theme.Dim.Render(f.At.Local().Format("15:04:05"))
	if f.Totals.IsZero() {
		return fmt.Sprintf("%s %s", ts, theme.Dim.Render("idle"))
	}
	return fmt.Sprintf("%s %s metrics  %s bytes  %.2fs  (%.1f/s)",
		ts,
		theme.Highlight.Render(fmt.Sprintf("%8.0f", f.Totals.Metrics)),
		theme.Highlight.Render(fmt.Sprintf("%10.0f", f.Totals.Bytes)),
		f.Totals.Seconds,
		f.Rates.MetricsPerSec,
	)
}
