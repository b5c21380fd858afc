package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func renderHeader(snap Snapshot, label string, ticker Ticker, spinner Spinner, theme Theme, width int) string {
	innerWidth := width - 4

	tickerStr := theme.Highlight.Render(ticker.Current())
	clock := theme.Dim.Render(snap.At.Format("15:04:05"))
	titleText := fmt.Sprintf(" SPOOL WATCH %s %s", tickerStr, theme.Dim.Render(label))

	titleWidth := lipgloss.Width(titleText)
	clockWidth := lipgloss.Width(clock)
	pad := innerWidth - titleWidth - clockWidth - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	var rate string
	if len(snap.Flushes) > 0 {
		f := snap.Flushes[0]
		rate = fmt.Sprintf("  %.1f metrics/s  %.1f bytes/s", f.Rates.MetricsPerSec, f.Rates.BytesPerSec)
	}
	var last string
	if len(snap.Recent) > 0 {
		r := snap.Recent[0]
		last = fmt.Sprintf("  last: %s %s", r.Filename, theme.StatusStyle(r.Status).Render(string(r.Status)))
	}
	statsLine := fmt.Sprintf(" %s %d active%s%s",
		theme.StatusRunning.Render("▶"),
		len(snap.Active),
		rate,
		last,
	)

	lastStr := "never"
	if !spinner.LastEvent().IsZero() {
		lastStr = fmt.Sprintf("%s ago", snap.At.Sub(spinner.LastEvent()).Round(time.Second))
	}
	activityLine := fmt.Sprintf(" Last admission: %s %s", lastStr, spinner.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleLine,
		statsLine,
		activityLine,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
