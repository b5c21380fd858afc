package watch

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/spoolrunner/internal/journal"
	"github.com/mattjoyce/spoolrunner/internal/stats"
)

// RefreshInterval is how often the journal is re-read.
const RefreshInterval = 2 * time.Second

const (
	recentRunLimit   = 50
	recentFlushLimit = 10
)

// Source is the read side of the run journal.
type Source interface {
	ActiveRuns(ctx context.Context) ([]journal.Run, error)
	RecentRuns(ctx context.Context, limit int) ([]journal.Run, error)
	RecentFlushes(ctx context.Context, limit int) ([]stats.Flush, error)
}

// Snapshot is one consistent read of the journal.
type Snapshot struct {
	At      time.Time
	Active  []journal.Run
	Recent  []journal.Run
	Flushes []stats.Flush
}

// Runs lists in-flight runs first, then finished ones newest first.
func (s Snapshot) Runs() []journal.Run {
	out := make([]journal.Run, 0, len(s.Active)+len(s.Recent))
	return append(append(out, s.Active...), s.Recent...)
}

type snapshotMsg Snapshot
type tickMsg time.Time
type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

func fetchSnapshot(src Source, now func() time.Time) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), RefreshInterval)
		defer cancel()

		active, err := src.ActiveRuns(ctx)
		if err != nil {
			return errMsg{err}
		}
		recent, err := src.RecentRuns(ctx, recentRunLimit)
		if err != nil {
			return errMsg{err}
		}
		flushes, err := src.RecentFlushes(ctx, recentFlushLimit)
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg(Snapshot{At: now(), Active: active, Recent: recent, Flushes: flushes})
	}
}

func scheduleTick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}
