package dispatch

import (
	"context"
	"time"

	"github.com/mattjoyce/spoolrunner/internal/journal"
	"github.com/mattjoyce/spoolrunner/internal/stats"
)

//go:generate mockgen -destination=mocks/mock_journal.go -package=mocks github.com/mattjoyce/spoolrunner/internal/dispatch Journal

// Journal records worker runs and stats flushes. Journal failures are logged
// and never stop the loop.
type Journal interface {
	RecordAdmission(ctx context.Context, run journal.Run) error
	RecordReap(ctx context.Context, id string, out journal.Outcome) error
	RecordFlush(ctx context.Context, f stats.Flush) error
	MarkAbandoned(ctx context.Context, at time.Time) (int64, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}
