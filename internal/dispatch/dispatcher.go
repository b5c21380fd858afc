package dispatch

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/mattjoyce/spoolrunner/internal/spool"
	"github.com/mattjoyce/spoolrunner/internal/stats"
)

const (
	// DefaultSleepInterval is the pause between scheduling passes.
	DefaultSleepInterval = 100 * time.Millisecond

	// resultDrainTimeout bounds the read of a reaped worker's result pipe. A
	// grandchild that inherited the write end would otherwise hold EOF back.
	resultDrainTimeout = 100 * time.Millisecond
)

// Options configures a Dispatcher.
type Options struct {
	Command       string
	Host          string
	Port          string
	SpoolDir      string
	Parallelism   int
	Timeout       time.Duration
	SleepInterval time.Duration

	// WorkerOutput receives worker stdout/stderr. Nil discards it. Pass an
	// *os.File (normally os.Stdout) so no copying goroutine sits between the
	// worker and the destination.
	WorkerOutput io.Writer

	// JournalRetention is how long finished runs are kept; zero keeps them forever.
	JournalRetention time.Duration
}

// Dispatcher runs the scheduling loop. All methods must be called from the
// goroutine that calls Run.
type Dispatcher struct {
	opts    Options
	scanner *spool.Scanner
	gate    admissionGate
	active  map[int]*ActiveWorker
	exits   chan exitEvent
	agg     *stats.Aggregator
	journal Journal
	wake    <-chan struct{}
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a Dispatcher. agg receives every reaped result.
func New(opts Options, agg *stats.Aggregator, logger *slog.Logger) *Dispatcher {
	if opts.SleepInterval <= 0 {
		opts.SleepInterval = DefaultSleepInterval
	}
	buf := opts.Parallelism * 2
	if buf < 8 {
		buf = 8
	}
	logger = logger.With("component", "dispatch")
	return &Dispatcher{
		opts:    opts,
		scanner: spool.NewScanner(opts.SpoolDir, logger),
		gate:    admissionGate{logger: logger},
		active:  make(map[int]*ActiveWorker),
		exits:   make(chan exitEvent, buf),
		agg:     agg,
		now:     time.Now,
		logger:  logger,
	}
}

// SetJournal attaches a run journal. Nil disables journaling.
func (d *Dispatcher) SetJournal(j Journal) {
	d.journal = j
}

// SetWake lets a spool watcher cut the between-pass sleep short.
func (d *Dispatcher) SetWake(ch <-chan struct{}) {
	d.wake = ch
}

// Run loops until ctx is cancelled and returns ctx.Err(). Workers still in
// flight are left running; they own their spool files.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatch loop started",
		"spool_dir", d.opts.SpoolDir,
		"command", d.opts.Command,
		"destination", d.opts.Host+":"+d.opts.Port,
		"parallelism", d.opts.Parallelism,
		"timeout", d.opts.Timeout,
	)
	defer func() {
		d.logger.Info("dispatch loop stopped", "active", len(d.active))
	}()

	d.recoverJournal(ctx)

	for {
		d.Pass(ctx)
		if !d.sleep(ctx) {
			return ctx.Err()
		}
	}
}

// Pass runs one scheduling pass. Every step is isolated: a failure is logged
// and the pass moves on.
func (d *Dispatcher) Pass(ctx context.Context) {
	d.admitOne(ctx)

	d.KillOvertime()

	total, err := d.ReapAll(ctx)
	if err != nil {
		d.logger.Error("reap failed", "error", err)
	}
	d.agg.Add(total)

	if f, ok := d.agg.Tick(d.now()); ok && d.journal != nil {
		if err := d.journal.RecordFlush(ctx, f); err != nil {
			d.logger.Warn("journal flush record failed", "error", err)
		}
		if d.opts.JournalRetention > 0 {
			if n, err := d.journal.Prune(ctx, d.now().Add(-d.opts.JournalRetention)); err != nil {
				d.logger.Warn("journal prune failed", "error", err)
			} else if n > 0 {
				d.logger.Debug("journal pruned", "runs", n)
			}
		}
	}
}

// admitOne launches at most one worker.
func (d *Dispatcher) admitOne(ctx context.Context) {
	names, err := d.scanner.Scan()
	if err != nil {
		d.logger.Warn("spool scan failed, skipping admission this pass", "error", err)
		return
	}
	if !d.gate.allow(len(d.active), d.opts.Parallelism) {
		return
	}
	candidates := spool.Candidates(names, d.activeFiles())
	if len(candidates) == 0 {
		return
	}
	if _, err := d.Launch(ctx, candidates[0]); err != nil {
		d.logger.Error("worker launch failed, file stays queued", "file", candidates[0], "error", err)
	}
}

func (d *Dispatcher) sleep(ctx context.Context) bool {
	t := time.NewTimer(d.opts.SleepInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
	case <-d.wake:
	}
	return true
}

func (d *Dispatcher) recoverJournal(ctx context.Context) {
	if d.journal == nil {
		return
	}
	n, err := d.journal.MarkAbandoned(ctx, d.now())
	if err != nil {
		d.logger.Warn("journal recovery failed", "error", err)
		return
	}
	if n > 0 {
		d.logger.Warn("marked runs from a previous dispatcher as abandoned", "runs", n)
	}
}
