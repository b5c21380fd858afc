package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"syscall"
	"time"

	"github.com/mattjoyce/spoolrunner/internal/journal"
	"github.com/mattjoyce/spoolrunner/internal/protocol"
	"github.com/mattjoyce/spoolrunner/internal/stats"
)

// ErrUnknownWorker means an exit arrived for a PID missing from the active
// table. That is a bookkeeping bug, never an expected condition.
var ErrUnknownWorker = errors.New("reaped pid is not in the active table")

// Reaped describes one collected worker.
type Reaped struct {
	Worker    ActiveWorker
	ExitCode  int // -1 when terminated by a signal
	Signal    string
	Result    protocol.ResultRecord
	HasResult bool
}

// KillOvertime sends SIGKILL to every worker older than the timeout and
// returns how many were signalled. Entries stay in the table until reaped.
func (d *Dispatcher) KillOvertime() int {
	if d.opts.Timeout <= 0 {
		return 0
	}
	now := d.now()
	killed := 0
	for _, aw := range d.active {
		age := now.Sub(aw.Started)
		if age <= d.opts.Timeout || aw.Killed {
			continue
		}
		logger := d.workerLogger(aw)
		if err := aw.process.Kill(); err != nil {
			if !errors.Is(err, os.ErrProcessDone) {
				logger.Error("failed to kill overtime worker", "age", age, "error", err)
			}
			continue
		}
		aw.Killed = true
		killed++
		logger.Warn("killed overtime worker", "age", age, "timeout", d.opts.Timeout)
	}
	return killed
}

// ReapOne collects at most one exited worker without blocking. collected is
// false when no exit was pending.
func (d *Dispatcher) ReapOne(ctx context.Context) (r Reaped, collected bool, err error) {
	var ev exitEvent
	select {
	case ev = <-d.exits:
	default:
		return Reaped{}, false, nil
	}

	aw, ok := d.active[ev.pid]
	if !ok {
		d.logger.Error("reaped a worker missing from the active table",
			"pid", ev.pid, "active", d.describeActive())
		return Reaped{}, true, fmt.Errorf("%w: pid %d", ErrUnknownWorker, ev.pid)
	}
	delete(d.active, ev.pid)

	logger := d.workerLogger(aw)
	r = Reaped{Worker: *aw, ExitCode: -1}
	if ev.err != nil {
		logger.Error("waiting for worker failed", "error", ev.err)
	}
	if ev.state != nil {
		r.ExitCode = ev.state.ExitCode()
		if ws, ok := ev.state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			r.Signal = ws.Signal().String()
		}
		logger.Debug("worker usage",
			"user_time", ev.state.UserTime(),
			"sys_time", ev.state.SystemTime(),
		)
	}

	switch {
	case r.ExitCode == protocol.ExitOK:
	case r.ExitCode == protocol.ExitNoData:
		logger.Info("worker found no data", "exit_code", r.ExitCode)
	default:
		logger.Warn("worker exited non-zero", "exit_code", r.ExitCode, "signal", r.Signal, "killed", aw.Killed)
	}

	raw, readErr := readResult(aw.result, resultDrainTimeout)
	_ = aw.result.Close()
	if readErr != nil {
		logger.Warn("reading worker result failed", "error", readErr)
	}
	rec, has, parseErr := protocol.ParseResult(raw)
	if parseErr != nil {
		logger.Warn("discarding worker result", "error", parseErr)
	}
	r.Result, r.HasResult = rec, has

	logger.Info("worker reaped",
		"exit_code", r.ExitCode,
		"elapsed", d.now().Sub(aw.Started),
		"metric_count", rec.Metrics,
		"bytes_count", rec.Bytes,
		"time", rec.Seconds,
		"active", len(d.active),
	)

	d.recordReap(ctx, r)
	return r, true, nil
}

// ReapAll drains every pending exit and sums their results. With nothing
// pending it returns zero Totals and leaves the table untouched.
func (d *Dispatcher) ReapAll(ctx context.Context) (stats.Totals, error) {
	var (
		total stats.Totals
		errs  []error
	)
	for {
		r, collected, err := d.ReapOne(ctx)
		if !collected {
			return total, errors.Join(errs...)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if r.HasResult {
			total = total.Fold(r.Result)
		}
	}
}

func (d *Dispatcher) recordReap(ctx context.Context, r Reaped) {
	if d.journal == nil {
		return
	}
	out := journal.Outcome{
		FinishedAt: d.now(),
		ExitCode:   r.ExitCode,
		Killed:     r.killedByTimeout(),
		Status:     outcomeStatus(r),
		Metrics:    r.Result.Metrics,
		Bytes:      r.Result.Bytes,
		Seconds:    r.Result.Seconds,
	}
	if err := d.journal.RecordReap(ctx, r.Worker.RunID, out); err != nil {
		d.logger.Warn("journal reap record failed", "run_id", r.Worker.RunID, "error", err)
	}
}

// killedByTimeout is true only when our SIGKILL ended the worker. A worker
// that exited on its own just before the signal landed keeps its exit status.
func (r Reaped) killedByTimeout() bool {
	return r.Worker.Killed && r.Signal != ""
}

func outcomeStatus(r Reaped) journal.Status {
	switch {
	case r.killedByTimeout():
		return journal.StatusKilled
	case r.ExitCode == protocol.ExitOK:
		return journal.StatusSucceeded
	case r.ExitCode == protocol.ExitNoData:
		return journal.StatusNoData
	default:
		return journal.StatusFailed
	}
}

// readResult reads up to MaxResultSize bytes, stopping at EOF or when the
// drain deadline passes.
func readResult(f *os.File, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, protocol.MaxResultSize)
	_ = f.SetReadDeadline(time.Now().Add(timeout))
	n := 0
	for n < len(buf) {
		m, err := f.Read(buf[n:])
		n += m
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			return buf[:n], err
		}
	}
	return buf[:n], nil
}

func (d *Dispatcher) workerLogger(aw *ActiveWorker) *slog.Logger {
	return d.logger.With("run_id", aw.RunID, "pid", aw.PID, "file", aw.Filename)
}

func (d *Dispatcher) describeActive() []string {
	out := make([]string, 0, len(d.active))
	for pid, aw := range d.active {
		out = append(out, fmt.Sprintf("%d:%s", pid, aw.Filename))
	}
	sort.Strings(out)
	return out
}
