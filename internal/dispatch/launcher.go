package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/spoolrunner/internal/journal"
)

// ErrAlreadyActive is returned when a file already has a worker in flight.
var ErrAlreadyActive = errors.New("file already has an active worker")

// ActiveWorker is one admitted, in-flight spool file.
type ActiveWorker struct {
	RunID    string
	PID      int
	Filename string
	Started  time.Time
	Killed   bool

	result  *os.File // read end of the result pipe
	process *os.Process
}

type exitEvent struct {
	pid   int
	state *os.ProcessState
	err   error
}

// Launch starts a worker for filename. The child's descriptor 0 is the write
// end of a fresh pipe; the parent keeps only the read end.
func (d *Dispatcher) Launch(ctx context.Context, filename string) (*ActiveWorker, error) {
	if d.activeFiles()[filename] {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyActive, filename)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create result pipe: %w", err)
	}

	path := filepath.Join(d.opts.SpoolDir, filename)
	cmd := exec.Command(d.opts.Command, d.opts.Host, d.opts.Port, path)
	cmd.Stdin = w
	cmd.Stdout = d.opts.WorkerOutput
	cmd.Stderr = d.opts.WorkerOutput

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, fmt.Errorf("start %s: %w", d.opts.Command, err)
	}
	// The child holds its own copy now.
	_ = w.Close()

	aw := &ActiveWorker{
		RunID:    uuid.NewString(),
		PID:      cmd.Process.Pid,
		Filename: filename,
		Started:  d.now(),
		result:   r,
		process:  cmd.Process,
	}
	d.active[aw.PID] = aw
	go d.waitExit(cmd, aw.PID)

	d.workerLogger(aw).Info("worker launched", "active", len(d.active), "parallelism", d.opts.Parallelism)

	if d.journal != nil {
		run := journal.Run{
			ID:        aw.RunID,
			PID:       aw.PID,
			Filename:  filename,
			Command:   d.opts.Command,
			StartedAt: aw.Started,
		}
		if err := d.journal.RecordAdmission(ctx, run); err != nil {
			d.workerLogger(aw).Warn("journal admission record failed", "error", err)
		}
	}
	return aw, nil
}

// waitExit blocks on the process and hands the exit to the loop.
func (d *Dispatcher) waitExit(cmd *exec.Cmd, pid int) {
	err := cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Non-zero status is carried by ProcessState.
		err = nil
	}
	d.exits <- exitEvent{pid: pid, state: cmd.ProcessState, err: err}
}

// Active returns a snapshot of in-flight workers ordered by filename.
func (d *Dispatcher) Active() []ActiveWorker {
	out := make([]ActiveWorker, 0, len(d.active))
	for _, aw := range d.active {
		out = append(out, *aw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

func (d *Dispatcher) activeFiles() map[string]bool {
	files := make(map[string]bool, len(d.active))
	for _, aw := range d.active {
		files[aw.Filename] = true
	}
	return files
}
