// Package doctor checks a queue-runner configuration against the host it is
// about to run on.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mattjoyce/spoolrunner/internal/config"
	"github.com/mattjoyce/spoolrunner/internal/lock"
	"github.com/mattjoyce/spoolrunner/internal/spool"
	"github.com/mattjoyce/spoolrunner/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Backlog  int     `json:"backlog"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config

	// detectFS is swapped in tests.
	detectFS func(string) (string, bool, error)
}

// New creates a Doctor for cfg.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg, detectFS: storage.NetworkFilesystem}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateCommand(r)
	d.validateSpool(r)
	d.validateLock(r)
	d.validateJournal(r)
	d.warnParallelism(r)
	d.warnTimeouts(r)
	d.warnStats(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateCommand checks the worker command resolves to an executable.
func (d *Doctor) validateCommand(r *Result) {
	cmd := d.cfg.Dispatch.Command
	if cmd == "" {
		d.addError(r, "dispatch", "dispatch.command", "worker command is required")
		return
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		d.addError(r, "dispatch", "dispatch.command",
			fmt.Sprintf("worker command %q is not executable: %v", cmd, err))
		return
	}
	if !filepath.IsAbs(cmd) && !strings.Contains(cmd, "/") {
		d.addWarning(r, "dispatch", "dispatch.command",
			fmt.Sprintf("worker command resolved through PATH to %s", path))
	}
}

// validateSpool checks the spool directory and reports its backlog.
func (d *Doctor) validateSpool(r *Result) {
	dir := d.cfg.Dispatch.SpoolDir
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		d.addError(r, "spool", "dispatch.spool_dir",
			fmt.Sprintf("spool directory %s does not exist", dir))
		return
	}

	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		d.addError(r, "spool", "dispatch.spool_dir",
			fmt.Sprintf("spool directory %s is not writable: %v", dir, err))
	} else {
		probe.Close()
		os.Remove(probe.Name())
	}

	names, err := spool.Scan(dir)
	if err != nil {
		d.addError(r, "spool", "dispatch.spool_dir", fmt.Sprintf("cannot list spool: %v", err))
		return
	}
	r.Backlog = len(names)
	if r.Backlog > d.cfg.Dispatch.Parallelism*100 {
		d.addWarning(r, "spool", "dispatch.spool_dir",
			fmt.Sprintf("spool holds %d files waiting to be sent", r.Backlog))
	}

	if d.detectFS == nil {
		return
	}
	fsType, network, err := d.detectFS(dir)
	if err == nil && network && d.cfg.Dispatch.Watch {
		d.addWarning(r, "spool", "dispatch.watch",
			fmt.Sprintf("spool is on %s; file watching will be disabled", fsType))
	}
}

// validateLock checks no other queue-runner owns the spool.
func (d *Doctor) validateLock(r *Result) {
	path := d.cfg.LockPath()
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		d.addError(r, "lock", "service.lock_path",
			fmt.Sprintf("lock directory for %s does not exist", path))
		return
	}
	l, err := lock.Acquire(path)
	var held *lock.HeldError
	switch {
	case errors.As(err, &held):
		d.addError(r, "lock", "service.lock_path",
			fmt.Sprintf("spool is locked by pid %d", held.PID))
	case err != nil:
		d.addError(r, "lock", "service.lock_path", fmt.Sprintf("cannot take lock %s: %v", path, err))
	default:
		l.Release()
	}
}

// validateJournal checks the journal location when one is configured.
func (d *Doctor) validateJournal(r *Result) {
	path := d.cfg.Journal.Path
	if path == "" {
		return
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		d.addError(r, "journal", "journal.path",
			fmt.Sprintf("journal directory for %s does not exist", path))
		return
	}
	if d.detectFS != nil {
		if fsType, network, err := d.detectFS(filepath.Dir(path)); err == nil && network {
			d.addError(r, "journal", "journal.path",
				fmt.Sprintf("journal is on %s; SQLite locking is unreliable there", fsType))
		}
	}
	if d.cfg.Journal.Retention == 0 {
		d.addWarning(r, "journal", "journal.retention", "retention is 0; the journal is never pruned")
	}
}

// warnParallelism flags worker counts far beyond the host.
func (d *Doctor) warnParallelism(r *Result) {
	p := d.cfg.Dispatch.Parallelism
	if limit := runtime.NumCPU() * 8; p > limit {
		d.addWarning(r, "dispatch", "dispatch.parallelism",
			fmt.Sprintf("parallelism %d is more than 8 workers per CPU", p))
	}
}

// warnTimeouts flags a worker timeout the loop cannot enforce promptly.
func (d *Doctor) warnTimeouts(r *Result) {
	timeout, sleep := d.cfg.Dispatch.Timeout, d.cfg.Dispatch.SleepInterval
	if timeout > 0 && timeout <= sleep {
		d.addWarning(r, "dispatch", "dispatch.timeout",
			fmt.Sprintf("timeout %s is not longer than the sleep interval %s", timeout, sleep))
	}
}

// warnStats flags telemetry that goes nowhere but the log.
func (d *Doctor) warnStats(r *Result) {
	if d.cfg.Stats.Relay == "" {
		d.addWarning(r, "stats", "stats.relay", "no relay configured; totals are only logged")
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		fmt.Fprintf(&b, "Spool ready (%d file(s) queued).\n", r.Backlog)
		return b.String()
	case r.Valid:
		fmt.Fprintf(&b, "Spool ready (%d file(s) queued, %d warning(s))\n", r.Backlog, len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Spool not ready (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
