package journal

import (
	"errors"
	"time"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusNoData    Status = "no_data"
	StatusKilled    Status = "killed"
	StatusAbandoned Status = "abandoned"
)

// Run is one admitted worker as recorded in the journal.
type Run struct {
	ID         string
	PID        int
	Filename   string
	Command    string
	Status     Status
	StartedAt  time.Time
	FinishedAt *time.Time
	ExitCode   *int
	Killed     bool
	Metrics    float64
	Bytes      float64
	Seconds    float64
}

// Outcome is what the reaper learned about a finished run.
type Outcome struct {
	FinishedAt time.Time
	ExitCode   int
	Killed     bool
	Status     Status
	Metrics    float64
	Bytes      float64
	Seconds    float64
}

var ErrRunNotFound = errors.New("run not found")
