// Package lock keeps two dispatchers from draining the same spool.
package lock

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrHeld is returned when another process owns the lock.
var ErrHeld = errors.New("spool lock is held by another process")

// HeldError names the holder of a contended lock.
type HeldError struct {
	Path string
	PID  int // zero when the holder's PID could not be read
}

func (e *HeldError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("%s: %s (pid %d)", ErrHeld, e.Path, e.PID)
	}
	return fmt.Sprintf("%s: %s", ErrHeld, e.Path)
}

func (e *HeldError) Unwrap() error { return ErrHeld }

// SpoolLock is a flock(2)'d PID file. The lock lives as long as the
// descriptor stays open.
type SpoolLock struct {
	path string
	f    *os.File
}

// Acquire takes an exclusive non-blocking lock at lockPath and writes the
// current PID into it.
func Acquire(lockPath string) (*SpoolLock, error) {
	if lockPath == "" {
		return nil, fmt.Errorf("lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		defer f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, &HeldError{Path: lockPath, PID: readPID(f)}
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	l := &SpoolLock{path: lockPath, f: f}
	if err := l.writePID(os.Getpid()); err != nil {
		_ = l.Release()
		return nil, err
	}
	return l, nil
}

func (l *SpoolLock) writePID(pid int) error {
	if err := l.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := l.f.WriteAt([]byte(strconv.Itoa(pid)+"\n"), 0); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync lock file: %w", err)
	}
	return nil
}

func (l *SpoolLock) Path() string { return l.path }

// Release unlocks and removes the lock file. Safe to call more than once.
func (l *SpoolLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	// Remove while still locked so a waiting process cannot lock the old inode.
	_ = os.Remove(l.path)
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}

// Holder reads the PID recorded at lockPath without locking it.
func Holder(lockPath string) (int, error) {
	f, err := os.Open(lockPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return readPID(f), nil
}

func readPID(f *os.File) int {
	b, err := io.ReadAll(io.NewSectionReader(f, 0, 32))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0
	}
	return pid
}
