package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquireWritesPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "spool.lock")
	l, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	b, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.TrimSpace(string(b)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("lock file = %q, want our pid", b)
	}
}

func TestAcquireContendedReportsHolder(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "spool.lock")
	first, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = first.Release() })

	// flock is per open file description, so a second open in-process contends.
	_, err = Acquire(lockPath)
	if !errors.Is(err, ErrHeld) {
		t.Fatalf("second Acquire err = %v, want ErrHeld", err)
	}
	var held *HeldError
	if !errors.As(err, &held) || held.PID != os.Getpid() {
		t.Fatalf("HeldError = %+v, want pid %d", held, os.Getpid())
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "nested", "spool.lock")
	l, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Fatalf("lock file should be removed, stat err = %v", err)
	}

	again, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("re-Acquire: %v", err)
	}
	_ = again.Release()
}

func TestHolder(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "spool.lock")
	if err := os.WriteFile(lockPath, []byte("4242\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pid, err := Holder(lockPath)
	if err != nil || pid != 4242 {
		t.Fatalf("Holder = %d, %v", pid, err)
	}
}
