// Package spool reads the send-queue directory. The directory listing is the
// only record of pending work: a filename is a work item until a worker
// removes it.
package spool

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Scan returns the spool items in dir in lexicographic order.
// Dotfiles are producers' in-progress writes and directories are not items;
// both are skipped.
func Scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan spool %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Candidates returns names minus those in active, keeping order.
func Candidates(names []string, active map[string]bool) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !active[n] {
			out = append(out, n)
		}
	}
	return out
}

// Scanner remembers the last observed set of items so idle polling stays quiet.
type Scanner struct {
	dir      string
	logger   *slog.Logger
	snapshot map[string]struct{}
}

// NewScanner returns a scanner for dir with an empty snapshot.
func NewScanner(dir string, logger *slog.Logger) *Scanner {
	return &Scanner{dir: dir, logger: logger}
}

// Dir returns the spool directory.
func (s *Scanner) Dir() string { return s.dir }

// Scan lists the spool and logs a summary when the set of items changed
// since the previous call.
func (s *Scanner) Scan() ([]string, error) {
	names, err := Scan(s.dir)
	if err != nil {
		return nil, err
	}
	if s.Changed(names) {
		s.logger.Info(fmt.Sprintf("%d waiting items", len(names)), "waiting", len(names))
	}
	return names, nil
}

// Changed compares names as a set against the remembered snapshot and
// replaces the snapshot when they differ. The first call always reports a
// change.
func (s *Scanner) Changed(names []string) bool {
	if s.snapshot != nil && len(names) == len(s.snapshot) {
		same := true
		for _, n := range names {
			if _, ok := s.snapshot[n]; !ok {
				same = false
				break
			}
		}
		if same {
			return false
		}
	}

	snap := make(map[string]struct{}, len(names))
	for _, n := range names {
		snap[n] = struct{}{}
	}
	s.snapshot = snap
	return true
}
