// Package journal keeps a SQLite history of worker runs and stats flushes so
// operators can see what the dispatcher did after the log has rotated.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mattjoyce/spoolrunner/internal/stats"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// RecordAdmission inserts a running row for a freshly launched worker.
func (s *Store) RecordAdmission(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is empty")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO worker_runs(id, pid, filename, command, status, started_at)
VALUES(?, ?, ?, ?, ?, ?);
`, run.ID, run.PID, run.Filename, run.Command, StatusRunning, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("record admission: %w", err)
	}
	return nil
}

// RecordReap closes a run with its exit information and result.
func (s *Store) RecordReap(ctx context.Context, id string, out Outcome) error {
	killed := 0
	if out.Killed {
		killed = 1
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE worker_runs
SET status = ?, finished_at = ?, exit_code = ?, killed = ?,
    metric_count = ?, byte_count = ?, time_taken = ?
WHERE id = ?;
`, out.Status, formatTime(out.FinishedAt), out.ExitCode, killed, out.Metrics, out.Bytes, out.Seconds, id)
	if err != nil {
		return fmt.Errorf("record reap: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record reap rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record reap %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// RecordFlush appends one stats interval.
func (s *Store) RecordFlush(ctx context.Context, f stats.Flush) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO stat_flushes(flushed_at, metric_count, byte_count, time_taken, metrics_per_sec, bytes_per_sec)
VALUES(?, ?, ?, ?, ?, ?);
`, formatTime(f.At), f.Totals.Metrics, f.Totals.Bytes, f.Totals.Seconds, f.Rates.MetricsPerSec, f.Rates.BytesPerSec)
	if err != nil {
		return fmt.Errorf("record flush: %w", err)
	}
	return nil
}

// MarkAbandoned closes runs left running by a previous dispatcher process.
// Their workers are no longer our children, so no result will ever arrive.
func (s *Store) MarkAbandoned(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE worker_runs SET status = ?, finished_at = ? WHERE status = ?;
`, StatusAbandoned, formatTime(at), StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned runs: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes finished runs and flushes older than before.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	cutoff := formatTime(before)
	res, err := s.db.ExecContext(ctx, `
DELETE FROM worker_runs WHERE status != ? AND started_at < ?;
`, StatusRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	runs, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs rows affected: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM stat_flushes WHERE flushed_at < ?;`, cutoff); err != nil {
		return runs, fmt.Errorf("prune flushes: %w", err)
	}
	return runs, nil
}

const runColumns = `id, pid, filename, command, status, started_at, finished_at, exit_code, killed,
  metric_count, byte_count, time_taken`

// ActiveRuns lists runs still marked running, oldest first.
func (s *Store) ActiveRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+runColumns+`
FROM worker_runs WHERE status = ? ORDER BY started_at ASC, rowid ASC;
`, StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("query active runs: %w", err)
	}
	return scanRuns(rows)
}

// RecentRuns lists finished runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+runColumns+`
FROM worker_runs WHERE status != ? ORDER BY finished_at DESC, rowid DESC LIMIT ?;
`, StatusRunning, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	return scanRuns(rows)
}

// GetRun loads a single run.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM worker_runs WHERE id = ?;`, id)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

// RecentFlushes lists stats intervals, newest first.
func (s *Store) RecentFlushes(ctx context.Context, limit int) ([]stats.Flush, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT flushed_at, metric_count, byte_count, time_taken, metrics_per_sec, bytes_per_sec
FROM stat_flushes ORDER BY flushed_at DESC, id DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query flushes: %w", err)
	}
	defer rows.Close()

	var out []stats.Flush
	for rows.Next() {
		var (
			f   stats.Flush
			atS string
		)
		if err := rows.Scan(&atS, &f.Totals.Metrics, &f.Totals.Bytes, &f.Totals.Seconds, &f.Rates.MetricsPerSec, &f.Rates.BytesPerSec); err != nil {
			return nil, fmt.Errorf("scan flush: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, atS); err == nil {
			f.At = t
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r         Run
			statusS   string
			startedS  string
			finishedS sql.NullString
			exitCode  sql.NullInt64
			killed    int
		)
		if err := rows.Scan(
			&r.ID, &r.PID, &r.Filename, &r.Command, &statusS, &startedS, &finishedS, &exitCode, &killed,
			&r.Metrics, &r.Bytes, &r.Seconds,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = Status(statusS)
		r.Killed = killed != 0
		if t, err := time.Parse(time.RFC3339Nano, startedS); err == nil {
			r.StartedAt = t
		}
		if finishedS.Valid {
			if t, err := time.Parse(time.RFC3339Nano, finishedS.String); err == nil {
				r.FinishedAt = &t
			}
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			r.ExitCode = &code
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
