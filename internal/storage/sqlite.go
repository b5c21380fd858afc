package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the journal database at path and
// ensures the run and flush tables exist. The path must be on a local
// filesystem.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := validateSQLiteFilesystem(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The dispatcher loop is the only writer; one connection keeps
	// busy_timeout semantics simple.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.ExecContext(pctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS worker_runs (
  id            TEXT PRIMARY KEY,
  pid           INTEGER NOT NULL,
  filename      TEXT NOT NULL,
  command       TEXT NOT NULL,
  status        TEXT NOT NULL,
  started_at    TEXT NOT NULL,
  finished_at   TEXT,
  exit_code     INTEGER,
  killed        INTEGER NOT NULL DEFAULT 0,
  metric_count  REAL NOT NULL DEFAULT 0,
  byte_count    REAL NOT NULL DEFAULT 0,
  time_taken    REAL NOT NULL DEFAULT 0
);`,
		`CREATE TABLE IF NOT EXISTS stat_flushes (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  flushed_at      TEXT NOT NULL,
  metric_count    REAL NOT NULL,
  byte_count      REAL NOT NULL,
  time_taken      REAL NOT NULL,
  metrics_per_sec REAL NOT NULL,
  bytes_per_sec   REAL NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS worker_runs_status_started_at_idx ON worker_runs(status, started_at);`,
		`CREATE INDEX IF NOT EXISTS stat_flushes_flushed_at_idx ON stat_flushes(flushed_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
