package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/spoolrunner/internal/journal"
	"github.com/mattjoyce/spoolrunner/internal/storage"
)

func TestOncePrintsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, path)
	require.NoError(t, err)
	store := journal.New(db)
	start := time.Now().Add(-time.Second)
	require.NoError(t, store.RecordAdmission(ctx, journal.Run{ID: "r1", PID: 11, Filename: "batch.1", Command: "w", StartedAt: start}))
	require.NoError(t, store.RecordAdmission(ctx, journal.Run{ID: "r2", PID: 12, Filename: "batch.2", Command: "w", StartedAt: start}))
	require.NoError(t, store.RecordReap(ctx, "r1", journal.Outcome{FinishedAt: time.Now(), Status: journal.StatusSucceeded, Metrics: 7, Bytes: 99}))
	require.NoError(t, db.Close())

	var stdout, stderr bytes.Buffer
	code := execute([]string{"--once", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "running")
	assert.Contains(t, stdout.String(), "batch.2")
	assert.Contains(t, stdout.String(), "succeeded")
	assert.Contains(t, stdout.String(), "99")
}

func TestMissingJournal(t *testing.T) {
	var stderr bytes.Buffer
	code := execute([]string{"--once", filepath.Join(t.TempDir(), "absent.db")}, &bytes.Buffer{}, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "absent.db")
}
