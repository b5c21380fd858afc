package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/spoolrunner/internal/protocol"
)

func TestWrongArgCountIsUsage(t *testing.T) {
	var stderr bytes.Buffer
	code := execute(context.Background(), []string{"host", "2004"}, nil, &bytes.Buffer{}, &stderr)
	assert.Equal(t, protocol.ExitUsage, code)
	assert.Contains(t, stderr.String(), "want host port file")
}

func TestUnknownCodecIsUsage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("[('a', (1, 1))]\n"), 0o644))
	code := execute(context.Background(), []string{"--codec", "xml", "h", "1", path}, nil, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, protocol.ExitUsage, code)
}

func TestEmptyFileExitsNoData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	code := execute(context.Background(), []string{"127.0.0.1", "1", path}, nil, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, protocol.ExitNoData, code)
	assert.NoFileExists(t, path)
}

func TestRefusedConnectionIsFatal(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())

	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("[('a', (1, 1))]\n"), 0o644))

	// One attempt: the schedule for a budget of 2 is a single delay.
	code := execute(context.Background(), []string{"--max-attempts", "2", host, port, path}, nil, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, protocol.ExitFatal, code)
	assert.FileExists(t, path)
}

func TestSendWritesResultRecord(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			_, _ = protocol.ReadFrame(conn)
			_ = conn.Close()
		}
	}()
	host, port, _ := net.SplitHostPort(ln.Addr().String())

	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("[('a', (1, 1)), ('b', (1, 2))]\n"), 0o644))

	var result bytes.Buffer
	code := execute(context.Background(), []string{"--codec", "pickle", host, port, path}, &result, &bytes.Buffer{}, &bytes.Buffer{})
	require.Equal(t, protocol.ExitOK, code)

	rec, ok, err := protocol.ParseResult(result.Bytes())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, rec.Metrics)
	assert.NoFileExists(t, path)
}
