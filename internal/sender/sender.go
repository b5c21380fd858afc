// Package sender is the reference spool worker: it reads one spool file,
// frames every line for the destination and removes the file on success.
package sender

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/spoolrunner/internal/backoff"
	"github.com/mattjoyce/spoolrunner/internal/protocol"
)

var (
	// ErrNoData means the spool file was empty. It has been removed.
	ErrNoData = errors.New("spool file is empty")
	// ErrUsage means the invocation itself is wrong.
	ErrUsage = errors.New("usage error")
	// ErrConnect means the destination could not be reached.
	ErrConnect = errors.New("connect to destination failed")
	// ErrTransmit means the stream failed after connecting.
	ErrTransmit = errors.New("transmit failed")
)

// DefaultDialTimeout bounds one connection attempt.
const DefaultDialTimeout = 10 * time.Second

// maxLineSize caps a single spool line.
const maxLineSize = protocol.MaxFrameSize

// Options configures one Send.
type Options struct {
	Host      string
	Port      string
	Path      string
	Transport Transport
	Codec     protocol.Codec
	Backoff   backoff.Policy
	Logger    *slog.Logger
}

// Report summarises a completed send.
type Report struct {
	File    string
	Metrics int
	Bytes   int64 // on-disk size of the spool file
	Frames  int
	Skipped int // malformed lines
	Elapsed time.Duration
	Digest  string // BLAKE3 of the raw spool file
}

// Result is the record handed back to the dispatcher.
func (r Report) Result() protocol.ResultRecord {
	return protocol.ResultRecord{
		Metrics: float64(r.Metrics),
		Bytes:   float64(r.Bytes),
		Seconds: r.Elapsed.Seconds(),
	}
}

// Send delivers the spool file at opts.Path. The file is removed on success
// and when it is empty; any other failure leaves it for a later worker.
func Send(ctx context.Context, opts Options) (Report, error) {
	rep := Report{File: opts.Path}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Codec == nil || opts.Transport == nil {
		return rep, fmt.Errorf("%w: codec and transport are required", ErrUsage)
	}

	f, err := os.Open(opts.Path)
	if err != nil {
		return rep, fmt.Errorf("%w: open %s: %v", ErrUsage, opts.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return rep, fmt.Errorf("stat %s: %w", opts.Path, err)
	}
	rep.Bytes = info.Size()
	if rep.Bytes == 0 {
		logger.Debug("spool file is zero length, removing", "file", opts.Path)
		if err := os.Remove(opts.Path); err != nil && !os.IsNotExist(err) {
			return rep, fmt.Errorf("remove empty %s: %w", opts.Path, err)
		}
		return rep, ErrNoData
	}

	var conn io.WriteCloser
	err = opts.Backoff.Retry(ctx, func(attempt int) error {
		c, err := opts.Transport.Open(ctx, opts.Host, opts.Port)
		if err != nil {
			logger.Warn("connect failed", "attempt", attempt, "transport", opts.Transport.Name(), "error", err)
			return err
		}
		conn = c
		return nil
	}, retriableDial)
	if err != nil {
		return rep, fmt.Errorf("%w: %s:%s: %w", ErrConnect, opts.Host, opts.Port, err)
	}

	start := time.Now()
	hasher := blake3.New()
	if err := stream(io.TeeReader(f, hasher), opts, conn, &rep, logger); err != nil {
		_ = conn.Close()
		return rep, err
	}
	if err := conn.Close(); err != nil {
		return rep, fmt.Errorf("%w: close: %w", ErrTransmit, err)
	}
	rep.Elapsed = time.Since(start)
	rep.Digest = hex.EncodeToString(hasher.Sum(nil))

	if err := os.Remove(opts.Path); err != nil && !os.IsNotExist(err) {
		logger.Warn("sent spool file could not be removed", "file", opts.Path, "error", err)
	}
	return rep, nil
}

func stream(raw io.Reader, opts Options, conn io.Writer, rep *Report, logger *slog.Logger) error {
	var r io.Reader = raw
	if strings.HasSuffix(opts.Path, ".gz") {
		gz, err := gzip.NewReader(raw)
		if err != nil {
			return fmt.Errorf("open gzip %s: %w", opts.Path, err)
		}
		defer gz.Close()
		r = gz
	}

	w := bufio.NewWriter(conn)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		metrics, err := protocol.ParseLine(line)
		if err != nil {
			rep.Skipped++
			logger.Warn("skipping malformed line", "file", opts.Path, "line", lineNo, "error", err)
			continue
		}
		payload, err := opts.Codec.Encode(metrics)
		if err != nil {
			rep.Skipped++
			logger.Warn("skipping unencodable line", "file", opts.Path, "line", lineNo, "error", err)
			continue
		}
		if _, err := protocol.WriteFrame(w, payload); err != nil {
			return fmt.Errorf("%w: %w", ErrTransmit, err)
		}
		rep.Metrics += len(metrics)
		rep.Frames++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", opts.Path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransmit, err)
	}
	return nil
}

// ExitCode maps a Send error to the worker exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return protocol.ExitOK
	case errors.Is(err, ErrNoData):
		return protocol.ExitNoData
	case errors.Is(err, ErrUsage):
		return protocol.ExitUsage
	default:
		return protocol.ExitFatal
	}
}

// WriteResult hands the result record to the dispatcher through w, normally
// descriptor 0. When w is not writable (run by hand) the summary is logged
// instead.
func WriteResult(w io.Writer, rep Report, logger *slog.Logger) {
	if w != nil {
		if _, err := io.WriteString(w, protocol.FormatResult(rep.Result())); err == nil {
			return
		}
	}
	secs := rep.Elapsed.Seconds()
	var bps, mps float64
	if secs > 0 {
		bps = float64(rep.Bytes) / secs
		mps = float64(rep.Metrics) / secs
	}
	logger.Info("send complete",
		"file", rep.File,
		"bytes", rep.Bytes,
		"metrics", rep.Metrics,
		"seconds", secs,
		"bytes_per_sec", bps,
		"metrics_per_sec", mps,
		"digest", rep.Digest,
	)
}
