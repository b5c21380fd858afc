package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.Mutex
	logger *slog.Logger
)

// ParseLevel maps a config level name to a slog.Level.
// Unknown names fall back to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs the process-wide logger writing to stdout.
// format is "json" (default) or "text".
func Setup(level, format string) {
	SetupWriter(os.Stdout, level, format)
}

// SetupWriter is Setup with an explicit destination. Calling it again replaces
// the logger, so the dispatcher can re-level after the config file is read.
func SetupWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	mu.Lock()
	logger = slog.New(handler)
	mu.Unlock()
	slog.SetDefault(logger)
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		Setup("INFO", "json")
		return Get()
	}
	return l
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithWorker returns a logger scoped to one admitted worker.
func WithWorker(runID string, pid int, file string) *slog.Logger {
	return Get().With(
		slog.String("run_id", runID),
		slog.Int("pid", pid),
		slog.String("file", file),
	)
}

// WithFile returns a logger with the spool file field set.
func WithFile(path string) *slog.Logger {
	return Get().With(slog.String("file", path))
}
