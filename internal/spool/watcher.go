package spool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher turns spool directory events into wake-ups for the dispatcher loop.
// Wake-ups are coalesced: a burst of events yields at most one pending signal.
type Watcher struct {
	watcher *fsnotify.Watcher
	wake    chan struct{}
	logger  *slog.Logger
}

// NewWatcher starts watching dir.
func NewWatcher(dir string, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		watcher: fw,
		wake:    make(chan struct{}, 1),
		logger:  logger,
	}, nil
}

// Wake delivers a signal after spool membership may have changed.
func (w *Watcher) Wake() <-chan struct{} { return w.wake }

// Run forwards events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				w.logger.Debug("spool event", "op", ev.Op.String(), "file", ev.Name)
				w.notify()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("spool watcher error", "error", err)
		}
	}
}

func (w *Watcher) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
