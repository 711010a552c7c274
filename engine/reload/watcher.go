// Package reload provides a generic, debounced filesystem watcher used
// to drive the engine's optional hot-reload feature (SPEC_FULL.md §4.8).
// It knows nothing about workflows or the compiler: it watches a
// directory, coalesces bursts of events into one settled change, and
// invokes a caller-supplied callback. This mirrors the teacher's own
// file-watcher in cli/cmd/dev/watcher.go, generalized past its
// dev-server-restart use.
package reload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/flowforge/dataflow/pkg/logger"
)

// DefaultDebounce is the delay used to coalesce a burst of filesystem
// events into a single reload, matching the teacher's
// fileChangeDebounceDelay for YAML config watching.
const DefaultDebounce = 200 * time.Millisecond

// OnChange is invoked once a burst of filesystem events under the
// watched directory has settled. A non-nil error is logged but does not
// stop the watcher — a malformed edit should not end hot-reload for
// every subsequent, valid one.
type OnChange func(ctx context.Context) error

// Watcher watches a directory for file changes and calls OnChange after
// events settle.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	debounce  time.Duration
	onChange  OnChange
	log       logger.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// New constructs a Watcher rooted at dir. A zero debounce uses
// DefaultDebounce.
func New(dir string, debounce time.Duration, onChange OnChange, log logger.Logger) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("reload: onChange callback is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = logger.NewLogger(nil)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch directory %q: %w", dir, err)
	}

	return &Watcher{fsWatcher: fsWatcher, dir: dir, debounce: debounce, onChange: onChange, log: log}, nil
}

// Run blocks, dispatching debounced reloads until ctx is canceled or the
// watcher is closed. Callers typically run it in its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.schedule(ctx, event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("workflow watcher error", "error", err)
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, event fsnotify.Event) {
	if filepath.Ext(event.Name) != ".json" && filepath.Ext(event.Name) != ".yaml" && filepath.Ext(event.Name) != ".yml" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.onChange(ctx); err != nil {
			w.log.Error("workflow reload failed", "error", err)
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Close stops watching. Closing the underlying fsnotify watcher also
// terminates Run's event loop once drained.
func (w *Watcher) Close() error {
	w.stopTimer()
	if err := w.fsWatcher.Close(); err != nil && !errors.Is(err, fs.ErrClosed) {
		return err
	}
	return nil
}
