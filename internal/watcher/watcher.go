// Package watcher watches the persisted index snapshot files and triggers a
// reload when they are replaced, so a server picks up an index built by the
// CLI without a restart.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches snapshot files and invokes onChange after writes settle.
// The snapshot is written with temp-then-rename, so a build shows up as
// create/rename events on the final paths; debouncing collapses the pair
// (vector file plus metadata file) into one reload.
type Watcher struct {
	paths    map[string]bool // watched final paths, absolute
	dirs     []string
	onChange func()
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu       sync.Mutex
	timer    *time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the settle delay before onChange fires.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over the given snapshot files. onChange is
// called once per settled change burst. The parent directories must exist
// before Start; the files themselves may not exist yet.
func NewWatcher(paths []string, onChange func(), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		paths:    make(map[string]bool, len(paths)),
		onChange: onChange,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
	}
	seen := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		w.paths[abs] = true
		dir := filepath.Dir(abs)
		if !seen[dir] {
			seen[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	for _, dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			w.mu.Unlock()
			return err
		}
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.Debug("snapshot watcher started", zap.Strings("dirs", w.dirs))
	}
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		abs = ev.Name
	}
	if !w.paths[abs] {
		return
	}
	if w.logger != nil {
		w.logger.Debug("snapshot file changed", zap.String("path", abs), zap.String("op", ev.Op.String()))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.mu.Unlock()
	})
}
