// Package watcher triggers a debounced callback when configured source documents change.
package watcher

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 1500 * time.Millisecond

// Watcher watches the parent directories of a fixed set of files and calls onChange
// once per burst of create, write, rename or remove events on any of them.
// Events on other files in those directories are ignored.
type Watcher struct {
	files    map[string]bool
	onChange func(ctx context.Context, changed []string)
	debounce time.Duration
	logger   *zap.Logger

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	pending  map[string]bool
	timer    *time.Timer
	ctx      context.Context
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets the quiet period after the last event before onChange runs.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for files. onChange receives the changed paths, sorted.
func NewWatcher(files []string, onChange func(ctx context.Context, changed []string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		files:    make(map[string]bool, len(files)),
		onChange: onChange,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		pending:  make(map[string]bool),
		done:     make(chan struct{}),
	}
	for _, f := range files {
		if abs, err := filepath.Abs(f); err == nil {
			w.files[filepath.Clean(abs)] = true
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Directories returns the watched directories, sorted.
func (w *Watcher) Directories() []string {
	seen := make(map[string]bool)
	var dirs []string
	for f := range w.files {
		d := filepath.Dir(f)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// Directories that do not exist are skipped with a warning.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	watched := 0
	for _, dir := range w.Directories() {
		if err := fw.Add(dir); err != nil {
			w.logger.Warn("cannot watch document directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watched++
	}
	w.watcher = fw
	w.ctx = ctx
	w.started = true
	w.logger.Info("watching source documents", zap.Int("files", len(w.files)), zap.Int("directories", watched))
	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			w.shutdown()
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
			w.logger.Debug("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.files[path] {
		return
	}
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Rename) && !ev.Op.Has(fsnotify.Remove) {
		return
	}
	w.logger.Debug("document event", zap.String("op", ev.Op.String()), zap.String("path", path))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = make(map[string]bool)
	w.timer = nil
	ctx := w.ctx
	w.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}
	if len(changed) == 0 || w.onChange == nil {
		return
	}
	sort.Strings(changed)
	w.logger.Info("source documents changed", zap.Strings("paths", changed))
	w.onChange(ctx, changed)
}

// Stop stops the watcher and cancels any pending callback.
func (w *Watcher) Stop() {
	w.shutdown()
	w.wg.Wait()
}

func (w *Watcher) shutdown() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
	})
}
