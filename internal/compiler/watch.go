package compiler

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc receives a freshly compiled registry and the load result it
// came from.
type ReloadFunc func(reg *Registry, res *LoadResult)

// Watcher recompiles a pattern directory when its CUE files change and
// hands the new registry to a ReloadFunc. A change that fails to load or
// compile is logged and the previous registry stays in effect. A change
// that compiles to the same registry hash is dropped.
type Watcher struct {
	dir      string
	onReload ReloadFunc
	debounce time.Duration
	logger   *slog.Logger

	fsw *fsnotify.Watcher

	mu       sync.Mutex
	lastHash string
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period after the last event before reloading.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatchLogger sets the logger. Default: slog.Default().
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithInitialHash seeds the hash of the registry already in use, so an
// unchanged directory does not trigger a reload.
func WithInitialHash(hash string) WatcherOption {
	return func(w *Watcher) {
		w.lastHash = hash
	}
}

// NewWatcher creates a watcher for dir. Call Start to begin watching.
func NewWatcher(dir string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		dir:      dir,
		onReload: onReload,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		fsw:      fsw,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. Non-blocking; the event loop runs until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.fsw.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("watching patterns", "dir", w.dir)

	go w.run(ctx)
	return nil
}

// Stop ends the event loop and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.fsw.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.fsw.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".cue" {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("pattern file changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)
		case <-timer.C:
			if _, err := w.Reload(); err != nil {
				w.logger.Warn("pattern reload rejected, keeping previous registry", "error", err)
			}
		}
	}
}

// Reload loads and compiles the directory now. It reports whether the
// ReloadFunc was called.
func (w *Watcher) Reload() (bool, error) {
	res, errs := LoadPatterns(w.dir, LoadModeCollectAll)
	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	reg, err := res.Registry()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	if reg.Hash == w.lastHash {
		w.mu.Unlock()
		w.logger.Debug("pattern registry unchanged", "hash", reg.Hash)
		return false, nil
	}
	w.lastHash = reg.Hash
	w.mu.Unlock()

	w.logger.Info("pattern registry reloaded", "patterns", reg.Len(), "hash", reg.Hash)
	if w.onReload != nil {
		w.onReload(reg, res)
	}
	return true, nil
}
