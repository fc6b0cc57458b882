package network

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the store whenever the network file changes.
type Watcher struct {
	path     string
	store    *Store
	loader   Loader
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	reloaded chan struct{}
}

// NewWatcher watches path and reloads store through loader. A FileLoader
// passed here should come from WithoutFallback.
func NewWatcher(path string, store *Store, loader Loader, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so atomic saves (write temp + rename) are seen
	// and a file that does not exist yet can appear later.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch network directory: %w", err)
	}

	return &Watcher{
		path:     path,
		store:    store,
		loader:   loader,
		watcher:  watcher,
		debounce: 100 * time.Millisecond,
		logger:   logger,
		stopCh:   make(chan struct{}),
		reloaded: make(chan struct{}, 1),
	}, nil
}

// Start begins watching for changes.
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("Network watcher started", zap.String("path", w.path))
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("Network watcher stopped")
	})
}

// Reloaded signals after each reload attempt. Mostly useful in tests.
func (w *Watcher) Reloaded() <-chan struct{} {
	return w.reloaded
}

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.handleChange)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleChange() {
	defer w.signalReloaded()

	if _, err := os.Stat(w.path); errors.Is(err, fs.ErrNotExist) {
		w.logger.Warn("Network file removed, keeping current network", zap.String("path", w.path))
		return
	}

	w.logger.Info("Network file changed, reloading", zap.String("path", w.path))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Errors are logged by the store; the previous graph keeps serving.
	_ = w.store.Reload(ctx, w.loader)
}

func (w *Watcher) signalReloaded() {
	select {
	case w.reloaded <- struct{}{}:
	default:
	}
}
