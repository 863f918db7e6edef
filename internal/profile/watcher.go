package profile

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// #region watcher
// Watcher reloads a preset library when its file changes and re-applies the
// selected preset through the store, so edits arrive as ordinary smooth switches.
type Watcher struct {
	path     string
	store    *Store
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	onReload func(*Library)

	mu      sync.Mutex
	library *Library
}

// NewWatcher creates a watcher on the library at path. onReload may be nil.
func NewWatcher(path string, store *Store, logger *zap.Logger, onReload func(*Library)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		store:    store,
		logger:   logger,
		watcher:  fw,
		onReload: onReload,
	}, nil
}

// Library returns the most recently loaded library, or nil before the first load.
func (w *Watcher) Library() *Library {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.library
}

// #endregion watcher

// #region run
// Run loads the library once, then watches its directory until ctx is done.
// The parent directory is watched; rename-replaced files still trigger a reload.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.reload(); err != nil {
		w.logger.Warn("initial preset library load failed", zap.String("path", w.path), zap.Error(err))
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := w.reload(); err != nil {
				w.logger.Warn("preset library reload rejected", zap.String("path", w.path), zap.Error(err))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("preset watcher error", zap.Error(err))
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) reload() error {
	lib, err := LoadLibrary(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.library = lib
	w.mu.Unlock()

	if p, ok := lib.Selected(); ok && w.store != nil {
		if err := w.store.SetActive(p); err != nil {
			return fmt.Errorf("apply %q: %w", p.Name, err)
		}
		w.logger.Info("preset library applied", zap.String("preset", p.Name))
	}
	if w.onReload != nil {
		w.onReload(lib)
	}
	return nil
}

// #endregion run
