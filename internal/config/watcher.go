package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses editor save bursts into one change signal.
const DefaultDebounce = 100 * time.Millisecond

// Watcher signals when the config file changes on disk.
// The directory is watched rather than the file so atomic-rename saves are seen.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for the config file at path (already expanded).
func NewWatcher(path string, logger *zap.Logger) *Watcher {
	return &Watcher{
		path:     path,
		debounce: DefaultDebounce,
		logger:   logger,
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start begins watching. The returned channel receives at most one pending
// signal; receivers should reload rather than count signals.
func (w *Watcher) Start(ctx context.Context) (<-chan struct{}, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}
	w.watcher = fw

	w.wg.Add(1)
	go w.loop(ctx)

	return w.changes, nil
}

// Changes returns the change signal channel.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.notify)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) notify() {
	w.logger.Info("config file changed", zap.String("path", w.path))
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
