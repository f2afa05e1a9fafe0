package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SeedWatcher watches the credential seed file for changes and triggers
// reloads. Rapid events are debounced so an editor's write-rename dance
// produces a single reload.
type SeedWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	path     string
	debounce *debouncer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSeedWatcher creates a watcher for the given seed file.
func NewSeedWatcher(path string, debounceInterval time.Duration, logger *slog.Logger) (*SeedWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounceInterval <= 0 {
		debounceInterval = 100 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &SeedWatcher{
		watcher:  watcher,
		logger:   logger,
		path:     path,
		debounce: newDebouncer(debounceInterval),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks processing file events until the context is cancelled or
// Stop is called. onReload is invoked after each debounced change.
func (sw *SeedWatcher) Watch(ctx context.Context, onReload func() error) error {
	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	sw.running = true
	sw.mu.Unlock()

	defer func() {
		sw.mu.Lock()
		sw.running = false
		sw.mu.Unlock()
		close(sw.doneCh)
	}()

	// Watch the parent directory: editors replace the file via rename,
	// which drops a watch on the file itself.
	dir := filepath.Dir(sw.path)
	if err := sw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %q: %w", dir, err)
	}

	sw.logger.Info("Seed file watcher started",
		"path", sw.path,
	)

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("Seed file watcher stopped (context cancelled)")
			return nil

		case <-sw.stopCh:
			sw.logger.Info("Seed file watcher stopped")
			return nil

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}

			if !sw.shouldProcessEvent(event) {
				continue
			}

			sw.logger.Debug("Seed file event detected",
				"path", event.Name,
				"op", event.Op.String(),
			)

			sw.debounce.Trigger(func() {
				sw.logger.Info("Reloading credential seeds",
					"path", sw.path,
				)
				if err := onReload(); err != nil {
					sw.logger.Error("Seed reload failed",
						"error", err,
					)
				}
			})

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			sw.logger.Error("Seed file watcher error", "error", err)
			// Continue watching despite errors
		}
	}
}

// Stop stops the watcher and waits for the event loop to exit.
func (sw *SeedWatcher) Stop() error {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		return nil
	}
	sw.mu.Unlock()

	close(sw.stopCh)
	<-sw.doneCh

	sw.debounce.Stop()

	if err := sw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (sw *SeedWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	// Only the seed file itself matters; the watch covers its directory.
	return filepath.Clean(event.Name) == filepath.Clean(sw.path)
}

// debouncer collects rapid events and triggers the callback only after a
// quiet period.
type debouncer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	callback func()
	stopCh   chan struct{}
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Trigger schedules the callback after the debounce interval. A new call
// before the interval elapses replaces the pending callback.
func (d *debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, func() {
		select {
		case <-d.stopCh:
			return
		default:
			d.mu.Lock()
			cb := d.callback
			d.mu.Unlock()

			if cb != nil {
				cb()
			}
		}
	})
}

// Stop cancels any pending callback.
func (d *debouncer) Stop() {
	close(d.stopCh)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
