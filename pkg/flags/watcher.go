package flags

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches a single flag file for changes and triggers reloads.
// It watches the parent directory so atomic replace-by-rename writes, which
// swap the file's inode, are still observed. Bursts of events are debounced.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	path     string
	debounce *Debouncer

	mu       sync.Mutex
	running  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewFileWatcher creates a watcher for path. A zero debounce interval
// defaults to 100ms.
func NewFileWatcher(path string, debounce time.Duration) (*FileWatcher, error) {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:  watcher,
		logger:   slog.Default().With("component", "flags.watcher"),
		path:     filepath.Clean(path),
		debounce: NewDebouncer(debounce),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks, calling onReload after each debounced change to the file,
// until ctx is cancelled or Stop is called.
func (fw *FileWatcher) Watch(ctx context.Context, onReload func() error) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	fw.running = true
	fw.mu.Unlock()

	defer close(fw.doneCh)

	dir := filepath.Dir(fw.path)
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	fw.logger.Info("flag file watcher started", "path", fw.path)

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("flag file watcher stopped (context cancelled)")
			return nil

		case <-fw.stopCh:
			fw.logger.Info("flag file watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !fw.shouldProcessEvent(event) {
				continue
			}

			fw.logger.Debug("flag file event", "path", event.Name, "op", event.Op.String())

			fw.debounce.Trigger(func() {
				if err := onReload(); err != nil {
					fw.logger.Error("flag reload failed", "error", err)
				}
			})

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			fw.logger.Error("flag file watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and waits for Watch to return. Stop is idempotent.
func (fw *FileWatcher) Stop() error {
	var closeErr error

	fw.stopOnce.Do(func() {
		close(fw.stopCh)

		fw.mu.Lock()
		running := fw.running
		fw.mu.Unlock()
		if running {
			<-fw.doneCh
		}

		fw.debounce.Stop()
		if err := fw.watcher.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close watcher: %w", err)
		}
	})

	return closeErr
}

// shouldProcessEvent reports whether event concerns the watched file.
// Removals are ignored: an atomic write emits a rename/create for the new
// file, and a deleted file leaves the last good definitions in place.
func (fw *FileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != fw.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// Debouncer collects rapid events and runs the latest callback only after a
// quiet period.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	callback func()
	stopped  bool
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback to run after the debounce interval, replacing
// any pending callback.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
