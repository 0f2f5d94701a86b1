package config

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pokescout/internal/domain"
)

// debounceDelay is the time to wait after a file event before re-reading the
// config. Coalesces rapid successive writes into a single reload.
var debounceDelay = 100 * time.Millisecond

// newWatcherFunc creates an fsnotify watcher; tests may replace it to inject errors.
type newWatcherFunc func() (*fsnotify.Watcher, error)

// Watcher watches the config file for changes and delivers reloaded configs
// via a callback, so cache tuning (TTL, similarity threshold) can be adjusted
// without a restart. Reload failures are logged and skipped; the previous
// config stays in effect.
type Watcher struct {
	path         string
	watcher      *fsnotify.Watcher
	done         chan struct{}
	mu           sync.Mutex
	running      bool
	newWatcherFn newWatcherFunc // nil means use fsnotify.NewWatcher
}

// NewWatcher creates a watcher for the given config file.
// Call Start to begin watching and Stop to release resources.
func NewWatcher(path string) *Watcher {
	return &Watcher{path: path}
}

// Start begins watching the config file. The callback is invoked (on a
// separate goroutine) with the reloaded config whenever the file changes and
// parses successfully. Start must not be called again without a Stop.
func (w *Watcher) Start(callback func(*domain.Config)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if callback == nil {
		return errors.New("config watcher: callback must not be nil")
	}
	if w.running {
		return errors.New("config watcher: already started")
	}

	// Watch the parent directory so atomic-rename saves (editor writes) are
	// caught even when the inode changes.
	dir := filepath.Dir(w.path)
	newWatcher := fsnotify.NewWatcher
	if w.newWatcherFn != nil {
		newWatcher = w.newWatcherFn
	}
	watcher, err := newWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	w.running = true

	go w.loop(callback)
	return nil
}

// loop delivers debounced reloads until Stop is called.
func (w *Watcher) loop(callback func(*domain.Config)) {
	var timer *time.Timer
	base := filepath.Base(w.path)
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, func() {
				cfg, err := Load(w.path)
				if err != nil {
					slog.Warn("config reload skipped", "path", w.path, "error", err)
					return
				}
				callback(cfg)
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

// Stop ceases watching and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	close(w.done)
	err := w.watcher.Close()
	w.watcher = nil
	w.running = false
	return err
}
