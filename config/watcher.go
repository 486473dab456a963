package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher calls a function whenever a file changes. It watches the file's
// directory, so a save that renames a temporary file over the target is seen
// as well. A burst of events within the debounce interval results in a
// single call. Calls are made from the watcher goroutine one at a time; the
// callback must not call Close.
type Watcher struct {
	target   string
	interval time.Duration
	fn       func()
	log      *slog.Logger

	fsw    *fsnotify.Watcher
	quit   chan struct{}
	exited chan struct{}
	closed sync.Once
	err    error
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce interval (default 100ms).
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.interval = d }
}

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher starts watching path. The file does not need to exist yet.
func NewWatcher(path string, fn func(), opts ...WatcherOption) (*Watcher, error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		target:   target,
		interval: 100 * time.Millisecond,
		fn:       fn,
		log:      slog.Default(),
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.fsw, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.fsw.Add(filepath.Dir(target)); err != nil {
		w.fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.exited)

	pending := time.NewTimer(w.interval)
	pending.Stop()
	defer pending.Stop()

	for {
		select {
		case <-w.quit:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.concerns(event) {
				pending.Reset(w.interval)
			}
		case <-pending.C:
			w.log.Debug("watched file changed", "path", w.target)
			w.fn()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("watching file", "path", w.target, "error", err)
		}
	}
}

// concerns reports whether event may have changed the target's content.
func (w *Watcher) concerns(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// Close stops the watcher, waiting for a running callback to return. It is
// safe to call more than once.
func (w *Watcher) Close() error {
	w.closed.Do(func() {
		close(w.quit)
		<-w.exited
		w.err = w.fsw.Close()
	})
	return w.err
}
