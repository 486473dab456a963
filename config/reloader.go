package config

import (
	"log/slog"
)

// Reloader reloads a TOML file into a Store. Both the file watcher and
// explicit reload requests go through Reload, so every path validates the
// new value the same way. An invalid file leaves the current value in place.
type Reloader[T any] struct {
	store    *Store[T]
	path     string
	defaults *T
	logger   *slog.Logger
}

// NewReloader creates a reloader for the file at path.
func NewReloader[T any](store *Store[T], path string, defaults *T, logger *slog.Logger) *Reloader[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader[T]{
		store:    store,
		path:     path,
		defaults: defaults,
		logger:   logger,
	}
}

// Path returns the watched file.
func (r *Reloader[T]) Path() string {
	return r.path
}

// Reload reads the file and swaps the result into the store.
func (r *Reloader[T]) Reload() error {
	cfg, err := LoadTOML(r.path, r.defaults)
	if err != nil {
		return err
	}
	r.store.Swap(cfg)
	return nil
}

// Watch reloads the store every time the file changes. Failed reloads are
// logged. Close the returned watcher to stop.
func (r *Reloader[T]) Watch(opts ...WatcherOption) (*Watcher, error) {
	opts = append([]WatcherOption{WithWatcherLogger(r.logger)}, opts...)
	return NewWatcher(r.path, func() {
		if err := r.Reload(); err != nil {
			r.logger.Error("reloading config", "path", r.path, "error", err)
		}
	}, opts...)
}
