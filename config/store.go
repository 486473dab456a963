// Package config provides the engine's hot-reloadable configuration: TOML
// loading with defaults and validation, an atomic store with change
// listeners, and a file watcher feeding the store. Settings is the engine's
// own configuration.
package config

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Store holds the current value of a configuration. Reads never block.
// Swaps are serialized: the listeners of one swap return before the next
// swap is installed, so listeners see changes in order. A listener must not
// call Swap.
type Store[T any] struct {
	current atomic.Pointer[T]

	swapMu    sync.Mutex
	mu        sync.Mutex
	listeners []func(old, next *T)
}

// NewStore creates a store holding initial.
func NewStore[T any](initial *T) *Store[T] {
	s := &Store[T]{}
	s.current.Store(initial)
	return s
}

// Get returns the current value. Callers must not modify it.
func (s *Store[T]) Get() *T {
	return s.current.Load()
}

// Swap installs next, runs the listeners and returns the previous value.
func (s *Store[T]) Swap(next *T) *T {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	old := s.current.Swap(next)
	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(old, next)
	}
	return old
}

// OnChange registers a listener. Listeners run in registration order.
func (s *Store[T]) OnChange(fn func(old, next *T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
