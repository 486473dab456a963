package knut

import (
	"log/slog"

	"github.com/KDAB/knut-sub001/config"
	"github.com/KDAB/knut-sub001/treesitter"
)

// Option configures a Workspace during construction.
type Option func(*Workspace)

// WithLogger sets a custom slog logger on the workspace and every component
// it creates.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) {
		w.logger = l
	}
}

// WithSettings uses fixed settings instead of config.DefaultSettings.
func WithSettings(s *config.Settings) Option {
	return func(w *Workspace) {
		w.settings = config.NewStore(s)
	}
}

// WithSettingsStore shares a settings store with the caller, typically one
// fed by a config.Reloader. Every swap is applied to the workspace.
func WithSettingsStore(store *config.Store[config.Settings]) Option {
	return func(w *Workspace) {
		w.settings = store
	}
}

// WithRegistry replaces the default language registry.
func WithRegistry(r *treesitter.Registry) Option {
	return func(w *Workspace) {
		w.registry = r
	}
}
