package knut

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/KDAB/knut-sub001/config"
	"github.com/KDAB/knut-sub001/document"
	"github.com/KDAB/knut-sub001/treesitter"
)

// Workspace is the set of open documents together with their syntax trees
// and rule findings.
type Workspace struct {
	logger   *slog.Logger
	registry *treesitter.Registry
	settings *config.Store[config.Settings]

	store   *document.Store
	manager *treesitter.Manager
	checker *treesitter.Checker
}

// NewWorkspace creates a workspace. Settings are validated, their language
// mappings are added to the registry and their rules are installed on the
// checker.
func NewWorkspace(opts ...Option) (*Workspace, error) {
	w := &Workspace{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.registry == nil {
		w.registry = treesitter.DefaultRegistry()
	}
	if w.settings == nil {
		w.settings = config.NewStore(config.DefaultSettings())
	}

	settings := w.settings.Get()
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if err := settings.ApplyLanguages(w.registry); err != nil {
		return nil, err
	}

	engineOpts := settings.TreesitterOptions(w.logger)
	w.store = document.NewStore(w.logger)
	w.manager = treesitter.NewManager(w.registry, w.store, engineOpts...)
	w.checker = treesitter.NewChecker(w.manager, w.store, engineOpts...)
	if err := w.checker.SetRules(settings.CheckerRules()); err != nil {
		w.manager.Close()
		return nil, err
	}

	w.settings.OnChange(w.applySettings)
	return w, nil
}

// Store returns the document store.
func (w *Workspace) Store() *document.Store { return w.store }

// Registry returns the language registry.
func (w *Workspace) Registry() *treesitter.Registry { return w.registry }

// Manager returns the tree manager.
func (w *Workspace) Manager() *treesitter.Manager { return w.manager }

// Checker returns the rule checker.
func (w *Workspace) Checker() *treesitter.Checker { return w.checker }

// Logger returns the workspace logger.
func (w *Workspace) Logger() *slog.Logger { return w.logger }

// Settings returns the current settings.
func (w *Workspace) Settings() *config.Settings { return w.settings.Get() }

// UpdateSettings validates and installs new settings.
func (w *Workspace) UpdateSettings(s *config.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	w.settings.Swap(s)
	return nil
}

// applySettings runs on every settings swap. Language mappings only ever
// grow: an extension dropped from the settings keeps its last mapping.
func (w *Workspace) applySettings(_, next *config.Settings) {
	if err := next.ApplyLanguages(w.registry); err != nil {
		w.logger.Warn("applying language mappings", "error", err)
	}
	w.checker.SetOptions(next.TreesitterOptions(w.logger)...)
	if err := w.checker.SetRules(next.CheckerRules()); err != nil {
		w.logger.Warn("installing rules", "error", err)
	}
	for _, uri := range w.store.URIs() {
		w.checker.Check(uri)
	}
}

// engineOptions returns the options for queries and transformations run on
// behalf of documents.
func (w *Workspace) engineOptions() []treesitter.Option {
	return w.settings.Get().TreesitterOptions(w.logger)
}

// Open opens a document from text. The language is taken from languageID
// when set, else from the URI.
func (w *Workspace) Open(uri, languageID, text string) *CodeDocument {
	return &CodeDocument{
		Document:  w.store.Open(uri, languageID, text),
		workspace: w,
	}
}

// OpenFile reads a file from disk and opens it. The language is detected
// from the file name.
func (w *Workspace) OpenFile(path string) (*CodeDocument, error) {
	return w.OpenFileAs(path, "")
}

// OpenFileAs is OpenFile with an explicit language name or id.
func (w *Workspace) OpenFileAs(path, languageID string) (*CodeDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	uri, err := FileURI(path)
	if err != nil {
		return nil, err
	}
	return w.Open(uri, languageID, string(data)), nil
}

// Document returns the open document for uri, or nil.
func (w *Workspace) Document(uri string) *CodeDocument {
	doc := w.store.Get(uri)
	if doc == nil {
		return nil
	}
	return &CodeDocument{Document: doc, workspace: w}
}

// CloseDocument closes the document for uri. Its tree, findings and range
// marks are released.
func (w *Workspace) CloseDocument(uri string) {
	w.store.Close(uri)
}

// Close closes every document and releases all parsers and trees.
func (w *Workspace) Close() {
	for _, uri := range w.store.URIs() {
		w.store.Close(uri)
	}
	w.manager.Close()
}

// FileURI converts a file path into an absolute file:// URI.
func FileURI(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	return "file://" + abs, nil
}
