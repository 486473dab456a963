// Package document provides editable text documents, a store of open
// documents, position utilities and RangeMarks: byte spans that keep
// pointing at the same text while the document is edited.
package document

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// Store is a thread-safe store of open documents.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]*Document
	logger *slog.Logger

	openHooks  []func(doc *Document)
	closeHooks []func(uri string)
}

// NewStore creates a new empty document store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		docs:   make(map[string]*Document),
		logger: logger,
	}
}

// OnOpen registers a callback called when a document is opened. Multiple
// callbacks can be registered; they fire in registration order.
func (s *Store) OnOpen(fn func(doc *Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openHooks = append(s.openHooks, fn)
}

// OnClose registers a callback called when a document is closed. Multiple
// callbacks can be registered; they fire in registration order.
func (s *Store) OnClose(fn func(uri string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeHooks = append(s.closeHooks, fn)
}

// Get returns the document for the given URI, or nil if not found.
func (s *Store) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[uri]
}

// URIs returns all open document URIs, sorted.
func (s *Store) URIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.docs))
}

// Open adds a document to the store. An already open document with the same
// URI is closed first.
func (s *Store) Open(uri, languageID, text string) *Document {
	if s.Get(uri) != nil {
		s.Close(uri)
	}
	doc := New(uri, languageID, text, WithLogger(s.logger), WithVersion(1))

	s.mu.Lock()
	s.docs[uri] = doc
	callbacks := slices.Clone(s.openHooks)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(doc)
	}
	return doc
}

// Change applies changes to an open document.
func (s *Store) Change(uri string, version int32, changes []Change) error {
	doc := s.Get(uri)
	if doc == nil {
		return fmt.Errorf("change %s: %w", uri, ErrDocumentClosed)
	}
	_, err := doc.ApplyChanges(version, changes)
	return err
}

// Close removes a document from the store and closes it.
func (s *Store) Close(uri string) {
	s.mu.Lock()
	doc := s.docs[uri]
	delete(s.docs, uri)
	callbacks := slices.Clone(s.closeHooks)
	s.mu.Unlock()

	if doc == nil {
		return
	}
	doc.Close()
	for _, cb := range callbacks {
		cb(uri)
	}
}
