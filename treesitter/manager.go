package treesitter

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/KDAB/knut-sub001/document"
)

// TreeUpdateFunc is called after a tree is parsed or re-parsed.
type TreeUpdateFunc func(uri string, tree *Tree)

// Manager keeps one parser and one tree per open document of a
// document.Store. It parses on open and re-parses incrementally on every
// change, reusing the previous tree.
type Manager struct {
	registry *Registry
	store    *document.Store
	opts     []Option
	logger   *slog.Logger

	mu      sync.RWMutex
	parsers map[string]*Parser
	trees   map[string]*Tree

	onTreeUpdate []TreeUpdateFunc
}

// NewManager creates a manager tied to a document store.
func NewManager(registry *Registry, store *document.Store, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		store:    store,
		opts:     opts,
		logger:   newOptions(opts).logger,
		parsers:  make(map[string]*Parser),
		trees:    make(map[string]*Tree),
	}

	store.OnOpen(m.handleOpen)
	store.OnClose(m.handleClose)

	return m
}

// OnTreeUpdate registers a callback that fires after every parse/reparse.
// Callbacks run in registration order, outside the manager lock.
func (m *Manager) OnTreeUpdate(fn TreeUpdateFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTreeUpdate = append(m.onTreeUpdate, fn)
}

// Registry returns the language registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Tree returns the current tree for the given document URI, nil if the
// document is not open, has no known language or failed to parse.
func (m *Manager) Tree(uri string) *Tree {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trees[uri]
}

// Language returns the grammar used for the document.
func (m *Manager) Language(uri string) *Language {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.parsers[uri]; ok {
		return p.Language()
	}
	return nil
}

// Reparse parses the document from scratch.
func (m *Manager) Reparse(uri string) *Tree {
	doc := m.store.Get(uri)
	if doc == nil {
		return nil
	}
	return m.update(uri, doc.Text(), nil)
}

// handleOpen creates a parser and performs the initial full parse.
func (m *Manager) handleOpen(doc *document.Document) {
	uri := doc.URI()
	lang, err := m.registry.LanguageForURI(uri, doc.LanguageID())
	if err != nil {
		m.logger.Debug("no grammar for document", "uri", uri, "error", err)
		return
	}
	parser, err := NewParser(lang, m.opts...)
	if err != nil {
		m.logger.Error("creating parser", "uri", uri, "error", err)
		return
	}

	m.mu.Lock()
	m.parsers[uri] = parser
	m.mu.Unlock()

	doc.OnChange(func(edit document.EditRange) {
		m.update(uri, doc.Text(), &edit)
	})
	m.update(uri, doc.Text(), nil)
}

// handleClose cleans up the parser and tree of a closed document.
func (m *Manager) handleClose(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if parser, ok := m.parsers[uri]; ok {
		parser.Close()
		delete(m.parsers, uri)
	}
	m.trees[uri].Close()
	delete(m.trees, uri)
}

// update parses text, reusing the current tree when edit describes the
// change that produced text, and notifies the callbacks.
func (m *Manager) update(uri, text string, edit *document.EditRange) *Tree {
	m.mu.Lock()
	parser, ok := m.parsers[uri]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	tree, err := m.parseLocked(parser, uri, text, edit)
	callbacks := slices.Clone(m.onTreeUpdate)
	m.mu.Unlock()

	if err != nil {
		return nil
	}
	for _, cb := range callbacks {
		cb(uri, tree)
	}
	return tree
}

// parseLocked replaces the tree of uri. The parse is incremental unless
// there is no usable previous tree or the edit replaced the whole text.
func (m *Manager) parseLocked(parser *Parser, uri, text string, edit *document.EditRange) (*Tree, error) {
	previous := m.trees[uri]
	incremental := edit != nil && previous.alive() &&
		!(edit.StartByte == 0 && edit.OldEndByte == len(previous.src))

	var base *Tree
	if incremental {
		previous.Edit(edit.StartByte, edit.OldEndByte, edit.NewEndByte,
			pointFromDocument(edit.StartPoint), pointFromDocument(edit.OldEndPoint), pointFromDocument(edit.NewEndPoint))
		base = previous
	}

	tree, err := parser.ParseString(text, base)
	if err != nil {
		return nil, err
	}
	if incremental {
		tree.Diff = diffTrees(previous, tree)
	} else {
		tree.Diff = fullDiff(tree)
	}

	previous.Close()
	m.trees[uri] = tree
	return tree, nil
}

func pointFromDocument(p document.Point) Point {
	return Point{Row: p.Row, Column: p.Column}
}

// Close releases all parsers and trees.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uri, parser := range m.parsers {
		parser.Close()
		delete(m.parsers, uri)
	}
	for uri, tree := range m.trees {
		tree.Close()
		delete(m.trees, uri)
	}
}
