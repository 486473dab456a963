package treesitter

import (
	"errors"
	"fmt"
	"log/slog"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrParseFailed is returned when the grammar runtime produces no tree.
var ErrParseFailed = errors.New("parser produced no tree")

// Parser turns source text into a Tree for one language. It keeps no state
// between parses except what a previous Tree passed to ParseString provides.
type Parser struct {
	raw    *tree_sitter.Parser
	lang   *Language
	logger *slog.Logger
}

// NewParser creates a parser for lang.
func NewParser(lang *Language, opts ...Option) (*Parser, error) {
	if lang == nil || lang.raw == nil {
		return nil, ErrNoLanguage
	}
	o := newOptions(opts)

	raw := tree_sitter.NewParser()
	if err := raw.SetLanguage(lang.raw); err != nil {
		raw.Close()
		return nil, fmt.Errorf("setting language %s: %w", lang.name, err)
	}
	return &Parser{raw: raw, lang: lang, logger: o.logger}, nil
}

// Language returns the grammar this parser was created for.
func (p *Parser) Language() *Language {
	return p.lang
}

// ParseString parses text. When previous is non-nil and has been told about
// the edits since it was produced (Tree.Edit), unchanged subtrees are reused.
// A failure is logged and reported as ErrParseFailed; callers should treat
// the document as currently unparsable.
func (p *Parser) ParseString(text string, previous *Tree) (*Tree, error) {
	src := []byte(text)

	var old *tree_sitter.Tree
	if previous.alive() {
		old = previous.raw
	}
	raw := p.raw.Parse(src, old)
	if raw == nil {
		p.logger.Error("parsing failed", "language", p.lang.name, "length", len(src))
		return nil, ErrParseFailed
	}
	return newTree(raw, src, p.lang, p.logger), nil
}

// SetIncludedRanges restricts parsing to the given ranges of the document.
// An empty slice restores whole-document parsing.
func (p *Parser) SetIncludedRanges(ranges []Range) error {
	raw := make([]tree_sitter.Range, len(ranges))
	for i, r := range ranges {
		raw[i] = rangeToInternal(r)
	}
	if err := p.raw.SetIncludedRanges(raw); err != nil {
		return fmt.Errorf("setting included ranges: %w", err)
	}
	return nil
}

// Reset discards any partial parse state.
func (p *Parser) Reset() {
	p.raw.Reset()
}

// Close releases the parser.
func (p *Parser) Close() {
	if p != nil && p.raw != nil {
		p.raw.Close()
		p.raw = nil
	}
}
