package treesitter

import (
	"log/slog"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Tree owns a parsed syntax tree together with the source it was parsed
// from. Nodes obtained from a Tree are only valid until the Tree is closed;
// afterwards they report IsNull and every accessor returns a zero value.
type Tree struct {
	raw    *tree_sitter.Tree
	src    []byte
	lang   *Language
	logger *slog.Logger

	Diff *TreeDiff
}

func newTree(raw *tree_sitter.Tree, src []byte, lang *Language, logger *slog.Logger) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tree{raw: raw, src: src, lang: lang, logger: logger}
}

// Raw returns the underlying tree-sitter Tree.
func (t *Tree) Raw() *tree_sitter.Tree {
	if t == nil {
		return nil
	}
	return t.raw
}

// RootNode returns the root node of the parse tree, or a null Node if the
// tree is absent or closed.
func (t *Tree) RootNode() Node {
	if !t.alive() {
		return Node{}
	}
	return wrapNode(t.raw.RootNode(), t)
}

// Source returns the text the tree was parsed from.
func (t *Tree) Source() string {
	if t == nil {
		return ""
	}
	return string(t.src)
}

// Language returns the grammar the tree was parsed with.
func (t *Tree) Language() *Language {
	if t == nil {
		return nil
	}
	return t.lang
}

// NodeText returns the text content of a node using the stored source.
func (t *Tree) NodeText(node Node) string {
	if t == nil {
		return ""
	}
	return node.TextIn(string(t.src))
}

// Edit informs the tree of a source edit so a following parse can reuse it.
func (t *Tree) Edit(startByte, oldEndByte, newEndByte int, startPoint, oldEndPoint, newEndPoint Point) {
	if !t.alive() {
		return
	}
	t.raw.Edit(&tree_sitter.InputEdit{
		StartByte:      toInternal(startByte),
		OldEndByte:     toInternal(oldEndByte),
		NewEndByte:     toInternal(newEndByte),
		StartPosition:  pointToInternal(startPoint),
		OldEndPosition: pointToInternal(oldEndPoint),
		NewEndPosition: pointToInternal(newEndPoint),
	})
}

// ChangedRanges compares an edited old tree with a new tree parsed from it.
func (t *Tree) ChangedRanges(other *Tree) []Range {
	if !t.alive() || !other.alive() {
		return nil
	}
	raw := t.raw.ChangedRanges(other.raw)
	ranges := make([]Range, len(raw))
	for i, r := range raw {
		ranges[i] = rangeFromInternal(r)
	}
	return ranges
}

// Close releases the tree-sitter tree resources.
func (t *Tree) Close() {
	if t != nil && t.raw != nil {
		t.raw.Close()
		t.raw = nil
	}
}

func (t *Tree) alive() bool {
	return t != nil && t.raw != nil
}

func (t *Tree) log() *slog.Logger {
	if t == nil || t.logger == nil {
		return slog.Default()
	}
	return t.logger
}
