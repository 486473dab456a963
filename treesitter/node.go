package treesitter

import (
	"slices"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Node is a lightweight, copyable handle to a single syntax node. It owns
// nothing: the Tree it was obtained from owns all node memory, and the handle
// becomes null once that Tree is closed. The zero value is a null Node.
//
// Equality is node identity within a tree, independent of subtree content.
type Node struct {
	raw  tree_sitter.Node
	tree *Tree
}

func wrapNode(raw *tree_sitter.Node, tree *Tree) Node {
	if raw == nil || tree == nil {
		return Node{}
	}
	return Node{raw: *raw, tree: tree}
}

func (n Node) ok() bool {
	return n.tree.alive()
}

// IsNull reports whether the handle points to no node, or to a node of a
// closed tree.
func (n Node) IsNull() bool {
	return !n.ok()
}

// Tree returns the tree owning this node.
func (n Node) Tree() *Tree {
	return n.tree
}

// ID returns a numeric identifier, unique among the nodes of one tree.
func (n Node) ID() uintptr {
	if !n.ok() {
		return 0
	}
	return n.raw.Id()
}

// Equal reports whether both handles refer to the same node of the same tree.
func (n Node) Equal(other Node) bool {
	if !n.ok() || !other.ok() {
		return n.IsNull() && other.IsNull()
	}
	return n.tree == other.tree && n.raw.Equals(other.raw)
}

// Type returns the grammar type of the node, e.g. "call_expression".
func (n Node) Type() string {
	if !n.ok() {
		return ""
	}
	return n.raw.Kind()
}

func (n Node) IsNamed() bool   { return n.ok() && n.raw.IsNamed() }
func (n Node) IsMissing() bool { return n.ok() && n.raw.IsMissing() }
func (n Node) IsExtra() bool   { return n.ok() && n.raw.IsExtra() }
func (n Node) IsError() bool   { return n.ok() && n.raw.IsError() }
func (n Node) HasError() bool  { return n.ok() && n.raw.HasError() }

// StartPosition returns the byte offset where the node starts.
func (n Node) StartPosition() int {
	if !n.ok() {
		return 0
	}
	return fromInternal(n.raw.StartByte())
}

// EndPosition returns the byte offset just past the end of the node.
func (n Node) EndPosition() int {
	if !n.ok() {
		return 0
	}
	return fromInternal(n.raw.EndByte())
}

// StartPoint returns the row/column where the node starts.
func (n Node) StartPoint() Point {
	if !n.ok() {
		return Point{}
	}
	return pointFromInternal(n.raw.StartPosition())
}

// EndPoint returns the row/column just past the end of the node.
func (n Node) EndPoint() Point {
	if !n.ok() {
		return Point{}
	}
	return pointFromInternal(n.raw.EndPosition())
}

// Text returns the node text from the source the tree was parsed from.
func (n Node) Text() string {
	if !n.ok() {
		return ""
	}
	return n.TextIn(string(n.tree.src))
}

// TextIn returns the node's span of source. Out-of-range spans yield "".
func (n Node) TextIn(source string) string {
	if !n.ok() {
		return ""
	}
	start, end := n.StartPosition(), n.EndPosition()
	if start > end || end > len(source) {
		return ""
	}
	return source[start:end]
}

// TextExcept returns the node text with every descendant subtree whose type
// is in types removed. Matching subtrees are removed as a whole; their
// descendants are not inspected.
func (n Node) TextExcept(types []string) string {
	if !n.ok() {
		return ""
	}
	return n.TextExceptIn(string(n.tree.src), types)
}

// TextExceptIn is TextExcept against an explicit source snapshot.
func (n Node) TextExceptIn(source string, types []string) string {
	text := n.TextIn(source)
	if text == "" || len(types) == 0 {
		return text
	}

	var excluded []Node
	var collect func(Node)
	collect = func(parent Node) {
		for _, child := range parent.Children() {
			if slices.Contains(types, child.Type()) {
				excluded = append(excluded, child)
				continue
			}
			collect(child)
		}
	}
	collect(n)

	// Cut from the back so earlier offsets stay valid.
	slices.SortFunc(excluded, func(a, b Node) int {
		return b.StartPosition() - a.StartPosition()
	})
	base := n.StartPosition()
	for _, e := range excluded {
		start := e.StartPosition() - base
		end := e.EndPosition() - base
		if start < 0 || end > len(text) || start > end {
			continue
		}
		text = text[:start] + text[end:]
	}
	return text
}

// ChildCount returns the number of children, named and anonymous.
func (n Node) ChildCount() int {
	if !n.ok() {
		return 0
	}
	return fromInternal(n.raw.ChildCount())
}

// NamedChildCount returns the number of named children.
func (n Node) NamedChildCount() int {
	if !n.ok() {
		return 0
	}
	return fromInternal(n.raw.NamedChildCount())
}

// Child returns the i-th child or a null Node.
func (n Node) Child(i int) Node {
	if !n.ok() || i < 0 {
		return Node{}
	}
	return wrapNode(n.raw.Child(toInternal(i)), n.tree)
}

// NamedChild returns the i-th named child or a null Node.
func (n Node) NamedChild(i int) Node {
	if !n.ok() || i < 0 {
		return Node{}
	}
	return wrapNode(n.raw.NamedChild(toInternal(i)), n.tree)
}

// Children returns all children in order. The slice is recomputed on every
// call.
func (n Node) Children() []Node {
	if !n.ok() {
		return nil
	}
	cursor := NewTreeCursor(n)
	defer cursor.Close()

	children := make([]Node, 0, n.ChildCount())
	for ok := cursor.GotoFirstChild(); ok; ok = cursor.GotoNextSibling() {
		children = append(children, cursor.CurrentNode())
	}
	return children
}

// NamedChildren returns the named children in order.
func (n Node) NamedChildren() []Node {
	children := n.Children()
	named := children[:0]
	for _, c := range children {
		if c.IsNamed() {
			named = append(named, c)
		}
	}
	return named
}

// ChildByFieldName returns the first child stored under the given field.
func (n Node) ChildByFieldName(field string) Node {
	if !n.ok() {
		return Node{}
	}
	return wrapNode(n.raw.ChildByFieldName(field), n.tree)
}

// FieldNameForChild returns the field under which child is stored, or "" if
// it has none. The children are walked with a cursor and compared by
// identity: index-based field lookup reports wrong names when anonymous
// nodes sit between named ones.
func (n Node) FieldNameForChild(child Node) string {
	if !n.ok() {
		return ""
	}
	cursor := NewTreeCursor(n)
	defer cursor.Close()

	for ok := cursor.GotoFirstChild(); ok; ok = cursor.GotoNextSibling() {
		if cursor.CurrentNode().Equal(child) {
			return cursor.CurrentFieldName()
		}
	}
	n.tree.log().Warn("node is not a child of the given parent",
		"parent", n.Type(), "child", child.Type(), "offset", child.StartPosition())
	return ""
}

// Parent returns the parent node or a null Node for the root.
func (n Node) Parent() Node {
	if !n.ok() {
		return Node{}
	}
	return wrapNode(n.raw.Parent(), n.tree)
}

func (n Node) NextSibling() Node {
	if !n.ok() {
		return Node{}
	}
	return wrapNode(n.raw.NextSibling(), n.tree)
}

func (n Node) PrevSibling() Node {
	if !n.ok() {
		return Node{}
	}
	return wrapNode(n.raw.PrevSibling(), n.tree)
}

func (n Node) NextNamedSibling() Node {
	if !n.ok() {
		return Node{}
	}
	return wrapNode(n.raw.NextNamedSibling(), n.tree)
}

func (n Node) PrevNamedSibling() Node {
	if !n.ok() {
		return Node{}
	}
	return wrapNode(n.raw.PrevNamedSibling(), n.tree)
}

// DescendantForRange returns the smallest node that spans [start, end). When
// nothing smaller qualifies the receiver itself is returned.
func (n Node) DescendantForRange(start, end int) Node {
	if !n.ok() {
		return Node{}
	}
	if d := wrapNode(n.raw.DescendantForByteRange(toInternal(start), toInternal(end)), n.tree); !d.IsNull() {
		return d
	}
	return n
}

// String returns the S-expression of the subtree.
func (n Node) String() string {
	if !n.ok() {
		return "(null)"
	}
	return n.raw.ToSexp()
}

// Walk returns a cursor positioned on this node. Close it when done.
func (n Node) Walk() *TreeCursor {
	return NewTreeCursor(n)
}
