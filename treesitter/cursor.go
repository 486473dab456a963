package treesitter

import tree_sitter "github.com/tree-sitter/go-tree-sitter"

// TreeCursor is a stateful depth-first traversal helper over one subtree.
// Each move reports whether it succeeded; a failed move leaves the cursor
// where it was.
type TreeCursor struct {
	raw  *tree_sitter.TreeCursor
	tree *Tree
}

// NewTreeCursor returns a cursor positioned on node. A cursor over a null
// node never moves.
func NewTreeCursor(node Node) *TreeCursor {
	if !node.ok() {
		return &TreeCursor{}
	}
	return &TreeCursor{raw: node.raw.Walk(), tree: node.tree}
}

func (c *TreeCursor) ok() bool {
	return c != nil && c.raw != nil && c.tree.alive()
}

func (c *TreeCursor) GotoFirstChild() bool {
	return c.ok() && c.raw.GotoFirstChild()
}

func (c *TreeCursor) GotoNextSibling() bool {
	return c.ok() && c.raw.GotoNextSibling()
}

func (c *TreeCursor) GotoParent() bool {
	return c.ok() && c.raw.GotoParent()
}

// CurrentNode returns the node under the cursor.
func (c *TreeCursor) CurrentNode() Node {
	if !c.ok() {
		return Node{}
	}
	return wrapNode(c.raw.Node(), c.tree)
}

// CurrentFieldName returns the field name of the current node within its
// parent, or "" if it has none.
func (c *TreeCursor) CurrentFieldName() string {
	if !c.ok() {
		return ""
	}
	return c.raw.FieldName()
}

// Depth returns how far the cursor has descended from where it started.
func (c *TreeCursor) Depth() int {
	if !c.ok() {
		return 0
	}
	return int(c.raw.Depth())
}

// Reset moves the cursor to node, which must belong to the same tree.
func (c *TreeCursor) Reset(node Node) {
	if c == nil || c.raw == nil || !node.ok() {
		return
	}
	c.raw.Reset(node.raw)
	c.tree = node.tree
}

// Close releases the cursor.
func (c *TreeCursor) Close() {
	if c != nil && c.raw != nil {
		c.raw.Close()
		c.raw = nil
	}
}

// CoveringNode returns the innermost node below root whose byte range
// contains [start, end). It only ever descends: a child that covers the range
// becomes the new candidate and its children are searched next, otherwise the
// next sibling is tried. Root is returned when no child qualifies.
func CoveringNode(root Node, start, end int) Node {
	covers := func(n Node) bool {
		return n.StartPosition() <= start && end <= n.EndPosition()
	}

	covering := root
	cursor := NewTreeCursor(root)
	defer cursor.Close()

	moved := cursor.GotoFirstChild()
	for moved {
		if current := cursor.CurrentNode(); covers(current) {
			covering = current
			moved = cursor.GotoFirstChild()
		} else {
			moved = cursor.GotoNextSibling()
		}
	}
	return covering
}

// walkSubtree calls fn for node and every descendant in pre-order.
func walkSubtree(node Node, fn func(Node)) {
	if node.IsNull() {
		return
	}
	cursor := NewTreeCursor(node)
	defer cursor.Close()
	for {
		fn(cursor.CurrentNode())
		if cursor.GotoFirstChild() {
			continue
		}
		for !cursor.GotoNextSibling() {
			if !cursor.GotoParent() {
				return
			}
		}
	}
}
