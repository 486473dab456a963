package knut

import (
	"github.com/KDAB/knut-sub001/document"
	"github.com/KDAB/knut-sub001/treesitter"
)

// AstNode is a handle to a syntax node that survives edits. It stores the
// node's span as a RangeMark together with its type, and resolves the node
// again on the current tree when asked.
//
// The zero value is invalid.
type AstNode struct {
	mark *document.RangeMark
	typ  string
	doc  *CodeDocument
}

func newAstNode(doc *CodeDocument, node treesitter.Node) *AstNode {
	if node.IsNull() {
		return &AstNode{}
	}
	return &AstNode{
		mark: doc.CreateRangeMark(node.StartPosition(), node.EndPosition()),
		typ:  node.Type(),
		doc:  doc,
	}
}

// IsValid reports whether the handle still points into an open document.
func (n *AstNode) IsValid() bool {
	return n.mark != nil && n.mark.IsValid()
}

// Node resolves the smallest node spanning the handle's current range on
// the document's current tree. It returns a null node when the handle is
// invalid.
func (n *AstNode) Node() treesitter.Node {
	if !n.IsValid() {
		if n.doc != nil {
			n.doc.workspace.logger.Warn("ast node is invalid")
		}
		return treesitter.Node{}
	}
	tree := n.doc.Tree()
	if tree == nil {
		return treesitter.Node{}
	}
	return tree.RootNode().DescendantForRange(n.mark.Start(), n.mark.End())
}

// Parent returns the handle of the parent node. The result is invalid for
// the root.
func (n *AstNode) Parent() *AstNode {
	node := n.Node()
	if node.IsNull() {
		return &AstNode{}
	}
	return newAstNode(n.doc, node.Parent())
}

// Children returns handles to every child, named or not.
func (n *AstNode) Children() []*AstNode {
	node := n.Node()
	if node.IsNull() {
		return nil
	}
	children := node.Children()
	nodes := make([]*AstNode, 0, len(children))
	for _, child := range children {
		nodes = append(nodes, newAstNode(n.doc, child))
	}
	return nodes
}

// Type returns the node type recorded when the handle was created.
func (n *AstNode) Type() string { return n.typ }

// Text returns the current text of the handle's range.
func (n *AstNode) Text() string {
	if n.mark == nil {
		return ""
	}
	return n.mark.Text()
}

// Start returns the current start offset.
func (n *AstNode) Start() int {
	if n.mark == nil {
		return 0
	}
	return n.mark.Start()
}

// End returns the current end offset.
func (n *AstNode) End() int {
	if n.mark == nil {
		return 0
	}
	return n.mark.End()
}

// Mark returns the range mark backing the handle.
func (n *AstNode) Mark() *document.RangeMark { return n.mark }

// Document returns the document the node belongs to, nil for an invalid
// handle.
func (n *AstNode) Document() *CodeDocument { return n.doc }
