package knut

import (
	"errors"
	"fmt"

	"github.com/KDAB/knut-sub001/document"
	"github.com/KDAB/knut-sub001/treesitter"
)

// CodeDocument is an open document of a Workspace with helpers working on
// its syntax tree.
//
// Nodes returned by these helpers belong to the current tree and become
// invalid with the next edit of the document. AstNode keeps a handle that
// survives edits.
type CodeDocument struct {
	*document.Document
	workspace *Workspace
}

// Workspace returns the workspace the document is open in.
func (d *CodeDocument) Workspace() *Workspace {
	return d.workspace
}

// Tree returns the current syntax tree, or nil when the document has no
// grammar or failed to parse.
func (d *CodeDocument) Tree() *treesitter.Tree {
	return d.workspace.manager.Tree(d.URI())
}

// Language returns the grammar of the document, or nil.
func (d *CodeDocument) Language() *treesitter.Language {
	return d.workspace.manager.Language(d.URI())
}

// Query compiles pattern for the document's language. Failures are logged and
// reported as nil. The caller closes the query.
func (d *CodeDocument) Query(pattern string) *treesitter.Query {
	lang := d.Language()
	if lang == nil {
		d.workspace.logger.Error("constructing query: document has no grammar", "uri", d.URI())
		return nil
	}
	q, err := treesitter.NewQuery(lang, pattern)
	if err != nil {
		attrs := []any{"uri", d.URI(), "query", pattern, "error", err}
		var qerr *treesitter.QueryError
		if errors.As(err, &qerr) {
			attrs = append(attrs, "offset", qerr.Offset)
		}
		d.workspace.logger.Error("constructing query", attrs...)
		return nil
	}
	return q
}

// Matches runs query over the whole tree and returns every match that passes
// its predicates.
func (d *CodeDocument) Matches(query *treesitter.Query) []*treesitter.QueryMatch {
	tree := d.Tree()
	if tree == nil || query == nil {
		return nil
	}
	cursor := treesitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Execute(query, tree.RootNode(), d.predicates(tree))
	return cursor.AllRemainingMatches()
}

// QueryInRange runs query on the outermost nodes lying inside mark, in
// document order.
func (d *CodeDocument) QueryInRange(mark *document.RangeMark, query *treesitter.Query) []*treesitter.QueryMatch {
	if mark == nil || !mark.IsValid() {
		d.workspace.logger.Warn("query in range: range is not valid", "uri", d.URI())
		return nil
	}
	tree := d.Tree()
	if tree == nil || query == nil {
		return nil
	}

	nodes := nodesInRange(tree.RootNode(), mark.Start(), mark.End())
	if len(nodes) == 0 {
		d.workspace.logger.Warn("query in range: no nodes in range", "uri", d.URI(), "range", mark.String())
		return nil
	}
	d.workspace.logger.Debug("query in range", "uri", d.URI(), "nodes", len(nodes))

	cursor := treesitter.NewQueryCursor()
	defer cursor.Close()
	predicates := d.predicates(tree)

	var matches []*treesitter.QueryMatch
	for _, node := range nodes {
		cursor.Execute(query, node, predicates)
		matches = append(matches, cursor.AllRemainingMatches()...)
	}
	return matches
}

// NodesInRange returns the outermost nodes that lie entirely inside mark, in
// document order. Descendants of a returned node are not returned.
func (d *CodeDocument) NodesInRange(mark *document.RangeMark) []treesitter.Node {
	tree := d.Tree()
	if tree == nil || mark == nil || !mark.IsValid() {
		return nil
	}
	return nodesInRange(tree.RootNode(), mark.Start(), mark.End())
}

func nodesInRange(root treesitter.Node, start, end int) []treesitter.Node {
	var nodes []treesitter.Node
	var visit func(n treesitter.Node)
	visit = func(n treesitter.Node) {
		nodeStart, nodeEnd := n.StartPosition(), n.EndPosition()
		switch {
		case nodeStart < nodeEnd && start <= nodeStart && nodeEnd <= end:
			nodes = append(nodes, n)
		case nodeStart <= end && nodeEnd >= start:
			for _, child := range n.Children() {
				visit(child)
			}
		}
	}
	visit(root)
	return nodes
}

// NodeCoveringRange returns the innermost node containing [start, end), the
// root when no child does. It returns a null node without a tree.
func (d *CodeDocument) NodeCoveringRange(start, end int) treesitter.Node {
	tree := d.Tree()
	if tree == nil {
		return treesitter.Node{}
	}
	return treesitter.CoveringNode(tree.RootNode(), start, end)
}

// AstNodeAt returns a handle to the smallest node spanning [start, end).
// The handle is invalid when there is no such node.
func (d *CodeDocument) AstNodeAt(start, end int) *AstNode {
	tree := d.Tree()
	if tree == nil {
		return &AstNode{}
	}
	return newAstNode(d, tree.RootNode().DescendantForRange(start, end))
}

// Transform rewrites the document with a transformation query: the node
// captured as @from is replaced by target, in which @name references are
// substituted. The buffer is only changed when the whole run succeeds. It
// returns the number of replacements made.
func (d *CodeDocument) Transform(pattern, target string) (int, error) {
	lang := d.Language()
	if lang == nil {
		return 0, fmt.Errorf("transform %s: %w", d.URI(), treesitter.ErrNoLanguage)
	}
	query, err := treesitter.NewQuery(lang, pattern)
	if err != nil {
		return 0, fmt.Errorf("transform %s: %w", d.URI(), err)
	}
	defer query.Close()

	opts := d.workspace.engineOptions()
	parser, err := treesitter.NewParser(lang, opts...)
	if err != nil {
		return 0, err
	}
	defer parser.Close()

	transformation := treesitter.NewTransformation(d.Text(), parser, query, target, opts...)
	result, err := transformation.Run()
	if err != nil {
		return transformation.Replacements(), fmt.Errorf("transform %s: %w", d.URI(), err)
	}
	if transformation.Replacements() == 0 {
		return 0, nil
	}
	if err := d.SetText(result); err != nil {
		return 0, err
	}
	d.workspace.logger.Debug("transformed document", "uri", d.URI(), "replacements", transformation.Replacements())
	return transformation.Replacements(), nil
}

// Findings returns the rule findings of the document.
func (d *CodeDocument) Findings() []treesitter.Finding {
	return d.workspace.checker.Findings(d.URI())
}

func (d *CodeDocument) predicates(tree *treesitter.Tree) *treesitter.Predicates {
	return treesitter.NewPredicates(tree.Source(), d.workspace.engineOptions()...)
}
