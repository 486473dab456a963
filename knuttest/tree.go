package knuttest

import (
	"testing"

	"github.com/KDAB/knut-sub001/treesitter"
)

// ParseString parses source code with the given language and returns the
// parse tree. The parser and the tree are released when the test completes.
func ParseString(t testing.TB, lang *treesitter.Language, src string) *treesitter.Tree {
	t.Helper()
	parser, err := treesitter.NewParser(lang)
	if err != nil {
		t.Fatalf("creating parser: %v", err)
	}
	t.Cleanup(parser.Close)

	tree, err := parser.ParseString(src, nil)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	t.Cleanup(tree.Close)
	return tree
}

// AssertNodeKind asserts that a node has the expected type.
func AssertNodeKind(t testing.TB, node treesitter.Node, kind string) {
	t.Helper()
	if node.IsNull() {
		t.Fatalf("node is null, expected kind %q", kind)
	}
	if node.Type() != kind {
		t.Errorf("node kind = %q, want %q", node.Type(), kind)
	}
}

// AssertNoErrors asserts that the parse tree contains no ERROR nodes.
func AssertNoErrors(t testing.TB, tree *treesitter.Tree) {
	t.Helper()
	if tree == nil {
		t.Fatal("tree is nil")
	}
	root := tree.RootNode()
	if root.HasError() {
		t.Errorf("parse tree contains errors: %s", root.String())
	}
}
