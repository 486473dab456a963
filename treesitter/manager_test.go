package treesitter_test

import (
	"testing"

	"github.com/KDAB/knut-sub001/document"
	"github.com/KDAB/knut-sub001/knuttest"
	"github.com/KDAB/knut-sub001/treesitter"
)

func setup(t testing.TB) (*document.Store, *treesitter.Manager) {
	t.Helper()
	store := document.NewStore(nil)
	mgr := treesitter.NewManager(treesitter.DefaultRegistry(), store)
	t.Cleanup(mgr.Close)
	return store, mgr
}

func change(line, from, to int, text string) []document.Change {
	return []document.Change{{
		Range: &document.Range{
			Start: document.Position{Line: line, Character: from},
			End:   document.Position{Line: line, Character: to},
		},
		Text: text,
	}}
}

func TestTreeDiff_IsFullReparseOnOpen(t *testing.T) {
	store, mgr := setup(t)
	store.Open("file:///test.json", "json", `{"key": "value"}`)

	tree := mgr.Tree("file:///test.json")
	if tree == nil {
		t.Fatal("expected tree to exist after open")
	}
	if tree.Diff == nil {
		t.Fatal("expected Diff to be set on open")
	}
	if !tree.Diff.IsFullReparse {
		t.Error("expected IsFullReparse to be true on initial open")
	}
	if !tree.Diff.AffectsKind("document") {
		t.Error("expected root 'document' kind to be in AffectedKinds")
	}
	if got := mgr.Language("file:///test.json").Name(); got != "json" {
		t.Errorf("language = %q, want json", got)
	}
}

func TestTreeDiff_IncrementalEdit(t *testing.T) {
	store, mgr := setup(t)
	uri := "file:///test.json"
	store.Open(uri, "json", `{"a": 1}`)

	// Structural change: add a new key.
	if err := store.Change(uri, 2, change(0, 7, 7, `, "b": 2`)); err != nil {
		t.Fatal(err)
	}

	tree := mgr.Tree(uri)
	if tree == nil {
		t.Fatal("expected tree after edit")
	}
	if tree.Source() != `{"a": 1, "b": 2}` {
		t.Errorf("tree source = %q", tree.Source())
	}
	if tree.Diff == nil {
		t.Fatal("expected Diff to be set after edit")
	}
	if tree.Diff.IsFullReparse {
		t.Error("expected IsFullReparse to be false after incremental edit")
	}
	if len(tree.Diff.ChangedRanges) == 0 {
		t.Error("expected ChangedRanges to be non-empty after structural edit")
	}
	if len(tree.Diff.AffectedNodes) == 0 {
		t.Error("expected AffectedNodes to be non-empty")
	}
	if !tree.Diff.AffectsKind("pair") {
		t.Error("expected 'pair' to be affected")
	}
	knuttest.AssertNoErrors(t, tree)
}

func TestTreeDiff_FullTextReplacement(t *testing.T) {
	store, mgr := setup(t)
	uri := "file:///test.json"
	doc := store.Open(uri, "json", `{"a": 1}`)

	if err := doc.SetText(`[1, 2]`); err != nil {
		t.Fatal(err)
	}
	tree := mgr.Tree(uri)
	if !tree.Diff.IsFullReparse {
		t.Error("expected IsFullReparse after replacing the whole text")
	}
	if !tree.Diff.AffectsKind("array") {
		t.Error("expected 'array' to be affected")
	}
}

func TestManager_SequentialChanges(t *testing.T) {
	store, mgr := setup(t)
	uri := "file:///test.py"
	store.Open(uri, "", "def f():\n    return 1\n")

	err := store.Change(uri, 2, []document.Change{
		{Range: &document.Range{Start: document.Position{Line: 1, Character: 11}, End: document.Position{Line: 1, Character: 12}}, Text: "2"},
		{Range: &document.Range{Start: document.Position{Line: 2}, End: document.Position{Line: 2}}, Text: "def g():\n    pass\n"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tree := mgr.Tree(uri)
	want := "def f():\n    return 2\ndef g():\n    pass\n"
	if tree.Source() != want {
		t.Fatalf("tree source = %q, want %q", tree.Source(), want)
	}
	knuttest.AssertNoErrors(t, tree)
	if n := tree.RootNode().NamedChildCount(); n != 2 {
		t.Errorf("expected 2 function definitions, got %d", n)
	}
}

func TestManager_UpdateCallbacks(t *testing.T) {
	store, mgr := setup(t)

	var updates []string
	mgr.OnTreeUpdate(func(uri string, tree *treesitter.Tree) {
		updates = append(updates, tree.Source())
	})

	doc := store.Open("file:///a.yaml", "yaml", "key: value\n")
	if err := doc.Insert(doc.Len(), "other: 1\n"); err != nil {
		t.Fatal(err)
	}
	mgr.Reparse("file:///a.yaml")

	want := []string{"key: value\n", "key: value\nother: 1\n", "key: value\nother: 1\n"}
	if len(updates) != len(want) {
		t.Fatalf("expected %d updates, got %d", len(want), len(updates))
	}
	for i := range want {
		if updates[i] != want[i] {
			t.Errorf("update %d = %q, want %q", i, updates[i], want[i])
		}
	}
	if !mgr.Tree("file:///a.yaml").Diff.IsFullReparse {
		t.Error("expected Reparse to produce a full diff")
	}
}

func TestManager_UnknownLanguage(t *testing.T) {
	store, mgr := setup(t)
	store.Open("file:///notes.txt", "plaintext", "hello")

	if mgr.Tree("file:///notes.txt") != nil {
		t.Error("expected no tree for a document without grammar")
	}
	if mgr.Language("file:///notes.txt") != nil {
		t.Error("expected no language for a document without grammar")
	}
	if mgr.Reparse("file:///notes.txt") != nil {
		t.Error("expected Reparse to do nothing without grammar")
	}
}

func TestManager_CloseReleasesTree(t *testing.T) {
	store, mgr := setup(t)
	store.Open("file:///main.go", "go", "package main\n")
	tree := mgr.Tree("file:///main.go")
	if tree == nil {
		t.Fatal("expected tree")
	}
	root := tree.RootNode()

	store.Close("file:///main.go")
	if mgr.Tree("file:///main.go") != nil {
		t.Error("expected tree to be dropped on close")
	}
	if !root.IsNull() {
		t.Error("expected nodes of a closed tree to be null")
	}
}
