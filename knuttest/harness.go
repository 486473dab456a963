// Package knuttest provides testing utilities for the query engine: parsing
// and query helpers, assertions on nodes and captures, fixtures and a
// workspace harness.
package knuttest

import (
	"testing"

	knut "github.com/KDAB/knut-sub001"
)

// NewWorkspace creates a workspace that is closed when the test completes.
func NewWorkspace(t testing.TB, opts ...knut.Option) *knut.Workspace {
	t.Helper()
	ws, err := knut.NewWorkspace(opts...)
	if err != nil {
		t.Fatalf("creating workspace: %v", err)
	}
	t.Cleanup(ws.Close)
	return ws
}

// OpenDocument opens text in ws under a URI built from name, whose
// extension selects the language.
func OpenDocument(t testing.TB, ws *knut.Workspace, name, text string) *knut.CodeDocument {
	t.Helper()
	doc := ws.Open(FileURI(name), "", text)
	if doc.Tree() == nil {
		t.Fatalf("document %s has no syntax tree", name)
	}
	return doc
}
