// Package knut ties the tree-sitter query engine to editable documents.
//
// A Workspace owns a document store, a language registry, a Manager that
// keeps one incrementally re-parsed tree per open document and a Checker
// running the configured rules after every parse:
//
//	ws, err := knut.NewWorkspace(knut.WithSettings(settings))
//	doc, err := ws.OpenFile("src/mainwindow.cpp")
//	for _, m := range doc.Matches(doc.Query(`(call_expression) @call`)) {
//		...
//	}
//
// CodeDocument adds tree-aware helpers to a document, and AstNode is a
// handle to a syntax node that stays usable across edits.
package knut
