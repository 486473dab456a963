package knuttest

import (
	"slices"
	"testing"

	"github.com/KDAB/knut-sub001/treesitter"
)

// MustQuery compiles a query and fails the test on error. The query is
// closed when the test completes.
func MustQuery(t testing.TB, lang *treesitter.Language, pattern string) *treesitter.Query {
	t.Helper()
	q, err := treesitter.NewQuery(lang, pattern)
	if err != nil {
		t.Fatalf("compiling query: %v", err)
	}
	t.Cleanup(q.Close)
	return q
}

// Matches runs query over the whole tree with predicates evaluated against
// the tree's source.
func Matches(t testing.TB, tree *treesitter.Tree, query *treesitter.Query, opts ...treesitter.Option) []*treesitter.QueryMatch {
	t.Helper()
	cursor := treesitter.NewQueryCursor()
	t.Cleanup(cursor.Close)
	cursor.Execute(query, tree.RootNode(), treesitter.NewPredicates(tree.Source(), opts...))
	return cursor.AllRemainingMatches()
}

// CaptureTexts returns the texts of every capture called name, across
// matches, in match order.
func CaptureTexts(matches []*treesitter.QueryMatch, source, name string) []string {
	var texts []string
	for _, m := range matches {
		for _, c := range m.CapturesNamed(name) {
			texts = append(texts, c.Text(source))
		}
	}
	return texts
}

// AssertCaptureTexts asserts the texts of every capture called name.
func AssertCaptureTexts(t testing.TB, matches []*treesitter.QueryMatch, source, name string, want ...string) {
	t.Helper()
	got := CaptureTexts(matches, source, name)
	if !slices.Equal(got, want) {
		t.Errorf("@%s texts = %q, want %q", name, got, want)
	}
}

// AssertFindingCount asserts the number of findings of a rule.
func AssertFindingCount(t testing.TB, findings []treesitter.Finding, rule string, count int) {
	t.Helper()
	n := 0
	for _, f := range findings {
		if f.Rule == rule {
			n++
		}
	}
	if n != count {
		t.Errorf("expected %d findings for rule %s, got %d", count, rule, n)
	}
}
