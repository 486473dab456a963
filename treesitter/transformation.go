package treesitter

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

var (
	// ErrTooManyReplacements is returned when a transformation keeps
	// matching after the replacement cap, which usually means the target
	// text matches the query again.
	ErrTooManyReplacements = errors.New("maximum number of replacements reached")

	// ErrFromCaptureNotFound is returned when a transformation query matches
	// but no match carries a @from capture.
	ErrFromCaptureNotFound = errors.New("'@from' capture not found")
)

// Transformation rewrites source text with a query: the node captured as
// @from is replaced by the target text, in which every @name is substituted
// by the text of the capture of that name. Matches without @from only
// contribute captures to the substitution context. The source is reparsed
// after every replacement until the query stops matching.
type Transformation struct {
	source string
	parser *Parser
	query  *Query
	target string

	logger          *slog.Logger
	opts            []Option
	maxReplacements int
	replacements    int
}

// NewTransformation prepares a transformation of source. The parser must be
// for the query's language.
func NewTransformation(source string, parser *Parser, query *Query, target string, opts ...Option) *Transformation {
	o := newOptions(opts)
	return &Transformation{
		source:          source,
		parser:          parser,
		query:           query,
		target:          target,
		logger:          o.logger,
		opts:            opts,
		maxReplacements: o.maxReplacements,
	}
}

// Replacements returns the number of replacements made by the last Run.
func (t *Transformation) Replacements() int {
	return t.replacements
}

// Run applies the transformation and returns the resulting text.
func (t *Transformation) Run() (string, error) {
	result := t.source
	t.replacements = 0

	cursor := NewQueryCursor()
	defer cursor.Close()

	for {
		tree, err := t.parser.ParseString(result, nil)
		if err != nil {
			return result, fmt.Errorf("transformation: %w", err)
		}
		cursor.Execute(t.query, tree.RootNode(), NewPredicates(result, t.opts...))

		next, replaced, err := t.step(cursor, result)
		tree.Close()
		if err != nil {
			return next, err
		}
		if !replaced {
			return result, nil
		}
		result = next
	}
}

// step performs at most one replacement.
func (t *Transformation) step(cursor *QueryCursor, text string) (string, bool, error) {
	context := make(map[string]string)
	hasMatch := false

	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		hasMatch = true
		for _, c := range match.Captures() {
			context[c.Name] = c.Text(text)
		}

		from := match.CapturesNamed("from")
		if len(from) == 0 {
			continue
		}
		start, end := from[0].Node.StartPosition(), from[0].Node.EndPosition()
		replacement := expandCaptures(t.target, context)
		text = text[:start] + replacement + text[end:]

		t.replacements++
		t.logger.Debug("transformation replaced node", "start", start, "end", end, "replacements", t.replacements)
		if t.replacements >= t.maxReplacements {
			return text, false, fmt.Errorf("%w (%d), the transformation is possibly recursive", ErrTooManyReplacements, t.maxReplacements)
		}
		return text, true, nil
	}

	if hasMatch && t.replacements == 0 {
		return text, false, ErrFromCaptureNotFound
	}
	return text, false, nil
}

// expandCaptures replaces every @name in target by its value. Longer names
// are substituted first so @class is not clobbered by @c.
func expandCaptures(target string, context map[string]string) string {
	names := make([]string, 0, len(context))
	for name := range context {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	for _, name := range names {
		target = strings.ReplaceAll(target, "@"+name, context[name])
	}
	return target
}
