package treesitter

import "fmt"

// cache holds values computed at most once per bound tree. Entries are keyed
// by their dynamic type.
type cache struct {
	entries []any
}

func (c *cache) reset() {
	c.entries = nil
}

// cached returns the entry of type T, computing and storing it on first use.
func cached[T any](c *cache, compute func() T) T {
	for _, e := range c.entries {
		if v, ok := e.(T); ok {
			return v
		}
	}
	v := compute()
	c.entries = append(c.entries, v)
	return v
}

// namedBlock is the span between a begin/end delimiter pair, exclusive of the
// delimiters themselves.
type namedBlock struct {
	found bool
	start int
	end   int
}

const namedBlockQuery = `(
(expression_statement
    (call_expression
        function: (identifier) @begin (#eq? @begin %q)
        arguments: (argument_list . (_) @class)))
.
(expression_statement)*
.
(expression_statement (call_expression
    function: (identifier) @end (#eq? @end %q)))
)`

func (p *Predicates) namedBlock() namedBlock {
	return cached(&p.cache, func() namedBlock {
		if p.root.IsNull() {
			p.logger.Warn("no root node bound", "predicate", "in-named-block?")
			return namedBlock{}
		}

		// The delimiter construct is C++ macro syntax.
		lang := p.root.tree.Language()
		if lang == nil || lang.Name() != CPP().Name() {
			return namedBlock{}
		}
		query, err := NewQuery(lang, fmt.Sprintf(namedBlockQuery, p.blockBegin, p.blockEnd))
		if err != nil {
			p.logger.Error("compiling named block query", "error", err)
			return namedBlock{}
		}
		defer query.Close()

		cursor := NewQueryCursor()
		defer cursor.Close()
		cursor.Execute(query, p.root, NewPredicates(p.source, WithLogger(p.logger)))

		match, ok := cursor.NextMatch()
		if !ok {
			return namedBlock{}
		}
		begin := match.CapturesNamed("begin")
		end := match.CapturesNamed("end")
		if len(begin) == 0 || len(end) == 0 {
			return namedBlock{}
		}
		return namedBlock{
			found: true,
			start: begin[0].Node.EndPosition(),
			end:   end[0].Node.StartPosition(),
		}
	})
}
