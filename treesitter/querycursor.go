package treesitter

import (
	"math"
	"slices"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Capture is one captured node of a match. Under quantifiers several
// captures of a match share the same ID.
type Capture struct {
	ID   uint32
	Name string
	Node Node

	// excluded holds node types whose subtrees exclude! strips from Text.
	excluded []string
}

// Text returns the captured text in source, minus any subtrees removed by an
// exclude! command.
func (c Capture) Text(source string) string {
	if len(c.excluded) == 0 {
		return c.Node.TextIn(source)
	}
	return c.Node.TextExceptIn(source, c.excluded)
}

// QueryMatch is one successful match of a pattern. It holds copies of the
// captured nodes and stays usable after the cursor advances, as long as the
// tree is alive.
type QueryMatch struct {
	id           uint
	patternIndex int
	captures     []Capture
	query        *Query
}

// ID returns the runtime's identifier for this match.
func (m *QueryMatch) ID() uint { return m.id }

// PatternIndex returns the index of the pattern that matched.
func (m *QueryMatch) PatternIndex() int { return m.patternIndex }

// Query returns the query that produced the match.
func (m *QueryMatch) Query() *Query { return m.query }

// Captures returns all captures in tree order.
func (m *QueryMatch) Captures() []Capture { return m.captures }

// CapturesWithID returns the captures with the given capture ID.
func (m *QueryMatch) CapturesWithID(id uint32) []Capture {
	var out []Capture
	for _, c := range m.captures {
		if c.ID == id {
			out = append(out, c)
		}
	}
	return out
}

// CapturesNamed returns every capture bound to name, possibly more than one
// under quantifiers.
func (m *QueryMatch) CapturesNamed(name string) []Capture {
	id, ok := m.query.CaptureIndex(name)
	if !ok {
		return nil
	}
	return m.CapturesWithID(id)
}

// QueryCursor executes a Query against a subtree and yields matches lazily.
// A cursor is single-pass: once exhausted it yields nothing more until
// Execute is called again. It borrows the query and the tree and must not
// outlive either.
type QueryCursor struct {
	raw        *tree_sitter.QueryCursor
	matches    tree_sitter.QueryMatches
	query      *Query
	tree       *Tree
	predicates *Predicates
	progress   func(offset int) bool

	byteRange *[2]int
	running   bool
}

// NewQueryCursor creates an idle cursor.
func NewQueryCursor() *QueryCursor {
	return &QueryCursor{raw: tree_sitter.NewQueryCursor()}
}

// SetByteRange restricts the following executions to matches intersecting
// [start, end). SetByteRange(0, 0) lifts the restriction.
func (c *QueryCursor) SetByteRange(start, end int) {
	if start == 0 && end == 0 {
		c.byteRange = nil
		return
	}
	c.byteRange = &[2]int{start, end}
}

// SetProgressCallback installs a function called with the current byte
// offset while the runtime searches for matches. Returning true cancels the
// traversal.
func (c *QueryCursor) SetProgressCallback(fn func(offset int) bool) {
	c.progress = fn
}

// Execute binds query to node. When predicates is nil the predicate clauses
// are skipped and every structural match is returned. A null node produces
// no matches, as does a closed cursor.
func (c *QueryCursor) Execute(query *Query, node Node, predicates *Predicates) {
	c.query = query
	c.predicates = predicates
	c.tree = node.tree
	c.running = false
	if c.raw == nil || query == nil || query.raw == nil || !node.ok() {
		return
	}
	if predicates != nil {
		predicates.SetRootNode(node.tree.RootNode())
	}
	if c.byteRange != nil {
		c.raw.SetByteRange(toInternal(c.byteRange[0]), toInternal(c.byteRange[1]))
	} else {
		c.raw.SetByteRange(0, math.MaxUint32)
	}

	if c.progress != nil {
		progress := c.progress
		c.matches = c.raw.MatchesWithOptions(query.raw, &node.raw, node.tree.src, tree_sitter.QueryCursorOptions{
			ProgressCallback: func(state tree_sitter.QueryCursorState) bool {
				return progress(int(state.CurrentByteOffset))
			},
		})
	} else {
		c.matches = c.raw.Matches(query.raw, &node.raw, node.tree.src)
	}
	c.running = true
}

// NextMatch advances to the next match that satisfies every predicate.
// Rejected matches are skipped. It returns false once the structural matches
// are exhausted.
func (c *QueryCursor) NextMatch() (*QueryMatch, bool) {
	for c.running {
		raw := c.matches.Next()
		if raw == nil {
			c.running = false
			break
		}
		match := c.copyMatch(raw)
		if c.predicates == nil || c.predicates.FilterMatch(match) {
			return match, true
		}
	}
	return nil, false
}

// AllRemainingMatches drains the cursor.
func (c *QueryCursor) AllRemainingMatches() []*QueryMatch {
	var out []*QueryMatch
	for {
		m, ok := c.NextMatch()
		if !ok {
			return out
		}
		out = append(out, m)
	}
}

// Close releases the cursor.
func (c *QueryCursor) Close() {
	if c != nil && c.raw != nil {
		c.raw.Close()
		c.raw = nil
		c.running = false
	}
}

// copyMatch detaches the captures from the runtime's reused match buffer.
// The runtime may report the same node twice for one quantified capture;
// such repeats are dropped.
func (c *QueryCursor) copyMatch(raw *tree_sitter.QueryMatch) *QueryMatch {
	m := &QueryMatch{
		id:           raw.Id(),
		patternIndex: int(raw.PatternIndex),
		captures:     make([]Capture, 0, len(raw.Captures)),
		query:        c.query,
	}
	for _, rc := range raw.Captures {
		node := Node{raw: rc.Node, tree: c.tree}
		if slices.ContainsFunc(m.captures, func(seen Capture) bool {
			return seen.ID == rc.Index && seen.Node.Equal(node)
		}) {
			continue
		}
		name := ""
		if qc, ok := c.query.CaptureAt(rc.Index); ok {
			name = qc.Name
		}
		m.captures = append(m.captures, Capture{
			ID:   rc.Index,
			Name: name,
			Node: node,
		})
	}
	return m
}
