package treesitter

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/KDAB/knut-sub001/document"
)

// Severity ranks findings.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInfo
	SeverityHint
)

var severityNames = map[Severity]string{
	SeverityError:   "error",
	SeverityWarning: "warning",
	SeverityInfo:    "info",
	SeverityHint:    "hint",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// ParseSeverity parses a severity name. An empty name is a warning.
func ParseSeverity(name string) (Severity, error) {
	if name == "" {
		return SeverityWarning, nil
	}
	for s, n := range severityNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

// Rule is a declarative, query-based check. Every match of Pattern yields a
// Finding located at the node captured as Capture.
type Rule struct {
	Name string

	// Language restricts the rule to documents of that grammar. An empty
	// Language applies the rule wherever the pattern compiles.
	Language string

	// Pattern is a query, predicates included.
	Pattern string

	// Capture names the capture that locates a finding. If empty, the first
	// capture of the match is used.
	Capture string

	// Message is the finding text. @name is replaced by the text of the
	// capture of that name. If empty, the captured text is used.
	Message string

	// Severity defaults to SeverityWarning.
	Severity Severity

	// InterestKinds, if non-empty, causes the rule to be skipped after an
	// edit when none of these node kinds appear in the diff's AffectedKinds.
	// Its previous findings are kept and keep following the text.
	InterestKinds []string
}

// Finding is one rule match in a document. Its location is a RangeMark, so
// it stays attached to the same text while the document is edited.
type Finding struct {
	Rule     string
	Severity Severity
	Message  string
	Text     string
	Mark     *document.RangeMark
}

// Start returns the current start offset of the finding.
func (f Finding) Start() int { return f.Mark.Start() }

// End returns the current end offset of the finding.
func (f Finding) End() int { return f.Mark.End() }

// FindingsFunc receives all findings of a document after they changed.
type FindingsFunc func(uri string, findings []Finding)

type ruleQuery struct {
	query *Query
	err   error
}

// Checker runs rules on every tree update of a Manager and caches the
// findings per document and rule.
type Checker struct {
	mu    sync.Mutex
	rules []Rule

	// Compiled queries, per rule name and language name.
	queries map[string]map[string]ruleQuery
	cache   map[string]map[string][]Finding

	store      *document.Store
	manager    *Manager
	onFindings []FindingsFunc
	opts       []Option
	logger     *slog.Logger
}

// NewChecker creates a checker tied to a Manager. It registers itself as a
// tree update callback.
func NewChecker(manager *Manager, store *document.Store, opts ...Option) *Checker {
	c := &Checker{
		queries: make(map[string]map[string]ruleQuery),
		cache:   make(map[string]map[string][]Finding),
		store:   store,
		manager: manager,
		opts:    opts,
		logger:  newOptions(opts).logger,
	}
	manager.OnTreeUpdate(c.onTreeUpdate)
	store.OnClose(c.ClearCache)
	return c
}

// SetRules replaces the rule set. Rules bound to a language are compiled
// immediately and every failure is reported; the remaining rules are still
// installed.
func (c *Checker) SetRules(rules []Rule) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, q := range c.queries {
		for _, rq := range q {
			rq.query.Close()
		}
	}
	c.rules = slices.Clone(rules)
	c.queries = make(map[string]map[string]ruleQuery)
	clear(c.cache)

	var errs []error
	for _, r := range c.rules {
		if r.Language == "" {
			continue
		}
		lang, err := c.manager.Registry().Lookup(r.Language)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", r.Name, err))
			continue
		}
		if _, err := c.queryLocked(r, lang); err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", r.Name, err))
		}
	}
	return errors.Join(errs...)
}

// SetOptions replaces the options used to evaluate rule predicates. Cached
// findings are dropped so the next tree update recomputes them.
func (c *Checker) SetOptions(opts ...Option) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
	c.logger = newOptions(opts).logger
	clear(c.cache)
}

// OnFindings registers a callback fired after findings of a document were
// recomputed.
func (c *Checker) OnFindings(fn FindingsFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFindings = append(c.onFindings, fn)
}

// Findings returns the cached findings of a document in document order.
func (c *Checker) Findings(uri string) []Finding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return mergeFindings(c.cache[uri])
}

// Check runs every rule on the current tree of the document.
func (c *Checker) Check(uri string) []Finding {
	tree := c.manager.Tree(uri)
	if tree == nil {
		return nil
	}
	c.mu.Lock()
	delete(c.cache, uri)
	c.mu.Unlock()
	c.run(uri, tree, fullDiff(tree))
	return c.Findings(uri)
}

// ClearCache removes cached findings for a document.
func (c *Checker) ClearCache(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, uri)
}

func (c *Checker) onTreeUpdate(uri string, tree *Tree) {
	c.run(uri, tree, tree.Diff)
}

func (c *Checker) run(uri string, tree *Tree, diff *TreeDiff) {
	doc := c.store.Get(uri)
	if doc == nil {
		return
	}
	if diff == nil {
		diff = fullDiff(tree)
	}

	c.mu.Lock()
	if len(c.rules) == 0 {
		c.mu.Unlock()
		return
	}
	fileCache := c.cache[uri]
	if fileCache == nil {
		fileCache = make(map[string][]Finding)
		c.cache[uri] = fileCache
	}

	for _, r := range c.rules {
		if r.Language != "" && r.Language != tree.Language().Name() {
			continue
		}
		if _, cached := fileCache[r.Name]; cached && !diff.IsFullReparse && !ruleShouldRun(r, diff) {
			continue
		}
		query, err := c.queryLocked(r, tree.Language())
		if err != nil {
			continue
		}
		fileCache[r.Name] = c.execute(r, query, tree, doc)
	}

	all := mergeFindings(fileCache)
	callbacks := slices.Clone(c.onFindings)
	c.mu.Unlock()

	for _, cb := range callbacks {
		cb(uri, all)
	}
}

func ruleShouldRun(r Rule, diff *TreeDiff) bool {
	if len(r.InterestKinds) == 0 {
		return true
	}
	for _, kind := range r.InterestKinds {
		if diff.AffectsKind(kind) {
			return true
		}
	}
	return false
}

func (c *Checker) queryLocked(r Rule, lang *Language) (*Query, error) {
	byLang := c.queries[r.Name]
	if byLang == nil {
		byLang = make(map[string]ruleQuery)
		c.queries[r.Name] = byLang
	}
	if rq, ok := byLang[lang.Name()]; ok {
		return rq.query, rq.err
	}

	query, err := NewQuery(lang, r.Pattern)
	if err != nil {
		c.logger.Warn("rule query failed", "rule", r.Name, "language", lang.Name(), "error", err)
	}
	byLang[lang.Name()] = ruleQuery{query: query, err: err}
	return query, err
}

func (c *Checker) execute(r Rule, query *Query, tree *Tree, doc *document.Document) []Finding {
	source := tree.Source()
	cursor := NewQueryCursor()
	defer cursor.Close()
	cursor.Execute(query, tree.RootNode(), NewPredicates(source, c.opts...))

	var findings []Finding
	for _, match := range cursor.AllRemainingMatches() {
		captures := match.Captures()
		if r.Capture != "" {
			captures = match.CapturesNamed(r.Capture)
		}
		if len(captures) == 0 {
			continue
		}
		located := captures[0]

		context := make(map[string]string, len(match.Captures()))
		for _, capture := range match.Captures() {
			context[capture.Name] = capture.Text(source)
		}
		text := located.Text(source)
		message := text
		if r.Message != "" {
			message = expandCaptures(r.Message, context)
		}

		findings = append(findings, Finding{
			Rule:     r.Name,
			Severity: cmp.Or(r.Severity, SeverityWarning),
			Message:  message,
			Text:     text,
			Mark:     doc.CreateRangeMark(located.Node.StartPosition(), located.Node.EndPosition()),
		})
	}
	return findings
}

func mergeFindings(byRule map[string][]Finding) []Finding {
	var all []Finding
	for _, findings := range byRule {
		all = append(all, findings...)
	}
	slices.SortStableFunc(all, func(a, b Finding) int {
		return cmp.Or(
			cmp.Compare(a.Start(), b.Start()),
			cmp.Compare(a.End(), b.End()),
			strings.Compare(a.Rule, b.Rule),
		)
	})
	return all
}
