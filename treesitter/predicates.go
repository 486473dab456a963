package treesitter

import (
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
)

// Predicates evaluates the filter and command predicates attached to query
// patterns against the source a tree was parsed from. One instance belongs to
// one query execution; its caches are dropped whenever it is bound to a
// different tree.
//
// A Predicates is not safe for concurrent use.
type Predicates struct {
	source string
	root   Node
	logger *slog.Logger

	blockBegin string
	blockEnd   string

	cache   cache
	regexes map[string]*regexp2.Regexp
}

// NewPredicates creates a predicate context for source.
func NewPredicates(source string, opts ...Option) *Predicates {
	o := newOptions(opts)
	return &Predicates{
		source:     source,
		logger:     o.logger,
		blockBegin: o.blockBegin,
		blockEnd:   o.blockEnd,
		regexes:    make(map[string]*regexp2.Regexp),
	}
}

// Source returns the text predicates compare against.
func (p *Predicates) Source() string {
	return p.source
}

// SetRootNode binds the context to the root of the tree being queried.
// Cached lookups computed for another tree are discarded.
func (p *Predicates) SetRootNode(root Node) {
	if !p.root.Equal(root) {
		p.cache.reset()
	}
	p.root = root
}

// FilterMatch applies the predicates of the match's pattern. Commands run
// first and may rewrite the match in place; the match survives only if every
// filter then passes.
func (p *Predicates) FilterMatch(m *QueryMatch) bool {
	if m == nil || m.query == nil || m.patternIndex >= len(m.query.patterns) {
		return true
	}
	preds := m.query.patterns[m.patternIndex].Predicates

	for _, pred := range preds {
		if def, ok := lookupPredicate(pred.Name); ok && def.command != nil {
			def.command(p, m, pred.Args)
		}
	}
	for _, pred := range preds {
		def, ok := lookupPredicate(pred.Name)
		if !ok || def.filter == nil {
			continue
		}
		if !def.filter(p, p.resolve(m, pred.Args)) {
			return false
		}
	}
	return true
}

type argKind int

const (
	argLiteral argKind = iota
	argNode
	argMissing
)

// matchArg is a predicate argument after capture expansion. A capture
// argument becomes one argNode per matched instance, or a single argMissing
// when it matched nothing.
type matchArg struct {
	kind    argKind
	literal string
	capture Capture
	missing QueryCapture
}

func (p *Predicates) resolve(m *QueryMatch, args []Argument) []matchArg {
	out := make([]matchArg, 0, len(args))
	for _, a := range args {
		if !a.IsCapture() {
			out = append(out, matchArg{kind: argLiteral, literal: a.Literal})
			continue
		}
		captures := m.CapturesWithID(a.Capture.ID)
		if len(captures) == 0 {
			out = append(out, matchArg{kind: argMissing, missing: *a.Capture})
			continue
		}
		for _, c := range captures {
			out = append(out, matchArg{kind: argNode, capture: c})
		}
	}
	return out
}

type predicateDef struct {
	check   func(args []Argument) string
	filter  func(p *Predicates, args []matchArg) bool
	command func(p *Predicates, m *QueryMatch, args []Argument)
}

// registry is filled in init: in-named-block? compiles a query, and query
// compilation consults the registry.
var registry map[string]predicateDef

var predicateAliases = map[string]string{
	"eq_except?":      "eq-except?",
	"like_except?":    "like-except?",
	"in_message_map?": "in-named-block?",
	"in-message-map?": "in-named-block?",
	"not_is?":         "not-is?",
}

func init() {
	registry = map[string]predicateDef{
		"eq?":             {check: checkEq, filter: filterEq},
		"like?":           {check: checkEq, filter: filterLike},
		"eq-except?":      {check: checkEqExcept, filter: filterEqExcept},
		"like-except?":    {check: checkEqExcept, filter: filterLikeExcept},
		"match?":          {check: checkMatch, filter: filterMatch},
		"in-named-block?": {check: checkInNamedBlock, filter: filterInNamedBlock},
		"not-is?":         {check: checkNotIs, filter: filterNotIs},
		"exclude!":        {check: checkExclude, command: commandExclude},
	}
}

func lookupPredicate(name string) (predicateDef, bool) {
	if alias, ok := predicateAliases[name]; ok {
		name = alias
	}
	def, ok := registry[name]
	return def, ok
}

// PredicateNames returns the canonical names of all known predicates.
func PredicateNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// checkPredicate validates the shape of a predicate. It returns an empty
// string when the predicate is acceptable, otherwise a description.
func checkPredicate(pred Predicate) string {
	def, ok := lookupPredicate(pred.Name)
	if !ok {
		return "Unknown predicate"
	}
	return def.check(pred.Args)
}

func checkEq(args []Argument) string {
	if len(args) < 2 {
		return "Too few arguments"
	}
	return ""
}

func checkEqExcept(args []Argument) string {
	if len(args) < 3 {
		return "Too few arguments"
	}
	if args[0].IsCapture() {
		return "First argument must be a string"
	}
	if !args[1].IsCapture() {
		return "Second argument must be a capture"
	}
	for _, a := range args[2:] {
		if a.IsCapture() {
			return "Non-string type argument"
		}
	}
	return ""
}

func checkMatch(args []Argument) string {
	if len(args) < 2 {
		return "Too few arguments"
	}
	if args[0].IsCapture() {
		return "Missing regex"
	}
	if _, err := regexp2.Compile(args[0].Literal, regexp2.None); err != nil {
		return "Invalid regex"
	}
	for _, a := range args[1:] {
		if !a.IsCapture() {
			return "Argument is not a capture"
		}
	}
	return ""
}

func checkInNamedBlock(args []Argument) string {
	if len(args) == 0 {
		return "Too few arguments"
	}
	for _, a := range args {
		if !a.IsCapture() {
			return "Non-capture argument"
		}
	}
	return ""
}

func checkNotIs(args []Argument) string {
	switch {
	case len(args) < 2:
		return "Too few arguments"
	case len(args) > 2:
		return "Too many arguments"
	case !args[0].IsCapture():
		return "First argument must be a capture"
	case args[1].IsCapture():
		return "Second argument must be a string"
	}
	return ""
}

func checkExclude(args []Argument) string {
	if len(args) < 2 {
		return "Too few arguments"
	}
	if !args[0].IsCapture() {
		return "First argument must be a capture"
	}
	for _, a := range args[1:] {
		if a.IsCapture() {
			return "Non-string type argument"
		}
	}
	return ""
}

func identity(s string) string { return s }

// stripSpace removes every whitespace character, keeping the order of the
// rest.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func filterEq(p *Predicates, args []matchArg) bool {
	return p.allEqual("eq?", args, identity)
}

func filterLike(p *Predicates, args []matchArg) bool {
	return p.allEqual("like?", args, stripSpace)
}

func (p *Predicates) allEqual(name string, args []matchArg, transform func(string) string) bool {
	texts := make(map[string]struct{})
	for _, a := range args {
		switch a.kind {
		case argLiteral:
			texts[transform(a.literal)] = struct{}{}
		case argNode:
			texts[transform(a.capture.Text(p.source))] = struct{}{}
		case argMissing:
			// A quantified capture that matched zero times compares as "".
			p.logger.Debug("unmatched capture", "predicate", name, "capture", a.missing.Name)
			texts[""] = struct{}{}
		}
	}
	return len(texts) == 1
}

func filterEqExcept(p *Predicates, args []matchArg) bool {
	return p.equalExcept("eq-except?", args, identity)
}

func filterLikeExcept(p *Predicates, args []matchArg) bool {
	return p.equalExcept("like-except?", args, stripSpace)
}

func (p *Predicates) equalExcept(name string, args []matchArg, transform func(string) string) bool {
	if len(args) == 0 || args[0].kind != argLiteral {
		p.logger.Warn("expected string argument", "predicate", name)
		return false
	}
	expected := transform(args[0].literal)

	var instances []Capture
	var types []string
	for _, a := range args[1:] {
		switch a.kind {
		case argNode:
			instances = append(instances, a.capture)
		case argLiteral:
			types = append(types, a.literal)
		}
	}

	if len(instances) == 0 {
		p.logger.Debug("no captures", "predicate", name)
		return expected == ""
	}
	for _, c := range instances {
		if transform(c.Node.TextExceptIn(p.source, types)) != expected {
			return false
		}
	}
	return true
}

func filterMatch(p *Predicates, args []matchArg) bool {
	if len(args) < 2 || args[0].kind != argLiteral {
		p.logger.Warn("first argument is not a string", "predicate", "match?")
		return false
	}
	re, err := p.regex(args[0].literal)
	if err != nil {
		p.logger.Warn("invalid regex", "predicate", "match?", "pattern", args[0].literal, "error", err)
		return false
	}

	for _, a := range args[1:] {
		switch a.kind {
		case argNode:
			ok, err := re.MatchString(a.capture.Text(p.source))
			if err != nil {
				p.logger.Warn("regex evaluation failed", "predicate", "match?", "error", err)
				return false
			}
			if !ok {
				return false
			}
		case argMissing:
			p.logger.Warn("unmatched capture argument", "predicate", "match?", "capture", a.missing.Name)
			return false
		default:
			p.logger.Warn("argument is not a capture", "predicate", "match?")
			return false
		}
	}
	return true
}

func (p *Predicates) regex(pattern string) (*regexp2.Regexp, error) {
	if re, ok := p.regexes[pattern]; ok {
		return re, nil
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, err
	}
	p.regexes[pattern] = re
	return re, nil
}

func filterInNamedBlock(p *Predicates, args []matchArg) bool {
	block := p.namedBlock()
	if !block.found {
		p.logger.Warn("no named block found", "predicate", "in-named-block?", "begin", p.blockBegin, "end", p.blockEnd)
		return false
	}

	for _, a := range args {
		if a.kind != argNode {
			p.logger.Warn("non-capture argument", "predicate", "in-named-block?")
			return false
		}
		n := a.capture.Node
		if n.StartPosition() < block.start || n.EndPosition() > block.end {
			return false
		}
	}
	return true
}

// declaratorWrappers are the declarator types that only decorate the
// declarator they wrap.
var declaratorWrappers = map[string]bool{
	"pointer_declarator":       true,
	"reference_declarator":     true,
	"parenthesized_declarator": true,
	"attributed_declarator":    true,
}

func filterNotIs(p *Predicates, args []matchArg) bool {
	typ := ""
	for _, a := range args {
		if a.kind == argLiteral {
			typ = a.literal
		}
	}
	for _, a := range args {
		if a.kind == argNode && declaresType(a.capture.Node, typ) {
			return false
		}
	}
	return true
}

// declaresType reports whether n is of type typ, or resolves to it through
// its declarator and any wrapping declarators.
func declaresType(n Node, typ string) bool {
	if n.Type() == typ {
		return true
	}
	for cur := innerDeclarator(n); !cur.IsNull(); cur = innerDeclarator(cur) {
		if cur.Type() == typ {
			return true
		}
		if !declaratorWrappers[cur.Type()] {
			return false
		}
	}
	return false
}

// declaratorModifiers are the named children of a wrapping declarator that
// are not the wrapped declarator.
var declaratorModifiers = map[string]bool{
	"attribute_declaration": true,
	"type_qualifier":        true,
	"ms_call_modifier":      true,
	"ms_based_modifier":     true,
	"ms_pointer_modifier":   true,
}

// innerDeclarator returns the declarator n wraps. Only pointer declarators
// store it in the declarator field; the other wrappers hold it as a child
// without a field.
func innerDeclarator(n Node) Node {
	if d := n.ChildByFieldName("declarator"); !d.IsNull() || !declaratorWrappers[n.Type()] {
		return d
	}
	for _, child := range n.NamedChildren() {
		if !declaratorModifiers[child.Type()] {
			return child
		}
	}
	return Node{}
}

// commandExclude drops instances of the capture whose own type is excluded
// and strips excluded subtrees from the text of the remaining ones.
func commandExclude(p *Predicates, m *QueryMatch, args []Argument) {
	if len(args) < 2 || !args[0].IsCapture() {
		p.logger.Warn("malformed arguments", "predicate", "exclude!")
		return
	}
	id := args[0].Capture.ID
	var types []string
	for _, a := range args[1:] {
		if !a.IsCapture() {
			types = append(types, a.Literal)
		}
	}

	kept := m.captures[:0:0]
	for _, c := range m.captures {
		if c.ID == id {
			if slices.Contains(types, c.Node.Type()) {
				continue
			}
			c.excluded = slices.Concat(c.excluded, types)
		}
		kept = append(kept, c)
	}
	m.captures = kept
}
