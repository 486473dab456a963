package treesitter

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// QueryErrorKind classifies a query construction failure.
type QueryErrorKind int

const (
	KindSyntax QueryErrorKind = iota
	KindNodeType
	KindField
	KindCapture
	KindStructure
	KindLanguage
	KindPredicate
)

var queryErrorNames = map[QueryErrorKind]string{
	KindSyntax:    "Syntax Error",
	KindNodeType:  "Invalid node type",
	KindField:     "Invalid field",
	KindCapture:   "Capture Error",
	KindStructure: "Structure Error",
	KindLanguage:  "Language Error",
	KindPredicate: "Predicate Error",
}

func (k QueryErrorKind) String() string {
	if name, ok := queryErrorNames[k]; ok {
		return name
	}
	return "Unknown Error"
}

// QueryError is returned by NewQuery. Offset is a byte offset into the
// pattern text.
type QueryError struct {
	Offset      int
	Kind        QueryErrorKind
	Description string
	// Message carries the runtime's detail, e.g. the offending line.
	Message string
}

func (e *QueryError) Error() string {
	if e.Message == "" || e.Message == e.Description {
		return fmt.Sprintf("query error at offset %d: %s", e.Offset, e.Description)
	}
	return fmt.Sprintf("query error at offset %d: %s: %s", e.Offset, e.Description, e.Message)
}

// QueryCapture is a capture name declared by a query.
type QueryCapture struct {
	ID   uint32
	Name string
}

// Argument is one predicate argument: a capture reference or a literal.
type Argument struct {
	Capture *QueryCapture
	Literal string
}

// IsCapture reports whether the argument refers to a capture.
func (a Argument) IsCapture() bool {
	return a.Capture != nil
}

func (a Argument) String() string {
	if a.Capture != nil {
		return "@" + a.Capture.Name
	}
	return fmt.Sprintf("%q", a.Literal)
}

// Predicate is a predicate clause as written in a pattern.
type Predicate struct {
	Name string
	Args []Argument
}

// Pattern describes one top-level pattern of a query.
type Pattern struct {
	Predicates []Predicate
	StartByte  int
}

// Query is a compiled pattern program. Compilation is comparatively
// expensive; build a query once and run it many times. A Query may be shared
// by any number of QueryCursors but must outlive them.
type Query struct {
	raw      *tree_sitter.Query
	lang     *Language
	source   string
	captures []QueryCapture
	patterns []Pattern
}

// NewQuery compiles source for lang. Grammar-level problems (syntax, unknown
// node type or field, capture and structure errors) and predicate problems
// (unknown name, wrong argument count or kind) are reported as *QueryError.
func NewQuery(lang *Language, source string) (*Query, error) {
	if lang == nil || lang.raw == nil {
		return nil, &QueryError{Kind: KindLanguage, Description: queryErrorNames[KindLanguage], Message: ErrNoLanguage.Error()}
	}

	masked, names := maskPredicateNames(source)
	raw, qerr := tree_sitter.NewQuery(lang.raw, masked)
	if qerr != nil {
		kind := kindFromInternal(qerr.Kind)
		return nil, &QueryError{
			Offset:      fromInternal(qerr.Offset),
			Kind:        kind,
			Description: kind.String(),
			Message:     qerr.Message,
		}
	}

	q := &Query{raw: raw, lang: lang, source: source}
	for i, name := range raw.CaptureNames() {
		q.captures = append(q.captures, QueryCapture{ID: uint32(i), Name: name})
	}
	q.patterns = q.collectPatterns(names)

	for _, pattern := range q.patterns {
		for _, pred := range pattern.Predicates {
			if msg := checkPredicate(pred); msg != "" {
				raw.Close()
				offset := strings.Index(source, "#"+pred.Name)
				if offset < 0 {
					offset = 0
				}
				return nil, &QueryError{Offset: offset, Kind: KindPredicate, Description: msg}
			}
		}
	}
	return q, nil
}

func (q *Query) collectPatterns(names []string) []Pattern {
	count := int(q.raw.PatternCount())

	total := 0
	for i := 0; i < count; i++ {
		total += len(q.raw.GeneralPredicates(uint(i)))
	}
	// Predicates are reported per pattern in source order, so the n-th one
	// corresponds to the n-th predicate head found while masking.
	byOrdinal := total == len(names)

	patterns := make([]Pattern, count)
	ordinal := 0
	for i := 0; i < count; i++ {
		general := q.raw.GeneralPredicates(uint(i))
		preds := make([]Predicate, 0, len(general))
		for _, gp := range general {
			name := strings.ToLower(gp.Operator)
			if byOrdinal {
				name = names[ordinal]
			}
			ordinal++

			args := make([]Argument, 0, len(gp.Args))
			for _, a := range gp.Args {
				switch {
				case a.CaptureId != nil:
					c := q.captures[*a.CaptureId]
					args = append(args, Argument{Capture: &c})
				case a.String != nil:
					args = append(args, Argument{Literal: *a.String})
				}
			}
			preds = append(preds, Predicate{Name: name, Args: args})
		}
		patterns[i] = Pattern{
			Predicates: preds,
			StartByte:  fromInternal(q.raw.StartByteForPattern(uint(i))),
		}
	}
	return patterns
}

// Language returns the grammar the query was compiled for.
func (q *Query) Language() *Language {
	return q.lang
}

// Source returns the pattern text as given to NewQuery.
func (q *Query) Source() string {
	return q.source
}

// Captures returns the declared captures ordered by ID.
func (q *Query) Captures() []QueryCapture {
	return q.captures
}

// Patterns returns the top-level patterns with their predicates.
func (q *Query) Patterns() []Pattern {
	return q.patterns
}

// CaptureAt returns the capture with the given ID.
func (q *Query) CaptureAt(id uint32) (QueryCapture, bool) {
	if int(id) >= len(q.captures) {
		return QueryCapture{}, false
	}
	return q.captures[id], true
}

// CaptureIndex returns the ID of the named capture.
func (q *Query) CaptureIndex(name string) (uint32, bool) {
	for _, c := range q.captures {
		if c.Name == name {
			return c.ID, true
		}
	}
	return 0, false
}

// Close releases the compiled query.
func (q *Query) Close() {
	if q != nil && q.raw != nil {
		q.raw.Close()
		q.raw = nil
	}
}

func kindFromInternal(k tree_sitter.QueryErrorKind) QueryErrorKind {
	switch k {
	case tree_sitter.QueryErrorSyntax:
		return KindSyntax
	case tree_sitter.QueryErrorNodeType:
		return KindNodeType
	case tree_sitter.QueryErrorField:
		return KindField
	case tree_sitter.QueryErrorCapture:
		return KindCapture
	case tree_sitter.QueryErrorStructure:
		return KindStructure
	case tree_sitter.QueryErrorLanguage:
		return KindLanguage
	default:
		return KindPredicate
	}
}

// maskPredicateNames upper-cases every predicate head ("#eq?" becomes
// "#EQ?") so the binding does not evaluate its own built-in predicates and
// hands all of them back as general predicates. Byte offsets are unchanged.
// The original names are returned in source order.
func maskPredicateNames(source string) (string, []string) {
	buf := []byte(source)
	var names []string

	for i := 0; i < len(buf); i++ {
		switch buf[i] {
		case '"':
			for i++; i < len(buf) && buf[i] != '"'; i++ {
				if buf[i] == '\\' {
					i++
				}
			}
		case ';':
			for i < len(buf) && buf[i] != '\n' {
				i++
			}
		case '#':
			start := i + 1
			end := start
			for end < len(buf) && !isPredicateDelimiter(buf[end]) {
				end++
			}
			if end == start {
				continue
			}
			names = append(names, source[start:end])
			for j := start; j < end; j++ {
				if buf[j] >= 'a' && buf[j] <= 'z' {
					buf[j] -= 'a' - 'A'
				}
			}
			i = end - 1
		}
	}
	return string(buf), names
}

func isPredicateDelimiter(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '(', ')', '"', '@', ';':
		return true
	}
	return false
}
