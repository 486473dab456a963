// Package treesitter provides the incremental parse and query engine. It wraps
// the tree-sitter runtime with handle-based nodes, a cursor, compiled queries
// and a predicate engine that filters and rewrites matches in Go. A Manager
// ties a parser-per-document lifecycle to the document store with automatic
// incremental re-parsing on edits.
package treesitter

import (
	"log/slog"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Language is a named grammar handle consumable by a Parser.
type Language struct {
	name string
	raw  *tree_sitter.Language
}

// NewLanguage wraps a tree-sitter grammar under the given name (e.g. "cpp").
func NewLanguage(name string, raw *tree_sitter.Language) *Language {
	return &Language{name: name, raw: raw}
}

// Name returns the language identifier.
func (l *Language) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// Raw returns the underlying tree-sitter language.
func (l *Language) Raw() *tree_sitter.Language {
	if l == nil {
		return nil
	}
	return l.raw
}

// Config configures a language Registry.
type Config struct {
	// Languages maps file extensions (e.g., ".cpp", ".h") to languages.
	Languages map[string]*Language

	// Matchers provides advanced file-to-language matching beyond extensions.
	// Matchers are evaluated in order; the first match wins.
	Matchers []LanguageMatcher
}

// LanguageMatcher associates a language with one or more matching
// strategies. At least one of Extensions, Filenames, Pattern, or LanguageID
// must be set.
type LanguageMatcher struct {
	Language   *Language
	Extensions []string // e.g., [".hpp", ".hxx"]
	Filenames  []string // exact filenames, e.g., ["CMakeLists.txt"]
	Pattern    string   // doublestar glob, e.g., "src/**/*.inl"
	LanguageID string   // document language identifier, e.g., "cpp"
}

// TreeDiff describes the structural difference between the previous and current
// parse trees. The Manager computes it on every edit and sets it on the Tree.
type TreeDiff struct {
	// ChangedRanges are the byte ranges where the syntax tree structurally changed.
	ChangedRanges []Range

	// AffectedKinds is the set of node kinds that appear in the changed subtrees.
	AffectedKinds map[string]bool

	// AffectedNodes are the top-level named nodes whose subtrees contain changes.
	AffectedNodes []Node

	// IsFullReparse is true on initial open or full-text replacement.
	IsFullReparse bool
}

// AffectsKind reports whether the diff touches any node of the given kind.
func (d *TreeDiff) AffectsKind(kind string) bool {
	if d == nil {
		return false
	}
	return d.AffectedKinds[kind]
}

// Range is a half-open byte range with the matching row/column points.
type Range struct {
	StartByte  int
	EndByte    int
	StartPoint Point
	EndPoint   Point
}

// Point is a zero-based row and byte column.
type Point struct {
	Row    int
	Column int
}

const (
	defaultBlockBegin      = "BEGIN_MESSAGE_MAP"
	defaultBlockEnd        = "END_MESSAGE_MAP"
	defaultMaxReplacements = 100
)

// Option configures parsers, predicate engines, transformations, the
// Manager and the Checker.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	blockBegin      string
	blockEnd        string
	maxReplacements int
}

// WithLogger sets the logger used for warnings and diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithNamedBlock sets the identifiers of the begin/end macro calls that
// delimit the block searched by the in-named-block? predicate.
func WithNamedBlock(begin, end string) Option {
	return func(o *options) {
		o.blockBegin = begin
		o.blockEnd = end
	}
}

// WithMaxReplacements caps the number of replacements a Transformation may
// perform before giving up.
func WithMaxReplacements(n int) Option {
	return func(o *options) { o.maxReplacements = n }
}

func newOptions(opts []Option) options {
	o := options{
		blockBegin:      defaultBlockBegin,
		blockEnd:        defaultBlockEnd,
		maxReplacements: defaultMaxReplacements,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
