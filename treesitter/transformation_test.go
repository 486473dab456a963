package treesitter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KDAB/knut-sub001/knuttest"
	"github.com/KDAB/knut-sub001/treesitter"
)

func newCPPParser(t testing.TB) *treesitter.Parser {
	t.Helper()
	parser, err := treesitter.NewParser(treesitter.CPP())
	require.NoError(t, err)
	t.Cleanup(parser.Close)
	return parser
}

func TestTransformation_Run(t *testing.T) {
	src := "void f()\n{\n    foo(1);\n    foo(2);\n    bar(3);\n}\n"
	q := knuttest.MustQuery(t, treesitter.CPP(), `
((call_expression
    function: (identifier) @name
    arguments: (argument_list) @args) @from
    (#eq? @name "foo"))`)

	transformation := treesitter.NewTransformation(src, newCPPParser(t), q, "baz@args")
	result, err := transformation.Run()
	require.NoError(t, err)
	assert.Equal(t, "void f()\n{\n    baz(1);\n    baz(2);\n    bar(3);\n}\n", result)
	assert.Equal(t, 2, transformation.Replacements())
}

func TestTransformation_NoMatch(t *testing.T) {
	src := "void f() { bar(3); }\n"
	q := knuttest.MustQuery(t, treesitter.CPP(),
		`((call_expression function: (identifier) @name) @from (#eq? @name "foo"))`)

	transformation := treesitter.NewTransformation(src, newCPPParser(t), q, "baz()")
	result, err := transformation.Run()
	require.NoError(t, err)
	assert.Equal(t, src, result)
	assert.Zero(t, transformation.Replacements())
}

func TestTransformation_MissingFromCapture(t *testing.T) {
	src := "void f() { foo(1); }\n"
	q := knuttest.MustQuery(t, treesitter.CPP(), `(call_expression function: (identifier) @name)`)

	_, err := treesitter.NewTransformation(src, newCPPParser(t), q, "x").Run()
	assert.ErrorIs(t, err, treesitter.ErrFromCaptureNotFound)
}

func TestTransformation_RecursiveTargetHitsCap(t *testing.T) {
	src := "void f() { foo(1); }\n"
	q := knuttest.MustQuery(t, treesitter.CPP(), `
((call_expression
    function: (identifier) @name
    arguments: (argument_list) @args) @from
    (#eq? @name "foo"))`)

	transformation := treesitter.NewTransformation(src, newCPPParser(t), q, "foo(@args)",
		treesitter.WithMaxReplacements(5))
	result, err := transformation.Run()
	require.ErrorIs(t, err, treesitter.ErrTooManyReplacements)
	assert.Equal(t, 5, transformation.Replacements())
	assert.Equal(t, "void f() { foo((((((1)))))); }\n", result)
}
