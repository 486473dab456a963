package knut_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	knut "github.com/KDAB/knut-sub001"
	"github.com/KDAB/knut-sub001/document"
	"github.com/KDAB/knut-sub001/knuttest"
	"github.com/KDAB/knut-sub001/treesitter"
)

const addCalls = `(call_expression function: (identifier) @fn (#eq? @fn "add")) @call`

func openCounter(t *testing.T) *knut.CodeDocument {
	t.Helper()
	ws := knuttest.NewWorkspace(t)
	return knuttest.OpenDocument(t, ws, "counter.cpp", knuttest.ReadFixture(t, "counter.cpp"))
}

func nodeTypes(nodes []treesitter.Node) []string {
	types := make([]string, 0, len(nodes))
	for _, n := range nodes {
		types = append(types, n.Type())
	}
	return types
}

func TestCodeDocument_Query(t *testing.T) {
	doc := openCounter(t)

	q := doc.Query(addCalls)
	require.NotNil(t, q)
	defer q.Close()

	matches := doc.Matches(q)
	require.Len(t, matches, 2)
	knuttest.AssertCaptureTexts(t, matches, doc.Text(), "call", "add(m_value, 1)", "add(0, 0)")
}

func TestCodeDocument_QueryErrorIsNil(t *testing.T) {
	doc := openCounter(t)
	assert.Nil(t, doc.Query(`(call_expression`))
	assert.Nil(t, doc.Query(`((identifier) @id (#unknown? @id))`))
	assert.Nil(t, doc.Matches(nil))
}

func TestCodeDocument_QueryWithoutGrammar(t *testing.T) {
	ws := knuttest.NewWorkspace(t)
	doc := ws.Open(knuttest.FileURI("notes.txt"), "", "plain text")
	assert.Nil(t, doc.Tree())
	assert.Nil(t, doc.Query(`(identifier) @id`))
	assert.True(t, doc.NodeCoveringRange(0, 1).IsNull())
}

func TestCodeDocument_MatchesFollowEdits(t *testing.T) {
	doc := openCounter(t)
	q := doc.Query(addCalls)
	require.NotNil(t, q)
	defer q.Close()

	pos := strings.Index(doc.Text(), "add(0, 0)")
	require.NoError(t, doc.Replace(pos, len("add"), "sub"))
	knuttest.AssertCaptureTexts(t, doc.Matches(q), doc.Text(), "call", "add(m_value, 1)")
}

func TestCodeDocument_NodesInRange(t *testing.T) {
	doc := openCounter(t)
	src := doc.Text()

	mark := doc.CreateRangeMark(strings.Index(src, "return m_value;"), len(src))
	nodes := doc.NodesInRange(mark)
	assert.Equal(t, []string{"return_statement", "}", "function_definition", "function_definition"}, nodeTypes(nodes))
	for i := 1; i < len(nodes); i++ {
		assert.LessOrEqual(t, nodes[i-1].EndPosition(), nodes[i].StartPosition())
	}

	whole := doc.CreateRangeMark(0, len(src))
	nodes = doc.NodesInRange(whole)
	require.Len(t, nodes, 1)
	knuttest.AssertNodeKind(t, nodes[0], "translation_unit")

	assert.Empty(t, doc.NodesInRange(doc.CreateRangeMark(3, 3)))
	assert.Empty(t, doc.NodesInRange(&document.RangeMark{}))
}

func TestCodeDocument_QueryInRange(t *testing.T) {
	doc := openCounter(t)
	src := doc.Text()
	q := doc.Query(addCalls)
	require.NotNil(t, q)
	defer q.Close()

	mark := doc.CreateRangeMark(strings.Index(src, "void Counter::increment"), strings.Index(src, "void Counter::reset"))
	matches := doc.QueryInRange(mark, q)
	knuttest.AssertCaptureTexts(t, matches, src, "call", "add(m_value, 1)")

	// The mark follows edits made before the range.
	require.NoError(t, doc.Insert(0, "// counter\n"))
	matches = doc.QueryInRange(mark, q)
	knuttest.AssertCaptureTexts(t, matches, doc.Text(), "call", "add(m_value, 1)")

	assert.Empty(t, doc.QueryInRange(&document.RangeMark{}, q))
	assert.Empty(t, doc.QueryInRange(doc.CreateRangeMark(5, 5), q))
}

func TestCodeDocument_NodeCoveringRange(t *testing.T) {
	doc := openCounter(t)
	src := doc.Text()

	start := strings.Index(src, "m_value, 1")
	node := doc.NodeCoveringRange(start, start+len("m_value, 1"))
	knuttest.AssertNodeKind(t, node, "argument_list")

	assert.True(t, doc.NodeCoveringRange(0, len(src)).Equal(doc.Tree().RootNode()))
}

func TestAstNode_SurvivesEdits(t *testing.T) {
	doc := openCounter(t)
	start := strings.Index(doc.Text(), "add(0, 0)")

	node := doc.AstNodeAt(start, start+len("add(0, 0)"))
	require.True(t, node.IsValid())
	assert.Equal(t, "call_expression", node.Type())
	assert.Equal(t, "add(0, 0)", node.Text())
	assert.Same(t, doc.Document, node.Document().Document)

	require.NoError(t, doc.Insert(0, "// counter\n"))
	assert.Equal(t, start+len("// counter\n"), node.Start())
	assert.Equal(t, node.Start()+len("add(0, 0)"), node.End())
	knuttest.AssertNodeKind(t, node.Node(), "call_expression")
	assert.Equal(t, "add(0, 0)", node.Node().Text())

	parent := node.Parent()
	assert.Equal(t, "assignment_expression", parent.Type())
	assert.Equal(t, "m_value = add(0, 0)", parent.Text())

	children := node.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "identifier", children[0].Type())
	assert.Equal(t, "argument_list", children[1].Type())
	assert.Equal(t, "(0, 0)", children[1].Text())

	doc.Workspace().CloseDocument(doc.URI())
	assert.False(t, node.IsValid())
	assert.True(t, node.Node().IsNull())
	assert.False(t, node.Parent().IsValid())
	assert.Empty(t, node.Children())
}

func TestAstNode_ZeroValue(t *testing.T) {
	var node knut.AstNode
	assert.False(t, node.IsValid())
	assert.True(t, node.Node().IsNull())
	assert.Equal(t, "", node.Text())
	assert.Nil(t, node.Document())
}

func TestCodeDocument_Transform(t *testing.T) {
	doc := openCounter(t)

	n, err := doc.Transform(
		`((call_expression function: (identifier) @name (#eq? @name "add") arguments: (argument_list) @args) @from)`,
		"sum@args")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotContains(t, doc.Text(), "add(")
	assert.Contains(t, doc.Text(), "m_value = sum(m_value, 1);")
	assert.Contains(t, doc.Text(), "m_value = sum(0, 0);")

	// The tree is re-parsed from the new text.
	q := doc.Query(`(call_expression function: (identifier) @fn (#eq? @fn "sum"))`)
	require.NotNil(t, q)
	defer q.Close()
	assert.Len(t, doc.Matches(q), 2)
}

func TestCodeDocument_TransformErrors(t *testing.T) {
	doc := openCounter(t)
	original := doc.Text()

	n, err := doc.Transform(`((call_expression function: (identifier) @fn (#eq? @fn "missing")) @from)`, "")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = doc.Transform(`(call_expression`, "x")
	var qerr *treesitter.QueryError
	assert.ErrorAs(t, err, &qerr)

	_, err = doc.Transform(`(call_expression) @call`, "x")
	assert.ErrorIs(t, err, treesitter.ErrFromCaptureNotFound)
	assert.Equal(t, original, doc.Text())
}
