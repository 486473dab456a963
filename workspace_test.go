package knut_test

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	knut "github.com/KDAB/knut-sub001"
	"github.com/KDAB/knut-sub001/config"
	"github.com/KDAB/knut-sub001/knuttest"
	"github.com/KDAB/knut-sub001/treesitter"
)

func addCallRule() config.RuleSettings {
	return config.RuleSettings{
		Name:     "add-call",
		Language: "cpp",
		Pattern:  `((call_expression function: (identifier) @fn) @call (#eq? @fn "add"))`,
		Capture:  "call",
		Message:  "@fn is deprecated",
		Severity: "error",
	}
}

func TestWorkspace_OpenFile(t *testing.T) {
	ws := knuttest.NewWorkspace(t)
	path := knuttest.WriteFile(t, "counter.cpp", knuttest.ReadFixture(t, "counter.cpp"))

	doc, err := ws.OpenFile(path)
	require.NoError(t, err)

	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(abs), doc.URI())
	require.NotNil(t, doc.Tree())
	assert.Equal(t, "cpp", doc.Language().Name())
	knuttest.AssertNoErrors(t, doc.Tree())

	same := ws.Document(doc.URI())
	require.NotNil(t, same)
	assert.Same(t, doc.Document, same.Document)
	assert.Equal(t, []string{doc.URI()}, ws.Store().URIs())
}

func TestWorkspace_OpenFileMissing(t *testing.T) {
	ws := knuttest.NewWorkspace(t)
	_, err := ws.OpenFile(filepath.Join(t.TempDir(), "missing.cpp"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestWorkspace_CloseDocument(t *testing.T) {
	ws := knuttest.NewWorkspace(t)
	doc := knuttest.OpenDocument(t, ws, "counter.cpp", knuttest.ReadFixture(t, "counter.cpp"))

	ws.CloseDocument(doc.URI())
	assert.Nil(t, ws.Document(doc.URI()))
	assert.Nil(t, doc.Tree())
	assert.True(t, doc.IsClosed())
}

func TestWorkspace_InvalidSettings(t *testing.T) {
	settings := config.DefaultSettings()
	settings.MaxReplacements = 0

	_, err := knut.NewWorkspace(knut.WithSettings(settings))
	assert.Error(t, err)
}

func TestWorkspace_BrokenRuleIsReported(t *testing.T) {
	settings := config.DefaultSettings()
	rule := addCallRule()
	rule.Pattern = `(call_expression @call`
	settings.Rules = []config.RuleSettings{rule}

	_, err := knut.NewWorkspace(knut.WithSettings(settings))
	var qerr *treesitter.QueryError
	assert.ErrorAs(t, err, &qerr)
}

func TestWorkspace_RulesFromSettings(t *testing.T) {
	settings := config.DefaultSettings()
	settings.Rules = []config.RuleSettings{addCallRule()}
	ws := knuttest.NewWorkspace(t, knut.WithSettings(settings))

	doc := knuttest.OpenDocument(t, ws, "counter.cpp", knuttest.ReadFixture(t, "counter.cpp"))
	findings := doc.Findings()
	require.Len(t, findings, 2)
	for _, f := range findings {
		assert.Equal(t, "add is deprecated", f.Message)
		assert.Equal(t, treesitter.SeverityError, f.Severity)
		assert.True(t, strings.HasPrefix(f.Text, "add("))
	}
	assert.Less(t, findings[0].Start(), findings[1].Start())
}

func TestWorkspace_UpdateSettings(t *testing.T) {
	store := config.NewStore(config.DefaultSettings())
	ws := knuttest.NewWorkspace(t, knut.WithSettingsStore(store))
	doc := knuttest.OpenDocument(t, ws, "counter.cpp", knuttest.ReadFixture(t, "counter.cpp"))
	assert.Empty(t, doc.Findings())

	next := config.DefaultSettings()
	next.Rules = []config.RuleSettings{addCallRule()}
	next.Languages = map[string]string{".ipp": "cpp"}
	require.NoError(t, ws.UpdateSettings(next))

	assert.Same(t, next, ws.Settings())
	assert.Len(t, doc.Findings(), 2)

	ipp := knuttest.OpenDocument(t, ws, "counter.ipp", "int x = add(1, 2);\n")
	assert.Equal(t, "cpp", ipp.Language().Name())
	assert.Len(t, ipp.Findings(), 1)

	// Swapping the store directly is applied the same way.
	store.Swap(config.DefaultSettings())
	assert.Empty(t, doc.Findings())

	invalid := config.DefaultSettings()
	invalid.LogLevel = "loud"
	assert.Error(t, ws.UpdateSettings(invalid))
	assert.Equal(t, "info", ws.Settings().LogLevel)
}

func TestWorkspace_FindingsFollowEdits(t *testing.T) {
	settings := config.DefaultSettings()
	settings.Rules = []config.RuleSettings{addCallRule()}
	ws := knuttest.NewWorkspace(t, knut.WithSettings(settings))
	doc := knuttest.OpenDocument(t, ws, "counter.cpp", knuttest.ReadFixture(t, "counter.cpp"))

	before := doc.Findings()
	require.Len(t, before, 2)
	start := before[0].Start()

	require.NoError(t, doc.Insert(0, "// counter\n"))
	after := doc.Findings()
	require.Len(t, after, 2)
	assert.Equal(t, start+len("// counter\n"), after[0].Start())
	assert.Equal(t, "add(m_value, 1)", after[0].Mark.Text())
}

func TestFileURI(t *testing.T) {
	uri, err := knut.FileURI("/tmp/project/main.cpp")
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/project/main.cpp", uri)

	uri, err = knut.FileURI("relative.cpp")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file:///"))
	assert.True(t, strings.HasSuffix(uri, "/relative.cpp"))
}
