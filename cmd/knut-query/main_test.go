package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/KDAB/knut-sub001/treesitter"
)

const sampleSource = `void legacy(int);

void f()
{
    legacy(1);
    modern(2);
    legacy(3);
}
`

const legacyRule = `
[[rules]]
name = "legacy-call"
language = "cpp"
pattern = '((call_expression function: (identifier) @fn) @call (#eq? @fn "legacy"))'
capture = "call"
message = "@fn is deprecated"
severity = "%s"
`

// syncBuffer is a bytes.Buffer safe for the watcher goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func ruleConfig(severity string) string {
	return strings.Replace(legacyRule, "%s", severity, 1)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_TextOutput(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "src/sample.cpp", sampleSource)

	out, err := execute(t, "run", "-e", `(call_expression function: (identifier) @fn (#eq? @fn "legacy"))`, filepath.Join(dir, "**/*.cpp"))
	require.NoError(t, err)
	assert.Equal(t, file+":5:5: @fn legacy\n"+file+":7:5: @fn legacy\n", out)
}

func TestRun_JSONOutput(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "sample.cpp", sampleSource)

	out, err := execute(t, "run", "--format", "json", "-e", `(call_expression arguments: (argument_list (number_literal) @arg))`, file)
	require.NoError(t, err)

	var results []matchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)
	for i, want := range []string{"1", "2", "3"} {
		require.Len(t, results[i].Captures, 1)
		assert.Equal(t, want, results[i].Captures[0].Text)
		assert.Equal(t, "number_literal", results[i].Captures[0].Type)
		assert.Equal(t, file, results[i].File)
	}
	assert.Equal(t, location{Line: 6, Column: 12}, results[1].Captures[0].Start)
}

func TestRun_YAMLOutputAndQueryFile(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "sample.cpp", sampleSource)
	query := writeFile(t, dir, "calls.scm", `((call_expression function: (identifier) @fn) (#match? "^mod" @fn))`)

	out, err := execute(t, "run", "--format", "yaml", "--query", query, file)
	require.NoError(t, err)

	var results []matchResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "modern", results[0].Captures[0].Text)
}

func TestRun_ExplicitLanguage(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "sample.txt", `{"a": 1}`)

	out, err := execute(t, "run", "--lang", "json", "-e", `(pair key: (string) @key)`, file)
	require.NoError(t, err)
	assert.Equal(t, file+`:1:2: @key "a"`+"\n", out)

	_, err = execute(t, "run", "--lang", "cobol", "-e", `(pair)`, file)
	assert.ErrorIs(t, err, treesitter.ErrNoLanguage)
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "sample.cpp", sampleSource)

	_, err := execute(t, "run", "-e", `(call_expression`, file)
	var qerr *treesitter.QueryError
	assert.ErrorAs(t, err, &qerr)

	_, err = execute(t, "run", "-e", `(call_expression) @c`, filepath.Join(dir, "*.py"))
	assert.ErrorContains(t, err, "no files match")

	_, err = execute(t, "run", file)
	assert.Error(t, err, "one of --query and -e is required")

	_, err = execute(t, "run", "--format", "xml", "-e", `(call_expression) @c`, file)
	assert.ErrorContains(t, err, "unknown format")
}

func TestCheck_Findings(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "sample.cpp", sampleSource)
	cfg := writeFile(t, dir, "knut.toml", ruleConfig("warning"))

	out, err := execute(t, "check", "--config", cfg, file)
	require.NoError(t, err)
	assert.Equal(t,
		file+":5:5: warning: legacy is deprecated [legacy-call]\n"+
			file+":7:5: warning: legacy is deprecated [legacy-call]\n",
		out)
}

func TestCheck_ErrorSeverityFails(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "sample.cpp", sampleSource)
	cfg := writeFile(t, dir, "knut.toml", ruleConfig("error"))

	out, err := execute(t, "check", "--config", cfg, "--format", "json", file)
	assert.ErrorIs(t, err, errFindings)

	var results []findingResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "error", results[0].Severity)
	assert.Equal(t, "legacy(1)", results[0].Text)
	assert.Equal(t, location{Line: 5, Column: 14}, results[0].End)
}

func TestCheck_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "sample.cpp", sampleSource)
	cfg := writeFile(t, dir, "knut.toml", ruleConfig("fatal"))

	_, err := execute(t, "check", "--config", cfg, file)
	assert.ErrorContains(t, err, "load config")
}

func TestCheck_WatchNeedsConfig(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "sample.cpp", sampleSource)

	_, err := execute(t, "check", "--watch", file)
	assert.ErrorContains(t, err, "--watch needs --config")
}

func TestCheck_WatchReloadsRules(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "sample.cpp", sampleSource)
	cfg := writeFile(t, dir, "knut.toml", ruleConfig("warning"))

	out := &syncBuffer{}
	cmd := rootCmd()
	cmd.SetArgs([]string{"check", "--watch", "--config", cfg, file})
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "legacy is deprecated") == 2
	}, 5*time.Second, 20*time.Millisecond)

	// Give the watcher time to start before rewriting the file.
	time.Sleep(200 * time.Millisecond)
	updated := strings.Replace(ruleConfig("hint"), "@fn is deprecated", "@fn is gone", 1)
	require.NoError(t, os.WriteFile(cfg, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "hint: legacy is gone") >= 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("check --watch did not stop")
	}
}

func TestExpandPatterns(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a/one.cpp", "")
	b := writeFile(t, dir, "b/c/two.cpp", "")
	writeFile(t, dir, "b/notes.txt", "")

	files, err := expandPatterns([]string{filepath.Join(dir, "**/*.cpp"), a})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)

	_, err = expandPatterns([]string{filepath.Join(dir, "[")})
	assert.Error(t, err)
}
