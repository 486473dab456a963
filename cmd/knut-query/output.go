package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KDAB/knut-sub001/document"
	"github.com/KDAB/knut-sub001/treesitter"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown format %q (want %s, %s or %s)", format, formatText, formatJSON, formatYAML)
}

// location is a 1-based line and column, columns counted in UTF-16 code
// units like editors do.
type location struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

func locationAt(text string, offset int) location {
	pos := document.PositionAt(text, offset)
	return location{Line: pos.Line + 1, Column: pos.Character + 1}
}

type captureResult struct {
	Name  string   `json:"name" yaml:"name"`
	Type  string   `json:"type" yaml:"type"`
	Text  string   `json:"text" yaml:"text"`
	Start location `json:"start" yaml:"start"`
	End   location `json:"end" yaml:"end"`
}

type matchResult struct {
	File     string          `json:"file" yaml:"file"`
	Pattern  int             `json:"pattern" yaml:"pattern"`
	Captures []captureResult `json:"captures" yaml:"captures"`
}

func newMatchResult(file, source string, m *treesitter.QueryMatch) matchResult {
	result := matchResult{File: file, Pattern: m.PatternIndex()}
	for _, c := range m.Captures() {
		result.Captures = append(result.Captures, captureResult{
			Name:  c.Name,
			Type:  c.Node.Type(),
			Text:  c.Text(source),
			Start: locationAt(source, c.Node.StartPosition()),
			End:   locationAt(source, c.Node.EndPosition()),
		})
	}
	return result
}

type findingResult struct {
	File     string   `json:"file" yaml:"file"`
	Rule     string   `json:"rule" yaml:"rule"`
	Severity string   `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Text     string   `json:"text" yaml:"text"`
	Start    location `json:"start" yaml:"start"`
	End      location `json:"end" yaml:"end"`
}

func newFindingResult(file, source string, f treesitter.Finding) findingResult {
	return findingResult{
		File:     file,
		Rule:     f.Rule,
		Severity: f.Severity.String(),
		Message:  f.Message,
		Text:     f.Text,
		Start:    locationAt(source, f.Start()),
		End:      locationAt(source, f.End()),
	}
}

// writeResults encodes v in the requested format. Text output is delegated
// to text.
func writeResults(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

func writeMatchesText(w io.Writer, results []matchResult) error {
	for _, r := range results {
		for _, c := range r.Captures {
			if _, err := fmt.Fprintf(w, "%s:%d:%d: @%s %s\n", r.File, c.Start.Line, c.Start.Column, c.Name, oneLine(c.Text)); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeFindingsText(w io.Writer, results []findingResult) error {
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%s:%d:%d: %s: %s [%s]\n", r.File, r.Start.Line, r.Start.Column, r.Severity, r.Message, r.Rule); err != nil {
			return err
		}
	}
	return nil
}

// oneLine shortens multi-line capture texts to their first line.
func oneLine(text string) string {
	if first, _, found := strings.Cut(text, "\n"); found {
		return first + " ..."
	}
	return text
}
