package config

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/KDAB/knut-sub001/treesitter"
)

// Settings is the engine configuration, usually read from knut.toml.
//
//	log_level = "info"
//	max_replacements = 100
//
//	[named_block]
//	begin = "BEGIN_MESSAGE_MAP"
//	end = "END_MESSAGE_MAP"
//
//	[languages]
//	".ipp" = "cpp"
//
//	[[rules]]
//	name = "no-printf"
//	language = "cpp"
//	pattern = '((call_expression function: (identifier) @fn) @call (#eq? @fn "printf"))'
//	capture = "call"
//	message = "@fn should not be used"
//	severity = "warning"
type Settings struct {
	LogLevel        string            `toml:"log_level"`
	MaxReplacements int               `toml:"max_replacements"`
	NamedBlock      NamedBlock        `toml:"named_block"`
	Languages       map[string]string `toml:"languages"`
	Rules           []RuleSettings    `toml:"rules"`
}

// NamedBlock holds the begin/end macro names searched by in-named-block?.
type NamedBlock struct {
	Begin string `toml:"begin"`
	End   string `toml:"end"`
}

// RuleSettings is one [[rules]] entry.
type RuleSettings struct {
	Name          string   `toml:"name"`
	Language      string   `toml:"language"`
	Pattern       string   `toml:"pattern"`
	Capture       string   `toml:"capture"`
	Message       string   `toml:"message"`
	Severity      string   `toml:"severity"`
	InterestKinds []string `toml:"interest_kinds"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() *Settings {
	return &Settings{
		LogLevel:        "info",
		MaxReplacements: 100,
		NamedBlock: NamedBlock{
			Begin: "BEGIN_MESSAGE_MAP",
			End:   "END_MESSAGE_MAP",
		},
	}
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate reports every problem found in the settings.
func (s *Settings) Validate() error {
	var errs []error
	if _, err := parseLevel(s.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if s.MaxReplacements <= 0 {
		errs = append(errs, fmt.Errorf("max_replacements must be positive, got %d", s.MaxReplacements))
	}
	if !identifierRe.MatchString(s.NamedBlock.Begin) {
		errs = append(errs, fmt.Errorf("named_block.begin %q is not an identifier", s.NamedBlock.Begin))
	}
	if !identifierRe.MatchString(s.NamedBlock.End) {
		errs = append(errs, fmt.Errorf("named_block.end %q is not an identifier", s.NamedBlock.End))
	}
	for ext, lang := range s.Languages {
		if !strings.HasPrefix(ext, ".") || lang == "" {
			errs = append(errs, fmt.Errorf("languages: invalid mapping %q = %q", ext, lang))
		}
	}

	names := make(map[string]bool, len(s.Rules))
	for i, r := range s.Rules {
		switch {
		case r.Name == "":
			errs = append(errs, fmt.Errorf("rules[%d]: missing name", i))
		case names[r.Name]:
			errs = append(errs, fmt.Errorf("rules[%d]: duplicate name %q", i, r.Name))
		}
		names[r.Name] = true
		if strings.TrimSpace(r.Pattern) == "" {
			errs = append(errs, fmt.Errorf("rules[%d]: missing pattern", i))
		}
		if _, err := treesitter.ParseSeverity(r.Severity); err != nil {
			errs = append(errs, fmt.Errorf("rules[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Level returns the slog level named by LogLevel, Info if it is invalid.
func (s *Settings) Level() slog.Level {
	level, err := parseLevel(s.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: unknown level %q", name)
	}
	return level, nil
}

// TreesitterOptions returns the engine options derived from the settings.
func (s *Settings) TreesitterOptions(logger *slog.Logger) []treesitter.Option {
	return []treesitter.Option{
		treesitter.WithLogger(logger),
		treesitter.WithNamedBlock(s.NamedBlock.Begin, s.NamedBlock.End),
		treesitter.WithMaxReplacements(s.MaxReplacements),
	}
}

// CheckerRules converts the [[rules]] entries. Settings must be valid.
func (s *Settings) CheckerRules() []treesitter.Rule {
	rules := make([]treesitter.Rule, 0, len(s.Rules))
	for _, r := range s.Rules {
		severity, _ := treesitter.ParseSeverity(r.Severity)
		rules = append(rules, treesitter.Rule{
			Name:          r.Name,
			Language:      r.Language,
			Pattern:       r.Pattern,
			Capture:       r.Capture,
			Message:       r.Message,
			Severity:      severity,
			InterestKinds: r.InterestKinds,
		})
	}
	return rules
}

// ApplyLanguages registers the extra extension mappings on registry.
func (s *Settings) ApplyLanguages(registry *treesitter.Registry) error {
	var errs []error
	for ext, name := range s.Languages {
		if err := registry.Alias(ext, name); err != nil {
			errs = append(errs, fmt.Errorf("languages %q: %w", ext, err))
		}
	}
	return errors.Join(errs...)
}
