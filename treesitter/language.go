package treesitter

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNoLanguage is returned when no grammar is registered for a lookup.
var ErrNoLanguage = errors.New("no language registered")

// Registry maps language names, file extensions, filenames and glob patterns
// to languages. It is built once at start-up and injected wherever a grammar
// has to be chosen.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]*Language
	languages map[string]*Language // ext -> language
	matchers  []LanguageMatcher
}

// NewRegistry creates a new language registry from a config.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		byName:    make(map[string]*Language),
		languages: make(map[string]*Language, len(cfg.Languages)),
	}
	for ext, lang := range cfg.Languages {
		r.Register(ext, lang)
	}
	for _, m := range cfg.Matchers {
		r.RegisterMatcher(m)
	}
	return r
}

// Register adds a language for a given file extension.
func (r *Registry) Register(ext string, lang *Language) {
	ext = normalizeExt(ext)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.languages[ext] = lang
	r.byName[lang.Name()] = lang
}

// RegisterMatcher adds a LanguageMatcher to the registry. Matchers are
// evaluated in registration order; the first match wins over extension-based lookup.
func (r *Registry) RegisterMatcher(m LanguageMatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchers = append(r.matchers, m)
	if m.Language != nil {
		r.byName[m.Language.Name()] = m.Language
	}
}

// Alias maps an extra file extension onto an already registered language.
func (r *Registry) Alias(ext, name string) error {
	lang, err := r.Lookup(name)
	if err != nil {
		return err
	}
	r.Register(ext, lang)
	return nil
}

// Lookup returns the language registered under name.
func (r *Registry) Lookup(name string) (*Language, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if lang, ok := r.byName[name]; ok {
		return lang, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoLanguage, name)
}

// Names returns the registered language names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

// LanguageFor returns the language for a given URI or filename.
func (r *Registry) LanguageFor(uri string) (*Language, error) {
	return r.LanguageForURI(uri, "")
}

// LanguageForURI returns the language for a given URI and optional
// languageID. The first rule that applies wins:
//  1. a matcher listing the exact filename
//  2. a matcher or a language name equal to languageID
//  3. a matcher glob matching the path or the filename
//  4. a matcher extension, then a registered extension
func (r *Registry) LanguageForURI(uri string, languageID string) (*Language, error) {
	file := strings.TrimPrefix(uri, "file://")
	base, ext := path.Base(file), path.Ext(file)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if lang := r.firstMatcher(func(m LanguageMatcher) bool {
		return slices.Contains(m.Filenames, base)
	}); lang != nil {
		return lang, nil
	}

	if languageID != "" {
		if lang := r.firstMatcher(func(m LanguageMatcher) bool {
			return m.LanguageID == languageID
		}); lang != nil {
			return lang, nil
		}
		if lang, ok := r.byName[languageID]; ok {
			return lang, nil
		}
	}

	if lang := r.firstMatcher(func(m LanguageMatcher) bool {
		return m.Pattern != "" && (globMatch(m.Pattern, file) || globMatch(m.Pattern, base))
	}); lang != nil {
		return lang, nil
	}

	if ext != "" {
		if lang := r.firstMatcher(func(m LanguageMatcher) bool {
			return slices.ContainsFunc(m.Extensions, func(e string) bool { return normalizeExt(e) == ext })
		}); lang != nil {
			return lang, nil
		}
		if lang, ok := r.languages[ext]; ok {
			return lang, nil
		}
	}

	return nil, fmt.Errorf("%w for: %s", ErrNoLanguage, uri)
}

// firstMatcher returns the language of the first matcher accepted by pred.
// The read lock is held.
func (r *Registry) firstMatcher(pred func(LanguageMatcher) bool) *Language {
	for _, m := range r.matchers {
		if m.Language != nil && pred(m) {
			return m.Language
		}
	}
	return nil
}

func globMatch(pattern, name string) bool {
	matched, _ := doublestar.Match(pattern, name)
	return matched
}

// HasLanguage returns whether a language is registered for the given URI.
func (r *Registry) HasLanguage(uri string) bool {
	lang, err := r.LanguageForURI(uri, "")
	return err == nil && lang != nil
}

func normalizeExt(ext string) string {
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}
