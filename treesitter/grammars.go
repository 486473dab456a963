package treesitter

import (
	"sync"
	"unsafe"

	ts_yaml "github.com/tree-sitter-grammars/tree-sitter-yaml/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	ts_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	ts_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	ts_json "github.com/tree-sitter/tree-sitter-json/bindings/go"
	ts_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

var (
	cppLanguage = sync.OnceValue(func() *Language {
		return NewLanguage("cpp", tree_sitter.NewLanguage(unsafe.Pointer(ts_cpp.Language())))
	})
	goLanguage = sync.OnceValue(func() *Language {
		return NewLanguage("go", tree_sitter.NewLanguage(unsafe.Pointer(ts_go.Language())))
	})
	jsonLanguage = sync.OnceValue(func() *Language {
		return NewLanguage("json", tree_sitter.NewLanguage(unsafe.Pointer(ts_json.Language())))
	})
	pythonLanguage = sync.OnceValue(func() *Language {
		return NewLanguage("python", tree_sitter.NewLanguage(unsafe.Pointer(ts_python.Language())))
	})
	yamlLanguage = sync.OnceValue(func() *Language {
		return NewLanguage("yaml", tree_sitter.NewLanguage(unsafe.Pointer(ts_yaml.Language())))
	})
)

// CPP returns the C++ grammar.
func CPP() *Language { return cppLanguage() }

// Go returns the Go grammar.
func Go() *Language { return goLanguage() }

// JSON returns the JSON grammar.
func JSON() *Language { return jsonLanguage() }

// Python returns the Python grammar.
func Python() *Language { return pythonLanguage() }

// YAML returns the YAML grammar.
func YAML() *Language { return yamlLanguage() }

// DefaultRegistry returns a registry with every bundled grammar registered
// under its usual extensions.
func DefaultRegistry() *Registry {
	return NewRegistry(Config{
		Matchers: []LanguageMatcher{
			{Language: CPP(), LanguageID: "cpp", Extensions: []string{".cpp", ".cc", ".cxx", ".c++", ".h", ".hh", ".hpp", ".hxx", ".inl"}},
			{Language: Go(), LanguageID: "go", Extensions: []string{".go"}},
			{Language: JSON(), LanguageID: "json", Extensions: []string{".json"}},
			{Language: Python(), LanguageID: "python", Extensions: []string{".py", ".pyi"}},
			{Language: YAML(), LanguageID: "yaml", Extensions: []string{".yml", ".yaml"}},
		},
		Languages: map[string]*Language{},
	})
}
