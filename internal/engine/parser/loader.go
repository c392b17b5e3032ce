package parser

import (
	"guardrail/internal/shared/util"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// LanguageSpec describes how files map onto a supported language.
type LanguageSpec struct {
	Enabled          bool
	Extensions       []string
	Filenames        []string
	TestFileSuffixes []string
	External         bool // Third-party/vendored convention (node_modules, vendor)
}

// GrammarLoader owns the statically linked tree-sitter grammars and the
// language registry derived from them.
type GrammarLoader struct {
	languages map[string]*sitter.Language
	registry  map[string]LanguageSpec
}

func defaultLanguageRegistry() map[string]LanguageSpec {
	return map[string]LanguageSpec{
		"typescript": {
			Enabled:          true,
			Extensions:       []string{".ts", ".mts", ".cts"},
			TestFileSuffixes: []string{".test.ts", ".spec.ts"},
		},
		"tsx": {
			Enabled:          true,
			Extensions:       []string{".tsx"},
			TestFileSuffixes: []string{".test.tsx", ".spec.tsx"},
		},
		"javascript": {
			Enabled:          true,
			Extensions:       []string{".js", ".jsx", ".mjs", ".cjs"},
			TestFileSuffixes: []string{".test.js", ".spec.js"},
		},
		"go": {
			Enabled:          true,
			Extensions:       []string{".go"},
			TestFileSuffixes: []string{"_test.go"},
		},
		"python": {
			Enabled:          true,
			Extensions:       []string{".py"},
			TestFileSuffixes: []string{"_test.py"},
		},
	}
}

// NewGrammarLoader builds a loader for every enabled language in the default
// registry. Overrides may disable a language or adjust its file mapping.
func NewGrammarLoader(overrides map[string]LanguageSpec) *GrammarLoader {
	registry := defaultLanguageRegistry()
	for lang, spec := range overrides {
		base, ok := registry[lang]
		if !ok {
			continue
		}
		base.Enabled = spec.Enabled
		if len(spec.Extensions) > 0 {
			base.Extensions = append([]string(nil), spec.Extensions...)
		}
		if len(spec.Filenames) > 0 {
			base.Filenames = append([]string(nil), spec.Filenames...)
		}
		if len(spec.TestFileSuffixes) > 0 {
			base.TestFileSuffixes = append([]string(nil), spec.TestFileSuffixes...)
		}
		registry[lang] = base
	}

	gl := &GrammarLoader{
		languages: make(map[string]*sitter.Language),
		registry:  registry,
	}

	for _, langID := range util.SortedStringKeys(registry) {
		spec := registry[langID]
		if !spec.Enabled {
			continue
		}
		switch langID {
		case "go":
			gl.languages["go"] = sitter.NewLanguage(tree_sitter_go.Language())
		case "javascript":
			gl.languages["javascript"] = sitter.NewLanguage(tree_sitter_javascript.Language())
		case "python":
			gl.languages["python"] = sitter.NewLanguage(tree_sitter_python.Language())
		case "tsx":
			gl.languages["tsx"] = sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
		case "typescript":
			gl.languages["typescript"] = sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
		}
	}

	return gl
}

func (gl *GrammarLoader) LanguageRegistry() map[string]LanguageSpec {
	out := make(map[string]LanguageSpec, len(gl.registry))
	for lang, spec := range gl.registry {
		clone := spec
		clone.Extensions = append([]string(nil), spec.Extensions...)
		clone.Filenames = append([]string(nil), spec.Filenames...)
		clone.TestFileSuffixes = append([]string(nil), spec.TestFileSuffixes...)
		out[lang] = clone
	}
	return out
}

func (gl *GrammarLoader) Language(lang string) *sitter.Language {
	return gl.languages[lang]
}
