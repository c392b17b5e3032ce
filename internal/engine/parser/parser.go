package parser

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"guardrail/internal/core/errors"
	"guardrail/internal/shared/observability"
	"guardrail/internal/shared/util"

	"github.com/prometheus/client_golang/prometheus"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

type Parser struct {
	loader         *GrammarLoader
	extractors     map[string]Extractor // language -> extractor
	extensions     map[string]string
	filenames      map[string]string
	testFileSuffix []string
}

type Extractor interface {
	Extract(node *sitter.Node, source []byte, filePath string) (*File, error)
}

func NewParser(loader *GrammarLoader) *Parser {
	p := &Parser{
		loader:     loader,
		extractors: make(map[string]Extractor),
		extensions: make(map[string]string),
		filenames:  make(map[string]string),
	}
	for lang, spec := range loader.LanguageRegistry() {
		if !spec.Enabled {
			continue
		}
		for _, ext := range spec.Extensions {
			p.extensions[strings.ToLower(ext)] = lang
		}
		for _, name := range spec.Filenames {
			p.filenames[strings.ToLower(path.Base(name))] = lang
		}
		p.testFileSuffix = append(p.testFileSuffix, spec.TestFileSuffixes...)
	}
	sort.Strings(p.testFileSuffix)
	p.registerDefaultExtractors()
	return p
}

func (p *Parser) registerDefaultExtractors() {
	p.extractors["typescript"] = &TypeScriptExtractor{Language: "typescript"}
	p.extractors["tsx"] = &TypeScriptExtractor{Language: "tsx"}
	p.extractors["javascript"] = &TypeScriptExtractor{Language: "javascript"}
	p.extractors["go"] = &GoExtractor{}
	p.extractors["python"] = &PythonExtractor{}
}

func (p *Parser) RegisterExtractor(lang string, e Extractor) {
	p.extractors[lang] = e
}

// AnalyzeFile reads and parses one file from disk. A syntactically invalid
// file yields a partial-but-valid analysis plus a PARSE_ERROR; callers
// running batches keep the partial result and continue.
func (p *Parser) AnalyzeFile(filePath string) (*File, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return emptyAnalysis(filePath, "", "unreadable file"),
			errors.Wrap(err, errors.CodeParseError, "read source file")
	}
	return p.ParseFile(filePath, content)
}

// ParseFile parses in-memory content. The returned *File is non-nil whenever
// the language is supported, even when err is a PARSE_ERROR.
func (p *Parser) ParseFile(filePath string, content []byte) (*File, error) {
	lang := p.detectLanguage(filePath)
	if lang == "" {
		return nil, (&errors.DomainError{Code: errors.CodeNotSupported, Message: "unsupported language"}).
			WithContext(errors.CtxPath, filePath)
	}

	extractor := p.extractors[lang]
	if extractor == nil {
		return nil, errors.New(errors.CodeNotSupported, fmt.Sprintf("no extractor for: %s", lang))
	}

	grammar := p.loader.Language(lang)
	if grammar == nil {
		return emptyAnalysis(filePath, lang, "grammar not loaded"),
			errors.New(errors.CodeInternal, fmt.Sprintf("grammar not loaded: %s", lang))
	}

	start := time.Now()
	defer func() {
		observability.ParsingDuration.With(prometheus.Labels{"language": lang}).
			Observe(time.Since(start).Seconds())
	}()

	sp := sitter.NewParser()
	defer sp.Close()
	sp.SetLanguage(grammar)

	tree := sp.Parse(content, nil)
	if tree == nil {
		observability.ParseFailuresTotal.With(prometheus.Labels{"language": lang}).Inc()
		return emptyAnalysis(filePath, lang, "parse produced no tree"),
			errors.New(errors.CodeParseError, "parse failed")
	}
	defer tree.Close()

	root := tree.RootNode()
	file, err := extractor.Extract(root, content, filePath)
	if err != nil {
		observability.ParseFailuresTotal.With(prometheus.Labels{"language": lang}).Inc()
		return emptyAnalysis(filePath, lang, "extraction failed"),
			errors.Wrap(err, errors.CodeParseError, "extraction failed")
	}

	file.Complexity = computeComplexity(file, content)

	if root.HasError() {
		// Keep whatever the extractor recovered but flag the degradation.
		file.ParseFailed = true
		file.ParseNote = "source contains syntax errors; analysis is partial"
		observability.ParseFailuresTotal.With(prometheus.Labels{"language": lang}).Inc()
		return file, (&errors.DomainError{Code: errors.CodeParseError, Message: "syntax errors in source"}).
			WithContext(errors.CtxPath, filePath).
			WithContext(errors.CtxLanguage, lang)
	}

	return file, nil
}

func emptyAnalysis(filePath, lang, note string) *File {
	return &File{
		Path:        filePath,
		Language:    lang,
		ParseFailed: true,
		ParseNote:   note,
		ParsedAt:    time.Now(),
	}
}

func (p *Parser) detectLanguage(filePath string) string {
	base := strings.ToLower(filepath.Base(filePath))
	if lang, ok := p.filenames[base]; ok {
		return lang
	}
	// Compound test suffixes (.test.ts) carry the language of the final extension.
	ext := strings.ToLower(filepath.Ext(filePath))
	if lang, ok := p.extensions[ext]; ok {
		return lang
	}
	return ""
}

func (p *Parser) IsSupportedPath(filePath string) bool {
	return p.GetLanguage(filePath) != ""
}

func (p *Parser) GetLanguage(filePath string) string {
	return p.detectLanguage(filePath)
}

func (p *Parser) IsTestFile(filePath string) bool {
	base := strings.ToLower(filepath.Base(filePath))
	for _, suffix := range p.testFileSuffix {
		if strings.HasSuffix(base, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

// IsExternalPath reports whether the path lives under a vendored or
// third-party directory convention.
func IsExternalPath(filePath string) bool {
	norm := util.NormalizePatternPath(filePath)
	for _, part := range strings.Split(norm, "/") {
		switch part {
		case "node_modules", "vendor", "third_party", ".venv", "site-packages":
			return true
		}
	}
	return false
}

func (p *Parser) SupportedExtensions() []string {
	return util.SortedStringKeys(p.extensions)
}

func (p *Parser) SupportedTestFileSuffixes() []string {
	out := make([]string, len(p.testFileSuffix))
	copy(out, p.testFileSuffix)
	return out
}
