// Package guardrail wires the analysis engines into one facade for in-repo
// callers: parse, graph, similarity, impact and rule validation behind a
// single Engine value configured once.
package guardrail

import (
	"context"
	"log/slog"

	"github.com/gobwas/glob"

	"guardrail/internal/core/config"
	"guardrail/internal/core/scan"
	"guardrail/internal/core/store"
	"guardrail/internal/core/watch"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/impact"
	"guardrail/internal/engine/parser"
	"guardrail/internal/engine/resolver"
	"guardrail/internal/engine/rules"
	"guardrail/internal/engine/similarity"
)

// Engine owns one project's analysis state: the parser, the live dependency
// graph, the similarity index, the impact analyzer and the rule engine, all
// built from a single validated configuration.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	parser   *parser.Parser
	resolver *resolver.Resolver
	graph    *graph.Graph
	store    store.AnalysisStore
	detector *similarity.Detector
	analyzer *impact.Analyzer
	rules    *rules.Engine
	scanner  *scan.Scanner
	watcher  *watch.Watcher
}

// New builds an Engine from a validated configuration. A nil config means
// defaults. The sqlite analysis cache is opened when enabled; cache open
// failures degrade to uncached operation with a warning.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := parser.NewParser(parser.NewGrammarLoader(nil))
	res := resolver.NewResolver(resolver.Options{
		Aliases:      cfg.Paths.Aliases,
		GoModulePath: cfg.Paths.GoModulePath,
	})
	g := graph.NewGraph()

	var st store.AnalysisStore = store.NoopStore{}
	if cfg.Cache.Enabled {
		sqlite, err := store.OpenSQLiteStore(cfg.Cache.Path)
		if err != nil {
			logger.Warn("analysis cache unavailable, running uncached",
				"path", cfg.Cache.Path, "error", err)
		} else {
			st = sqlite
		}
	}

	det := similarity.NewDetector(similarity.Options{
		FunctionSignatureThreshold:  cfg.Similarity.FunctionSignatureThreshold,
		SemanticSimilarityThreshold: cfg.Similarity.SemanticSimilarityThreshold,
		BusinessLogicThreshold:      cfg.Similarity.BusinessLogicThreshold,
		MaxResults:                  cfg.Similarity.MaxResults,
		IncludeExternalPackages:     cfg.Similarity.IncludeExternalPackages,
	})

	return &Engine{
		cfg:      cfg,
		logger:   logger,
		parser:   p,
		resolver: res,
		graph:    g,
		store:    st,
		detector: det,
		analyzer: impact.NewAnalyzer(p, g, det, cfg),
		rules:    rules.NewEngine(rules.Builtin(), cfg.Rules),
		scanner:  scan.NewScanner(cfg, p, res, st, det, logger),
	}, nil
}

// Graph exposes the live dependency graph. Callers get snapshot reads; all
// mutation goes through scanning and the watcher.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config { return e.cfg }

// ScanProject analyzes every supported file under the project root and
// merges the result into the live graph and similarity index.
func (e *Engine) ScanProject(ctx context.Context) (*scan.Result, error) {
	result, err := e.scanner.ScanProject(ctx)
	if err != nil {
		return nil, err
	}
	e.graph.Merge(result.Graph)
	e.markCriticalPaths()
	e.logger.Info("project scan complete",
		"files", len(result.Files), "failed", len(result.Failed),
		"duration", result.Duration)
	return result, nil
}

// markCriticalPaths feeds the similarity detector the files that business
// logic weighting applies to: configured protection globs plus the graph's
// own top-ranked files.
func (e *Engine) markCriticalPaths() {
	patterns := append([]string{}, e.cfg.Protection.CriticalComponents...)
	patterns = append(patterns, e.cfg.Protection.BusinessLogicPaths...)
	var globs []glob.Glob
	for _, pattern := range patterns {
		if g, err := glob.Compile(pattern, '/'); err == nil {
			globs = append(globs, g)
		}
	}
	for _, node := range e.graph.Nodes() {
		for _, g := range globs {
			if g.Match(node.Path) {
				e.detector.MarkCritical(node.Path)
				break
			}
		}
	}
	for _, metrics := range e.graph.CriticalPaths(e.cfg.Protection.CriticalTopK) {
		e.detector.MarkCritical(metrics.Path)
	}
}

// AnalyzeFile analyzes one file, refreshes its graph node and similarity
// entries, and returns the structured analysis. Parse failures return a
// partial analysis alongside the error.
func (e *Engine) AnalyzeFile(ctx context.Context, path string) (*parser.File, error) {
	file, partial, err := e.scanner.ScanFile(ctx, path)
	e.graph.Merge(partial)
	return file, err
}

// AnalyzeDependencies returns the files that depend on path, directly or
// transitively, bounded by the configured traversal depth.
func (e *Engine) AnalyzeDependencies(path string) []string {
	return e.graph.Dependents(path, e.cfg.Scan.TraversalDepth)
}

// DetectCycles reports every dependency cycle currently in the graph.
func (e *Engine) DetectCycles() [][]string {
	return e.graph.DetectCycles()
}

// CriticalPaths ranks files by dependency weight, using the configured
// top-K cutoff.
func (e *Engine) CriticalPaths() []graph.FileMetrics {
	return e.graph.CriticalPaths(e.cfg.Protection.CriticalTopK)
}

// DetectSimilarCode parses a snippet as if it lived at path and matches it
// against the indexed project.
func (e *Engine) DetectSimilarCode(path string, source []byte) ([]similarity.Match, error) {
	file, err := e.parser.ParseFile(path, source)
	if file == nil {
		return nil, err
	}
	return e.detector.Detect(file), err
}

// ExtractAPIContract parses content and projects its exported surface.
func (e *Engine) ExtractAPIContract(path string, content []byte) (parser.APIContract, error) {
	file, err := e.parser.ParseFile(path, content)
	if file == nil {
		return parser.APIContract{}, err
	}
	return parser.ExtractAPIContract(file), err
}

// ValidateTypeCompatibility reports whether newType can stand in for
// oldType at existing call sites.
func (e *Engine) ValidateTypeCompatibility(oldType, newType parser.Definition) parser.CompatibilityResult {
	return parser.ValidateTypeCompatibility(oldType, newType)
}

// AnalyzeChange runs the full impact pipeline for one change.
func (e *Engine) AnalyzeChange(ctx context.Context, change impact.CodeChange) (impact.ImpactAnalysis, error) {
	return e.analyzer.AnalyzeChange(ctx, change)
}

// IdentifyBreakingChanges diffs a change's old and new content into
// classified breaking changes without the full impact walk.
func (e *Engine) IdentifyBreakingChanges(change impact.CodeChange) []impact.BreakingChange {
	return e.analyzer.IdentifyBreakingChanges(change)
}

// CalculateRiskScore scores a change from its breaking changes and blast
// radius using the configured weights.
func (e *Engine) CalculateRiskScore(path string, breaking []impact.BreakingChange, affectedComponents int) (float64, impact.RiskLevel) {
	return e.analyzer.CalculateRiskScore(path, breaking, affectedComponents)
}

// BuildImpactMap aggregates per-change analyses into a project-wide view.
func (e *Engine) BuildImpactMap(ctx context.Context, changes []impact.CodeChange) (impact.ImpactMap, error) {
	return e.analyzer.BuildImpactMap(ctx, changes)
}

// ExecuteRules validates one change against every applicable rule.
func (e *Engine) ExecuteRules(ctx context.Context, change impact.CodeChange) []rules.Result {
	return e.rules.ExecuteRules(ctx, e.ruleContext(change))
}

// GetApplicableRules lists the rules that would run for a change.
func (e *Engine) GetApplicableRules(change impact.CodeChange) []rules.Rule {
	return e.rules.ApplicableRules(e.ruleContext(change))
}

// RegisterRule adds a custom rule to the injected set.
func (e *Engine) RegisterRule(rule rules.Rule) {
	e.rules.Register(rule)
}

// ConfigureRules replaces the per-rule configuration.
func (e *Engine) ConfigureRules(configs config.RuleConfigs) {
	e.rules.Configure(configs)
}

func (e *Engine) ruleContext(change impact.CodeChange) *rules.Context {
	return &rules.Context{
		Change:   change,
		Graph:    e.graph,
		Analyzer: e.analyzer,
		Detector: e.detector,
		Parser:   e.parser,
		Config:   e.cfg,
	}
}

// Watch starts incremental re-analysis on filesystem changes. The callback
// may be nil; it fires after each applied batch.
func (e *Engine) Watch(ctx context.Context, onUpdate func(watch.Update)) error {
	if e.watcher != nil {
		return nil
	}
	w, err := watch.NewWatcher(e.cfg, e.scanner, e.store, e.graph, e.detector, e.logger)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		w.OnUpdate(onUpdate)
	}
	if err := w.Start(ctx); err != nil {
		w.Close()
		return err
	}
	e.watcher = w
	return nil
}

// Close stops the watcher and the analysis cache.
func (e *Engine) Close() error {
	var err error
	if e.watcher != nil {
		err = e.watcher.Close()
		e.watcher = nil
	}
	if cerr := e.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
