// Package scan walks a project tree, parses every supported file on a
// bounded worker pool and reduces the per-file partial graphs into one
// dependency graph. Workers share no mutable state; the merge is the only
// synchronization point.
package scan

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"guardrail/internal/core/config"
	"guardrail/internal/core/store"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/parser"
	"guardrail/internal/engine/resolver"
	"guardrail/internal/engine/similarity"
	"guardrail/internal/shared/observability"
	"guardrail/internal/shared/util"
)

type Scanner struct {
	cfg      *config.Config
	parser   *parser.Parser
	resolver *resolver.Resolver
	store    store.AnalysisStore
	detector *similarity.Detector
	logger   *slog.Logger
	tracer   trace.Tracer

	excludeGlobs []glob.Glob
}

// NewScanner wires the scan pipeline. The store and detector may be nil;
// caching and similarity indexing are then skipped.
func NewScanner(cfg *config.Config, p *parser.Parser, res *resolver.Resolver, st store.AnalysisStore, det *similarity.Detector, logger *slog.Logger) *Scanner {
	if cfg == nil {
		cfg = config.Default()
	}
	if st == nil {
		st = store.NoopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	var globs []glob.Glob
	for _, pattern := range cfg.Scan.ExcludeGlobs {
		if g, err := glob.Compile(pattern, '/'); err == nil {
			globs = append(globs, g)
		}
	}
	return &Scanner{
		cfg:          cfg,
		parser:       p,
		resolver:     res,
		store:        st,
		detector:     det,
		logger:       logger,
		tracer:       otel.Tracer("guardrail/scan"),
		excludeGlobs: globs,
	}
}

// Result carries everything one scan produced.
type Result struct {
	Graph    *graph.Graph
	Files    []*parser.File
	Failed   []string // paths with parse errors, analyzed partially
	Duration time.Duration
}

// ScanProject walks the configured root and analyzes every supported file.
// Parse and resolution failures degrade per file; only walk errors abort.
func (s *Scanner) ScanProject(ctx context.Context) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "scan.ScanProject")
	defer span.End()
	start := time.Now()

	paths, err := s.collectFiles()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		s.resolver.AddFile(p)
	}

	partials := make([]*graph.Graph, len(paths))
	files := make([]*parser.File, len(paths))
	var mu sync.Mutex
	var failed []string

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Scan.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			file, partial, parseErr := s.analyzeOne(path)
			if parseErr != nil {
				s.logger.Warn("partial analysis", "path", path, "error", parseErr)
				mu.Lock()
				failed = append(failed, path)
				mu.Unlock()
			}
			files[i] = file
			partials[i] = partial
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Single-threaded reduce; node/edge identity is content-addressed so
	// merge order does not matter.
	full := graph.NewGraph()
	for _, partial := range partials {
		full.Merge(partial)
	}

	if s.detector != nil {
		for _, file := range files {
			s.detector.Index(file)
		}
	}

	duration := time.Since(start)
	observability.AnalysisDuration.With(prometheus.Labels{"task": "scan"}).
		Observe(duration.Seconds())
	span.SetAttributes(
		attribute.Int("scan.files", len(paths)),
		attribute.Int("scan.failed", len(failed)),
		attribute.Int("scan.workers", s.cfg.Scan.Workers),
	)

	return &Result{Graph: full, Files: files, Failed: failed, Duration: duration}, nil
}

// ScanFile analyzes one file and returns its single-file partial graph.
func (s *Scanner) ScanFile(ctx context.Context, path string) (*parser.File, *graph.Graph, error) {
	_, span := s.tracer.Start(ctx, "scan.ScanFile",
		trace.WithAttributes(attribute.String("scan.path", path)))
	defer span.End()

	rel := s.RelPath(path)
	s.resolver.AddFile(rel)
	file, partial, err := s.analyzeOne(rel)
	if s.detector != nil {
		s.detector.Index(file)
	}
	return file, partial, err
}

func (s *Scanner) analyzeOne(relPath string) (*parser.File, *graph.Graph, error) {
	absPath := filepath.Join(s.cfg.Paths.ProjectRoot, filepath.FromSlash(relPath))
	content, err := os.ReadFile(absPath)
	if err != nil {
		file := &parser.File{Path: relPath, ParseFailed: true, ParseNote: "unreadable file"}
		return file, s.buildPartial(file, ""), err
	}
	hash := store.ContentHash(content)

	if cached, ok, _ := s.store.Get(relPath, hash); ok {
		return cached, s.buildPartial(cached, hash), nil
	}

	file, parseErr := s.parser.ParseFile(relPath, content)
	if file == nil {
		file = &parser.File{Path: relPath, ParseFailed: true}
	}
	file.Path = relPath
	if parseErr == nil {
		if err := s.store.Put(relPath, hash, file); err != nil {
			s.logger.Warn("analysis cache write failed", "path", relPath, "error", err)
		}
	}
	return file, s.buildPartial(file, hash), parseErr
}

// buildPartial projects one analysis into a partial graph: the file node,
// one import edge per resolved specifier, and symbol-level call/extends/
// implements edges where the target is known. Unresolved project-internal
// imports are logged and omitted.
func (s *Scanner) buildPartial(file *parser.File, hash string) *graph.Graph {
	partial := graph.NewGraph()
	partial.AddNode(graph.Node{
		Path:        file.Path,
		ContentHash: hash,
		Language:    file.Language,
		Module:      file.Module,
		Exports:     file.Exports(),
	})

	importTargets := make(map[string][]string) // imported item/alias base -> resolved paths
	var deps []string
	for _, imp := range file.Imports {
		res, err := s.resolver.Resolve(file.Path, imp, file.Language)
		if err != nil {
			s.logger.Warn("unresolved import", "path", file.Path, "import", imp.Module, "error", err)
			continue
		}
		if res.External {
			continue
		}
		for _, target := range res.Paths {
			deps = append(deps, target)
			partial.AddNode(graph.Node{Path: target})
			partial.AddEdge(graph.Edge{
				From:     file.Path,
				To:       target,
				Kind:     graph.EdgeImport,
				Location: imp.Location,
			})
			for _, item := range imp.Items {
				importTargets[item] = append(importTargets[item], target)
			}
			if imp.Alias != "" {
				importTargets[imp.Alias] = append(importTargets[imp.Alias], target)
			}
		}
	}

	file.Dependencies = deps

	for _, ref := range file.References {
		base := strings.SplitN(ref.Name, ".", 2)[0]
		for _, target := range importTargets[base] {
			partial.AddEdge(graph.Edge{
				From:     file.Path,
				To:       target,
				Kind:     graph.EdgeCall,
				Symbol:   symbolOf(ref.Name),
				Location: ref.Location,
			})
		}
	}

	for _, def := range file.Definitions {
		for _, parent := range def.Extends {
			for _, target := range importTargets[parent] {
				partial.AddEdge(graph.Edge{
					From:     file.Path,
					To:       target,
					Kind:     graph.EdgeExtends,
					Symbol:   parent,
					Location: def.Location,
				})
			}
		}
		for _, iface := range def.Implements {
			for _, target := range importTargets[iface] {
				partial.AddEdge(graph.Edge{
					From:     file.Path,
					To:       target,
					Kind:     graph.EdgeImplements,
					Symbol:   iface,
					Location: def.Location,
				})
			}
		}
	}

	return partial
}

func symbolOf(refName string) string {
	parts := strings.Split(refName, ".")
	return parts[len(parts)-1]
}

func (s *Scanner) collectFiles() ([]string, error) {
	root := s.cfg.Paths.ProjectRoot
	var out []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := s.RelPath(path)
		if d.IsDir() {
			if s.excludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.parser.IsSupportedPath(path) {
			return nil
		}
		if parser.IsExternalPath(rel) || s.excludedPath(rel) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RelPath converts an absolute path into the project-relative slash form
// used as the graph node key.
func (s *Scanner) RelPath(path string) string {
	rel, err := filepath.Rel(s.cfg.Paths.ProjectRoot, path)
	if err != nil {
		rel = path
	}
	return util.NormalizePatternPath(rel)
}

// Supports reports whether a path is in scope for analysis: a supported
// language, inside the project, and not excluded by configuration.
func (s *Scanner) Supports(path string) bool {
	if !s.parser.IsSupportedPath(path) {
		return false
	}
	rel := s.RelPath(path)
	return !parser.IsExternalPath(rel) && !s.excludedPath(rel)
}

// Forget drops a file from the resolver index, typically after deletion.
func (s *Scanner) Forget(relPath string) {
	s.resolver.RemoveFile(relPath)
}

func (s *Scanner) excludedDir(name string) bool {
	for _, dir := range s.cfg.Scan.ExcludeDirs {
		if name == dir {
			return true
		}
	}
	return false
}

func (s *Scanner) excludedPath(rel string) bool {
	for _, g := range s.excludeGlobs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
