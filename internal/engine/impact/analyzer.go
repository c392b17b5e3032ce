// Package impact classifies the blast radius of a code change: which
// exported surfaces break, which files and components are reached through
// the dependency graph, and how risky the change is overall.
package impact

import (
	"context"
	"sort"
	"time"

	"github.com/gobwas/glob"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"guardrail/internal/core/config"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/parser"
	"guardrail/internal/engine/similarity"
	"guardrail/internal/shared/observability"
	"guardrail/internal/shared/util"
)

// Analyzer wires the parser, graph, similarity index and configuration into
// the analyzeChange pipeline. The detector is optional; without it the
// mitigation list only draws from breaking changes.
type Analyzer struct {
	parser   *parser.Parser
	graph    *graph.Graph
	detector *similarity.Detector
	cfg      *config.Config

	criticalGlobs []glob.Glob
	businessGlobs []glob.Glob
	tracer        trace.Tracer
}

func NewAnalyzer(p *parser.Parser, g *graph.Graph, d *similarity.Detector, cfg *config.Config) *Analyzer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Analyzer{
		parser:        p,
		graph:         g,
		detector:      d,
		cfg:           cfg,
		criticalGlobs: compileGlobs(cfg.Protection.CriticalComponents),
		businessGlobs: compileGlobs(cfg.Protection.BusinessLogicPaths),
		tracer:        otel.Tracer("guardrail/impact"),
	}
}

func compileGlobs(patterns []string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			continue // rejected at config load; unreachable in practice
		}
		out = append(out, g)
	}
	return out
}

func matchesAny(globs []glob.Glob, path string) bool {
	norm := util.NormalizePatternPath(path)
	for _, g := range globs {
		if g.Match(norm) {
			return true
		}
	}
	return false
}

// AnalyzeChange runs the full pipeline for one change.
func (a *Analyzer) AnalyzeChange(ctx context.Context, change CodeChange) (ImpactAnalysis, error) {
	_, span := a.tracer.Start(ctx, "impact.AnalyzeChange",
		trace.WithAttributes(
			attribute.String("change.id", change.ID),
			attribute.String("change.type", string(change.Type)),
			attribute.String("change.path", change.FilePath),
		))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.AnalysisDuration.With(prometheus.Labels{"task": "impact"}).
			Observe(time.Since(start).Seconds())
	}()

	breaking := a.IdentifyBreakingChanges(change)
	affectedFiles := a.graph.Dependents(change.FilePath, a.cfg.Scan.TraversalDepth)
	affectedComponents := a.affectedComponents(change.FilePath, affectedFiles)

	score, level := a.CalculateRiskScore(change.FilePath, breaking, len(affectedComponents))
	mitigations := a.mitigationStrategies(change, breaking)

	for _, bc := range breaking {
		observability.BreakingChangesTotal.With(prometheus.Labels{"severity": string(bc.Severity)}).Inc()
	}
	span.SetAttributes(
		attribute.Int("impact.breaking_changes", len(breaking)),
		attribute.Int("impact.affected_files", len(affectedFiles)),
		attribute.Float64("impact.risk_score", score),
		attribute.String("impact.risk_level", string(level)),
	)

	return ImpactAnalysis{
		ChangeID:             change.ID,
		FilePath:             change.FilePath,
		AffectedFiles:        affectedFiles,
		AffectedComponents:   affectedComponents,
		BreakingChanges:      breaking,
		RiskScore:            score,
		RiskLevel:            level,
		MitigationStrategies: mitigations,
	}, nil
}

// affectedComponents projects the dependents of the changed file into
// component references: one per call/extends/implements edge symbol, plus
// one per importing file.
func (a *Analyzer) affectedComponents(changedPath string, affectedFiles []string) []ComponentReference {
	var out []ComponentReference
	seen := make(map[string]bool)

	for _, file := range affectedFiles {
		for _, edge := range a.graph.EdgesFrom(file) {
			if edge.To != changedPath {
				continue
			}
			name := edge.Symbol
			componentType := ComponentFunction
			if name == "" {
				name = file
				componentType = ComponentVariable
			}
			key := file + "#" + name
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, ComponentReference{
				Type:     componentType,
				Name:     name,
				FilePath: file,
				Location: edge.Location,
			})
		}
		if !seen[file+"#"+file] && len(a.graph.EdgesFrom(file)) == 0 {
			// Transitively affected file with no direct edge to the target.
			seen[file+"#"+file] = true
			out = append(out, ComponentReference{
				Type:     ComponentVariable,
				Name:     file,
				FilePath: file,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// CalculateRiskScore sums the configured factor weights into a 0-100 score
// and buckets it. Every factor is additive and non-negative, so a change
// with strictly more breakage never scores lower.
func (a *Analyzer) CalculateRiskScore(path string, breaking []BreakingChange, affectedComponents int) (float64, RiskLevel) {
	risk := a.cfg.Risk

	score := 0.0
	for _, bc := range breaking {
		switch bc.Severity {
		case SeverityCritical:
			score += risk.BreakingChangeWeight * 2
		case SeverityMajor:
			score += risk.BreakingChangeWeight
		case SeverityMinor:
			score += risk.BreakingChangeWeight * 0.5
		}
	}
	score += float64(affectedComponents) * risk.AffectedComponentWeight

	if matchesAny(a.criticalGlobs, path) ||
		a.graph.IsCritical(util.NormalizePatternPath(path), a.cfg.Protection.CriticalTopK) {
		score += risk.CriticalComponentWeight
	}
	if matchesAny(a.businessGlobs, path) {
		score += risk.BusinessLogicWeight
	}

	if score > 100 {
		score = 100
	}

	switch {
	case score >= risk.CriticalThreshold:
		return score, RiskCritical
	case score >= risk.HighThreshold:
		return score, RiskHigh
	case score >= risk.MediumThreshold:
		return score, RiskMedium
	default:
		return score, RiskLow
	}
}

// BuildImpactMap analyzes every change and folds the results into one
// project-wide assessment.
func (a *Analyzer) BuildImpactMap(ctx context.Context, changes []CodeChange) (ImpactMap, error) {
	ctx, span := a.tracer.Start(ctx, "impact.BuildImpactMap",
		trace.WithAttributes(attribute.Int("impact.changes", len(changes))))
	defer span.End()

	result := ImpactMap{
		Summary: ImpactSummary{
			TotalChanges:     len(changes),
			RiskDistribution: make(map[RiskLevel]int),
			HighestRisk:      RiskLow,
		},
	}

	files := make(map[string]bool)
	components := make(map[string]bool)
	critical := make(map[string]bool)

	for _, change := range changes {
		analysis, err := a.AnalyzeChange(ctx, change)
		if err != nil {
			return ImpactMap{}, err
		}
		result.Analyses = append(result.Analyses, analysis)

		for _, f := range analysis.AffectedFiles {
			files[f] = true
		}
		for _, c := range analysis.AffectedComponents {
			components[c.FilePath+"#"+c.Name] = true
		}
		result.Summary.RiskDistribution[analysis.RiskLevel]++
		if riskRank(analysis.RiskLevel) > riskRank(result.Summary.HighestRisk) {
			result.Summary.HighestRisk = analysis.RiskLevel
		}
		if matchesAny(a.criticalGlobs, change.FilePath) ||
			a.graph.IsCritical(util.NormalizePatternPath(change.FilePath), a.cfg.Protection.CriticalTopK) {
			critical[change.FilePath] = true
		}
	}

	result.Summary.TotalAffectedFiles = len(files)
	result.Summary.TotalAffectedComponents = len(components)
	result.Summary.CriticalComponents = util.SortedStringKeys(critical)
	return result, nil
}
