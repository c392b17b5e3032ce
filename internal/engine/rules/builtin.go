package rules

import (
	"context"
	"fmt"
	"strings"

	"guardrail/internal/core/config"
	"guardrail/internal/engine/impact"
	"guardrail/internal/engine/parser"
)

// Builtin returns the standard rule set. Callers may append their own rules
// before handing the set to NewEngine.
func Builtin() []Rule {
	return []Rule{
		&BreakingChangeRule{},
		&DuplicationRule{},
		&DependencyCycleRule{},
		&UndocumentedRiskRule{},
	}
}

// BreakingChangeRule flags changes whose impact analysis reports breakage.
// Severity escalates with the worst breaking change and with the protection
// level of the touched category.
type BreakingChangeRule struct{}

func (r *BreakingChangeRule) ID() string                { return "no-breaking-changes" }
func (r *BreakingChangeRule) Category() Category        { return CategoryBreakingChange }
func (r *BreakingChangeRule) DefaultSeverity() Severity { return SeverityError }

func (r *BreakingChangeRule) Execute(ctx context.Context, vc *Context) (*Result, error) {
	analysis, err := r.analysis(ctx, vc)
	if err != nil {
		return nil, err
	}
	if len(analysis.BreakingChanges) == 0 {
		return nil, nil
	}

	worst := impact.SeverityMinor
	var descriptions []string
	autoFixable := true
	for _, bc := range analysis.BreakingChanges {
		descriptions = append(descriptions, bc.Description)
		if !bc.AutoFixable {
			autoFixable = false
		}
		if bc.Severity == impact.SeverityCritical ||
			(bc.Severity == impact.SeverityMajor && worst != impact.SeverityCritical) {
			worst = bc.Severity
		}
	}

	severity := SeverityWarning
	if worst != impact.SeverityMinor {
		severity = SeverityError
	}
	if vc.Config != nil && protectionFor(vc.Config, vc.Change.FilePath) == config.ProtectionPermissive {
		severity = SeverityWarning
	}

	return &Result{
		Severity:    severity,
		Message:     fmt.Sprintf("%d breaking change(s): %s", len(analysis.BreakingChanges), strings.Join(descriptions, "; ")),
		Location:    parser.Location{File: vc.Change.FilePath},
		Suggestions: analysis.MitigationStrategies,
		AutoFixable: autoFixable,
	}, nil
}

func (r *BreakingChangeRule) analysis(ctx context.Context, vc *Context) (*impact.ImpactAnalysis, error) {
	if vc.Analysis != nil {
		return vc.Analysis, nil
	}
	if vc.Analyzer == nil {
		return nil, fmt.Errorf("no impact analysis available")
	}
	analysis, err := vc.Analyzer.AnalyzeChange(ctx, vc.Change)
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func protectionFor(cfg *config.Config, path string) config.ProtectionLevel {
	lower := strings.ToLower(path)
	switch {
	case strings.Contains(lower, "/migrations/") || strings.Contains(lower, "/schema/"):
		return cfg.Protection.Database
	case strings.Contains(lower, "/api/") || strings.Contains(lower, "/routes/"):
		return cfg.Protection.API
	case strings.Contains(lower, "/types/") || strings.Contains(lower, "/models/"):
		return cfg.Protection.SharedTypes
	default:
		return cfg.Protection.BusinessLogic
	}
}

// DuplicationRule warns when new content near-duplicates indexed code.
type DuplicationRule struct{}

func (r *DuplicationRule) ID() string                { return "no-duplicate-logic" }
func (r *DuplicationRule) Category() Category        { return CategoryDuplication }
func (r *DuplicationRule) DefaultSeverity() Severity { return SeverityWarning }

func (r *DuplicationRule) Execute(ctx context.Context, vc *Context) (*Result, error) {
	if vc.Detector == nil || vc.Parser == nil {
		return nil, nil
	}
	if vc.Change.Type == impact.ChangeDelete || len(vc.Change.NewContent) == 0 {
		return nil, nil
	}

	snippet, err := vc.Parser.ParseFile(vc.Change.FilePath, vc.Change.NewContent)
	if snippet == nil {
		return nil, err
	}
	matches := vc.Detector.Detect(snippet)
	if len(matches) == 0 {
		return nil, nil
	}

	top := matches[0]
	suggestions := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Suggestion != "" {
			suggestions = append(suggestions, m.Suggestion)
		}
	}
	return &Result{
		Severity: SeverityWarning,
		Message: fmt.Sprintf("%.0f%% similar to %s in %s (%s)",
			top.Similarity*100, top.Symbol, top.FilePath, top.Type),
		Location:    parser.Location{File: vc.Change.FilePath},
		Suggestions: suggestions,
	}, nil
}

// DependencyCycleRule reports import cycles through the changed file.
type DependencyCycleRule struct{}

func (r *DependencyCycleRule) ID() string                { return "no-dependency-cycles" }
func (r *DependencyCycleRule) Category() Category        { return CategoryDependency }
func (r *DependencyCycleRule) DefaultSeverity() Severity { return SeverityWarning }

func (r *DependencyCycleRule) Execute(ctx context.Context, vc *Context) (*Result, error) {
	if vc.Graph == nil {
		return nil, nil
	}
	for _, cycle := range vc.Graph.DetectCycles() {
		for _, node := range cycle {
			if node == vc.Change.FilePath {
				return &Result{
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("import cycle through this file: %s", strings.Join(cycle, " -> ")),
					Location: parser.Location{File: vc.Change.FilePath},
					Suggestions: []string{
						"Break the cycle by moving the shared pieces into a module both sides can import",
					},
				}, nil
			}
		}
	}
	return nil, nil
}

// UndocumentedRiskRule asks for a change description when a risky path is
// touched without one. The assumption being checked is that high-impact
// edits are deliberate.
type UndocumentedRiskRule struct{}

func (r *UndocumentedRiskRule) ID() string                { return "describe-risky-changes" }
func (r *UndocumentedRiskRule) Category() Category        { return CategoryAssumption }
func (r *UndocumentedRiskRule) DefaultSeverity() Severity { return SeverityInfo }

func (r *UndocumentedRiskRule) Execute(ctx context.Context, vc *Context) (*Result, error) {
	if strings.TrimSpace(vc.Change.Description) != "" {
		return nil, nil
	}
	if vc.Analysis == nil {
		return nil, nil
	}
	if vc.Analysis.RiskLevel != impact.RiskHigh && vc.Analysis.RiskLevel != impact.RiskCritical {
		return nil, nil
	}
	return &Result{
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("%s-risk change has no description", vc.Analysis.RiskLevel),
		Location: parser.Location{File: vc.Change.FilePath},
		Suggestions: []string{
			"Document why this change is safe for its dependents",
		},
	}, nil
}
