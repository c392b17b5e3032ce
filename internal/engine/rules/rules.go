// Package rules executes configurable validation rules against a change
// and its analysis context. The rule set is an explicit value injected at
// construction; there is no process-wide registry.
package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/gobwas/glob"
	"github.com/prometheus/client_golang/prometheus"

	"guardrail/internal/core/config"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/impact"
	"guardrail/internal/engine/parser"
	"guardrail/internal/engine/similarity"
	"guardrail/internal/shared/observability"
	"guardrail/internal/shared/util"
)

type Category string

const (
	CategoryBreakingChange Category = "breaking-change"
	CategoryDuplication    Category = "duplication"
	CategoryDependency     Category = "dependency"
	CategoryAssumption     Category = "assumption"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// severityOrder sorts error before warning before info.
func severityOrder(s Severity) int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Context is the read-only input a rule executes against. Rules may call
// back into the analyzer or detector but never mutate the context.
type Context struct {
	Change   impact.CodeChange
	Analysis *impact.ImpactAnalysis
	Graph    *graph.Graph
	Analyzer *impact.Analyzer
	Detector *similarity.Detector
	Parser   *parser.Parser
	Config   *config.Config
}

// Result is one rule verdict. A rule produces zero or one result per
// context.
type Result struct {
	RuleID      string
	Severity    Severity
	Message     string
	Location    parser.Location
	Suggestions []string
	AutoFixable bool
}

// Rule is the capability every validation rule implements. Category and
// DefaultSeverity are discriminants used for filtering and configuration,
// not for dispatch.
type Rule interface {
	ID() string
	Category() Category
	DefaultSeverity() Severity
	Execute(ctx context.Context, vc *Context) (*Result, error)
}

// Engine holds an injected rule set plus per-rule configuration.
type Engine struct {
	rules    []Rule
	configs  config.RuleConfigs
	pathSets map[string][]glob.Glob
}

func NewEngine(rules []Rule, configs config.RuleConfigs) *Engine {
	e := &Engine{configs: config.RuleConfigs{}}
	e.Configure(configs)
	for _, r := range rules {
		e.Register(r)
	}
	return e
}

// Register appends a rule. Later registrations with the same id shadow
// earlier ones during filtering.
func (e *Engine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Configure replaces the per-rule configuration and recompiles path globs.
func (e *Engine) Configure(configs config.RuleConfigs) {
	if configs == nil {
		configs = config.RuleConfigs{}
	}
	e.configs = configs
	e.pathSets = make(map[string][]glob.Glob, len(configs))
	for id, rc := range configs {
		globs := make([]glob.Glob, 0, len(rc.Paths))
		for _, pattern := range rc.Paths {
			if g, err := glob.Compile(pattern, '/'); err == nil {
				globs = append(globs, g)
			}
		}
		e.pathSets[id] = globs
	}
}

// Rules returns the registered rule set in registration order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// ApplicableRules filters the rule set for one context: a rule applies
// unless its configuration disables it or restricts it to paths the changed
// file does not match.
func (e *Engine) ApplicableRules(vc *Context) []Rule {
	var out []Rule
	for _, rule := range e.rules {
		rc, configured := e.configs[rule.ID()]
		if configured && rc.Enabled != nil && !*rc.Enabled {
			continue
		}
		globs := e.pathSets[rule.ID()]
		if len(globs) > 0 {
			norm := util.NormalizePatternPath(vc.Change.FilePath)
			matched := false
			for _, g := range globs {
				if g.Match(norm) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, rule)
	}
	return out
}

// effectiveSeverity applies a configured severity override.
func (e *Engine) effectiveSeverity(rule Rule) Severity {
	if rc, ok := e.configs[rule.ID()]; ok && rc.Severity != "" {
		return Severity(rc.Severity)
	}
	return rule.DefaultSeverity()
}

// ExecuteRules runs every applicable rule. A rule that errors or panics is
// converted into an info-severity result naming the rule; the batch never
// aborts and no result is dropped. Results come back sorted by severity
// (error, warning, info) then by file path.
func (e *Engine) ExecuteRules(ctx context.Context, vc *Context) []Result {
	var results []Result

	for _, rule := range e.ApplicableRules(vc) {
		result, err := e.executeOne(ctx, rule, vc)
		outcome := "pass"
		switch {
		case err != nil:
			outcome = "failed"
			results = append(results, Result{
				RuleID:   rule.ID(),
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("rule %q failed to execute: %v", rule.ID(), err),
				Location: parser.Location{File: vc.Change.FilePath},
			})
		case result != nil:
			outcome = "violation"
			result.RuleID = rule.ID()
			if result.Severity == "" {
				result.Severity = e.effectiveSeverity(rule)
			}
			results = append(results, *result)
		}
		observability.RuleExecutionsTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
	}

	sort.SliceStable(results, func(i, j int) bool {
		if severityOrder(results[i].Severity) != severityOrder(results[j].Severity) {
			return severityOrder(results[i].Severity) < severityOrder(results[j].Severity)
		}
		return results[i].Location.File < results[j].Location.File
	})
	return results
}

func (e *Engine) executeOne(ctx context.Context, rule Rule, vc *Context) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return rule.Execute(ctx, vc)
}
