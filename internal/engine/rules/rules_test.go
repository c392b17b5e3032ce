package rules

import (
	"context"
	"errors"
	"testing"

	"guardrail/internal/core/config"
	"guardrail/internal/engine/impact"
	"guardrail/internal/engine/parser"
)

type stubRule struct {
	id       string
	category Category
	severity Severity
	result   *Result
	err      error
	panics   bool
}

func (s *stubRule) ID() string                { return s.id }
func (s *stubRule) Category() Category        { return s.category }
func (s *stubRule) DefaultSeverity() Severity { return s.severity }

func (s *stubRule) Execute(ctx context.Context, vc *Context) (*Result, error) {
	if s.panics {
		panic("rule exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func testContext(path string) *Context {
	return &Context{
		Change: impact.CodeChange{ID: "c1", Type: impact.ChangeModify, FilePath: path},
		Config: config.Default(),
	}
}

func TestApplicableRulesPathFilter(t *testing.T) {
	apiRule := &stubRule{id: "api-only", severity: SeverityError}
	anyRule := &stubRule{id: "anywhere", severity: SeverityInfo}

	e := NewEngine([]Rule{apiRule, anyRule}, config.RuleConfigs{
		"api-only": {Paths: []string{"src/api/**"}},
	})

	applicable := e.ApplicableRules(testContext("src/api/users.ts"))
	if len(applicable) != 2 {
		t.Errorf("api path should match both rules, got %d", len(applicable))
	}

	applicable = e.ApplicableRules(testContext("src/core/math.ts"))
	if len(applicable) != 1 || applicable[0].ID() != "anywhere" {
		t.Errorf("non-api path should only match the unscoped rule: %v", applicable)
	}
}

func TestDisabledRuleSkipped(t *testing.T) {
	disabled := false
	e := NewEngine([]Rule{&stubRule{id: "off", severity: SeverityError}}, config.RuleConfigs{
		"off": {Enabled: &disabled},
	})
	if got := e.ApplicableRules(testContext("a.ts")); len(got) != 0 {
		t.Errorf("disabled rule still applicable: %v", got)
	}
}

func TestExecuteRulesSortsBySeverityThenPath(t *testing.T) {
	e := NewEngine([]Rule{
		&stubRule{id: "info-rule", severity: SeverityInfo, result: &Result{
			Severity: SeverityInfo, Message: "i", Location: parser.Location{File: "a.ts"},
		}},
		&stubRule{id: "warn-b", severity: SeverityWarning, result: &Result{
			Severity: SeverityWarning, Message: "w", Location: parser.Location{File: "b.ts"},
		}},
		&stubRule{id: "warn-a", severity: SeverityWarning, result: &Result{
			Severity: SeverityWarning, Message: "w", Location: parser.Location{File: "a.ts"},
		}},
		&stubRule{id: "error-rule", severity: SeverityError, result: &Result{
			Severity: SeverityError, Message: "e", Location: parser.Location{File: "z.ts"},
		}},
	}, nil)

	results := e.ExecuteRules(context.Background(), testContext("x.ts"))
	if len(results) != 4 {
		t.Fatalf("results = %d, want 4", len(results))
	}
	order := []string{"error-rule", "warn-a", "warn-b", "info-rule"}
	for i, want := range order {
		if results[i].RuleID != want {
			t.Errorf("results[%d] = %s, want %s", i, results[i].RuleID, want)
		}
	}
}

func TestFailingRuleBecomesInfoResult(t *testing.T) {
	e := NewEngine([]Rule{
		&stubRule{id: "broken", severity: SeverityError, err: errors.New("boom")},
		&stubRule{id: "panicky", severity: SeverityError, panics: true},
		&stubRule{id: "fine", severity: SeverityError, result: &Result{
			Severity: SeverityError, Message: "real finding",
		}},
	}, nil)

	results := e.ExecuteRules(context.Background(), testContext("a.ts"))
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3 (failures surfaced, batch not aborted)", len(results))
	}

	byID := map[string]Result{}
	for _, r := range results {
		byID[r.RuleID] = r
	}
	for _, id := range []string{"broken", "panicky"} {
		r, ok := byID[id]
		if !ok {
			t.Fatalf("no result for failed rule %s", id)
		}
		if r.Severity != SeverityInfo {
			t.Errorf("%s severity = %s, want info", id, r.Severity)
		}
	}
	if byID["fine"].Severity != SeverityError {
		t.Error("healthy rule result was mangled")
	}
}

func TestConfiguredSeverityOverride(t *testing.T) {
	e := NewEngine([]Rule{
		&stubRule{id: "tunable", severity: SeverityError, result: &Result{Message: "m"}},
	}, config.RuleConfigs{
		"tunable": {Severity: "warning"},
	})

	results := e.ExecuteRules(context.Background(), testContext("a.ts"))
	if len(results) != 1 || results[0].Severity != SeverityWarning {
		t.Errorf("configured severity not applied: %+v", results)
	}
}
