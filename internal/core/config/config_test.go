package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guardrail.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Version != 1 {
		t.Errorf("version = %d, want 1", cfg.Version)
	}
	if cfg.Scan.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Scan.Workers)
	}
	if cfg.Similarity.FunctionSignatureThreshold != 0.75 {
		t.Errorf("signature threshold = %f", cfg.Similarity.FunctionSignatureThreshold)
	}
	if cfg.Risk.CriticalThreshold != 75 {
		t.Errorf("critical threshold = %f", cfg.Risk.CriticalThreshold)
	}
	if cfg.Protection.Database != ProtectionStrict {
		t.Errorf("database protection = %s, want strict", cfg.Protection.Database)
	}
	if err := validate(cfg); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
version = 1

[scan]
workers = 8

[protection]
database = "permissive"
critical_components = ["src/payments/**"]
business_logic_paths = ["src/services/**"]

[similarity]
semantic_similarity_threshold = 0.8

[rules.no-breaking-api]
severity = "error"
paths = ["src/api/**"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Scan.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Scan.Workers)
	}
	if cfg.Protection.Database != ProtectionPermissive {
		t.Errorf("database protection = %s", cfg.Protection.Database)
	}
	if cfg.Similarity.SemanticSimilarityThreshold != 0.8 {
		t.Errorf("semantic threshold = %f", cfg.Similarity.SemanticSimilarityThreshold)
	}
	// Unset sections keep their defaults.
	if cfg.Similarity.BusinessLogicThreshold != 0.6 {
		t.Errorf("business logic threshold = %f, want default 0.6", cfg.Similarity.BusinessLogicThreshold)
	}
	rc, ok := cfg.Rules["no-breaking-api"]
	if !ok || rc.Severity != "error" {
		t.Errorf("rule config missing or wrong: %+v", rc)
	}
}

func TestLoadRejectsBadProtectionLevel(t *testing.T) {
	path := writeConfig(t, `
version = 1

[protection]
api = "casual"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "protection.api") {
		t.Errorf("expected protection.api error, got %v", err)
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	path := writeConfig(t, `
version = 1

[similarity]
business_logic_threshold = 1.4
`)
	if _, err := Load(path); err == nil {
		t.Error("threshold above 1 must be rejected")
	}
}

func TestLoadRejectsInvertedRiskBuckets(t *testing.T) {
	path := writeConfig(t, `
version = 1

[risk]
medium_threshold = 80.0
high_threshold = 50.0
critical_threshold = 90.0
`)
	if _, err := Load(path); err == nil {
		t.Error("risk buckets out of order must be rejected")
	}
}

func TestLoadRejectsBadRuleSeverity(t *testing.T) {
	path := writeConfig(t, `
version = 1

[rules.dup-check]
severity = "fatal"
`)
	if _, err := Load(path); err == nil {
		t.Error("unknown rule severity must be rejected")
	}
}

func TestLoadRejectsBadGlob(t *testing.T) {
	path := writeConfig(t, `
version = 1

[protection]
critical_components = ["src/[invalid"]
`)
	if _, err := Load(path); err == nil {
		t.Error("uncompilable glob must be rejected")
	}
}
