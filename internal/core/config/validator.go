package config

import (
	"fmt"

	"github.com/gobwas/glob"
)

func validate(cfg *Config) error {
	if err := validateVersion(cfg); err != nil {
		return err
	}
	if err := validateProtection(cfg); err != nil {
		return err
	}
	if err := validateSimilarity(cfg); err != nil {
		return err
	}
	if err := validateRisk(cfg); err != nil {
		return err
	}
	if err := validateRules(cfg); err != nil {
		return err
	}
	return validateScan(cfg)
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d", cfg.Version)
	}
	return nil
}

func validLevel(l ProtectionLevel) bool {
	switch l {
	case ProtectionStrict, ProtectionModerate, ProtectionPermissive:
		return true
	}
	return false
}

func validateProtection(cfg *Config) error {
	levels := map[string]ProtectionLevel{
		"database":       cfg.Protection.Database,
		"api":            cfg.Protection.API,
		"shared_types":   cfg.Protection.SharedTypes,
		"business_logic": cfg.Protection.BusinessLogic,
	}
	for name, level := range levels {
		if !validLevel(level) {
			return fmt.Errorf("protection.%s: unknown level %q", name, level)
		}
	}
	for _, pattern := range cfg.Protection.CriticalComponents {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("protection.critical_components: bad pattern %q: %w", pattern, err)
		}
	}
	for _, pattern := range cfg.Protection.BusinessLogicPaths {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("protection.business_logic_paths: bad pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validateSimilarity(cfg *Config) error {
	thresholds := map[string]float64{
		"function_signature_threshold":  cfg.Similarity.FunctionSignatureThreshold,
		"semantic_similarity_threshold": cfg.Similarity.SemanticSimilarityThreshold,
		"business_logic_threshold":      cfg.Similarity.BusinessLogicThreshold,
	}
	for name, v := range thresholds {
		if v < 0 || v > 1 {
			return fmt.Errorf("similarity.%s: %f outside [0,1]", name, v)
		}
	}
	return nil
}

func validateRisk(cfg *Config) error {
	if cfg.Risk.MediumThreshold >= cfg.Risk.HighThreshold {
		return fmt.Errorf("risk: medium_threshold %.1f must be below high_threshold %.1f",
			cfg.Risk.MediumThreshold, cfg.Risk.HighThreshold)
	}
	if cfg.Risk.HighThreshold >= cfg.Risk.CriticalThreshold {
		return fmt.Errorf("risk: high_threshold %.1f must be below critical_threshold %.1f",
			cfg.Risk.HighThreshold, cfg.Risk.CriticalThreshold)
	}
	for name, w := range map[string]float64{
		"breaking_change_weight":    cfg.Risk.BreakingChangeWeight,
		"affected_component_weight": cfg.Risk.AffectedComponentWeight,
		"critical_component_weight": cfg.Risk.CriticalComponentWeight,
		"business_logic_weight":     cfg.Risk.BusinessLogicWeight,
	} {
		if w < 0 {
			return fmt.Errorf("risk.%s must not be negative", name)
		}
	}
	return nil
}

func validateRules(cfg *Config) error {
	for id, rc := range cfg.Rules {
		switch rc.Severity {
		case "", "error", "warning", "info":
		default:
			return fmt.Errorf("rules.%s: unknown severity %q", id, rc.Severity)
		}
		for _, pattern := range rc.Paths {
			if _, err := glob.Compile(pattern, '/'); err != nil {
				return fmt.Errorf("rules.%s: bad path pattern %q: %w", id, pattern, err)
			}
		}
	}
	return nil
}

func validateScan(cfg *Config) error {
	if cfg.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be at least 1")
	}
	if cfg.Scan.TraversalDepth < 0 {
		return fmt.Errorf("scan.traversal_depth must not be negative")
	}
	for _, pattern := range cfg.Scan.ExcludeGlobs {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("scan.exclude_globs: bad pattern %q: %w", pattern, err)
		}
	}
	return nil
}
