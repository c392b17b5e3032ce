// Package config loads and validates the engine configuration. The config
// is a closed struct decoded from TOML once at startup; nothing downstream
// re-parses or duck-types configuration values.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Version    int         `toml:"version"`
	Paths      Paths       `toml:"paths"`
	Cache      Cache       `toml:"cache"`
	Scan       Scan        `toml:"scan"`
	Watch      Watch       `toml:"watch"`
	Protection Protection  `toml:"protection"`
	Similarity Similarity  `toml:"similarity"`
	Risk       Risk        `toml:"risk"`
	Rules      RuleConfigs `toml:"rules"`
}

// RuleConfigs maps rule IDs onto their per-rule configuration.
type RuleConfigs = map[string]RuleConfig

type Paths struct {
	ProjectRoot  string            `toml:"project_root"`
	GoModulePath string            `toml:"go_module_path"`
	Aliases      map[string]string `toml:"aliases"`
}

type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Scan struct {
	Workers        int      `toml:"workers"`
	ExcludeDirs    []string `toml:"exclude_dirs"`
	ExcludeGlobs   []string `toml:"exclude_globs"`
	TraversalDepth int      `toml:"traversal_depth"`
}

type Watch struct {
	Enabled  bool          `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
	// MaxEventsPerSecond throttles bursty editors and branch switches.
	MaxEventsPerSecond float64 `toml:"max_events_per_second"`
}

// ProtectionLevel controls how aggressively a category of code is guarded.
type ProtectionLevel string

const (
	ProtectionStrict     ProtectionLevel = "strict"
	ProtectionModerate   ProtectionLevel = "moderate"
	ProtectionPermissive ProtectionLevel = "permissive"
)

type Protection struct {
	Database      ProtectionLevel `toml:"database"`
	API           ProtectionLevel `toml:"api"`
	SharedTypes   ProtectionLevel `toml:"shared_types"`
	BusinessLogic ProtectionLevel `toml:"business_logic"`

	// CriticalComponents are file-path globs whose changes always weigh
	// into risk scoring.
	CriticalComponents []string `toml:"critical_components"`
	// BusinessLogicPaths mark where domain rules live.
	BusinessLogicPaths []string `toml:"business_logic_paths"`
	// CriticalTopK bounds how many graph-ranked files count as critical.
	CriticalTopK int `toml:"critical_top_k"`
}

type Similarity struct {
	FunctionSignatureThreshold  float64 `toml:"function_signature_threshold"`
	SemanticSimilarityThreshold float64 `toml:"semantic_similarity_threshold"`
	BusinessLogicThreshold      float64 `toml:"business_logic_threshold"`
	MaxResults                  int     `toml:"max_results"`
	IncludeExternalPackages     bool    `toml:"include_external_packages"`
}

type Risk struct {
	// Weights sum the per-factor contributions into a 0-100 score.
	BreakingChangeWeight    float64 `toml:"breaking_change_weight"`
	AffectedComponentWeight float64 `toml:"affected_component_weight"`
	CriticalComponentWeight float64 `toml:"critical_component_weight"`
	BusinessLogicWeight     float64 `toml:"business_logic_weight"`

	// Bucket thresholds on the summed score.
	MediumThreshold   float64 `toml:"medium_threshold"`
	HighThreshold     float64 `toml:"high_threshold"`
	CriticalThreshold float64 `toml:"critical_threshold"`
}

type RuleConfig struct {
	Enabled  *bool             `toml:"enabled"`
	Severity string            `toml:"severity"`
	Paths    []string          `toml:"paths"`
	Params   map[string]string `toml:"params"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.Paths.ProjectRoot) == "" {
		cfg.Paths.ProjectRoot = "."
	}

	if strings.TrimSpace(cfg.Cache.Path) == "" {
		cfg.Cache.Path = "data/cache/analyses.db"
	}

	if cfg.Scan.Workers <= 0 {
		cfg.Scan.Workers = 4
	}
	if len(cfg.Scan.ExcludeDirs) == 0 {
		cfg.Scan.ExcludeDirs = []string{
			".git", "node_modules", "vendor", "dist", "build",
			"third_party", ".venv", "site-packages", "__pycache__",
		}
	}
	if cfg.Scan.TraversalDepth == 0 {
		cfg.Scan.TraversalDepth = 10
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if cfg.Watch.MaxEventsPerSecond <= 0 {
		cfg.Watch.MaxEventsPerSecond = 20
	}

	if cfg.Protection.Database == "" {
		cfg.Protection.Database = ProtectionStrict
	}
	if cfg.Protection.API == "" {
		cfg.Protection.API = ProtectionStrict
	}
	if cfg.Protection.SharedTypes == "" {
		cfg.Protection.SharedTypes = ProtectionModerate
	}
	if cfg.Protection.BusinessLogic == "" {
		cfg.Protection.BusinessLogic = ProtectionModerate
	}
	if cfg.Protection.CriticalTopK <= 0 {
		cfg.Protection.CriticalTopK = 10
	}

	if cfg.Similarity.FunctionSignatureThreshold == 0 {
		cfg.Similarity.FunctionSignatureThreshold = 0.75
	}
	if cfg.Similarity.SemanticSimilarityThreshold == 0 {
		cfg.Similarity.SemanticSimilarityThreshold = 0.7
	}
	if cfg.Similarity.BusinessLogicThreshold == 0 {
		cfg.Similarity.BusinessLogicThreshold = 0.6
	}
	if cfg.Similarity.MaxResults <= 0 {
		cfg.Similarity.MaxResults = 10
	}

	if cfg.Risk.BreakingChangeWeight == 0 {
		cfg.Risk.BreakingChangeWeight = 15
	}
	if cfg.Risk.AffectedComponentWeight == 0 {
		cfg.Risk.AffectedComponentWeight = 2
	}
	if cfg.Risk.CriticalComponentWeight == 0 {
		cfg.Risk.CriticalComponentWeight = 25
	}
	if cfg.Risk.BusinessLogicWeight == 0 {
		cfg.Risk.BusinessLogicWeight = 15
	}
	if cfg.Risk.MediumThreshold == 0 {
		cfg.Risk.MediumThreshold = 25
	}
	if cfg.Risk.HighThreshold == 0 {
		cfg.Risk.HighThreshold = 50
	}
	if cfg.Risk.CriticalThreshold == 0 {
		cfg.Risk.CriticalThreshold = 75
	}

	if cfg.Rules == nil {
		cfg.Rules = make(map[string]RuleConfig)
	}
}
