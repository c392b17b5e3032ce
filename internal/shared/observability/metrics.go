package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guardrail_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	ParseFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardrail_parse_failures_total",
		Help: "Total number of files that degraded to a partial analysis.",
	}, []string{"language"})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guardrail_graph_nodes_total",
		Help: "Total number of nodes in the dependency graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guardrail_graph_edges_total",
		Help: "Total number of edges in the dependency graph.",
	})

	UnresolvedImportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardrail_unresolved_imports_total",
		Help: "Total number of import specifiers that could not be resolved to a file.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guardrail_analysis_seconds",
		Help:    "Time spent on high-level analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	SimilarityQueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardrail_similarity_queries_total",
		Help: "Total number of similarity queries executed against the index.",
	})

	BreakingChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardrail_breaking_changes_total",
		Help: "Total number of breaking changes classified, by severity.",
	}, []string{"severity"})

	RuleExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardrail_rule_executions_total",
		Help: "Total number of validation rule executions, by outcome.",
	}, []string{"outcome"})

	AnalysisCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardrail_analysis_cache_hits_total",
		Help: "Total number of file analyses served from the content-hash cache.",
	})

	AnalysisCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardrail_analysis_cache_misses_total",
		Help: "Total number of file analyses that required a fresh parse.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardrail_watcher_events_total",
		Help: "Total number of file system events received by the invalidation watcher.",
	})
)
