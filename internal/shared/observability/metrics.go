package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fortrandep_parsing_seconds",
		Help:    "Time spent reading, preprocessing and scanning a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"preprocessed"})

	FilesParsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fortrandep_files_parsed_total",
		Help: "Total number of source files parsed successfully.",
	})

	FileFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fortrandep_file_failures_total",
		Help: "Total number of source files dropped, by error code.",
	}, []string{"code"})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fortrandep_diagnostics_total",
		Help: "Total number of project diagnostics, by kind.",
	}, []string{"kind"})

	GraphModules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fortrandep_graph_modules",
		Help: "Number of units in the last built dependency graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fortrandep_graph_edges",
		Help: "Number of direct module dependency edges in the last built graph.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fortrandep_analysis_seconds",
		Help:    "Time spent on each generation stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	IncludeCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fortrandep_include_cache_lookups_total",
		Help: "Include file cache lookups, by result.",
	}, []string{"result"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fortrandep_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	RegenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fortrandep_regenerations_total",
		Help: "Dependency file regenerations, by outcome.",
	}, []string{"outcome"})
)
