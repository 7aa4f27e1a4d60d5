package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/codememory-mcp/pkg/types"
)

var (
	filesDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codememory_files_discovered_total",
		Help: "Total number of source files discovered by index runs.",
	})

	filesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codememory_files_extracted_total",
		Help: "Total number of files whose facts were re-extracted.",
	})

	filesReused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codememory_files_reused_total",
		Help: "Total number of files served from the incremental cache.",
	})

	filesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codememory_files_failed_total",
		Help: "Total number of files skipped because they could not be read.",
	})

	extractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codememory_extraction_seconds",
		Help:    "Time spent extracting facts from a source file.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"language"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "codememory_index_run_seconds",
		Help:    "Duration of complete index runs.",
		Buckets: prometheus.DefBuckets,
	})

	projectMemorySize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "codememory_project_memory_entries",
		Help: "Size of each section of the last built project memory.",
	}, []string{"section"})

	// RelevanceQueries counts relevant-memory lookups served to callers
	RelevanceQueries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codememory_relevance_queries_total",
		Help: "Total number of relevant-memory queries.",
	})
)

func recordProjectMemory(pm *types.ProjectMemory) {
	projectMemorySize.WithLabelValues("files").Set(float64(pm.FileCount))
	projectMemorySize.WithLabelValues("global_symbols").Set(float64(len(pm.GlobalSymbols)))
	projectMemorySize.WithLabelValues("open_items").Set(float64(len(pm.OpenItems)))
	projectMemorySize.WithLabelValues("links").Set(float64(len(pm.Links)))
}
