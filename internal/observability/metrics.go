package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	SaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "loomline_save_seconds",
		Help:    "Time spent synchronising a snapshot into the graph file.",
		Buckets: prometheus.DefBuckets,
	})

	LoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "loomline_load_seconds",
		Help:    "Time spent loading a snapshot from the graph file.",
		Buckets: prometheus.DefBuckets,
	})

	RowsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loomline_rows_written_total",
		Help: "Row writes applied by the synchronisation engine.",
	}, []string{"table", "op"})

	NoopSavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loomline_noop_saves_total",
		Help: "Saves where the diff required no node or edge writes.",
	})

	FileSwitchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loomline_file_switches_total",
		Help: "Completed switches between graph files.",
	})
)
