// Package metrics exposes Prometheus counters for imports and store writes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spares",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Import rows broken down by import mode and outcome.",
	}, []string{"mode", "outcome"})

	importDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spares",
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Wall time of reconciliation runs, planning and writes included.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"mode"})

	storeChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spares",
		Subsystem: "store",
		Name:      "chunks_total",
		Help:      "Batch commits sent to the document store, by outcome.",
	}, []string{"outcome"})

	snapshotReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spares",
		Subsystem: "snapshot",
		Name:      "reloads_total",
		Help:      "Item collection refreshes, by source (push, pull or push_dropped).",
	}, []string{"source"})
)

// Outcomes used for import row counts.
const (
	OutcomeCreated      = "created"
	OutcomeUpdated      = "updated"
	OutcomeUnchanged    = "unchanged"
	OutcomeNotAttempted = "not_attempted"
)

// RecordImport adds the row outcomes of one import.
func RecordImport(mode string, counts map[string]int, took time.Duration) {
	for outcome, n := range counts {
		if n > 0 {
			importRows.WithLabelValues(mode, outcome).Add(float64(n))
		}
	}
	importDuration.WithLabelValues(mode).Observe(took.Seconds())
}

// RecordChunk counts one batch commit.
func RecordChunk(ok bool) {
	outcome := "committed"
	if !ok {
		outcome = "failed"
	}
	storeChunks.WithLabelValues(outcome).Inc()
}

// RecordSnapshotReload counts a refresh of the item collection.
func RecordSnapshotReload(source string) {
	if source == "" {
		source = "pull"
	}
	snapshotReloads.WithLabelValues(source).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
