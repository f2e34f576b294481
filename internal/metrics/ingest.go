package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion Prometheus metrics.
var (
	IngestActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ingestcore",
			Name:      "ingest_actions_total",
			Help:      "Total ingestion writes by action and duplicate level",
		},
		[]string{"collection", "action", "duplicate_level"},
	)

	ChunkDiffTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ingestcore",
			Name:      "chunk_diff_total",
			Help:      "Total chunks written, changed, or removed by a chunked ingestion diff",
		},
		[]string{"collection", "outcome"}, // "unchanged" / "changed" / "added" / "removed"
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers Prometheus ingestion metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestActionsTotal)
	prometheus.MustRegister(ChunkDiffTotal)
	ingestMetricsRegistered = true
}
