package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and ingestion Prometheus metrics. kind is "text", "image" or "post".
var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "semsearch",
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds, including query encoding",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"kind", "mode"},
	)

	SearchCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "semsearch",
			Name:      "search_candidates",
			Help:      "Number of stored items compared per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"kind"},
	)

	IngestItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "semsearch",
			Name:      "ingest_items_total",
			Help:      "Ingested items by outcome",
		},
		[]string{"kind", "status"}, // "stored" / "skipped" / "failed"
	)

	IngestJobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "semsearch",
			Name:      "ingest_jobs_in_flight",
			Help:      "Ingestion jobs submitted but not finished",
		},
	)
)
