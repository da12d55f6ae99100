package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// Register registers encoder, search and ingest metrics with the default
// registry. HTTP metrics register themselves on import. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EncoderRequestsTotal,
			EncoderRequestDuration,
			EncoderErrorsTotal,
			EmbeddingTokensTotal,
			EmbeddingCacheTotal,
			SearchDuration,
			SearchCandidates,
			IngestItemsTotal,
			IngestJobsInFlight,
		)
	})
}
