package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks availability of an encoder backend.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
