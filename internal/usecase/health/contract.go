package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexChecker reports whether the trial index exists.
type IndexChecker interface {
	IndexExists(ctx context.Context) (bool, error)
}

// LLMChecker checks LLM provider availability.
type LLMChecker interface {
	HealthCheck(ctx context.Context) error
}
