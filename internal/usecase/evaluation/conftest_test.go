package evaluation

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/kailas-cloud/trialmatch/internal/domain/trial"
	"github.com/kailas-cloud/trialmatch/internal/usecase/pipeline"
)

func set(ids ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// fakeRunner returns fixed NCT ids per profile and mode.
type fakeRunner struct {
	mu       sync.Mutex
	enriched map[string][]string
	basic    map[string][]string
	fail     string
	configs  []pipeline.Config
}

func (r *fakeRunner) Run(_ context.Context, profile string, cfg pipeline.Config) (*pipeline.Response, error) {
	r.mu.Lock()
	r.configs = append(r.configs, cfg)
	r.mu.Unlock()

	if profile == r.fail {
		return nil, errors.New("llm unavailable")
	}
	ids := r.basic[profile]
	if cfg.UseEnrichedKeywords {
		ids = r.enriched[profile]
	}
	hits := make([]trial.Hit, len(ids))
	for i, id := range ids {
		hits[i] = trial.Hit{NCTID: id}
	}
	return &pipeline.Response{Trials: hits}, nil
}
