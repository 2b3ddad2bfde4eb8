package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/domain/search/query"
	"github.com/kailas-cloud/trialmatch/internal/domain/trial"
)

// Service runs weighted queries against the trial index.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// New creates a retrieval service.
func New(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Retrieve returns raw hits in engine order. A missing index is a
// configuration error; search failures are *domain.RetrievalError.
func (s *Service) Retrieve(ctx context.Context, q query.Weighted, size, offset int) ([]trial.RawHit, error) {
	if size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %d: %w", size, domain.ErrInvalidInput)
	}
	if offset < 0 {
		return nil, fmt.Errorf("offset must not be negative, got %d: %w", offset, domain.ErrInvalidInput)
	}

	exists, err := s.repo.IndexExists(ctx)
	if err != nil {
		return nil, domain.NewRetrievalError(s.repo.Index(), fmt.Errorf("check index: %w", err))
	}
	if !exists {
		return nil, fmt.Errorf("index %q does not exist: %w", s.repo.Index(), domain.ErrConfiguration)
	}

	if q.SkipRetrieval() {
		return []trial.RawHit{}, nil
	}

	hits, err := s.repo.Search(ctx, q, size, offset)
	if err != nil {
		return nil, domain.NewRetrievalError(s.repo.Index(), err)
	}

	s.logger.Debug("Trials retrieved",
		zap.String("index", s.repo.Index()),
		zap.Int("primary_terms", len(q.Primary)),
		zap.Int("secondary_terms", len(q.Secondary)),
		zap.Bool("match_all", q.MatchAll),
		zap.Int("hits", len(hits)),
	)
	return hits, nil
}
