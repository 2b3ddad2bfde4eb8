package retrieval

import (
	"context"

	"github.com/kailas-cloud/trialmatch/internal/domain/search/query"
	"github.com/kailas-cloud/trialmatch/internal/domain/trial"
)

// Repository is the trial index used for retrieval.
type Repository interface {
	Index() string
	IndexExists(ctx context.Context) (bool, error)
	Search(ctx context.Context, q query.Weighted, size, offset int) ([]trial.RawHit, error)
}
