package matching

import (
	"context"

	"github.com/kailas-cloud/trialmatch/internal/domain"
)

// LLM is the completion provider used for classification.
type LLM interface {
	Complete(ctx context.Context, req domain.LLMRequest) (domain.LLMResult, error)
}

// CriteriaRepository loads raw eligibility text by NCT id. A trial without
// criteria yields an empty string.
type CriteriaRepository interface {
	GetCriteria(ctx context.Context, nctID string) (string, error)
}
