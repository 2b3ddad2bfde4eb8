package masking

import (
	"context"

	"github.com/kailas-cloud/trialmatch/internal/domain"
)

// LLM is the completion provider used to redact identifiers.
type LLM interface {
	Complete(ctx context.Context, req domain.LLMRequest) (domain.LLMResult, error)
}
