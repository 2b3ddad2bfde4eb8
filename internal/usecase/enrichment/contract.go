package enrichment

import (
	"context"
	"encoding/json"

	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/repository/termcache"
)

// LLM is the completion provider used for term expansion.
type LLM interface {
	Complete(ctx context.Context, req domain.LLMRequest) (domain.LLMResult, error)
}

// Cache stores enrichment results keyed by the joined term list.
type Cache interface {
	Get(ctx context.Context, text string, tag termcache.Tag) (json.RawMessage, bool)
	Set(ctx context.Context, text string, tag termcache.Tag, payload any)
}
