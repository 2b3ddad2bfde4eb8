package extraction

import (
	"context"
	"encoding/json"

	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/repository/termcache"
)

// LLM is the completion provider used for extraction.
type LLM interface {
	Complete(ctx context.Context, req domain.LLMRequest) (domain.LLMResult, error)
}

// Cache stores extraction results keyed by profile text.
type Cache interface {
	Get(ctx context.Context, text string, tag termcache.Tag) (json.RawMessage, bool)
	Set(ctx context.Context, text string, tag termcache.Tag, payload any)
}
