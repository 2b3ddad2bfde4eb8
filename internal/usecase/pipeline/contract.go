package pipeline

import (
	"context"

	"github.com/kailas-cloud/trialmatch/internal/domain/criteria"
	"github.com/kailas-cloud/trialmatch/internal/domain/search/query"
	"github.com/kailas-cloud/trialmatch/internal/domain/terms"
	"github.com/kailas-cloud/trialmatch/internal/domain/trial"
	"github.com/kailas-cloud/trialmatch/internal/usecase/enrichment"
	"github.com/kailas-cloud/trialmatch/internal/usecase/extraction"
	"github.com/kailas-cloud/trialmatch/internal/usecase/matching"
)

// Masker redacts personal identifiers.
type Masker interface {
	Mask(ctx context.Context, profile string) (string, error)
}

// Extractor produces categorized search terms.
type Extractor interface {
	Extract(ctx context.Context, text string, useCache bool) (extraction.Result, error)
}

// Enricher expands search terms.
type Enricher interface {
	Enrich(ctx context.Context, cats terms.Categorized, useCache bool) (enrichment.Result, error)
}

// Retriever runs weighted queries against the trial index.
type Retriever interface {
	Retrieve(ctx context.Context, q query.Weighted, size, offset int) ([]trial.RawHit, error)
}

// Matcher classifies a patient against trial eligibility criteria.
type Matcher interface {
	MatchTrials(ctx context.Context, profile string, hits []trial.Hit, opts matching.Options) ([]criteria.TrialResult, error)
}
