package pipeline

import (
	"time"

	"github.com/kailas-cloud/trialmatch/internal/domain/criteria"
	"github.com/kailas-cloud/trialmatch/internal/domain/search/query"
	"github.com/kailas-cloud/trialmatch/internal/domain/terms"
	"github.com/kailas-cloud/trialmatch/internal/domain/trial"
)

// Response is the complete result of one run. It is not modified after Run returns.
type Response struct {
	RequestID        string                 `json:"request_id"`
	PatientProfile   string                 `json:"patient_profile"`
	MaskedProfile    string                 `json:"masked_profile"`
	Keywords         terms.Categorized      `json:"keywords"`
	EnrichedKeywords terms.Enriched         `json:"enriched_keywords"`
	Query            query.Weighted         `json:"search_query"`
	Trials           []trial.Hit            `json:"trials"`
	Results          []criteria.TrialResult `json:"results,omitempty"`
	Summary          criteria.Summary       `json:"summary"`
	Warnings         []string               `json:"warnings"`
	Cached           CacheFlags             `json:"cached"`
	ProcessingTime   float64                `json:"processing_time"`
	CreatedAt        time.Time              `json:"created_at"`
}

// CacheFlags reports which stages were served from the cache.
type CacheFlags struct {
	Extraction bool `json:"extraction"`
	Enrichment bool `json:"enrichment"`
}

// NCTIDs returns the trial ids in result order.
func (r *Response) NCTIDs() []string {
	ids := make([]string, len(r.Trials))
	for i, t := range r.Trials {
		ids[i] = t.NCTID
	}
	return ids
}
