package pipeline

import (
	"fmt"

	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/domain/criteria"
	"github.com/kailas-cloud/trialmatch/internal/domain/search/query"
)

// Config controls a single pipeline run.
type Config struct {
	MaxTrials           int                    `json:"max_trials"`
	SearchSize          int                    `json:"search_size"`
	SkipMasking         bool                   `json:"skip_masking"`
	UseCache            bool                   `json:"use_cache"`
	UseEnrichedKeywords bool                   `json:"use_enriched_keywords"`
	EmptyTermsPolicy    query.EmptyTermsPolicy `json:"empty_terms_policy"`
	MatchCriteria       bool                   `json:"match_criteria"`
	ClassificationMode  criteria.Mode          `json:"classification_mode"`
	MaxCriteriaPerTrial int                    `json:"max_criteria_per_trial"`
	IncludeReasoning    bool                   `json:"include_reasoning"`
}

// DefaultConfig returns the settings used when a caller supplies none.
func DefaultConfig() Config {
	return Config{
		MaxTrials:           10,
		SearchSize:          20,
		UseCache:            true,
		UseEnrichedKeywords: true,
		EmptyTermsPolicy:    query.MatchAll,
		ClassificationMode:  criteria.Individual,
		MaxCriteriaPerTrial: 10,
		IncludeReasoning:    true,
	}
}

// Validate checks the run settings.
func (c Config) Validate() error {
	if c.MaxTrials <= 0 {
		return fmt.Errorf("max_trials must be positive, got %d: %w", c.MaxTrials, domain.ErrInvalidInput)
	}
	if c.SearchSize < 0 {
		return fmt.Errorf("search_size must not be negative, got %d: %w", c.SearchSize, domain.ErrInvalidInput)
	}
	if c.EmptyTermsPolicy != "" && !c.EmptyTermsPolicy.IsValid() {
		return fmt.Errorf("unknown empty_terms_policy %q: %w", c.EmptyTermsPolicy, domain.ErrInvalidInput)
	}
	if c.ClassificationMode != "" {
		if _, err := criteria.ParseMode(string(c.ClassificationMode)); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
	}
	if c.MaxCriteriaPerTrial < 0 {
		return fmt.Errorf("max_criteria_per_trial must not be negative: %w", domain.ErrInvalidInput)
	}
	return nil
}

// retrievalSize is how many hits are requested before truncation.
func (c Config) retrievalSize() int {
	return max(c.SearchSize, c.MaxTrials)
}

func (c Config) mode() string {
	if c.MatchCriteria {
		return "match"
	}
	return "search"
}
