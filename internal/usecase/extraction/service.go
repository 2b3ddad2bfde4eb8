package extraction

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/domain/terms"
	"github.com/kailas-cloud/trialmatch/internal/repository/termcache"
	"github.com/kailas-cloud/trialmatch/internal/usecase/llm"
)

const systemPrompt = `You are a medical expert that extracts relevant keywords from patient profiles for clinical trial matching on ClinicalTrials.gov data.
Focus on extracting terms that will be effective for searching a full-text index with the following fields:
- conditions: Diseases, disorders, syndromes, illnesses, or injuries being studied
- interventions: Drugs, medical devices, procedures, vaccines, treatments
- keywords: Specific trial-related terms and abbreviations

Extract only the most relevant and specific terms that would help find matching clinical trials.`

const promptTemplate = `Extract key medical terms from the following masked patient profile that would be effective for searching ClinicalTrials.gov data:
%s

1. CONDITIONS: specific disease names, conditions, syndromes, or health issues, including subtypes, mutations, or variants
   (e.g. "Non Small Cell Lung Cancer", "EGFR Activating Mutation", "Diabetes Type 2")
2. INTERVENTIONS: current or previous treatments, medications, procedures
   (e.g. "Osimertinib", "Chemotherapy", "Radiation Therapy", "Surgery")
3. KEYWORDS: trial-relevant terms, abbreviations, and identifiers
   (e.g. "NSCLC", "EGFR", "Adjuvant", "Metastatic")
4. BIOMARKERS: genetic markers, molecular characteristics, or test results
   (e.g. "EGFR DEL19", "EGFR L858R", "PD-L1 positive", "ALK fusion")
5. DEMOGRAPHICS: demographic information relevant to eligibility
   (age ranges, gender, performance status)

Return the keywords as a JSON object with exactly these keys:
{
    "conditions": [],
    "interventions": [],
    "keywords": [],
    "biomarkers": [],
    "demographics": []
}

Extract only specific terms that would appear in ClinicalTrials.gov data, including both full names and common abbreviations.`

// Result is the extractor output.
type Result struct {
	Terms   terms.Categorized
	Cached  bool
	Outcome domain.Outcome
}

// Extractor turns a (masked) profile into categorized search terms.
type Extractor struct {
	llm    LLM
	cache  Cache
	logger *zap.Logger
}

// New creates an extractor. cache can be nil.
func New(llm LLM, cache Cache, logger *zap.Logger) *Extractor {
	return &Extractor{llm: llm, cache: cache, logger: logger}
}

// Extract returns categorized terms for text. An unparseable reply yields an
// all-empty degraded result that is not cached; transport errors are returned.
func (e *Extractor) Extract(ctx context.Context, text string, useCache bool) (Result, error) {
	useCache = useCache && e.cache != nil

	if useCache {
		if raw, ok := e.cache.Get(ctx, text, termcache.TagExtraction); ok {
			var cats terms.Categorized
			if err := json.Unmarshal(raw, &cats); err == nil {
				return Result{Terms: cats, Cached: true}, nil
			}
			e.logger.Warn("Ignoring unreadable cached extraction")
		}
	}

	res, err := e.llm.Complete(ctx, domain.LLMRequest{
		System: systemPrompt,
		Prompt: fmt.Sprintf(promptTemplate, text),
		JSON:   true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("extract terms: %w", err)
	}

	var cats terms.Categorized
	if err := llm.DecodeJSON(res.Text, &cats); err != nil {
		e.logger.Warn("Extraction reply unparseable, continuing without terms", zap.Error(err))
		return Result{
			Terms:   terms.NewCategorized(nil),
			Outcome: domain.DegradedOutcome("keyword extraction", err),
		}, nil
	}

	if useCache {
		e.cache.Set(ctx, text, termcache.TagExtraction, cats)
	}
	return Result{Terms: cats}, nil
}
