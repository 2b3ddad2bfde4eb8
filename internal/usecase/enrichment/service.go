package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/domain/terms"
	"github.com/kailas-cloud/trialmatch/internal/repository/termcache"
	"github.com/kailas-cloud/trialmatch/internal/usecase/llm"
)

const systemPrompt = `You are a medical expert that expands medical terms to include synonyms and related terms for ClinicalTrials.gov data.
Focus on expanding terms to include common variations, abbreviations, and related medical terminology that would appear in clinical trial descriptions.
Consider MeSH terms, drug brand names, generic names, and common medical abbreviations.`

const promptTemplate = `Expand each of the following medical keywords with synonyms and related terms that would be useful for searching ClinicalTrials.gov data:
%s

Return a JSON object keyed by the keyword exactly as written above:
{
    "<keyword>": {"synonyms": [], "related_terms": []}
}

Guidelines:
- Include both full names and common abbreviations (e.g., "Non Small Cell Lung Cancer" -> "NSCLC")
- Include drug brand names and generic names (e.g., "Osimertinib" -> "Tagrisso", "AZD9291")
- Include MeSH terms and related medical terminology
- Keep terms specific and relevant to clinical trial matching`

// Result is the enricher output.
type Result struct {
	Terms   terms.Enriched
	Cached  bool
	Outcome domain.Outcome
}

// Enricher expands search terms with synonyms and related terms.
type Enricher struct {
	llm       LLM
	cache     Cache
	batchSize int
	logger    *zap.Logger
}

// New creates an enricher. batchSize 0 sends all terms in one call, 1 sends
// one call per term. cache can be nil.
func New(llm LLM, cache Cache, batchSize int, logger *zap.Logger) *Enricher {
	if batchSize < 0 {
		batchSize = 0
	}
	return &Enricher{llm: llm, cache: cache, batchSize: batchSize, logger: logger}
}

// Enrich expands every flattened term. The result always holds every input
// term; terms the model did not expand map to empty sets. A reply that cannot
// be parsed degrades the whole result to empty expansions.
func (e *Enricher) Enrich(ctx context.Context, cats terms.Categorized, useCache bool) (Result, error) {
	flat := cats.Flatten()
	if len(flat) == 0 {
		return Result{Terms: terms.Enriched{}}, nil
	}
	useCache = useCache && e.cache != nil
	cacheText := strings.Join(flat, ", ")

	if useCache {
		if raw, ok := e.cache.Get(ctx, cacheText, termcache.TagEnrichment); ok {
			var cached map[string]terms.Enrichment
			if err := json.Unmarshal(raw, &cached); err == nil {
				return Result{Terms: terms.NewEnriched(flat, cached), Cached: true}, nil
			}
			e.logger.Warn("Ignoring unreadable cached enrichment")
		}
	}

	expansions := make(map[string]terms.Enrichment, len(flat))
	for _, chunk := range chunks(flat, e.batchSize) {
		got, err := e.enrichChunk(ctx, chunk)
		if err != nil {
			if errors.Is(err, domain.ErrSoftParse) {
				e.logger.Warn("Enrichment reply unparseable, continuing without expansions",
					zap.Strings("terms", chunk), zap.Error(err))
				return Result{
					Terms:   terms.EmptyFor(flat),
					Outcome: domain.DegradedOutcome("keyword enrichment", err),
				}, nil
			}
			return Result{}, fmt.Errorf("enrich terms: %w", err)
		}
		for k, v := range got {
			expansions[k] = v
		}
	}

	enriched := terms.NewEnriched(flat, expansions)
	if useCache {
		e.cache.Set(ctx, cacheText, termcache.TagEnrichment, enriched)
	}
	return Result{Terms: enriched}, nil
}

func (e *Enricher) enrichChunk(ctx context.Context, chunk []string) (map[string]terms.Enrichment, error) {
	res, err := e.llm.Complete(ctx, domain.LLMRequest{
		System: systemPrompt,
		Prompt: fmt.Sprintf(promptTemplate, strings.Join(chunk, ", ")),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := llm.DecodeJSON(res.Text, &raw); err != nil {
		return nil, err
	}

	// A single-term chunk may come back as a bare {synonyms, related_terms}.
	if len(chunk) == 1 && isBareEnrichment(raw) {
		var one terms.Enrichment
		if err := llm.DecodeJSON(res.Text, &one); err != nil {
			return nil, err
		}
		return map[string]terms.Enrichment{chunk[0]: one}, nil
	}

	out := make(map[string]terms.Enrichment, len(raw))
	for key, val := range raw {
		var exp terms.Enrichment
		if err := json.Unmarshal(val, &exp); err != nil {
			return nil, fmt.Errorf("%w: term %q: %w", domain.ErrSoftParse, key, err)
		}
		out[key] = exp
	}
	return out, nil
}

func isBareEnrichment(raw map[string]json.RawMessage) bool {
	_, syn := raw["synonyms"]
	_, rel := raw["related_terms"]
	return syn || rel
}

// chunks splits values into groups of size n; n <= 0 yields one group.
func chunks(values []string, n int) [][]string {
	if n <= 0 || n >= len(values) {
		return [][]string{values}
	}
	out := make([][]string, 0, (len(values)+n-1)/n)
	for start := 0; start < len(values); start += n {
		end := min(start+n, len(values))
		out = append(out, values[start:end])
	}
	return out
}
