package terms

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Enrichment is the expansion of a single term.
type Enrichment struct {
	Synonyms     []string `json:"synonyms"`
	RelatedTerms []string `json:"related_terms"`
}

// MarshalJSON emits empty arrays instead of null.
func (e Enrichment) MarshalJSON() ([]byte, error) {
	type plain Enrichment
	p := plain{Synonyms: e.Synonyms, RelatedTerms: e.RelatedTerms}
	if p.Synonyms == nil {
		p.Synonyms = []string{}
	}
	if p.RelatedTerms == nil {
		p.RelatedTerms = []string{}
	}
	return json.Marshal(p)
}

// UnmarshalJSON accepts a list or a single string for either field.
func (e *Enrichment) UnmarshalJSON(data []byte) error {
	var raw struct {
		Synonyms     json.RawMessage `json:"synonyms"`
		RelatedTerms json.RawMessage `json:"related_terms"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("enrichment: %w", err)
	}
	syn, err := decodeStringList(raw.Synonyms)
	if err != nil {
		return fmt.Errorf("synonyms: %w", err)
	}
	rel, err := decodeStringList(raw.RelatedTerms)
	if err != nil {
		return fmt.Errorf("related_terms: %w", err)
	}
	*e = Enrichment{Synonyms: syn, RelatedTerms: rel}
	return nil
}

// IsEmpty reports whether the term has no expansions.
func (e Enrichment) IsEmpty() bool {
	return len(e.Synonyms) == 0 && len(e.RelatedTerms) == 0
}

// Enriched maps each original term to its expansions.
type Enriched map[string]Enrichment

// NewEnriched builds an Enriched mapping covering exactly the given terms.
// Expansion keys are matched case-insensitively; keys that are not input terms
// are dropped. Synonyms equal to the term itself are removed.
func NewEnriched(input []string, expansions map[string]Enrichment) Enriched {
	byLower := make(map[string]Enrichment, len(expansions))
	for k, v := range expansions {
		lk := strings.ToLower(strings.TrimSpace(k))
		if prev, ok := byLower[lk]; ok {
			v = Enrichment{
				Synonyms:     slices.Concat(prev.Synonyms, v.Synonyms),
				RelatedTerms: slices.Concat(prev.RelatedTerms, v.RelatedTerms),
			}
		}
		byLower[lk] = v
	}

	out := make(Enriched, len(input))
	for _, term := range Clean(input) {
		exp := byLower[strings.ToLower(term)]
		out[term] = Enrichment{
			Synonyms:     without(Clean(exp.Synonyms), term),
			RelatedTerms: without(Clean(exp.RelatedTerms), term),
		}
	}
	return out
}

// EmptyFor returns a mapping with an empty expansion for every term.
func EmptyFor(input []string) Enriched {
	return NewEnriched(input, nil)
}

// Expansions returns every synonym and related term in the mapping, ordered by
// the given term order, then synonyms before related terms.
func (e Enriched) Expansions(order []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(e))
	for _, term := range order {
		exp, ok := e[term]
		if !ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, exp.Synonyms...)
		out = append(out, exp.RelatedTerms...)
	}
	var rest []string
	for term := range e {
		if _, done := seen[term]; !done {
			rest = append(rest, term)
		}
	}
	sort.Strings(rest)
	for _, term := range rest {
		out = append(out, e[term].Synonyms...)
		out = append(out, e[term].RelatedTerms...)
	}
	return out
}

func without(values []string, term string) []string {
	out := values[:0]
	for _, v := range values {
		if !strings.EqualFold(v, term) {
			out = append(out, v)
		}
	}
	return out
}
