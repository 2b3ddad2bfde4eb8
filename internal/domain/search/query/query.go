package query

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/kailas-cloud/trialmatch/internal/domain/terms"
)

// Field is a searchable trial document field.
type Field string

// Searchable fields.
const (
	BriefTitle    Field = "brief_title"
	OfficialTitle Field = "official_title"
	Conditions    Field = "conditions"
	Interventions Field = "interventions"
	Keywords      Field = "keywords"
)

// Boost is a per-field weight.
type Boost struct {
	Field  Field
	Weight float64
}

// Boosts is an ordered list of field weights.
type Boosts []Boost

// DefaultPrimaryBoosts weights fields for original extracted terms.
func DefaultPrimaryBoosts() Boosts {
	return Boosts{
		{BriefTitle, 3},
		{OfficialTitle, 2.5},
		{Conditions, 2},
		{Interventions, 2},
		{Keywords, 1.5},
	}
}

// DefaultSecondaryBoosts weights fields for enrichment expansions.
func DefaultSecondaryBoosts() Boosts {
	return Boosts{
		{BriefTitle, 1.5},
		{OfficialTitle, 1.2},
		{Conditions, 1},
		{Interventions, 1},
		{Keywords, 0.8},
	}
}

// Weight returns the weight of a field.
func (b Boosts) Weight(f Field) (float64, bool) {
	for _, x := range b {
		if x.Field == f {
			return x.Weight, true
		}
	}
	return 0, false
}

// Validate checks weights are positive and that every field shared with
// secondary carries a strictly higher weight here.
func (b Boosts) Validate(secondary Boosts) error {
	if len(b) == 0 {
		return fmt.Errorf("primary boosts are empty")
	}
	for _, set := range []Boosts{b, secondary} {
		seen := make(map[Field]struct{}, len(set))
		for _, x := range set {
			if x.Field == "" {
				return fmt.Errorf("boost with empty field")
			}
			if x.Weight <= 0 {
				return fmt.Errorf("boost for %s must be positive, got %g", x.Field, x.Weight)
			}
			if _, dup := seen[x.Field]; dup {
				return fmt.Errorf("duplicate boost for %s", x.Field)
			}
			seen[x.Field] = struct{}{}
		}
	}
	for _, s := range secondary {
		p, ok := b.Weight(s.Field)
		if ok && p <= s.Weight {
			return fmt.Errorf("field %s: primary boost %g must exceed secondary boost %g", s.Field, p, s.Weight)
		}
	}
	return nil
}

// MarshalJSON renders boosts as a field → weight object.
func (b Boosts) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, len(b))
	for _, x := range b {
		m[string(x.Field)] = x.Weight
	}
	return json.Marshal(m)
}

// EmptyTermsPolicy decides what happens when no usable search terms remain.
type EmptyTermsPolicy string

// Policies for an empty term set.
const (
	// MatchAll retrieves every trial, ranked by the engine default.
	MatchAll EmptyTermsPolicy = "match_all"
	// NoResults skips retrieval and returns an empty list.
	NoResults EmptyTermsPolicy = "no_results"
)

// IsValid checks if the policy is one of the supported values.
func (p EmptyTermsPolicy) IsValid() bool {
	return p == MatchAll || p == NoResults
}

// Options tune query construction. Zero values select the defaults.
type Options struct {
	PrimaryBoosts    Boosts
	SecondaryBoosts  Boosts
	EmptyTermsPolicy EmptyTermsPolicy
}

// Weighted is an engine-independent description of a boosted query.
type Weighted struct {
	Primary         []string         `json:"primary_terms"`
	Secondary       []string         `json:"secondary_terms"`
	PrimaryBoosts   Boosts           `json:"primary_boosts"`
	SecondaryBoosts Boosts           `json:"secondary_boosts"`
	MatchAll        bool             `json:"match_all"`
	Policy          EmptyTermsPolicy `json:"empty_terms_policy"`
	Warnings        []string         `json:"warnings,omitempty"`
}

// HasSecondary reports whether an optional expansion clause is present.
func (w Weighted) HasSecondary() bool { return len(w.Secondary) > 0 }

// SkipRetrieval reports whether the query matches nothing by policy.
func (w Weighted) SkipRetrieval() bool { return len(w.Primary) == 0 && !w.MatchAll }

// WarnNoTerms is attached when the query falls back for lack of terms.
const WarnNoTerms = "no usable search terms"

// Build combines categorized terms (required clause) with their expansions
// (optional clause). Expansions already present as primary terms are dropped.
func Build(cats terms.Categorized, enriched terms.Enriched, opts Options) Weighted {
	primaryBoosts := opts.PrimaryBoosts
	if len(primaryBoosts) == 0 {
		primaryBoosts = DefaultPrimaryBoosts()
	}
	secondaryBoosts := opts.SecondaryBoosts
	if len(secondaryBoosts) == 0 {
		secondaryBoosts = DefaultSecondaryBoosts()
	}
	policy := opts.EmptyTermsPolicy
	if !policy.IsValid() {
		policy = MatchAll
	}

	primary := searchable(cats.Flatten())
	inPrimary := make(map[string]struct{}, len(primary))
	for _, p := range primary {
		inPrimary[strings.ToLower(p)] = struct{}{}
	}

	var secondary []string
	for _, s := range searchable(terms.Clean(enriched.Expansions(primary))) {
		if _, dup := inPrimary[strings.ToLower(s)]; !dup {
			secondary = append(secondary, s)
		}
	}

	w := Weighted{
		Primary:         primary,
		Secondary:       secondary,
		PrimaryBoosts:   primaryBoosts,
		SecondaryBoosts: secondaryBoosts,
		Policy:          policy,
	}
	if w.Secondary == nil {
		w.Secondary = []string{}
	}

	if len(primary) == 0 {
		// expansions without a required clause would invert the ranking
		w.Secondary = []string{}
		switch policy {
		case NoResults:
			w.Warnings = append(w.Warnings, WarnNoTerms+"; returning no results")
		default:
			w.MatchAll = true
			w.Warnings = append(w.Warnings, WarnNoTerms+"; matching all trials")
		}
	}
	return w
}

// searchable keeps terms that contain at least one letter or digit. The index
// tokenizer splits on everything else, so other terms can never match.
func searchable(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if strings.IndexFunc(t, isWordRune) >= 0 {
			out = append(out, t)
		}
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
