package trial

import (
	"encoding/json"
	"strings"
)

// Projected document fields.
const (
	FieldNCTID         = "nct_id"
	FieldBriefTitle    = "brief_title"
	FieldOfficialTitle = "official_title"
	FieldConditions    = "conditions"
	FieldInterventions = "interventions"
	FieldKeywords      = "keywords"
	FieldBriefSummary  = "brief_summary"
)

// ProjectedFields lists the fields requested from the search engine.
func ProjectedFields() []string {
	return []string{
		FieldNCTID, FieldBriefTitle, FieldOfficialTitle,
		FieldConditions, FieldInterventions, FieldKeywords, FieldBriefSummary,
	}
}

// KeyPrefix is the storage key prefix for trial documents.
const KeyPrefix = "trial:"

// RawHit is an engine hit before formatting.
type RawHit struct {
	ID     string
	Score  *float64
	Source map[string]string
}

// Hit is a formatted search result.
type Hit struct {
	NCTID          string   `json:"nct_id"`
	Title          *string  `json:"title"`
	Conditions     []string `json:"conditions"`
	Interventions  []string `json:"interventions"`
	Keywords       []string `json:"keywords"`
	Summary        *string  `json:"summary"`
	RelevanceScore float64  `json:"relevance_score"`
}

// Format converts raw hits into result records, preserving order.
func Format(raw []RawHit) []Hit {
	out := make([]Hit, 0, len(raw))
	for _, r := range raw {
		out = append(out, formatOne(r))
	}
	return out
}

func formatOne(r RawHit) Hit {
	h := Hit{
		NCTID:         nctID(r),
		Title:         firstNonEmpty(r.Source[FieldBriefTitle], r.Source[FieldOfficialTitle]),
		Conditions:    ParseList(r.Source[FieldConditions]),
		Interventions: ParseList(r.Source[FieldInterventions]),
		Keywords:      ParseList(r.Source[FieldKeywords]),
		Summary:       firstNonEmpty(r.Source[FieldBriefSummary]),
	}
	if r.Score != nil {
		h.RelevanceScore = *r.Score
	}
	return h
}

func nctID(r RawHit) string {
	if id := strings.TrimSpace(r.Source[FieldNCTID]); id != "" {
		return id
	}
	return strings.TrimPrefix(r.ID, KeyPrefix)
}

func firstNonEmpty(values ...string) *string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return &v
		}
	}
	return nil
}

// ParseList decodes a stored list field. Lists are stored as JSON arrays;
// plain strings separated by ";" or "|" are accepted as well.
func ParseList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	if strings.HasPrefix(s, "[") {
		var list []string
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			return clean(list)
		}
	}
	sep := ";"
	if !strings.Contains(s, ";") && strings.Contains(s, "|") {
		sep = "|"
	}
	return clean(strings.Split(s, sep))
}

// EncodeList is the inverse of ParseList.
func EncodeList(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values) // []string always marshals
	return string(data)
}

func clean(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
