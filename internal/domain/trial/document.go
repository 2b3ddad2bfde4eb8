package trial

import (
	"fmt"
	"strings"
)

// Document is a trial record as ingested into the search index.
type Document struct {
	NCTID         string   `json:"nct_id"`
	BriefTitle    string   `json:"brief_title"`
	OfficialTitle string   `json:"official_title"`
	Conditions    []string `json:"conditions"`
	Interventions []string `json:"interventions"`
	Keywords      []string `json:"keywords"`
	BriefSummary  string   `json:"brief_summary"`
}

// Validate checks the document can be stored.
func (d *Document) Validate() error {
	id := strings.TrimSpace(d.NCTID)
	if id == "" {
		return fmt.Errorf("nct_id is required")
	}
	if strings.ContainsAny(id, " \t\n") {
		return fmt.Errorf("nct_id %q contains whitespace", id)
	}
	return nil
}

// Key returns the storage key for the document.
func (d *Document) Key() string { return KeyPrefix + strings.TrimSpace(d.NCTID) }

// Fields renders the document as hash fields.
func (d *Document) Fields() map[string]string {
	return map[string]string{
		FieldNCTID:         strings.TrimSpace(d.NCTID),
		FieldBriefTitle:    d.BriefTitle,
		FieldOfficialTitle: d.OfficialTitle,
		FieldConditions:    EncodeList(d.Conditions),
		FieldInterventions: EncodeList(d.Interventions),
		FieldKeywords:      EncodeList(d.Keywords),
		FieldBriefSummary:  d.BriefSummary,
	}
}
