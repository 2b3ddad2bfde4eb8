package terms

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is a closed set of medical term groups.
type Category string

// Category constants. Order follows AllCategories.
const (
	Conditions    Category = "conditions"
	Interventions Category = "interventions"
	Keywords      Category = "keywords"
	Biomarkers    Category = "biomarkers"
	Demographics  Category = "demographics"
)

var allCategories = []Category{Conditions, Interventions, Keywords, Biomarkers, Demographics}

// AllCategories returns every category in canonical order.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// IsValid checks if the category is one of the supported values.
func (c Category) IsValid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Categorized holds extracted terms, one list per category.
// The zero value is an empty record.
type Categorized struct {
	values map[Category][]string
}

// NewCategorized builds a record, cleaning each list with Clean.
// Unknown categories are dropped.
func NewCategorized(in map[Category][]string) Categorized {
	values := make(map[Category][]string, len(allCategories))
	for _, cat := range allCategories {
		values[cat] = Clean(in[cat])
	}
	return Categorized{values: values}
}

// Get returns the terms of a category; never nil.
func (c Categorized) Get(cat Category) []string {
	v := c.values[cat]
	if v == nil {
		return []string{}
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// Flatten returns all terms in category order, deduplicated case-insensitively.
func (c Categorized) Flatten() []string {
	var all []string
	for _, cat := range allCategories {
		all = append(all, c.values[cat]...)
	}
	return Clean(all)
}

// Empty reports whether every category is empty.
func (c Categorized) Empty() bool {
	for _, cat := range allCategories {
		if len(c.values[cat]) > 0 {
			return false
		}
	}
	return true
}

// Count returns the total number of terms across categories.
func (c Categorized) Count() int {
	n := 0
	for _, cat := range allCategories {
		n += len(c.values[cat])
	}
	return n
}

// MarshalJSON always emits all five keys with array values.
func (c Categorized) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(allCategories))
	for _, cat := range allCategories {
		out[string(cat)] = c.Get(cat)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts a JSON object keyed by category. Values may be arrays
// of strings or a single string. Unknown keys are ignored, missing ones are empty.
func (c *Categorized) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("categorized terms: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("categorized terms: expected object")
	}

	in := make(map[Category][]string, len(allCategories))
	for key, val := range raw {
		cat := Category(strings.ToLower(strings.TrimSpace(key)))
		if !cat.IsValid() {
			continue
		}
		list, err := decodeStringList(val)
		if err != nil {
			return fmt.Errorf("category %s: %w", cat, err)
		}
		in[cat] = list
	}
	*c = NewCategorized(in)
	return nil
}

func decodeStringList(val json.RawMessage) ([]string, error) {
	trimmed := strings.TrimSpace(string(val))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var list []any
	if err := json.Unmarshal(val, &list); err != nil {
		var single string
		if err := json.Unmarshal(val, &single); err != nil {
			return nil, fmt.Errorf("expected string or list of strings")
		}
		return []string{single}, nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case float64, bool:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out, nil
}

// Clean trims values, drops empty strings and removes case-insensitive
// duplicates keeping the first spelling. The result is never nil.
func Clean(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
