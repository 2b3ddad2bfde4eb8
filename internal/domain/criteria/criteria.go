package criteria

import (
	"fmt"
	"strings"
)

// Type is the section a criterion belongs to.
type Type string

// Criterion sections.
const (
	Inclusion Type = "inclusion"
	Exclusion Type = "exclusion"
	// All labels a holistic verdict over the whole criteria text.
	All Type = "all"
)

// Criterion is a single eligibility line.
type Criterion struct {
	Type Type
	Text string
}

// String renders the criterion the way it is shown to the model.
func (c Criterion) String() string { return string(c.Type) + ": " + c.Text }

// Parse splits raw eligibility text into criteria. Lines before any section
// header count as inclusion criteria; blank lines and headers are skipped.
func Parse(text string) []Criterion {
	var out []Criterion
	section := Inclusion
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "inclusion criteria:"):
			section = Inclusion
			continue
		case strings.HasPrefix(lower, "exclusion criteria:"):
			section = Exclusion
			continue
		}
		out = append(out, Criterion{Type: section, Text: line})
	}
	return out
}

// Classification is the verdict for a criterion or a whole trial.
type Classification string

// Classifications.
const (
	Eligible   Classification = "eligible"
	Ineligible Classification = "ineligible"
	Unknown    Classification = "unknown"
)

// ParseClassification normalizes a model verdict; anything unrecognized is Unknown.
func ParseClassification(s string) Classification {
	switch c := Classification(strings.ToLower(strings.TrimSpace(s))); c {
	case Eligible, Ineligible:
		return c
	default:
		return Unknown
	}
}

// Mode selects per-criterion or holistic classification.
type Mode string

// Classification modes.
const (
	Individual Mode = "individual"
	Whole      Mode = "whole"
)

// ParseMode validates a classification mode; empty means Individual.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Individual, nil
	case Individual, Whole:
		return m, nil
	default:
		return "", fmt.Errorf("classification mode must be %q or %q, got %q", Individual, Whole, s)
	}
}
