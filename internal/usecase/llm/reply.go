package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/trialmatch/internal/domain"
)

// StripCodeFences removes a surrounding Markdown code fence, with or without
// a language tag.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	parts := strings.SplitN(s, "\n", 2)
	if len(parts) == 2 {
		s = parts[1]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DecodeJSON parses a model reply into v. Failures wrap domain.ErrSoftParse.
func DecodeJSON(reply string, v any) error {
	clean := StripCodeFences(reply)
	if clean == "" {
		return fmt.Errorf("empty reply: %w", domain.ErrSoftParse)
	}
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSoftParse, err)
	}
	return nil
}
