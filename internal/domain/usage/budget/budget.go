// Package budget describes the LLM token allowance of one provider: how much
// of it is left, and the counter keys that track spending per window.
package budget

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/trialmatch/internal/domain"
)

// Window is the span a token counter covers.
type Window string

// Counter windows.
const (
	Daily   Window = "daily"
	Monthly Window = "monthly"
)

func (w Window) layout() string {
	if w == Daily {
		return "2006-01-02"
	}
	return "2006-01"
}

const keyspace = domain.KeyPrefix + "budget:"

// CounterKey names the counter for tokens a provider spent in the window
// containing t, e.g. trialmatch:budget:openai:daily:2025-03-01.
func CounterKey(provider string, w Window, t time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s", keyspace, provider, w, t.UTC().Format(w.layout()))
}

// WindowOf parses the window out of a counter key.
func WindowOf(key string) (Window, error) {
	rest, ok := strings.CutPrefix(key, keyspace)
	if !ok {
		return "", fmt.Errorf("key %q is outside %s*", key, keyspace)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 3 || parts[0] == "" {
		return "", fmt.Errorf("key %q is not provider:window:date", key)
	}
	w := Window(parts[1])
	if w != Daily && w != Monthly {
		return "", fmt.Errorf("key %q has unknown window %q", key, parts[1])
	}
	if _, err := time.Parse(w.layout(), parts[2]); err != nil {
		return "", fmt.Errorf("key %q date: %w", key, err)
	}
	return w, nil
}

// Budget is a point-in-time view of a token allowance. A zero limit means
// the provider is not capped; remaining is then -1.
type Budget struct {
	limit     int
	remaining int
	resetsAt  int64 // unix millis; the HTTP layer renders it as RFC 3339
}

// New snapshots an allowance that resets at resetsAt (unix millis, 0 if unknown).
func New(limit, remaining int, resetsAt int64) Budget {
	return Budget{limit: limit, remaining: remaining, resetsAt: resetsAt}
}

func (b Budget) TokensLimit() int     { return b.limit }
func (b Budget) TokensRemaining() int { return b.remaining }
func (b Budget) ResetsAt() int64      { return b.resetsAt }

// IsExhausted reports whether a capped allowance has nothing left.
func (b Budget) IsExhausted() bool { return b.limit > 0 && b.remaining <= 0 }
