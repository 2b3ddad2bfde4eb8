package domain

import (
	"context"
	"sync"
)

type llmUsageKey struct{}

// LLMUsage collects token usage for a single request.
// The handler puts a mutable pointer into the context before calling the service;
// stages add to it after each model call; the handler reads it for response headers.
type LLMUsage struct {
	mu          sync.Mutex
	TotalTokens int
	Calls       int
}

// NewContextWithUsage returns a context with an LLM usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *LLMUsage) {
	u := &LLMUsage{}
	return context.WithValue(ctx, llmUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *LLMUsage {
	u, _ := ctx.Value(llmUsageKey{}).(*LLMUsage)
	return u
}

// AddTokens records one model call and its consumed tokens.
func (u *LLMUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.TotalTokens += n
	u.Calls++
	u.mu.Unlock()
}

// Snapshot returns the current totals.
func (u *LLMUsage) Snapshot() (tokens, calls int) {
	if u == nil {
		return 0, 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.TotalTokens, u.Calls
}
