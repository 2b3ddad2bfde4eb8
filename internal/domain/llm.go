package domain

import "context"

// LLM is the shared text completion contract between layers.
type LLM interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResult, error)
}

// HealthChecker verifies LLM provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// LLMRequest is a single-turn completion request.
type LLMRequest struct {
	Prompt string
	System string
	// JSON asks the provider for a JSON object reply where it supports that natively.
	JSON bool
}

// LLMResult carries the completion text and token usage through the decorator chain.
type LLMResult struct {
	Text         string
	PromptTokens int
	TotalTokens  int
}

// SystemPromptLLM is a domain decorator that fills in a default system prompt.
type SystemPromptLLM struct {
	inner  LLM
	system string
}

// NewSystemPromptLLM creates a decorator that sets System when the request has none.
func NewSystemPromptLLM(inner LLM, system string) *SystemPromptLLM {
	return &SystemPromptLLM{inner: inner, system: system}
}

// Complete fills the system prompt and delegates to the inner LLM.
func (l *SystemPromptLLM) Complete(ctx context.Context, req LLMRequest) (LLMResult, error) {
	if req.System == "" {
		req.System = l.system
	}
	return l.inner.Complete(ctx, req)
}

// HealthCheck delegates to the inner LLM when it supports health checks.
func (l *SystemPromptLLM) HealthCheck(ctx context.Context) error {
	if hc, ok := l.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// Outcome reports whether a stage produced its full result or a fallback.
// Degraded results are surfaced as warnings; the caller decides how to proceed.
type Outcome struct {
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

// DegradedOutcome builds a degraded outcome for stage.
func DegradedOutcome(stage string, err error) Outcome {
	return Outcome{Degraded: true, Reason: stage + ": " + err.Error()}
}
