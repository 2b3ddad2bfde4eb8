package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/metrics"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedLLM wraps an LLM with budget enforcement, per-request usage
// accounting and logging. Transport metrics (requests, duration, tokens) are
// recorded by the provider clients; this layer owns the budget gauges.
type InstrumentedLLM struct {
	inner    domain.LLM
	provider string
	model    string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedLLM wraps inner. budget may be nil.
func NewInstrumentedLLM(
	inner domain.LLM, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedLLM {
	return &InstrumentedLLM{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		logger:   logger,
	}
}

// Complete checks the budget, delegates to the inner LLM and records usage.
func (p *InstrumentedLLM) Complete(ctx context.Context, req domain.LLMRequest) (domain.LLMResult, error) {
	if p.budget != nil {
		if err := p.budget.Check(ctx); err != nil {
			p.logger.Error("LLM budget exceeded",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Error(err),
			)
			return domain.LLMResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()
	result, err := p.inner.Complete(ctx, req)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("LLM request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.LLMResult{}, fmt.Errorf("complete: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

	if p.budget != nil {
		p.budget.Record(int64(result.TotalTokens))
		remaining := metrics.LLMBudgetTokensRemaining
		remaining.WithLabelValues(p.provider, "daily").Set(float64(p.budget.RemainingDaily()))
		remaining.WithLabelValues(p.provider, "monthly").Set(float64(p.budget.RemainingMonthly()))
	}

	p.logger.Debug("LLM request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Bool("json", req.JSON),
		zap.Int("response_chars", len(result.Text)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// HealthCheck delegates to the inner LLM when it supports health checks.
func (p *InstrumentedLLM) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
