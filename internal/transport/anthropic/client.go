package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/metrics"
)

const (
	defaultMaxTokens = 4096
	jsonInstruction  = "Respond with a single JSON object and nothing else."
)

// messager is the subset of the Messages API used by the client.
type messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Client is an LLM provider on the Anthropic Messages API.
type Client struct {
	messages    messager
	model       string
	temperature float64
	maxTokens   int64
	provider    string
	logger      *zap.Logger
}

// Config holds the Messages API settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
	Timeout     time.Duration
	Provider    string
	Logger      *zap.Logger
}

// NewClient creates an Anthropic provider.
func NewClient(cfg *Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	c := anthropic.NewClient(opts...)

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "anthropic"
	}
	return &Client{
		messages:    &c.Messages,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		provider:    provider,
		logger:      cfg.Logger,
	}
}

// Complete implements domain.LLM. The Messages API has no JSON response mode,
// so JSON requests get an explicit instruction appended to the system prompt.
func (c *Client) Complete(ctx context.Context, req domain.LLMRequest) (domain.LLMResult, error) {
	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(c.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	start := time.Now()
	resp, err := c.messages.New(ctx, params)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(c.provider, c.model, errorType(ctx, err)).Inc()
		return domain.LLMResult{}, wrapError(ctx, err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	if sb.Len() == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(c.provider, c.model, "empty_response").Inc()
		return domain.LLMResult{}, fmt.Errorf("message without text content: %w", domain.ErrLLMProvider)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())

	in := int(resp.Usage.InputTokens)
	out := int(resp.Usage.OutputTokens)
	metrics.LLMTokensTotal.WithLabelValues(c.provider, c.model, "prompt").Add(float64(in))
	metrics.LLMTokensTotal.WithLabelValues(c.provider, c.model, "completion").Add(float64(out))
	metrics.LLMTokensTotal.WithLabelValues(c.provider, c.model, "total").Add(float64(in + out))

	if resp.StopReason == anthropic.StopReasonMaxTokens {
		c.logger.Warn("Completion truncated by max tokens",
			zap.String("provider", c.provider),
			zap.String("model", c.model),
		)
	}

	return domain.LLMResult{
		Text:         sb.String(),
		PromptTokens: in,
		TotalTokens:  in + out,
	}, nil
}

func errorType(ctx context.Context, err error) string {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	return "api_error"
}

// wrapError maps SDK errors onto domain.ErrLLMProvider; 429 also wraps
// domain.ErrRateLimited.
func wrapError(ctx context.Context, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("messages API error %d: %w: %w", apiErr.StatusCode, domain.ErrRateLimited, domain.ErrLLMProvider)
		}
		return fmt.Errorf("messages API error %d: %w", apiErr.StatusCode, domain.ErrLLMProvider)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("messages request: %w: %w", ctxErr, domain.ErrLLMProvider)
	}
	return fmt.Errorf("messages request failed: %v: %w", err, domain.ErrLLMProvider)
}
