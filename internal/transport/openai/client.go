package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/metrics"
)

// Client is an LLM provider using the OpenAI-compatible chat completions API.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	user        string
	provider    string
	logger      *zap.Logger
}

// Config holds the chat completion provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	User        string
	Provider    string
	Logger      *zap.Logger
}

// NewClient creates an OpenAI-compatible chat completion provider.
func NewClient(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		user:        cfg.User,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
	}
}

// Complete implements domain.LLM with transport-level metrics.
func (c *Client) Complete(ctx context.Context, req domain.LLMRequest) (domain.LLMResult, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: wireTemperature(c.temperature),
		User:        c.user,
	}
	if c.maxTokens > 0 {
		chatReq.MaxTokens = c.maxTokens
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(c.provider, c.model, errorType(ctx, err)).Inc()
		return domain.LLMResult{}, parseAPIError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(c.provider, c.model, "empty_response").Inc()
		return domain.LLMResult{}, fmt.Errorf("empty completion response: %w", domain.ErrLLMProvider)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())

	promptTokens := resp.Usage.PromptTokens
	totalTokens := resp.Usage.TotalTokens
	if totalTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(c.provider, c.model, "prompt").Add(float64(promptTokens))
		metrics.LLMTokensTotal.WithLabelValues(c.provider, c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
		metrics.LLMTokensTotal.WithLabelValues(c.provider, c.model, "total").Add(float64(totalTokens))
	}

	if resp.Choices[0].FinishReason == openai.FinishReasonLength {
		c.logger.Warn("Completion truncated by max tokens",
			zap.String("provider", c.provider),
			zap.String("model", c.model),
		)
	}

	return domain.LLMResult{
		Text:         resp.Choices[0].Message.Content,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// wireTemperature maps 0 to the smallest positive value: go-openai drops a
// zero temperature from the request and the API would apply its default of 1.
func wireTemperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func errorType(ctx context.Context, err error) string {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	return "api_error"
}

// parseAPIError extracts a human-readable error from the API response.
// All errors wrap domain.ErrLLMProvider for correct 502 mapping; 429 also wraps
// domain.ErrRateLimited.
func parseAPIError(ctx context.Context, err error) error {
	wrap := domain.ErrLLMProvider

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("completion API error %d: %s: %w: %w", reqErr.HTTPStatusCode, detail, domain.ErrRateLimited, wrap)
		}
		return fmt.Errorf("completion API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("completion API error %d: %s: %w: %w", apiErr.HTTPStatusCode, apiErr.Message, domain.ErrRateLimited, wrap)
		}
		return fmt.Errorf("completion API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("completion request: %w: %w", ctxErr, wrap)
	}
	return fmt.Errorf("completion request failed: %v: %w", err, wrap)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
