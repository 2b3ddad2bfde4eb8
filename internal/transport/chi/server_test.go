package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/domain/criteria"
	domusage "github.com/kailas-cloud/trialmatch/internal/domain/usage"
	"github.com/kailas-cloud/trialmatch/internal/domain/usage/budget"
	"github.com/kailas-cloud/trialmatch/internal/domain/usage/metrics"
	"github.com/kailas-cloud/trialmatch/internal/repository/termcache"
	healthuc "github.com/kailas-cloud/trialmatch/internal/usecase/health"
	"github.com/kailas-cloud/trialmatch/internal/usecase/pipeline"
)

// --- Mocks ---

type mockPipeline struct {
	runFn func(ctx context.Context, profile string, cfg pipeline.Config) (*pipeline.Response, error)
}

func (m *mockPipeline) Run(ctx context.Context, profile string, cfg pipeline.Config) (*pipeline.Response, error) {
	return m.runFn(ctx, profile, cfg)
}

type mockCache struct {
	clearedTag termcache.Tag
	cleared    bool
}

func (m *mockCache) Info(_ context.Context) termcache.Info {
	return termcache.Info{Stats: termcache.Stats{TotalEntries: 3, ExtractionEntries: 2, EnrichmentEntries: 1}}
}

func (m *mockCache) Cleanup(_ context.Context) int { return 2 }

func (m *mockCache) Clear(_ context.Context, tag termcache.Tag) int {
	m.cleared = true
	m.clearedTag = tag
	return 5
}

type mockUsage struct {
	lastPeriod domusage.Period
}

func (m *mockUsage) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	m.lastPeriod = period
	return domusage.NewReport(period, 0, 0, "openai", metrics.New(4, 1200, 0), budget.New(10000, 8800, 0))
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

// --- Helpers ---

func newTestRouter(p Pipeline, cache CacheAdmin) (http.Handler, *mockUsage) {
	usage := &mockUsage{}
	health := &mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
	}}
	srv := NewServer(p, cache, usage, health, pipeline.DefaultConfig(), zap.NewNop())
	r := gochi.NewRouter()
	srv.Routes(r)
	return r, usage
}

func okPipeline(seen *pipeline.Config) *mockPipeline {
	return &mockPipeline{runFn: func(ctx context.Context, profile string, cfg pipeline.Config) (*pipeline.Response, error) {
		if seen != nil {
			*seen = cfg
		}
		domain.UsageFromContext(ctx).AddTokens(150)
		return &pipeline.Response{RequestID: "req_1", PatientProfile: profile, Warnings: []string{}}, nil
	}}
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

// --- Match ---

func TestMatch_AppliesDefaultsAndOverrides(t *testing.T) {
	var seen pipeline.Config
	h, _ := newTestRouter(okPipeline(&seen), nil)

	rr := do(h, http.MethodPost, "/v1/match",
		`{"patient_profile":"58yo with NSCLC","max_trials":3,"skip_masking":true,"classification_mode":"whole"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if seen.MaxTrials != 3 || !seen.SkipMasking {
		t.Errorf("overrides not applied: %+v", seen)
	}
	if seen.SearchSize != 20 || !seen.UseCache || !seen.UseEnrichedKeywords {
		t.Errorf("defaults lost: %+v", seen)
	}
	if seen.ClassificationMode != criteria.Whole {
		t.Errorf("mode: got %q", seen.ClassificationMode)
	}
	if got := rr.Header().Get("X-LLM-Tokens"); got != "150" {
		t.Errorf("X-LLM-Tokens: got %q", got)
	}
	if got := rr.Header().Get("X-LLM-Calls"); got != "1" {
		t.Errorf("X-LLM-Calls: got %q", got)
	}

	var resp pipeline.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RequestID != "req_1" || resp.PatientProfile != "58yo with NSCLC" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestMatch_BadBody(t *testing.T) {
	h, _ := newTestRouter(okPipeline(nil), nil)

	for _, body := range []string{`{`, `{"profile":"x"}`} {
		rr := do(h, http.MethodPost, "/v1/match", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: got %d, want %d", body, rr.Code, http.StatusBadRequest)
		}
		if e := decodeError(t, rr); e.Code != CodeBadRequest {
			t.Errorf("code: got %s", e.Code)
		}
	}
}

func TestMatch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid input", fmt.Errorf("patient profile is empty: %w", domain.ErrInvalidInput),
			http.StatusBadRequest, CodeValidationFailed},
		{"configuration", fmt.Errorf("index missing: %w", domain.ErrConfiguration),
			http.StatusServiceUnavailable, CodeConfigurationError},
		{"retrieval", domain.NewRetrievalError("trials", errors.New("conn reset")),
			http.StatusBadGateway, CodeRetrievalError},
		{"masking", fmt.Errorf("masking: %w", domain.ErrMaskingFailed),
			http.StatusBadGateway, CodeMaskingFailed},
		{"provider", fmt.Errorf("openai: %w", domain.ErrLLMProvider),
			http.StatusBadGateway, CodeLLMProviderError},
		{"rate limited", fmt.Errorf("openai: %w: %w", domain.ErrLLMProvider, domain.ErrRateLimited),
			http.StatusTooManyRequests, CodeRateLimited},
		{"quota", fmt.Errorf("budget: %w", domain.ErrLLMQuotaExceeded),
			http.StatusPaymentRequired, CodeLLMQuotaExceeded},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockPipeline{runFn: func(context.Context, string, pipeline.Config) (*pipeline.Response, error) {
				return nil, tt.err
			}}
			h, _ := newTestRouter(p, nil)

			rr := do(h, http.MethodPost, "/v1/match", `{"patient_profile":"x"}`)
			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.status)
			}
			e := decodeError(t, rr)
			if e.Code != tt.code {
				t.Errorf("code: got %s, want %s", e.Code, tt.code)
			}
			if tt.name == "retrieval" && strings.Contains(e.Message, "conn reset") {
				t.Errorf("message leaks cause: %q", e.Message)
			}
		})
	}
}

func TestMatch_InvalidInputMessageIsDetailed(t *testing.T) {
	p := &mockPipeline{runFn: func(context.Context, string, pipeline.Config) (*pipeline.Response, error) {
		return nil, fmt.Errorf("patient profile is empty: %w", domain.ErrInvalidInput)
	}}
	h, _ := newTestRouter(p, nil)

	rr := do(h, http.MethodPost, "/v1/match", `{"patient_profile":""}`)
	if e := decodeError(t, rr); !strings.Contains(e.Message, "patient profile is empty") {
		t.Errorf("message: got %q", e.Message)
	}
}

// --- Cache ---

func TestCache_Stats(t *testing.T) {
	h, _ := newTestRouter(okPipeline(nil), &mockCache{})

	rr := do(h, http.MethodGet, "/v1/cache/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var info termcache.Info
	if err := json.NewDecoder(rr.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.TotalEntries != 3 || info.ExtractionEntries != 2 {
		t.Errorf("unexpected stats %+v", info.Stats)
	}
}

func TestCache_Cleanup(t *testing.T) {
	h, _ := newTestRouter(okPipeline(nil), &mockCache{})

	rr := do(h, http.MethodPost, "/v1/cache/cleanup", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"removed":2`) {
		t.Errorf("body: %s", rr.Body.String())
	}
}

func TestCache_ClearByType(t *testing.T) {
	cache := &mockCache{}
	h, _ := newTestRouter(okPipeline(nil), cache)

	rr := do(h, http.MethodDelete, "/v1/cache?type=Enrichment", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if cache.clearedTag != termcache.TagEnrichment {
		t.Errorf("tag: got %q", cache.clearedTag)
	}
}

func TestCache_ClearAll(t *testing.T) {
	cache := &mockCache{}
	h, _ := newTestRouter(okPipeline(nil), cache)

	do(h, http.MethodDelete, "/v1/cache", "")
	if !cache.cleared || cache.clearedTag != "" {
		t.Errorf("expected clear of all tags, got cleared=%v tag=%q", cache.cleared, cache.clearedTag)
	}
}

func TestCache_ClearUnknownType(t *testing.T) {
	cache := &mockCache{}
	h, _ := newTestRouter(okPipeline(nil), cache)

	rr := do(h, http.MethodDelete, "/v1/cache?type=embeddings", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if cache.cleared {
		t.Error("cache must not be cleared on a bad type")
	}
}

func TestCache_Disabled(t *testing.T) {
	h, _ := newTestRouter(okPipeline(nil), nil)

	rr := do(h, http.MethodGet, "/v1/cache/stats", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

// --- Usage / Health ---

func TestGetUsage(t *testing.T) {
	h, usage := newTestRouter(okPipeline(nil), nil)

	rr := do(h, http.MethodGet, "/v1/usage?period=day", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if usage.lastPeriod != domusage.PeriodDay {
		t.Errorf("period: got %q", usage.lastPeriod)
	}

	var resp usageResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Provider != "openai" || resp.Usage.LLMRequests != 4 || resp.Usage.Tokens != 1200 {
		t.Errorf("unexpected usage %+v", resp)
	}
	if resp.Budget.TokensRemaining != 8800 || resp.Budget.IsExhausted {
		t.Errorf("unexpected budget %+v", resp.Budget)
	}
	if resp.PeriodStartAt != nil {
		t.Error("period start must be omitted when zero")
	}
}

func TestGetUsage_DefaultsToMonth(t *testing.T) {
	h, usage := newTestRouter(okPipeline(nil), nil)
	do(h, http.MethodGet, "/v1/usage", "")
	if usage.lastPeriod != domusage.PeriodMonth {
		t.Errorf("period: got %q", usage.lastPeriod)
	}
}

func TestGetUsage_BadPeriod(t *testing.T) {
	h, _ := newTestRouter(okPipeline(nil), nil)
	rr := do(h, http.MethodGet, "/v1/usage?period=week", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHealthCheck(t *testing.T) {
	h, _ := newTestRouter(okPipeline(nil), nil)

	rr := do(h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("unexpected health %+v", resp)
	}
}

func TestHealthCheck_Degraded(t *testing.T) {
	health := &mockHealth{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK, "llm": healthuc.CheckError},
	}}
	srv := NewServer(okPipeline(nil), nil, &mockUsage{}, health, pipeline.DefaultConfig(), zap.NewNop())
	r := gochi.NewRouter()
	srv.Routes(r)

	rr := do(r, http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}
