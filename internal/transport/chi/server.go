package chi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/domain/criteria"
	domusage "github.com/kailas-cloud/trialmatch/internal/domain/usage"
	"github.com/kailas-cloud/trialmatch/internal/logger"
	"github.com/kailas-cloud/trialmatch/internal/repository/termcache"
	healthuc "github.com/kailas-cloud/trialmatch/internal/usecase/health"
	"github.com/kailas-cloud/trialmatch/internal/usecase/pipeline"
)

// maxBodyBytes bounds POST /v1/match bodies.
const maxBodyBytes = 1 << 20

// Server serves the trialmatch HTTP API.
type Server struct {
	pipeline      Pipeline
	cache         CacheAdmin
	usage         UsageReporter
	health        HealthChecker
	defaults      pipeline.Config
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. cache may be nil when caching is disabled.
func NewServer(
	p Pipeline,
	cache CacheAdmin,
	usage UsageReporter,
	health HealthChecker,
	defaults pipeline.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline:      p,
		cache:         cache,
		usage:         usage,
		health:        health,
		defaults:      defaults,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r gochi.Router) {
		r.Post("/match", s.Match)
		r.Get("/usage", s.GetUsage)
		r.Get("/cache/stats", s.CacheStats)
		r.Post("/cache/cleanup", s.CacheCleanup)
		r.Delete("/cache", s.CacheClear)
	})
}

// MatchRequest is the body of POST /v1/match. Absent fields take server defaults.
type MatchRequest struct {
	PatientProfile      string  `json:"patient_profile"`
	MaxTrials           *int    `json:"max_trials,omitempty"`
	SearchSize          *int    `json:"search_size,omitempty"`
	SkipMasking         *bool   `json:"skip_masking,omitempty"`
	UseCache            *bool   `json:"use_cache,omitempty"`
	UseEnrichedKeywords *bool   `json:"use_enriched_keywords,omitempty"`
	MatchCriteria       *bool   `json:"match_criteria,omitempty"`
	ClassificationMode  *string `json:"classification_mode,omitempty"`
	MaxCriteriaPerTrial *int    `json:"max_criteria_per_trial,omitempty"`
	IncludeReasoning    *bool   `json:"include_reasoning,omitempty"`
}

func (m *MatchRequest) config(base pipeline.Config) pipeline.Config {
	cfg := base
	setInt(&cfg.MaxTrials, m.MaxTrials)
	setInt(&cfg.SearchSize, m.SearchSize)
	setInt(&cfg.MaxCriteriaPerTrial, m.MaxCriteriaPerTrial)
	setBool(&cfg.SkipMasking, m.SkipMasking)
	setBool(&cfg.UseCache, m.UseCache)
	setBool(&cfg.UseEnrichedKeywords, m.UseEnrichedKeywords)
	setBool(&cfg.MatchCriteria, m.MatchCriteria)
	setBool(&cfg.IncludeReasoning, m.IncludeReasoning)
	if m.ClassificationMode != nil {
		cfg.ClassificationMode = criteria.Mode(*m.ClassificationMode)
	}
	return cfg
}

// Match handles POST /v1/match.
func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.pipeline.Run(ctx, req.PatientProfile, req.config(s.defaults))
	setLLMHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("X-Trialmatch-Request-ID", resp.RequestID)
	writeJSON(w, http.StatusOK, resp)
}

// CacheStats handles GET /v1/cache/stats.
func (s *Server) CacheStats(w http.ResponseWriter, r *http.Request) {
	if !s.cacheEnabled(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Info(r.Context()))
}

type cacheRemovedResponse struct {
	Removed int    `json:"removed"`
	Type    string `json:"type,omitempty"`
}

// CacheCleanup handles POST /v1/cache/cleanup.
func (s *Server) CacheCleanup(w http.ResponseWriter, r *http.Request) {
	if !s.cacheEnabled(w) {
		return
	}
	writeJSON(w, http.StatusOK, cacheRemovedResponse{Removed: s.cache.Cleanup(r.Context())})
}

// CacheClear handles DELETE /v1/cache?type=extraction|enrichment.
func (s *Server) CacheClear(w http.ResponseWriter, r *http.Request) {
	if !s.cacheEnabled(w) {
		return
	}
	tag, err := termcache.ParseTag(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}
	removed := s.cache.Clear(r.Context(), tag)
	writeJSON(w, http.StatusOK, cacheRemovedResponse{Removed: removed, Type: string(tag)})
}

func (s *Server) cacheEnabled(w http.ResponseWriter) bool {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceNotAvailable, "term cache is disabled")
		return false
	}
	return true
}

type usageResponse struct {
	Period        string       `json:"period"`
	Provider      string       `json:"provider,omitempty"`
	PeriodStartAt *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time   `json:"period_end_at,omitempty"`
	Usage         usageMetrics `json:"usage"`
	Budget        budgetStatus `json:"budget"`
}

type usageMetrics struct {
	LLMRequests      int  `json:"llm_requests"`
	Tokens           int  `json:"tokens"`
	CostMillidollars *int `json:"cost_millidollars,omitempty"`
}

type budgetStatus struct {
	TokensLimit     int        `json:"tokens_limit"`
	TokensRemaining int        `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// GetUsage handles GET /v1/usage?period=day|month|total.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period := domusage.PeriodMonth
	if raw := r.URL.Query().Get("period"); raw != "" {
		p, ok := domusage.ParsePeriod(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "period must be day, month or total")
			return
		}
		period = p
	}

	report := s.usage.GetReport(r.Context(), period)

	m := report.Metrics()
	b := report.Budget()
	resp := usageResponse{
		Period:   string(report.Period()),
		Provider: report.Provider(),
		Usage: usageMetrics{
			LLMRequests: m.LLMRequests(),
			Tokens:      m.Tokens(),
		},
		Budget: budgetStatus{
			TokensLimit:     b.TokensLimit(),
			TokensRemaining: b.TokensRemaining(),
			IsExhausted:     b.IsExhausted(),
		},
	}

	if cost := m.CostMillidollars(); cost > 0 {
		resp.Usage.CostMillidollars = &cost
	}
	if report.PeriodStart() > 0 {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}
	if b.ResetsAt() > 0 {
		resetsAt := time.UnixMilli(b.ResetsAt()).UTC()
		resp.Budget.ResetsAt = &resetsAt
	}

	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("Request failed", zap.Error(err))
			return
		}
	}
	log.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func setLLMHeaders(w http.ResponseWriter, usage *domain.LLMUsage) {
	tokens, calls := usage.Snapshot()
	if calls > 0 {
		w.Header().Set("X-LLM-Tokens", strconv.Itoa(tokens))
		w.Header().Set("X-LLM-Calls", strconv.Itoa(calls))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
