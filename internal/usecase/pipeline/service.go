package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/domain/criteria"
	"github.com/kailas-cloud/trialmatch/internal/domain/search/query"
	"github.com/kailas-cloud/trialmatch/internal/domain/terms"
	"github.com/kailas-cloud/trialmatch/internal/domain/trial"
	"github.com/kailas-cloud/trialmatch/internal/metrics"
	"github.com/kailas-cloud/trialmatch/internal/usecase/matching"
)

// Pipeline stages, used as metric labels.
const (
	StageMasking    = "masking"
	StageExtraction = "extraction"
	StageEnrichment = "enrichment"
	StageRetrieval  = "retrieval"
	StageMatching   = "matching"
)

// Service runs the target identification pipeline and, optionally,
// criterion matching on its results.
type Service struct {
	masker    Masker
	extractor Extractor
	enricher  Enricher
	retriever Retriever
	matcher   Matcher
	boosts    query.Options
	newID     func() string
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMatcher enables criterion matching.
func WithMatcher(m Matcher) Option {
	return func(s *Service) { s.matcher = m }
}

// WithBoosts overrides the default field boosts.
func WithBoosts(primary, secondary query.Boosts) Option {
	return func(s *Service) {
		s.boosts.PrimaryBoosts = primary
		s.boosts.SecondaryBoosts = secondary
	}
}

// New creates a pipeline service.
func New(
	masker Masker, extractor Extractor, enricher Enricher, retriever Retriever,
	logger *zap.Logger, opts ...Option,
) *Service {
	s := &Service{
		masker:    masker,
		extractor: extractor,
		enricher:  enricher,
		retriever: retriever,
		newID:     func() string { return "req_" + uuid.NewString() },
		now:       time.Now,
		logger:    logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RunFile reads a profile from path and runs the pipeline on it.
func (s *Service) RunFile(ctx context.Context, path string, cfg Config) (*Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	return s.Run(ctx, string(data), cfg)
}

// Run executes every stage in order. Extraction and enrichment fallbacks are
// reported as warnings; any other failure aborts the run without a response.
func (s *Service) Run(ctx context.Context, profile string, cfg Config) (*Response, error) {
	start := s.now()
	resp, err := s.run(ctx, profile, cfg, start)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.PipelineRunsTotal.WithLabelValues(cfg.mode(), status).Inc()
	return resp, err
}

func (s *Service) run(ctx context.Context, profile string, cfg Config, start time.Time) (*Response, error) {
	if strings.TrimSpace(profile) == "" {
		return nil, fmt.Errorf("empty patient profile: %w", domain.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MatchCriteria && s.matcher == nil {
		return nil, fmt.Errorf("criterion matching is not configured: %w", domain.ErrConfiguration)
	}

	resp := &Response{
		RequestID:      s.newID(),
		PatientProfile: profile,
		Warnings:       []string{},
		CreatedAt:      start.UTC(),
	}
	log := s.logger.With(zap.String("request_id", resp.RequestID))

	// masking
	text := profile
	if !cfg.SkipMasking {
		t := time.Now()
		masked, err := s.masker.Mask(ctx, profile)
		observe(StageMasking, t)
		if err != nil {
			return nil, fmt.Errorf("masking: %w", err)
		}
		text = masked
	}
	resp.MaskedProfile = text

	// extraction
	t := time.Now()
	extracted, err := s.extractor.Extract(ctx, text, cfg.UseCache)
	observe(StageExtraction, t)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}
	resp.Keywords = extracted.Terms
	resp.Cached.Extraction = extracted.Cached
	resp.Warnings = s.warn(log, resp.Warnings, extracted.Outcome)

	// enrichment
	resp.EnrichedKeywords = terms.Enriched{}
	if cfg.UseEnrichedKeywords {
		t = time.Now()
		enriched, err := s.enricher.Enrich(ctx, extracted.Terms, cfg.UseCache)
		observe(StageEnrichment, t)
		if err != nil {
			return nil, fmt.Errorf("enrichment: %w", err)
		}
		resp.EnrichedKeywords = enriched.Terms
		resp.Cached.Enrichment = enriched.Cached
		resp.Warnings = s.warn(log, resp.Warnings, enriched.Outcome)
	}

	// query construction
	opts := s.boosts
	opts.EmptyTermsPolicy = cfg.EmptyTermsPolicy
	resp.Query = query.Build(extracted.Terms, resp.EnrichedKeywords, opts)
	for _, w := range resp.Query.Warnings {
		log.Warn("Query fallback", zap.String("warning", w))
		resp.Warnings = append(resp.Warnings, w)
	}

	// retrieval
	t = time.Now()
	raw, err := s.retriever.Retrieve(ctx, resp.Query, cfg.retrievalSize(), 0)
	observe(StageRetrieval, t)
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}
	hits := trial.Format(raw)
	if len(hits) > cfg.MaxTrials {
		hits = hits[:cfg.MaxTrials]
	}
	resp.Trials = hits
	metrics.PipelineTrialsReturned.Observe(float64(len(hits)))

	// criterion matching
	resp.Summary = criteria.Summary{TotalTrials: len(hits)}
	if cfg.MatchCriteria && len(hits) > 0 {
		t = time.Now()
		results, err := s.matcher.MatchTrials(ctx, text, hits, matching.Options{
			Mode:                cfg.ClassificationMode,
			MaxCriteriaPerTrial: cfg.MaxCriteriaPerTrial,
			IncludeReasoning:    cfg.IncludeReasoning,
		})
		observe(StageMatching, t)
		if err != nil {
			return nil, fmt.Errorf("criterion matching: %w", err)
		}
		resp.Results = results
		resp.Summary = criteria.Summarize(results)
	}

	resp.ProcessingTime = s.now().Sub(start).Seconds()
	log.Info("Pipeline completed",
		zap.Int("primary_terms", len(resp.Query.Primary)),
		zap.Int("secondary_terms", len(resp.Query.Secondary)),
		zap.Int("trials", len(resp.Trials)),
		zap.Int("warnings", len(resp.Warnings)),
		zap.Float64("processing_time", resp.ProcessingTime),
	)
	return resp, nil
}

func (s *Service) warn(log *zap.Logger, warnings []string, o domain.Outcome) []string {
	if !o.Degraded {
		return warnings
	}
	log.Warn("Stage degraded", zap.String("reason", o.Reason))
	return append(warnings, o.Reason)
}

func observe(stage string, start time.Time) {
	metrics.PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
