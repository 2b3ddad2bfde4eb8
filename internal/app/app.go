// Package app assembles trialmatch services from configuration. Both the API
// server and the CLI build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/config"
	dbredis "github.com/kailas-cloud/trialmatch/internal/db/redis"
	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/domain/criteria"
	"github.com/kailas-cloud/trialmatch/internal/domain/search/query"
	"github.com/kailas-cloud/trialmatch/internal/metrics"
	budgetrepo "github.com/kailas-cloud/trialmatch/internal/repository/budget"
	criteriarepo "github.com/kailas-cloud/trialmatch/internal/repository/criteria"
	"github.com/kailas-cloud/trialmatch/internal/repository/termcache"
	trialrepo "github.com/kailas-cloud/trialmatch/internal/repository/trial"
	anthropictr "github.com/kailas-cloud/trialmatch/internal/transport/anthropic"
	openaitr "github.com/kailas-cloud/trialmatch/internal/transport/openai"
	"github.com/kailas-cloud/trialmatch/internal/usecase/enrichment"
	"github.com/kailas-cloud/trialmatch/internal/usecase/extraction"
	healthuc "github.com/kailas-cloud/trialmatch/internal/usecase/health"
	llmuc "github.com/kailas-cloud/trialmatch/internal/usecase/llm"
	"github.com/kailas-cloud/trialmatch/internal/usecase/masking"
	"github.com/kailas-cloud/trialmatch/internal/usecase/matching"
	"github.com/kailas-cloud/trialmatch/internal/usecase/pipeline"
	"github.com/kailas-cloud/trialmatch/internal/usecase/retrieval"
	usageuc "github.com/kailas-cloud/trialmatch/internal/usecase/usage"
)

// Budget counter TTLs: a day key must outlive its day, a month key its month.
const (
	budgetDailyTTL   = 48 * time.Hour
	budgetMonthlyTTL = 62 * 24 * time.Hour
)

// App holds the wired services. Optional parts are nil when not configured.
type App struct {
	Config   config.Config
	Store    *dbredis.Store
	Trials   *trialrepo.Repo
	Cache    *termcache.Store
	Criteria *criteriarepo.Repo
	Budget   *llmuc.BudgetTracker
	LLM      *llmuc.InstrumentedLLM
	Pipeline *pipeline.Service
	Usage    *usageuc.Service
	Health   *healthuc.Service
	logger   *zap.Logger
}

// New connects to Redis and wires the pipeline. The caller owns Close.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.Trials = trialrepo.New(store, cfg.Search.Index)

	if cfg.Cache.IsEnabled() {
		a.Cache, err = OpenCache(ctx, cfg, store, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.Criteria.DSN != "" {
		a.Criteria, err = criteriarepo.Open(ctx, criteriarepo.Config{
			Driver: cfg.Criteria.Driver,
			DSN:    cfg.Criteria.DSN,
			Table:  cfg.Criteria.Table,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open criteria store: %w", err)
		}
	}

	if cfg.LLM.Budget.Enabled() {
		action, err := llmuc.ParseBudgetAction(cfg.LLM.Budget.Action)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Budget = llmuc.NewBudgetTracker(
			cfg.LLM.Provider, cfg.LLM.Budget.DailyTokenLimit, cfg.LLM.Budget.MonthlyTokenLimit, action, logger,
		)
		a.Budget.WithStore(ctx, budgetrepo.New(store, budgetDailyTTL, budgetMonthlyTTL))
	}

	// typed nil pointers must not reach interface parameters
	var budget llmuc.BudgetChecker
	var budgetReader usageuc.BudgetReader
	if a.Budget != nil {
		budget = a.Budget
		budgetReader = a.Budget
	}
	a.LLM = llmuc.NewInstrumentedLLM(NewLLM(cfg.LLM, logger), cfg.LLM.Provider, cfg.LLM.Model, budget, logger)

	primary, err := Boosts(cfg.Search.PrimaryBoosts, query.DefaultPrimaryBoosts())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("search.primary_boosts: %w", err)
	}
	secondary, err := Boosts(cfg.Search.SecondaryBoosts, query.DefaultSecondaryBoosts())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("search.secondary_boosts: %w", err)
	}
	if err := primary.Validate(secondary); err != nil {
		a.Close()
		return nil, fmt.Errorf("search boosts: %w", err)
	}

	var extractCache extraction.Cache
	var enrichCache enrichment.Cache
	if a.Cache != nil {
		extractCache = a.Cache
		enrichCache = a.Cache
	}

	opts := []pipeline.Option{pipeline.WithBoosts(primary, secondary)}
	var criteriaDB healthuc.DBPinger
	if a.Criteria != nil {
		opts = append(opts, pipeline.WithMatcher(matching.New(a.LLM, a.Criteria, logger)))
		criteriaDB = a.Criteria
	}

	a.Pipeline = pipeline.New(
		masking.New(a.LLM, logger),
		extraction.New(a.LLM, extractCache, logger),
		enrichment.New(a.LLM, enrichCache, cfg.Cache.EnrichmentBatchSize, logger),
		retrieval.New(a.Trials, logger),
		logger,
		opts...,
	)
	a.Usage = usageuc.New(budgetReader).WithPricing(cfg.LLM.Budget.CostPerMillionTokens)
	a.Health = healthuc.New(store, a.Trials, a.LLM, criteriaDB)

	if err := a.RunConfig().Validate(); err != nil {
		a.Close()
		return nil, fmt.Errorf("pipeline defaults: %w", err)
	}

	return a, nil
}

// OpenStore connects to Redis and waits until it answers.
func OpenStore(ctx context.Context, cfg config.Config) (*dbredis.Store, error) {
	store, err := dbredis.NewStore(dbredis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	return store, nil
}

// OpenCache builds the term cache on the configured backend. store is only
// used by the redis backend and may be nil otherwise.
func OpenCache(ctx context.Context, cfg config.Config, store *dbredis.Store, logger *zap.Logger) (*termcache.Store, error) {
	var kv termcache.KVStore
	if store != nil {
		kv = store
	}
	backend, err := termcache.NewBackend(cfg.Cache.Backend, cfg.Cache.Dir, kv, logger)
	if err != nil {
		return nil, fmt.Errorf("open term cache: %w", err)
	}
	maxAge := time.Duration(cfg.Cache.MaxAgeDays) * 24 * time.Hour
	return termcache.New(ctx, backend, maxAge, metrics.TermCacheTotal, logger), nil
}

// NewLLM builds the provider client named by cfg.Provider.
func NewLLM(cfg config.LLMConfig, logger *zap.Logger) domain.LLM {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if cfg.Provider == "anthropic" {
		return anthropictr.NewClient(&anthropictr.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			MaxRetries:  cfg.MaxRetries,
			Timeout:     timeout,
			Provider:    cfg.Provider,
			Logger:      logger,
		})
	}
	return openaitr.NewClient(&openaitr.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
		Timeout:     timeout,
		Provider:    cfg.Provider,
		Logger:      logger,
	})
}

// RunConfig maps the configured pipeline defaults onto a run config.
func (a *App) RunConfig() pipeline.Config {
	return RunConfig(a.Config.Pipeline)
}

// RunConfig maps pipeline settings onto a run config, starting from
// pipeline.DefaultConfig for anything left unset.
func RunConfig(p config.PipelineConfig) pipeline.Config {
	rc := pipeline.DefaultConfig()
	if p.MaxTrials > 0 {
		rc.MaxTrials = p.MaxTrials
	}
	if p.SearchSize > 0 {
		rc.SearchSize = p.SearchSize
	}
	if p.MaxCriteriaPerTrial > 0 {
		rc.MaxCriteriaPerTrial = p.MaxCriteriaPerTrial
	}
	if p.UseEnrichedKeywords != nil {
		rc.UseEnrichedKeywords = *p.UseEnrichedKeywords
	}
	if p.EmptyTermsPolicy != "" {
		rc.EmptyTermsPolicy = query.EmptyTermsPolicy(p.EmptyTermsPolicy)
	}
	if p.ClassificationMode != "" {
		rc.ClassificationMode = criteria.Mode(p.ClassificationMode)
	}
	rc.SkipMasking = p.SkipMasking
	rc.MatchCriteria = p.MatchCriteria
	return rc
}

// Boosts overrides weights in def with values from m. Unknown fields are an error.
func Boosts(m map[string]float64, def query.Boosts) (query.Boosts, error) {
	out := make(query.Boosts, len(def))
	copy(out, def)
	for name, w := range m {
		found := false
		for i := range out {
			if string(out[i].Field) == name {
				out[i].Weight = w
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown field %q", name)
		}
	}
	return out, nil
}

// Close releases every opened resource.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.logger.Warn("Failed to close term cache", zap.Error(err))
		}
	}
	if a.Criteria != nil {
		if err := a.Criteria.Close(); err != nil {
			a.logger.Warn("Failed to close criteria store", zap.Error(err))
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
}
