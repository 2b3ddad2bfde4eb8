package chi

import (
	"context"

	domusage "github.com/kailas-cloud/trialmatch/internal/domain/usage"
	"github.com/kailas-cloud/trialmatch/internal/repository/termcache"
	healthuc "github.com/kailas-cloud/trialmatch/internal/usecase/health"
	"github.com/kailas-cloud/trialmatch/internal/usecase/pipeline"
)

// Pipeline runs a full match for one patient profile.
type Pipeline interface {
	Run(ctx context.Context, profile string, cfg pipeline.Config) (*pipeline.Response, error)
}

// CacheAdmin exposes term cache maintenance.
type CacheAdmin interface {
	Info(ctx context.Context) termcache.Info
	Cleanup(ctx context.Context) int
	Clear(ctx context.Context, tag termcache.Tag) int
}

// UsageReporter builds LLM usage reports.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
