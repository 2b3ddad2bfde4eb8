package usage

import (
	"context"
	"math"
	"time"

	domusage "github.com/kailas-cloud/trialmatch/internal/domain/usage"
	"github.com/kailas-cloud/trialmatch/internal/domain/usage/budget"
	"github.com/kailas-cloud/trialmatch/internal/domain/usage/metrics"
)

// Service reports LLM token usage against the configured budget.
type Service struct {
	br             BudgetReader
	costPerMillion float64
	now            func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: func() time.Time { return time.Now().UTC() }}
}

// WithPricing sets the USD price per million tokens used to fill in report cost.
// Zero leaves cost unreported.
func (s *Service) WithPricing(costPerMillion float64) *Service {
	s.costPerMillion = costPerMillion
	return s
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now()
	var start, end int64
	var limit, used, remaining, calls int64
	var provider string
	if s.br != nil {
		provider = s.br.Provider()
	}

	switch period {
	case domusage.PeriodDay:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		start = dayStart.UnixMilli()
		end = dayStart.Add(24 * time.Hour).UnixMilli()
		if s.br != nil {
			limit = s.br.DailyLimit()
			used = s.br.DailyUsed()
			remaining = s.br.RemainingDaily()
			calls = s.br.DailyCalls()
		}
	case domusage.PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		start = monthStart.UnixMilli()
		end = monthStart.AddDate(0, 1, 0).UnixMilli()
		if s.br != nil {
			limit = s.br.MonthlyLimit()
			used = s.br.MonthlyUsed()
			remaining = s.br.RemainingMonthly()
			calls = s.br.MonthlyCalls()
		}
	default:
		// total: no period boundaries, the monthly budget is the widest window
		if s.br != nil {
			limit = s.br.MonthlyLimit()
			used = s.br.MonthlyUsed()
			remaining = s.br.RemainingMonthly()
			calls = s.br.MonthlyCalls()
		}
	}

	b := budget.New(int(limit), int(remaining), end)
	m := metrics.New(int(calls), int(used), s.costMillidollars(used))

	return domusage.NewReport(period, start, end, provider, m, b)
}

func (s *Service) costMillidollars(tokens int64) int {
	if s.costPerMillion <= 0 || tokens <= 0 {
		return 0
	}
	return int(math.Round(float64(tokens) * s.costPerMillion / 1000))
}
