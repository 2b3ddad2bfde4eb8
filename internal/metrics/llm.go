package metrics

import "github.com/prometheus/client_golang/prometheus"

// LLM Prometheus metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Name:      "llm_requests_total",
			Help:      "Total number of LLM completion requests",
		},
		[]string{"provider", "model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM completion request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"provider", "model"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	LLMErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Name:      "llm_errors_total",
			Help:      "Total LLM errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	LLMBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "trialmatch",
			Name:      "llm_budget_tokens_remaining",
			Help:      "Remaining token budget",
		},
		[]string{"provider", "period"},
	)

	TermCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Name:      "term_cache_total",
			Help:      "Term cache lookups by tag and result",
		},
		[]string{"tag", "result"}, // result: hit / miss / expired
	)
)

var llmMetricsRegistered bool

// RegisterLLMMetrics registers Prometheus LLM and cache metrics. Must be called once from main.
func RegisterLLMMetrics() {
	if llmMetricsRegistered {
		return
	}
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokensTotal)
	prometheus.MustRegister(LLMErrorsTotal)
	prometheus.MustRegister(LLMBudgetTokensRemaining)
	prometheus.MustRegister(TermCacheTotal)
	llmMetricsRegistered = true
}
