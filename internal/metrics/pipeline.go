package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by mode and outcome",
		},
		[]string{"mode", "status"},
	)

	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	PipelineTrialsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Name:      "pipeline_trials_returned",
			Help:      "Number of trials returned per retrieval",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineRunsTotal)
	prometheus.MustRegister(PipelineStageDuration)
	prometheus.MustRegister(PipelineTrialsReturned)
	pipelineMetricsRegistered = true
}
