package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/usecase/pipeline"
)

// Evaluation modes.
const (
	ModeEnriched = "enriched"
	ModeBasic    = "basic"
)

const (
	defaultK       = 20
	defaultWorkers = 4
	profilePreview = 200
)

// TopicResult is the outcome of one topic in one mode.
type TopicResult struct {
	TopicID   string   `json:"topic_id"`
	Profile   string   `json:"patient_profile"`
	Relevant  []string `json:"ground_truth_trials"`
	Retrieved []string `json:"retrieved_trials"`
	Metrics   Metrics  `json:"metrics"`
	Error     string   `json:"error,omitempty"`
}

// ModeReport aggregates one mode.
type ModeReport struct {
	Mode    string        `json:"mode"`
	Topics  int           `json:"total_topics"`
	Failed  int           `json:"failed_topics"`
	Average Metrics       `json:"average_metrics"`
	Results []TopicResult `json:"topic_results"`
}

// Comparison contrasts one metric across modes.
type Comparison struct {
	Enriched    float64 `json:"enriched"`
	Basic       float64 `json:"basic"`
	Improvement float64 `json:"improvement"`
}

// Report is the full evaluation output.
type Report struct {
	Timestamp  time.Time             `json:"evaluation_timestamp"`
	K          int                   `json:"k"`
	Topics     int                   `json:"total_topics_evaluated"`
	Enriched   ModeReport            `json:"enriched_mode"`
	Basic      ModeReport            `json:"basic_mode"`
	Comparison map[string]Comparison `json:"comparison"`
}

// Service compares enriched and basic retrieval against relevance judgments.
type Service struct {
	runner  Runner
	k       int
	workers int
	logger  *zap.Logger
}

// New creates an evaluation service. Zero k or workers select defaults.
func New(runner Runner, k, workers int, logger *zap.Logger) *Service {
	if k <= 0 {
		k = defaultK
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Service{runner: runner, k: k, workers: workers, logger: logger}
}

// Evaluate runs every topic in both modes. Topics run concurrently on a
// worker pool; a failed topic scores zero and is recorded in the report.
func (s *Service) Evaluate(ctx context.Context, topics []Topic, qrels Qrels) (*Report, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("no topics to evaluate")
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	enriched, err := s.evaluateMode(ctx, pool, ModeEnriched, topics, qrels)
	if err != nil {
		return nil, err
	}
	basic, err := s.evaluateMode(ctx, pool, ModeBasic, topics, qrels)
	if err != nil {
		return nil, err
	}

	return &Report{
		Timestamp: time.Now().UTC(),
		K:         s.k,
		Topics:    len(topics),
		Enriched:  enriched,
		Basic:     basic,
		Comparison: map[string]Comparison{
			"precision@k": compare(enriched.Average.Precision, basic.Average.Precision),
			"recall@k":    compare(enriched.Average.Recall, basic.Average.Recall),
			"f1@k":        compare(enriched.Average.F1, basic.Average.F1),
		},
	}, nil
}

func compare(enriched, basic float64) Comparison {
	return Comparison{Enriched: enriched, Basic: basic, Improvement: enriched - basic}
}

func (s *Service) evaluateMode(
	ctx context.Context, pool *ants.Pool, mode string, topics []Topic, qrels Qrels,
) (ModeReport, error) {
	cfg := pipeline.DefaultConfig()
	cfg.SkipMasking = true
	cfg.MaxTrials = s.k
	cfg.SearchSize = s.k
	cfg.UseEnrichedKeywords = mode == ModeEnriched

	results := make([]TopicResult, len(topics))
	var wg sync.WaitGroup
	for i := range topics {
		wg.Add(1)
		topic := topics[i]
		idx := i
		if err := pool.Submit(func() {
			defer wg.Done()
			results[idx] = s.evaluateTopic(ctx, topic, qrels, cfg)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return ModeReport{}, fmt.Errorf("submit topic %s: %w", topic.ID, err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return ModeReport{}, fmt.Errorf("evaluation %s: %w", mode, err)
	}

	report := ModeReport{Mode: mode, Topics: len(topics), Results: results}
	ms := make([]Metrics, len(results))
	for i, r := range results {
		ms[i] = r.Metrics
		if r.Error != "" {
			report.Failed++
		}
	}
	report.Average = average(ms)

	s.logger.Info("Evaluation mode finished",
		zap.String("mode", mode),
		zap.Int("topics", report.Topics),
		zap.Int("failed", report.Failed),
		zap.Float64("precision_at_k", report.Average.Precision),
		zap.Float64("recall_at_k", report.Average.Recall),
		zap.Float64("f1_at_k", report.Average.F1),
	)
	return report, nil
}

func (s *Service) evaluateTopic(ctx context.Context, topic Topic, qrels Qrels, cfg pipeline.Config) TopicResult {
	relevant := qrels.Relevant(topic.ID)
	res := TopicResult{
		TopicID:   topic.ID,
		Profile:   preview(topic.Profile),
		Relevant:  sortedKeys(relevant),
		Retrieved: []string{},
	}

	resp, err := s.runner.Run(ctx, topic.Profile, cfg)
	if err != nil {
		s.logger.Error("Topic evaluation failed", zap.String("topic_id", topic.ID), zap.Error(err))
		res.Error = err.Error()
		return res
	}
	res.Retrieved = resp.NCTIDs()
	res.Metrics = Score(res.Retrieved, relevant, s.k)
	return res
}

// WriteReport writes the report as indented JSON.
func WriteReport(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= profilePreview {
		return s
	}
	return string(r[:profilePreview]) + "..."
}
