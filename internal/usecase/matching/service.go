package matching

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/domain/criteria"
	"github.com/kailas-cloud/trialmatch/internal/domain/trial"
	"github.com/kailas-cloud/trialmatch/internal/usecase/llm"
)

// DefaultMaxCriteriaPerTrial caps the criteria classified per trial.
const DefaultMaxCriteriaPerTrial = 10

const criterionSystem = `You are a medical expert that evaluates whether a patient meets specific clinical trial criteria.
Classify each criterion as 'eligible', 'ineligible', or 'unknown' based on the available information.`

const criterionPrompt = `Evaluate whether the following patient profile meets the clinical trial criterion:
Patient Profile:
%s

Criterion:
%s

Classify as:
- 'eligible': Patient clearly meets the criterion
- 'ineligible': Patient clearly does not meet the criterion
- 'unknown': Insufficient information to determine eligibility

Respond with a JSON object: {"classification": "...", "explanation": "..."}`

const wholeSystem = `You are a medical expert that evaluates whether a patient is eligible for a clinical trial.
Consider the eligibility criteria as a whole and classify the patient as 'eligible', 'ineligible', or 'unknown'.`

const wholePrompt = `Evaluate whether the following patient profile satisfies the clinical trial eligibility criteria as a whole:
Patient Profile:
%s

Eligibility Criteria:
%s

Respond with a JSON object:
{
    "classification": "eligible" | "ineligible" | "unknown",
    "explanation": "...",
    "overall_score": 0.0,
    "eligible_criteria_count": 0,
    "total_criteria_count": 0
}`

// Options control criterion matching.
type Options struct {
	Mode                criteria.Mode
	MaxCriteriaPerTrial int
	IncludeReasoning    bool
}

// Service classifies a patient against trial eligibility criteria.
type Service struct {
	llm    LLM
	repo   CriteriaRepository
	logger *zap.Logger
}

// New creates a matching service.
func New(llm LLM, repo CriteriaRepository, logger *zap.Logger) *Service {
	return &Service{llm: llm, repo: repo, logger: logger}
}

// MatchTrials classifies the patient against each trial in order. Each result
// carries the trial record it was computed for.
func (s *Service) MatchTrials(
	ctx context.Context, profile string, hits []trial.Hit, opts Options,
) ([]criteria.TrialResult, error) {
	results := make([]criteria.TrialResult, 0, len(hits))
	for i := range hits {
		s.logger.Debug("Matching trial",
			zap.Int("position", i+1),
			zap.Int("total", len(hits)),
			zap.String("nct_id", hits[i].NCTID),
		)
		res, err := s.MatchTrial(ctx, profile, hits[i].NCTID, opts)
		if err != nil {
			return nil, err
		}
		hit := hits[i]
		res.Trial = &hit
		results = append(results, res)
	}
	return results, nil
}

// MatchTrial classifies the patient against one trial. Unparseable model
// replies count as unknown; transport errors are returned.
func (s *Service) MatchTrial(
	ctx context.Context, profile, nctID string, opts Options,
) (criteria.TrialResult, error) {
	mode := opts.Mode
	if mode == "" {
		mode = criteria.Individual
	}
	limit := opts.MaxCriteriaPerTrial
	if limit <= 0 {
		limit = DefaultMaxCriteriaPerTrial
	}

	text, err := s.repo.GetCriteria(ctx, nctID)
	if err != nil {
		return criteria.TrialResult{}, fmt.Errorf("get criteria for %s: %w", nctID, err)
	}
	list := criteria.Parse(text)
	if len(list) > limit {
		list = list[:limit]
	}
	if len(list) == 0 {
		s.logger.Debug("Trial has no eligibility criteria", zap.String("nct_id", nctID))
		return criteria.NewTrialResult(nctID, nil), nil
	}

	if mode == criteria.Whole {
		return s.matchWhole(ctx, profile, nctID, list, opts.IncludeReasoning)
	}

	matches := make([]criteria.Match, 0, len(list))
	for i, c := range list {
		cls, explanation, err := s.classify(ctx, profile, c.String())
		if err != nil {
			return criteria.TrialResult{}, fmt.Errorf("classify %s criterion %d: %w", nctID, i, err)
		}
		m := criteria.Match{
			ID:             fmt.Sprintf("%s_%d", nctID, i),
			Text:           c.String(),
			Type:           c.Type,
			Classification: cls,
		}
		if opts.IncludeReasoning {
			m.Reasoning = explanation
		}
		matches = append(matches, m)
	}
	return criteria.NewTrialResult(nctID, matches), nil
}

type criterionReply struct {
	Classification string `json:"classification"`
	Explanation    string `json:"explanation"`
}

func (s *Service) classify(ctx context.Context, profile, criterion string) (criteria.Classification, string, error) {
	res, err := s.llm.Complete(ctx, domain.LLMRequest{
		System: criterionSystem,
		Prompt: fmt.Sprintf(criterionPrompt, profile, criterion),
		JSON:   true,
	})
	if err != nil {
		return "", "", err
	}

	var reply criterionReply
	if err := llm.DecodeJSON(res.Text, &reply); err != nil {
		s.logger.Warn("Criterion reply unparseable, classifying as unknown", zap.Error(err))
		return criteria.Unknown, "Invalid JSON response", nil
	}
	return criteria.ParseClassification(reply.Classification), explanationOrDefault(reply.Explanation), nil
}

type wholeReply struct {
	Classification        string   `json:"classification"`
	Explanation           string   `json:"explanation"`
	OverallScore          *float64 `json:"overall_score"`
	EligibleCriteriaCount float64  `json:"eligible_criteria_count"`
	TotalCriteriaCount    float64  `json:"total_criteria_count"`
}

func (s *Service) matchWhole(
	ctx context.Context, profile, nctID string, list []criteria.Criterion, includeReasoning bool,
) (criteria.TrialResult, error) {
	lines := make([]string, len(list))
	for i, c := range list {
		lines[i] = c.String()
	}

	res, err := s.llm.Complete(ctx, domain.LLMRequest{
		System: wholeSystem,
		Prompt: fmt.Sprintf(wholePrompt, profile, strings.Join(lines, "\n")),
		JSON:   true,
	})
	if err != nil {
		return criteria.TrialResult{}, fmt.Errorf("classify %s criteria: %w", nctID, err)
	}

	m := criteria.Match{
		ID:   nctID + "_0",
		Text: criteria.WholeCriterionText,
		Type: criteria.All,
	}

	var reply wholeReply
	if err := llm.DecodeJSON(res.Text, &reply); err != nil {
		s.logger.Warn("Whole-criteria reply unparseable, classifying as unknown",
			zap.String("nct_id", nctID), zap.Error(err))
		m.Classification = criteria.Unknown
		if includeReasoning {
			m.Reasoning = "Invalid JSON response"
		}
		return criteria.NewWholeTrialResult(nctID, m, 0, 0), nil
	}

	m.Classification = criteria.ParseClassification(reply.Classification)
	if includeReasoning {
		m.Reasoning = explanationOrDefault(reply.Explanation)
	}
	out := criteria.NewWholeTrialResult(nctID, m, int(reply.EligibleCriteriaCount), int(reply.TotalCriteriaCount))
	// A reported score in [0,1] wins over the eligible/total ratio.
	if sc := reply.OverallScore; sc != nil && *sc >= 0 && *sc <= 1 {
		out.MatchScore = *sc
	}
	return out, nil
}

func explanationOrDefault(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "No explanation provided"
	}
	return s
}
