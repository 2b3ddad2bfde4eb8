package criteria

import "github.com/kailas-cloud/trialmatch/internal/domain/trial"

// WholeCriterionText labels the single match produced in whole mode.
const WholeCriterionText = "whole_eligibility_criteria"

// Match is the verdict for one criterion.
type Match struct {
	ID             string         `json:"criteria_id"`
	Text           string         `json:"criteria_text"`
	Type           Type           `json:"criteria_type"`
	Classification Classification `json:"classification"`
	Reasoning      string         `json:"reasoning"`
}

// TrialResult aggregates the matches for one trial.
type TrialResult struct {
	TrialID          string     `json:"trial_id"`
	MatchScore       float64    `json:"match_score"`
	EligibleCriteria int        `json:"eligible_criteria"`
	TotalCriteria    int        `json:"total_criteria"`
	Matches          []Match    `json:"criteria_matches"`
	Trial            *trial.Hit `json:"trial_data,omitempty"`
}

// NewTrialResult scores a trial by the share of criteria classified eligible.
func NewTrialResult(trialID string, matches []Match) TrialResult {
	if matches == nil {
		matches = []Match{}
	}
	eligible := 0
	for _, m := range matches {
		if m.Classification == Eligible {
			eligible++
		}
	}
	return newResult(trialID, matches, eligible, len(matches))
}

// NewWholeTrialResult scores a trial from counts reported by a holistic
// classification. When no counts are reported the verdict alone decides.
func NewWholeTrialResult(trialID string, m Match, eligible, total int) TrialResult {
	if total <= 0 || eligible < 0 || eligible > total {
		total = 1
		eligible = 0
		if m.Classification == Eligible {
			eligible = 1
		}
	}
	return newResult(trialID, []Match{m}, eligible, total)
}

func newResult(trialID string, matches []Match, eligible, total int) TrialResult {
	score := 0.0
	if total > 0 {
		score = float64(eligible) / float64(total)
	}
	return TrialResult{
		TrialID:          trialID,
		MatchScore:       score,
		EligibleCriteria: eligible,
		TotalCriteria:    total,
		Matches:          matches,
	}
}

// Summary holds aggregate statistics over trial results.
type Summary struct {
	TotalTrials       int     `json:"total_trials"`
	TrialsWithMatches int     `json:"trials_with_matches"`
	AverageMatchScore float64 `json:"average_match_score"`
	BestMatchScore    float64 `json:"best_match_score"`
}

// Summarize computes summary statistics. An empty input yields zeros.
func Summarize(results []TrialResult) Summary {
	if len(results) == 0 {
		return Summary{}
	}
	s := Summary{TotalTrials: len(results)}
	sum := 0.0
	for _, r := range results {
		if r.MatchScore > 0 {
			s.TrialsWithMatches++
		}
		sum += r.MatchScore
		if r.MatchScore > s.BestMatchScore {
			s.BestMatchScore = r.MatchScore
		}
	}
	s.AverageMatchScore = sum / float64(len(results))
	return s
}
