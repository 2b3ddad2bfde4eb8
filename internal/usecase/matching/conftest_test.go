package matching

import (
	"context"
	"strings"

	"github.com/kailas-cloud/trialmatch/internal/domain"
)

type mockLLM struct {
	requests   []domain.LLMRequest
	completeFn func(req domain.LLMRequest) (domain.LLMResult, error)
}

func (m *mockLLM) Complete(_ context.Context, req domain.LLMRequest) (domain.LLMResult, error) {
	m.requests = append(m.requests, req)
	return m.completeFn(req)
}

func replying(text string) *mockLLM {
	return &mockLLM{completeFn: func(domain.LLMRequest) (domain.LLMResult, error) {
		return domain.LLMResult{Text: text}, nil
	}}
}

type fakeCriteria map[string]string

func (f fakeCriteria) GetCriteria(_ context.Context, nctID string) (string, error) {
	return f[nctID], nil
}

type failingCriteria struct{ err error }

func (f failingCriteria) GetCriteria(context.Context, string) (string, error) { return "", f.err }

const nct1Criteria = `Inclusion Criteria:
- Age >= 18 years
- Histologically confirmed NSCLC
Exclusion Criteria:
- Prior EGFR TKI therapy`

// classifier answers eligible for inclusion criteria and ineligible otherwise.
func classifier() *mockLLM {
	return &mockLLM{completeFn: func(req domain.LLMRequest) (domain.LLMResult, error) {
		if strings.Contains(req.Prompt, "Criterion:\ninclusion:") {
			return domain.LLMResult{Text: `{"classification":"eligible","explanation":"meets it"}`}, nil
		}
		return domain.LLMResult{Text: `{"classification":"Ineligible","explanation":"prior TKI"}`}, nil
	}}
}
