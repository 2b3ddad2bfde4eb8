package masking

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/domain"
)

const systemPrompt = `You are a privacy-focused assistant that masks sensitive patient information in medical text.
Replace any personally identifiable information (PII) with appropriate placeholders while preserving medical information.`

const promptTemplate = `Please mask all personally identifiable information in the following patient profile while preserving medical information:
%s

Replace:
- Names with [NAME]
- Addresses with [ADDRESS]
- Phone numbers with [PHONE]
- Email addresses with [EMAIL]
- Dates of birth with [DOB]
- Medical record numbers with [MRN]
- Other identifiers with appropriate placeholders

Return only the masked profile text.`

// Service replaces personal identifiers in a patient profile.
type Service struct {
	llm    LLM
	logger *zap.Logger
}

// New creates a masking service.
func New(llm LLM, logger *zap.Logger) *Service {
	return &Service{llm: llm, logger: logger}
}

// Mask returns the profile with identifiers replaced by placeholders.
// An empty reply is domain.ErrMaskingFailed: continuing would send the
// unmasked text to later stages.
func (s *Service) Mask(ctx context.Context, profile string) (string, error) {
	if strings.TrimSpace(profile) == "" {
		return "", fmt.Errorf("empty patient profile: %w", domain.ErrInvalidInput)
	}

	res, err := s.llm.Complete(ctx, domain.LLMRequest{
		System: systemPrompt,
		Prompt: fmt.Sprintf(promptTemplate, profile),
	})
	if err != nil {
		return "", fmt.Errorf("mask profile: %w", err)
	}

	masked := strings.TrimSpace(res.Text)
	if masked == "" {
		return "", domain.ErrMaskingFailed
	}

	s.logger.Debug("Profile masked",
		zap.Int("input_chars", len(profile)),
		zap.Int("masked_chars", len(masked)),
	)
	return masked, nil
}
