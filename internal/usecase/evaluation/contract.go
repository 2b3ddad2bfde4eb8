package evaluation

import (
	"context"

	"github.com/kailas-cloud/trialmatch/internal/usecase/pipeline"
)

// Runner executes the search pipeline for one profile.
type Runner interface {
	Run(ctx context.Context, profile string, cfg pipeline.Config) (*pipeline.Response, error)
}
