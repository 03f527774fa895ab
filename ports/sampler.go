package ports

import (
	"context"

	"gowbic/domain/dataset"
	"gowbic/domain/wbic"
)

// SampleRequest carries everything one sampler invocation needs. Run
// identity is deliberately absent: the draws depend only on the seed, the
// variant, and the data, so a sweep replays bit for bit.
type SampleRequest struct {
	Spec    ModelSpec
	Dataset *dataset.Dataset
	Config  wbic.RunConfig
}

// SamplerPort draws tempered posterior samples for a single model variant.
// The target is prior(theta) * likelihood(theta)^t with t taken from the
// dataset; every retained draw records the untempered log-likelihood.
type SamplerPort interface {
	Sample(ctx context.Context, req SampleRequest) (*wbic.Trace, error)
}

// EstimatorPort reduces a sampling trace to a scored, immutable result
type EstimatorPort interface {
	Estimate(trace *wbic.Trace, spec ModelSpec, cfg wbic.RunConfig) (*wbic.WBICResult, error)
}
