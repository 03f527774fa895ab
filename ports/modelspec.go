package ports

import (
	"gowbic/domain/dataset"
)

// ModelSpec is the capability contract every model variant implements.
// A sweep compares variants purely through this interface: the engine never
// inspects concrete model types at runtime, so families are resolved when the
// sweep request is assembled.
//
// Implementations must be side-effect free and safe for concurrent use:
// LogPrior and LogLikelihood are called from many chains at once and must
// depend only on their arguments.
type ModelSpec interface {
	// ID identifies the variant. IDs must be unique within a sweep.
	ID() string

	// ParameterDim returns the length of theta
	ParameterDim() int

	// ParameterNames returns one label per dimension, in theta order
	ParameterNames() []string

	// LogPrior evaluates the log prior density at theta in model space.
	// A non-finite value marks theta as outside the prior's support.
	LogPrior(theta []float64) float64

	// LogLikelihood evaluates the UNTEMPERED log-likelihood of ds at theta.
	// Tempering is applied by the sampler, never by the model.
	LogLikelihood(theta []float64, ds *dataset.Dataset) float64

	// Transform maps between model space and the sampler's unconstrained space
	Transform() ParameterTransform
}

// ParameterTransform maps the sampler's unconstrained space R^d onto the
// model's parameter space. Chains random-walk in unconstrained coordinates;
// the transform and its Jacobian keep the target density correct.
type ParameterTransform interface {
	// ToConstrained maps an unconstrained point u into model space
	ToConstrained(u []float64) []float64

	// ToUnconstrained maps a model-space point theta into sampler space
	ToUnconstrained(theta []float64) []float64

	// LogJacobian is log|det d theta / d u| at u, added to the
	// unconstrained-space log target
	LogJacobian(u []float64) float64
}
