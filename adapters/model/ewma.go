package model

import (
	"fmt"
	"math"

	"gowbic/domain/dataset"
	"gowbic/ports"
)

// EWMAModel is a structural alternative to the regression families: it
// ignores the regressor matrix and explains each observation by an
// exponentially weighted moving average of the preceding responses.
// Theta is (weight, sigma) with weight in (0,1).
type EWMAModel struct {
	id        string
	priors    *PriorSet
	transform ports.ParameterTransform
}

var _ ports.ModelSpec = (*EWMAModel)(nil)

// NewEWMAModel builds the smoothing variant. The weight carries a Beta(2, 2)
// prior and a logit transform pins it inside (0,1) during sampling; sigma is
// handled as in the regression families.
func NewEWMAModel(id string) (*EWMAModel, error) {
	if id == "" {
		return nil, fmt.Errorf("model id cannot be empty")
	}
	return &EWMAModel{
		id:        id,
		priors:    NewPriorSet(NewBetaPrior(2, 2), NewGammaPrior(2, 0.5)),
		transform: NewElementwiseTransform(CoordLogit, CoordLog),
	}, nil
}

// ID identifies the variant
func (m *EWMAModel) ID() string {
	return m.id
}

// ParameterDim returns 2: the smoothing weight and the noise scale
func (m *EWMAModel) ParameterDim() int {
	return 2
}

// ParameterNames returns per-dimension labels in theta order
func (m *EWMAModel) ParameterNames() []string {
	return []string{"weight", "sigma"}
}

// Transform maps theta between model space and sampler space
func (m *EWMAModel) Transform() ports.ParameterTransform {
	return m.transform
}

// LogPrior evaluates the joint log prior at theta
func (m *EWMAModel) LogPrior(theta []float64) float64 {
	return m.priors.LogDensity(theta)
}

// LogLikelihood scores one-step-ahead smoothed predictions.
// The level starts at the first response; observations 2..n contribute
// Gaussian terms around the running level, which updates as
// level = weight*y + (1-weight)*level after each observation.
func (m *EWMAModel) LogLikelihood(theta []float64, ds *dataset.Dataset) float64 {
	if len(theta) != 2 {
		return math.Inf(-1)
	}
	weight, sigma := theta[0], theta[1]
	if weight <= 0 || weight >= 1 || sigma <= 0 {
		return math.Inf(-1)
	}

	y := ds.Response()
	level := y[0]
	sse := 0.0
	for i := 1; i < len(y); i++ {
		resid := y[i] - level
		sse += resid * resid
		level = weight*y[i] + (1-weight)*level
	}

	nf := float64(len(y) - 1)
	return -0.5*nf*math.Log(2*math.Pi) - nf*math.Log(sigma) - sse/(2*sigma*sigma)
}
