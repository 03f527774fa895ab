package model

import (
	"fmt"
	"math"

	"gowbic/domain/dataset"
	"gowbic/ports"
)

// LinearRegression is a Gaussian regression on a subset of the dataset's
// regressor columns. Theta is (intercept, one coefficient per column, sigma).
// Nested subsets of the same column ordering give a family of candidates
// whose scores are directly comparable under one dataset.
type LinearRegression struct {
	id        string
	columns   []int
	names     []string
	priors    *PriorSet
	transform ports.ParameterTransform
}

var _ ports.ModelSpec = (*LinearRegression)(nil)

// NewLinearRegression builds a variant restricted to the given columns.
// Column indices must exist in every dataset the variant is evaluated
// against. Coefficients carry Normal(0, 10) priors; sigma carries a
// Gamma(2, 0.5) prior and a log transform keeps it positive while sampling.
func NewLinearRegression(id string, columns []int) (*LinearRegression, error) {
	if id == "" {
		return nil, fmt.Errorf("model id cannot be empty")
	}
	for _, c := range columns {
		if c < 0 {
			return nil, fmt.Errorf("negative column index %d", c)
		}
	}

	dim := len(columns) + 2
	priors := make([]Prior, 0, dim)
	coords := make([]CoordTransform, 0, dim)
	names := make([]string, 0, dim)

	priors = append(priors, NewNormalPrior(0, 10))
	coords = append(coords, CoordIdentity)
	names = append(names, "intercept")

	for _, c := range columns {
		priors = append(priors, NewNormalPrior(0, 10))
		coords = append(coords, CoordIdentity)
		names = append(names, fmt.Sprintf("beta_%d", c))
	}

	priors = append(priors, NewGammaPrior(2, 0.5))
	coords = append(coords, CoordLog)
	names = append(names, "sigma")

	owned := make([]int, len(columns))
	copy(owned, columns)

	return &LinearRegression{
		id:        id,
		columns:   owned,
		names:     names,
		priors:    NewPriorSet(priors...),
		transform: NewElementwiseTransform(coords...),
	}, nil
}

// NewInterceptOnly builds the null model: a constant mean plus noise
func NewInterceptOnly(id string) (*LinearRegression, error) {
	return NewLinearRegression(id, nil)
}

// ID identifies the variant
func (m *LinearRegression) ID() string {
	return m.id
}

// ParameterDim returns the theta length: intercept, coefficients, sigma
func (m *LinearRegression) ParameterDim() int {
	return len(m.columns) + 2
}

// ParameterNames returns per-dimension labels in theta order
func (m *LinearRegression) ParameterNames() []string {
	names := make([]string, len(m.names))
	copy(names, m.names)
	return names
}

// Columns returns the regressor subset this variant reads
func (m *LinearRegression) Columns() []int {
	cols := make([]int, len(m.columns))
	copy(cols, m.columns)
	return cols
}

// Transform maps theta between model space and sampler space
func (m *LinearRegression) Transform() ports.ParameterTransform {
	return m.transform
}

// LogPrior evaluates the joint log prior at theta
func (m *LinearRegression) LogPrior(theta []float64) float64 {
	return m.priors.LogDensity(theta)
}

// LogLikelihood evaluates the Gaussian log-likelihood
// ll = -n/2 ln(2 pi) - n ln(sigma) - SSE / (2 sigma^2)
func (m *LinearRegression) LogLikelihood(theta []float64, ds *dataset.Dataset) float64 {
	if len(theta) != m.ParameterDim() {
		return math.Inf(-1)
	}
	sigma := theta[len(theta)-1]
	if sigma <= 0 {
		return math.Inf(-1)
	}
	for _, c := range m.columns {
		if c >= ds.RegressorCount() {
			return math.Inf(-1)
		}
	}

	y := ds.Response()
	n := len(y)
	sse := 0.0
	for i := 0; i < n; i++ {
		row := ds.Row(i)
		mean := theta[0]
		for j, c := range m.columns {
			mean += theta[j+1] * row[c]
		}
		resid := y[i] - mean
		sse += resid * resid
	}

	nf := float64(n)
	return -0.5*nf*math.Log(2*math.Pi) - nf*math.Log(sigma) - sse/(2*sigma*sigma)
}
