package testkit

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gowbic/adapters/model"
	"gowbic/domain/core"
	"gowbic/domain/dataset"
	"gowbic/ports"
)

// effectPattern holds the nonzero coefficients used for synthetic responses.
// The magnitudes are large against unit noise so the effective subset is
// recoverable at a few hundred observations.
var effectPattern = []float64{2.0, -1.5, 1.2, 2.5, -2.0}

const (
	syntheticIntercept = 1.0
	syntheticNoiseSD   = 1.0
)

// GenerateRegressionDataset builds a synthetic regression design: standard
// normal regressors, of which only the first `effective` carry signal. The
// same seed always reproduces the same dataset bit for bit.
func GenerateRegressionDataset(seed uint64, observations, regressors, effective int) (*dataset.Dataset, error) {
	if effective < 0 || effective > regressors {
		return nil, fmt.Errorf("%w: effective count %d outside [0, %d]", core.ErrConfigInvalid, effective, regressors)
	}

	src := rand.New(rand.NewPCG(seed, 0))

	betas := make([]float64, effective)
	for j := range betas {
		betas[j] = effectPattern[j%len(effectPattern)]
	}

	response := make([]float64, observations)
	rows := make([][]float64, observations)
	names := make([]string, regressors)
	for j := range names {
		names[j] = fmt.Sprintf("x%d", j+1)
	}

	for i := 0; i < observations; i++ {
		row := make([]float64, regressors)
		for j := range row {
			row[j] = src.NormFloat64()
		}
		rows[i] = row

		y := syntheticIntercept
		for j := 0; j < effective; j++ {
			y += betas[j] * row[j]
		}
		response[i] = y + syntheticNoiseSD*src.NormFloat64()
	}

	return dataset.New(fmt.Sprintf("synthetic-%d", seed), response, rows, names)
}

// NestedVariantFamily builds the standard evaluation set for a design with
// maxColumns regressors: nested linear subsets using the first k columns for
// k = 1..maxColumns, a Student-t regression on all columns, and an EWMA
// level model that ignores the regressors entirely.
func NestedVariantFamily(maxColumns int) ([]ports.ModelSpec, error) {
	if maxColumns < 1 {
		return nil, fmt.Errorf("%w: need at least one regressor column", core.ErrConfigInvalid)
	}

	variants := make([]ports.ModelSpec, 0, maxColumns+2)

	allColumns := make([]int, maxColumns)
	for j := range allColumns {
		allColumns[j] = j
	}

	for k := 1; k <= maxColumns; k++ {
		spec, err := model.NewLinearRegression(fmt.Sprintf("linear-%d", k), allColumns[:k])
		if err != nil {
			return nil, err
		}
		variants = append(variants, spec)
	}

	studentT, err := model.NewStudentTRegression(fmt.Sprintf("student-t-%d", maxColumns), allColumns, 4)
	if err != nil {
		return nil, err
	}
	variants = append(variants, studentT)

	ewma, err := model.NewEWMAModel("ewma-level")
	if err != nil {
		return nil, err
	}
	variants = append(variants, ewma)

	return variants, nil
}

// FailingSpec is a model fixture whose likelihood never evaluates to a
// finite value, so every chain diverges
type FailingSpec struct {
	SpecID string
	Dim    int
}

var _ ports.ModelSpec = (*FailingSpec)(nil)

func (f *FailingSpec) ID() string        { return f.SpecID }
func (f *FailingSpec) ParameterDim() int { return f.Dim }

func (f *FailingSpec) ParameterNames() []string {
	names := make([]string, f.Dim)
	for i := range names {
		names[i] = fmt.Sprintf("p%d", i+1)
	}
	return names
}

func (f *FailingSpec) LogPrior(theta []float64) float64 { return 0 }

func (f *FailingSpec) LogLikelihood(theta []float64, ds *dataset.Dataset) float64 {
	return math.NaN()
}

func (f *FailingSpec) Transform() ports.ParameterTransform { return model.Identity(f.Dim) }
