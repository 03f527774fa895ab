package model

import (
	"math"

	"gowbic/ports"
)

// CoordTransform names the map applied to a single coordinate
type CoordTransform string

const (
	CoordIdentity CoordTransform = "identity" // theta = u
	CoordLog      CoordTransform = "log"      // theta = exp(u), theta > 0
	CoordLogit    CoordTransform = "logit"    // theta = sigmoid(u), theta in (0,1)
)

// ElementwiseTransform applies an independent scalar map per coordinate.
// Chains walk in unconstrained space; constrained parameters such as scales
// (log) and weights (logit) stay inside their support by construction.
type ElementwiseTransform struct {
	coords []CoordTransform
}

var _ ports.ParameterTransform = (*ElementwiseTransform)(nil)

// NewElementwiseTransform builds a transform from per-coordinate kinds
func NewElementwiseTransform(coords ...CoordTransform) *ElementwiseTransform {
	owned := make([]CoordTransform, len(coords))
	copy(owned, coords)
	return &ElementwiseTransform{coords: owned}
}

// Identity builds the do-nothing transform for dim unconstrained coordinates
func Identity(dim int) *ElementwiseTransform {
	coords := make([]CoordTransform, dim)
	for i := range coords {
		coords[i] = CoordIdentity
	}
	return &ElementwiseTransform{coords: coords}
}

// Dim returns the coordinate count
func (t *ElementwiseTransform) Dim() int {
	return len(t.coords)
}

// ToConstrained maps an unconstrained point u into model space
func (t *ElementwiseTransform) ToConstrained(u []float64) []float64 {
	theta := make([]float64, len(u))
	for i, v := range u {
		switch t.coords[i] {
		case CoordLog:
			theta[i] = math.Exp(v)
		case CoordLogit:
			theta[i] = sigmoid(v)
		default:
			theta[i] = v
		}
	}
	return theta
}

// ToUnconstrained maps a model-space point theta into sampler space
func (t *ElementwiseTransform) ToUnconstrained(theta []float64) []float64 {
	u := make([]float64, len(theta))
	for i, v := range theta {
		switch t.coords[i] {
		case CoordLog:
			u[i] = math.Log(v)
		case CoordLogit:
			u[i] = math.Log(v / (1 - v))
		default:
			u[i] = v
		}
	}
	return u
}

// LogJacobian is log|det d theta / d u| at u. The maps are elementwise, so
// the determinant is the product of the per-coordinate derivatives.
func (t *ElementwiseTransform) LogJacobian(u []float64) float64 {
	sum := 0.0
	for i, v := range u {
		switch t.coords[i] {
		case CoordLog:
			// d exp(u)/du = exp(u)
			sum += v
		case CoordLogit:
			// d sigmoid(u)/du = sigmoid(u) * (1 - sigmoid(u))
			sum += -softplus(-v) - softplus(v)
		}
	}
	return sum
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// softplus computes log(1+exp(x)) without overflowing for large x
func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}
