package model

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Prior is a single-coordinate prior density in model space
type Prior interface {
	LogDensity(x float64) float64
}

// NormalPrior is a Gaussian prior, the default for unconstrained coefficients
type NormalPrior struct {
	dist distuv.Normal
}

// NewNormalPrior creates a Normal(mu, sigma) prior
func NewNormalPrior(mu, sigma float64) NormalPrior {
	return NormalPrior{dist: distuv.Normal{Mu: mu, Sigma: sigma}}
}

// LogDensity returns the log density at x
func (p NormalPrior) LogDensity(x float64) float64 {
	return p.dist.LogProb(x)
}

// GammaPrior is supported on x > 0, used for scale parameters
type GammaPrior struct {
	dist distuv.Gamma
}

// NewGammaPrior creates a Gamma(alpha, beta) prior with rate parameter beta
func NewGammaPrior(alpha, beta float64) GammaPrior {
	return GammaPrior{dist: distuv.Gamma{Alpha: alpha, Beta: beta}}
}

// LogDensity returns the log density at x, -Inf outside the support
func (p GammaPrior) LogDensity(x float64) float64 {
	if x <= 0 {
		return math.Inf(-1)
	}
	return p.dist.LogProb(x)
}

// BetaPrior is supported on (0, 1), used for smoothing weights
type BetaPrior struct {
	dist distuv.Beta
}

// NewBetaPrior creates a Beta(alpha, beta) prior
func NewBetaPrior(alpha, beta float64) BetaPrior {
	return BetaPrior{dist: distuv.Beta{Alpha: alpha, Beta: beta}}
}

// LogDensity returns the log density at x, -Inf outside the support
func (p BetaPrior) LogDensity(x float64) float64 {
	if x <= 0 || x >= 1 {
		return math.Inf(-1)
	}
	return p.dist.LogProb(x)
}

// PriorSet is an independent prior per theta coordinate
type PriorSet struct {
	priors []Prior
}

// NewPriorSet assembles per-coordinate priors in theta order
func NewPriorSet(priors ...Prior) *PriorSet {
	owned := make([]Prior, len(priors))
	copy(owned, priors)
	return &PriorSet{priors: owned}
}

// Dim returns the coordinate count
func (s *PriorSet) Dim() int {
	return len(s.priors)
}

// LogDensity sums the per-coordinate log densities. A coordinate outside its
// prior's support makes the whole value -Inf, which the sampler treats as a
// rejected proposal.
func (s *PriorSet) LogDensity(theta []float64) float64 {
	if len(theta) != len(s.priors) {
		return math.Inf(-1)
	}
	sum := 0.0
	for i, p := range s.priors {
		sum += p.LogDensity(theta[i])
	}
	return sum
}
