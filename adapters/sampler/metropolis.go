package sampler

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"gowbic/domain/core"
	"gowbic/domain/wbic"
	"gowbic/ports"
)

const (
	// adaptWindow is the warmup step count between proposal scale adjustments
	adaptWindow = 50
	// adaptFactor is the multiplicative scale nudge per adjustment
	adaptFactor = 1.1
	// maxStartAttempts bounds the search for a finite starting point
	maxStartAttempts = 100
	// startSpread disperses chain starting points in unconstrained space
	startSpread = 0.5
)

// TemperedMetropolis implements ports.SamplerPort with an adaptive Gaussian
// random-walk kernel. Chains walk in unconstrained space against
//
//	log target(u) = log prior(theta(u)) + t * log lik(theta(u)) + log|J(u)|
//
// with the temperature t fixed by the dataset. Every retained draw records
// the untempered log-likelihood, which is what WBIC averages.
type TemperedMetropolis struct {
	rngPort ports.RNGPort
}

var _ ports.SamplerPort = (*TemperedMetropolis)(nil)

// NewTemperedMetropolis creates a sampler drawing chain streams from rngPort
func NewTemperedMetropolis(rngPort ports.RNGPort) *TemperedMetropolis {
	return &TemperedMetropolis{rngPort: rngPort}
}

// Sample runs every chain for one variant and assembles the trace.
// Chains are independent goroutines with private RNG streams; within a chain
// steps are strictly sequential, so a fixed request reproduces bit-identical
// draws no matter how chains are scheduled.
func (s *TemperedMetropolis) Sample(ctx context.Context, req ports.SampleRequest) (*wbic.Trace, error) {
	if req.Spec == nil {
		return nil, fmt.Errorf("%w: model spec is nil", core.ErrConfigInvalid)
	}
	if req.Dataset == nil {
		return nil, fmt.Errorf("%w: dataset is nil", core.ErrConfigInvalid)
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	if req.Spec.ParameterDim() < 1 {
		return nil, fmt.Errorf("%w: model %s has no parameters", core.ErrConfigInvalid, req.Spec.ID())
	}

	cfg := req.Config
	temperature := req.Dataset.Temperature()
	variantID := core.VariantID(req.Spec.ID())

	chains := make([]wbic.ChainTrace, cfg.Chains)
	var wg sync.WaitGroup
	for c := 0; c < cfg.Chains; c++ {
		rng, err := s.rngPort.ChainStream(ctx, req.Spec.ID(), c, cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("chain %d stream: %w", c, err)
		}

		wg.Add(1)
		go func(idx int, rng *rand.Rand) {
			defer wg.Done()
			chains[idx] = s.runChain(ctx, idx, rng, req, temperature)
		}(c, rng)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: variant %s: %v", core.ErrSweepCancelled, variantID, err)
	}

	flagged := 0
	for i := range chains {
		if chains[i].Flagged {
			flagged++
		}
	}
	if flagged == cfg.Chains {
		log.Printf("[Sampler] variant %s: all %d chains divergent", variantID, cfg.Chains)
		return nil, core.NewConvergenceError(req.Spec.ID(), flagged, cfg.Chains)
	}

	return &wbic.Trace{
		VariantID:     variantID,
		Chains:        chains,
		Seed:          cfg.Seed,
		Temperature:   temperature,
		WarmupDraws:   cfg.WarmupDraws,
		RetainedDraws: cfg.RetainedDraws,
	}, nil
}

// point is a fully evaluated location in unconstrained space
type point struct {
	u         []float64
	theta     []float64
	logLik    float64 // untempered
	logTarget float64
}

// runChain executes warmup plus retained sampling for a single chain.
// All randomness comes from rng; the chain never touches shared state.
func (s *TemperedMetropolis) runChain(ctx context.Context, idx int, rng *rand.Rand, req ports.SampleRequest, temperature float64) wbic.ChainTrace {
	cfg := req.Config
	dim := req.Spec.ParameterDim()
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	trace := wbic.ChainTrace{Index: idx}

	cur, ok := s.findStart(rng, noise, req, temperature, &trace)
	if !ok {
		// No finite starting point: the chain cannot move at all
		trace.Flagged = true
		return trace
	}

	scale := cfg.InitialScale
	windowAccepts := 0
	totalSteps := cfg.WarmupDraws + cfg.RetainedDraws
	proposal := make([]float64, dim)

	for step := 0; step < totalSteps; step++ {
		select {
		case <-ctx.Done():
			return trace
		default:
		}

		for d := 0; d < dim; d++ {
			proposal[d] = cur.u[d] + scale*noise.Rand()
		}
		trace.Proposed++

		cand, finite := s.evaluate(proposal, req, temperature)
		accepted := false
		if !finite {
			// Non-finite target: rejected proposal, chain keeps its state
			trace.Divergences++
		} else if logAccept := cand.logTarget - cur.logTarget; logAccept >= 0 || math.Log(rng.Float64()) < logAccept {
			cur = cand
			accepted = true
			trace.Accepted++
		}

		warming := step < cfg.WarmupDraws
		if warming {
			if accepted {
				windowAccepts++
			}
			// Nudge the scale toward the target acceptance rate, frozen
			// once warmup ends so the retained chain stays Markovian
			if (step+1)%adaptWindow == 0 {
				rate := float64(windowAccepts) / float64(adaptWindow)
				if rate > cfg.TargetAcceptance {
					scale *= adaptFactor
				} else {
					scale /= adaptFactor
				}
				windowAccepts = 0
			}
		} else {
			trace.Samples = append(trace.Samples, wbic.PosteriorSample{
				Theta:         cur.theta,
				LogLikelihood: cur.logLik,
			})
		}
	}

	if trace.DivergenceRate() > cfg.DivergenceThreshold {
		trace.Flagged = true
	}
	return trace
}

// findStart draws dispersed starting points until the target is finite
func (s *TemperedMetropolis) findStart(rng *rand.Rand, noise distuv.Normal, req ports.SampleRequest, temperature float64, trace *wbic.ChainTrace) (point, bool) {
	dim := req.Spec.ParameterDim()
	u := make([]float64, dim)
	for attempt := 0; attempt < maxStartAttempts; attempt++ {
		for d := 0; d < dim; d++ {
			u[d] = startSpread * noise.Rand()
		}
		trace.Proposed++
		if cand, finite := s.evaluate(u, req, temperature); finite {
			return cand, true
		}
		trace.Divergences++
	}
	return point{}, false
}

// evaluate maps u into model space and scores the tempered target.
// finite is false when any component is NaN or infinite, which callers
// treat as a rejected proposal.
func (s *TemperedMetropolis) evaluate(u []float64, req ports.SampleRequest, temperature float64) (point, bool) {
	transform := req.Spec.Transform()

	owned := make([]float64, len(u))
	copy(owned, u)

	theta := transform.ToConstrained(owned)
	logPrior := req.Spec.LogPrior(theta)
	logLik := req.Spec.LogLikelihood(theta, req.Dataset)
	logJac := transform.LogJacobian(owned)

	logTarget := logPrior + temperature*logLik + logJac
	if math.IsNaN(logTarget) || math.IsInf(logTarget, 0) {
		return point{}, false
	}

	return point{u: owned, theta: theta, logLik: logLik, logTarget: logTarget}, true
}
