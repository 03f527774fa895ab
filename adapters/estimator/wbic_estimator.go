package estimator

import (
	"fmt"
	"log"
	"math"

	"github.com/montanaflynn/stats"

	"gowbic/domain/core"
	"gowbic/domain/wbic"
	"gowbic/ports"
)

// WBICEstimator implements ports.EstimatorPort. It reduces a sampling trace
// to the widely applicable Bayesian information criterion
//
//	WBIC = -2 * mean(untempered log-likelihood over pooled retained draws)
//
// with a batch-means Monte Carlo standard error and, below the configured
// dimension ceiling, per-dimension convergence diagnostics.
type WBICEstimator struct{}

var _ ports.EstimatorPort = (*WBICEstimator)(nil)

// NewWBICEstimator creates the estimator
func NewWBICEstimator() *WBICEstimator {
	return &WBICEstimator{}
}

// Estimate scores one variant from its trace. The trace is read, never
// mutated, and the returned result is immutable.
func (e *WBICEstimator) Estimate(trace *wbic.Trace, spec ports.ModelSpec, cfg wbic.RunConfig) (*wbic.WBICResult, error) {
	if trace == nil {
		return nil, fmt.Errorf("%w: trace is nil", core.ErrConfigInvalid)
	}
	if spec == nil {
		return nil, fmt.Errorf("%w: model spec is nil", core.ErrConfigInvalid)
	}

	retained := trace.TotalRetained()
	if retained < cfg.MinRetainedDraws {
		return nil, core.NewInsufficientSamplesError(retained, cfg.MinRetainedDraws)
	}

	pooled := trace.PooledLogLikelihoods()
	mean, err := stats.Mean(pooled)
	if err != nil {
		return nil, fmt.Errorf("pooled mean: %w", err)
	}
	wbicValue := -2 * mean
	if math.IsNaN(wbicValue) || math.IsInf(wbicValue, 0) {
		return nil, fmt.Errorf("%w: WBIC for variant %s is not finite", core.ErrNumerical, trace.VariantID)
	}

	se := e.batchMeansSE(trace)

	result, err := wbic.NewWBICResult(trace.VariantID, wbicValue, 2*se, retained, spec.ParameterDim(), trace.Temperature)
	if err != nil {
		return nil, err
	}

	result.Diagnostics = e.diagnostics(trace, spec, cfg)
	result.ChainSummary = chainSummaries(trace)
	result.TraceHash = trace.Fingerprint()

	if !result.Diagnostics.Computed {
		log.Printf("[Estimator] variant %s: diagnostics skipped (%s)", trace.VariantID, result.Diagnostics.SkipReason)
	}

	return result, nil
}

// batchMeansSE estimates the Monte Carlo standard error of the pooled
// log-likelihood mean. Within each chain, consecutive draws are grouped into
// sqrt(n) batches whose means behave almost independently even though raw
// draws are autocorrelated; chain variances then combine with draw-count
// weights. Chains too short to batch fall back to the naive estimate.
func (e *WBICEstimator) batchMeansSE(trace *wbic.Trace) float64 {
	total := float64(trace.TotalRetained())
	if total == 0 {
		return 0
	}

	variance := 0.0
	usable := false
	for i := range trace.Chains {
		series := chainLogLiks(&trace.Chains[i])
		n := len(series)
		if n < 4 {
			continue
		}

		batchSize := int(math.Sqrt(float64(n)))
		numBatches := n / batchSize
		used := batchSize * numBatches

		batchMeans := make([]float64, numBatches)
		for b := 0; b < numBatches; b++ {
			sum := 0.0
			for j := b * batchSize; j < (b+1)*batchSize; j++ {
				sum += series[j]
			}
			batchMeans[b] = sum / float64(batchSize)
		}

		grand := 0.0
		for _, bm := range batchMeans {
			grand += bm
		}
		grand /= float64(numBatches)

		ssq := 0.0
		for _, bm := range batchMeans {
			diff := bm - grand
			ssq += diff * diff
		}
		if numBatches < 2 {
			continue
		}
		// Variance of this chain's mean estimate
		chainVar := float64(batchSize) * ssq / float64(numBatches-1) / float64(used)

		weight := float64(n) / total
		variance += weight * weight * chainVar
		usable = true
	}

	if !usable {
		sd, err := stats.StandardDeviation(trace.PooledLogLikelihoods())
		if err != nil {
			return 0
		}
		return sd / math.Sqrt(total)
	}
	return math.Sqrt(variance)
}

// diagnostics computes per-dimension ESS and split R-hat unless the
// parameter dimension exceeds the ceiling, in which case only the skip flag
// is reported and the WBIC value stands on its own.
func (e *WBICEstimator) diagnostics(trace *wbic.Trace, spec ports.ModelSpec, cfg wbic.RunConfig) wbic.Diagnostics {
	dim := spec.ParameterDim()
	if dim > cfg.DiagnosticDimCeiling {
		return wbic.Diagnostics{
			Computed:   false,
			SkipReason: fmt.Sprintf("parameter dimension %d exceeds diagnostic ceiling %d", dim, cfg.DiagnosticDimCeiling),
		}
	}

	diag := wbic.Diagnostics{
		Computed: true,
		ESS:      make([]float64, dim),
		RHat:     make([]float64, dim),
	}

	minESS := math.Inf(1)
	maxRHat := math.Inf(-1)
	for d := 0; d < dim; d++ {
		chains := make([][]float64, 0, len(trace.Chains))
		for i := range trace.Chains {
			if len(trace.Chains[i].Samples) == 0 {
				continue
			}
			chains = append(chains, chainDimension(&trace.Chains[i], d))
		}

		diag.ESS[d] = effectiveSampleSize(chains)
		diag.RHat[d] = splitRHat(chains)

		if diag.ESS[d] < minESS {
			minESS = diag.ESS[d]
		}
		if diag.RHat[d] > maxRHat {
			maxRHat = diag.RHat[d]
		}
	}
	diag.MinESS = minESS
	diag.MaxRHat = maxRHat
	return diag
}

// chainLogLiks extracts a chain's untempered log-likelihood series
func chainLogLiks(chain *wbic.ChainTrace) []float64 {
	out := make([]float64, len(chain.Samples))
	for i := range chain.Samples {
		out[i] = chain.Samples[i].LogLikelihood
	}
	return out
}

// chainDimension extracts one theta coordinate's series from a chain
func chainDimension(chain *wbic.ChainTrace, d int) []float64 {
	out := make([]float64, len(chain.Samples))
	for i := range chain.Samples {
		out[i] = chain.Samples[i].Theta[d]
	}
	return out
}

// chainSummaries compresses per-chain accounting for results and manifests
func chainSummaries(trace *wbic.Trace) []wbic.ChainSummary {
	out := make([]wbic.ChainSummary, len(trace.Chains))
	for i := range trace.Chains {
		c := &trace.Chains[i]
		out[i] = wbic.ChainSummary{
			ChainIndex:     c.Index,
			Retained:       len(c.Samples),
			AcceptanceRate: c.AcceptanceRate(),
			DivergenceRate: c.DivergenceRate(),
			Flagged:        c.Flagged,
		}
	}
	return out
}
