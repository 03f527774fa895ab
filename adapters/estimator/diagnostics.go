package estimator

import (
	"math"

	"github.com/montanaflynn/stats"
)

// effectiveSampleSize estimates how many independent draws the pooled chains
// are worth for one coordinate. Lag autocorrelations are averaged across
// chains and accumulated with the initial-positive-sequence rule: lag pairs
// are added while their sum stays positive, then the sum is cut off.
func effectiveSampleSize(chains [][]float64) float64 {
	total := 0
	minLen := math.MaxInt
	for _, c := range chains {
		total += len(c)
		if len(c) < minLen {
			minLen = len(c)
		}
	}
	if total == 0 || len(chains) == 0 {
		return 0
	}

	pooled := make([]float64, 0, total)
	for _, c := range chains {
		pooled = append(pooled, c...)
	}
	if sd, err := stats.StandardDeviation(pooled); err != nil || sd == 0 {
		// A frozen coordinate carries no information
		return 0
	}

	tau := 1.0
	for lag := 1; lag+1 < minLen; lag += 2 {
		rho1 := averagedAutocorrelation(chains, lag)
		rho2 := averagedAutocorrelation(chains, lag+1)
		if rho1+rho2 <= 0 {
			break
		}
		tau += 2 * (rho1 + rho2)
	}

	ess := float64(total) / tau
	if ess > float64(total) {
		ess = float64(total)
	}
	return ess
}

// averagedAutocorrelation averages the lag-k autocorrelation across chains,
// each computed against its own mean
func averagedAutocorrelation(chains [][]float64, lag int) float64 {
	sum := 0.0
	count := 0
	for _, data := range chains {
		if len(data) <= lag {
			continue
		}
		sum += autocorrelation(data, lag)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// autocorrelation computes the lag-k sample autocorrelation of data
func autocorrelation(data []float64, lag int) float64 {
	if len(data) <= lag {
		return 0
	}

	n := len(data) - lag
	mean, _ := stats.Mean(data)

	numerator := 0.0
	denom1 := 0.0
	denom2 := 0.0

	for i := 0; i < n; i++ {
		diff1 := data[i] - mean
		diff2 := data[i+lag] - mean
		numerator += diff1 * diff2
		denom1 += diff1 * diff1
		denom2 += diff2 * diff2
	}

	if denom1 == 0 || denom2 == 0 {
		return 0
	}
	return numerator / math.Sqrt(denom1*denom2)
}

// splitRHat computes the split potential scale reduction for one coordinate.
// Every chain is halved; disagreement between half means inflates the
// between-sequence variance relative to the within-sequence variance and
// pushes the statistic above 1. Degenerate inputs (fewer than two usable
// halves) report exactly 1.
func splitRHat(chains [][]float64) float64 {
	halves := make([][]float64, 0, 2*len(chains))
	minLen := math.MaxInt
	for _, c := range chains {
		h := len(c) / 2
		if h < 2 {
			continue
		}
		halves = append(halves, c[:h], c[h:2*h])
		if h < minLen {
			minLen = h
		}
	}
	if len(halves) < 2 {
		return 1
	}

	// Truncate halves to a common length so the variance decomposition is exact
	m := minLen
	means := make([]float64, len(halves))
	within := 0.0
	for i, h := range halves {
		trimmed := h[:m]
		mean, _ := stats.Mean(trimmed)
		v, _ := stats.SampleVariance(trimmed)
		means[i] = mean
		within += v
	}
	within /= float64(len(halves))

	meanVar, _ := stats.SampleVariance(means)
	between := float64(m) * meanVar

	if within == 0 {
		if between == 0 {
			return 1
		}
		return math.Inf(1)
	}

	varPlus := float64(m-1)/float64(m)*within + between/float64(m)
	return math.Sqrt(varPlus / within)
}
