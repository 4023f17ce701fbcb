package optimization

import (
	"math"

	"github.com/quantfolio/quantfolio/pkg/formulas"
)

// DefaultCleanThreshold zeroes weights that are numerically negligible on
// output. Matches the reference behavior of clean_weights.
const DefaultCleanThreshold = 1e-4

// CleanOptions controls output weight cleaning. Renormalize redistributes the
// cleaned mass proportionally so the vector sums to 1 again; the reference
// behavior leaves the sum slightly below 1, so it defaults to off.
type CleanOptions struct {
	Threshold   float64
	Renormalize bool
}

// DefaultCleanOptions returns the reference-parity cleaning configuration.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{Threshold: DefaultCleanThreshold, Renormalize: false}
}

// cleanWeights zeroes entries below the threshold. Cleaning happens on output
// only, never during computation.
func cleanWeights(weights map[string]float64, opts CleanOptions) map[string]float64 {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultCleanThreshold
	}

	cleaned := make(map[string]float64, len(weights))
	sum := 0.0
	for asset, w := range weights {
		if w < threshold {
			cleaned[asset] = 0.0
			continue
		}
		cleaned[asset] = w
		sum += w
	}

	if opts.Renormalize && sum > 0 {
		for asset, w := range cleaned {
			cleaned[asset] = w / sum
		}
	}

	return cleaned
}

// evaluatePerformance recomputes return, volatility, and Sharpe directly from
// the final weights and the mu/S the optimizer was built with. Feeding a
// returned weight vector back through this function reproduces the reported
// summary exactly.
func evaluatePerformance(
	weights map[string]float64,
	assets []string,
	mu []float64,
	cov [][]float64,
	riskFreeRate float64,
) PerformanceSummary {
	w := make([]float64, len(assets))
	for i, asset := range assets {
		w[i] = weights[asset]
	}
	ret, vol := evaluateVector(w, mu, cov)
	return PerformanceSummary{
		ExpectedReturn: ret,
		Volatility:     vol,
		SharpeRatio:    formulas.SharpeRatio(ret, vol, riskFreeRate),
	}
}

// evaluateVector computes mu'w and sqrt(w'Sw) for an index-aligned weight vector.
func evaluateVector(w, mu []float64, cov [][]float64) (ret, vol float64) {
	n := len(w)
	var variance float64
	for i := 0; i < n; i++ {
		ret += mu[i] * w[i]
		for j := 0; j < n; j++ {
			variance += w[i] * w[j] * cov[i][j]
		}
	}
	return ret, math.Sqrt(math.Max(variance, 0))
}
