package optimization

import (
	"fmt"

	"github.com/rs/zerolog"
)

// EqualWeightOptimizer is the max-diversification baseline: exactly 1/N per
// asset, no optimization and no randomness. The performance summary is
// computed from the same mu/S as every other optimizer (risk-free rate 0, so
// the Sharpe is approximate).
type EqualWeightOptimizer struct {
	assets []string
	mu     []float64
	cov    [][]float64
	log    zerolog.Logger
}

// NewEqualWeightOptimizer creates the baseline optimizer from estimator output.
func NewEqualWeightOptimizer(
	assets []string,
	expectedReturns map[string]float64,
	covMatrix [][]float64,
	log zerolog.Logger,
) (*EqualWeightOptimizer, error) {
	n := len(assets)
	if n == 0 {
		return nil, fmt.Errorf("%w: no assets provided", ErrInvalidInput)
	}
	if len(covMatrix) != n {
		return nil, fmt.Errorf("%w: covariance matrix size %d does not match asset count %d", ErrInvalidInput, len(covMatrix), n)
	}

	mu := make([]float64, n)
	for i, asset := range assets {
		mu[i] = expectedReturns[asset]
	}

	return &EqualWeightOptimizer{
		assets: assets,
		mu:     mu,
		cov:    covMatrix,
		log:    log.With().Str("component", "equal_weight").Logger(),
	}, nil
}

// Optimize assigns each of the N assets weight 1/N exactly.
func (ew *EqualWeightOptimizer) Optimize() (map[string]float64, PerformanceSummary, error) {
	n := len(ew.assets)
	weights := make(map[string]float64, n)
	w := 1.0 / float64(n)
	for _, asset := range ew.assets {
		weights[asset] = w
	}

	perf := evaluatePerformance(weights, ew.assets, ew.mu, ew.cov, 0.0)
	return weights, perf, nil
}
