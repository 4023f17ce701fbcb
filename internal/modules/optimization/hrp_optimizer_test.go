package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHRPOptimizer_AntiCorrelatedPairSplitsEvenly(t *testing.T) {
	// Two perfectly anti-correlated assets with identical variance: clustering
	// has one merge to make and bisection sees equal cluster variances, so the
	// split must be exactly 50/50.
	assets := []string{"A", "B"}
	returns := map[string][]float64{
		"A": {0.01, -0.01, 0.02, -0.02, 0.015, -0.015},
		"B": {-0.01, 0.01, -0.02, 0.02, -0.015, 0.015},
	}
	mu := map[string]float64{"A": 0.05, "B": 0.05}
	cov := [][]float64{
		{0.0004, -0.0004},
		{-0.0004, 0.0004},
	}

	hrp, err := NewHRPOptimizer(assets, returns, mu, cov, DefaultHRPOptions(), DefaultCleanOptions(), testLog)
	require.NoError(t, err)

	weights, perf, err := hrp.Optimize()
	require.NoError(t, err)

	assert.InDelta(t, 0.5, weights["A"], 1e-9)
	assert.InDelta(t, 0.5, weights["B"], 1e-9)
	assert.InDelta(t, 0.05, perf.ExpectedReturn, 1e-9)
}

func TestHRPOptimizer_FourAssets(t *testing.T) {
	table := fourAssetTable()
	mu, cov, err := estimateFor(table)
	require.NoError(t, err)
	returns, err := NewEstimator(testLog).DailyReturns(table)
	require.NoError(t, err)

	hrp, err := NewHRPOptimizer(table.Assets, returns, mu, cov, DefaultHRPOptions(), DefaultCleanOptions(), testLog)
	require.NoError(t, err)

	weights, perf, err := hrp.Optimize()
	require.NoError(t, err)
	assertValidWeights(t, weights, table.Assets)
	assert.Greater(t, perf.Volatility, 0.0)

	// Risk parity concentrates toward the low-volatility asset.
	assert.Greater(t, weights["BOND"], weights["GROWTH"])
}

func TestHRPOptimizer_Deterministic(t *testing.T) {
	table := fourAssetTable()
	mu, cov, err := estimateFor(table)
	require.NoError(t, err)
	returns, err := NewEstimator(testLog).DailyReturns(table)
	require.NoError(t, err)

	run := func() map[string]float64 {
		hrp, err := NewHRPOptimizer(table.Assets, returns, mu, cov, DefaultHRPOptions(), DefaultCleanOptions(), testLog)
		require.NoError(t, err)
		weights, _, err := hrp.Optimize()
		require.NoError(t, err)
		return weights
	}

	assert.Equal(t, run(), run())
}

func TestHRPOptimizer_FewerObservationsThanAssets(t *testing.T) {
	assets := []string{"A", "B", "C"}
	returns := map[string][]float64{
		"A": {0.01, 0.02},
		"B": {0.00, -0.01},
		"C": {0.02, 0.01},
	}
	mu := map[string]float64{"A": 0.05, "B": 0.03, "C": 0.07}
	cov := [][]float64{
		{0.01, 0.0, 0.0},
		{0.0, 0.01, 0.0},
		{0.0, 0.0, 0.01},
	}

	hrp, err := NewHRPOptimizer(assets, returns, mu, cov, DefaultHRPOptions(), DefaultCleanOptions(), testLog)
	require.NoError(t, err)

	_, _, err = hrp.Optimize()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOptimizationError)
}

func TestHRPOptimizer_SingleAsset(t *testing.T) {
	hrp, err := NewHRPOptimizer(
		[]string{"ONLY"},
		map[string][]float64{"ONLY": {0.01, -0.01, 0.02}},
		map[string]float64{"ONLY": 0.06},
		[][]float64{{0.02}},
		DefaultHRPOptions(),
		DefaultCleanOptions(),
		testLog,
	)
	require.NoError(t, err)

	weights, _, err := hrp.Optimize()
	require.NoError(t, err)
	assert.Equal(t, 1.0, weights["ONLY"])
}

func TestHRPOptimizer_AverageLinkage(t *testing.T) {
	table := fourAssetTable()
	mu, cov, err := estimateFor(table)
	require.NoError(t, err)
	returns, err := NewEstimator(testLog).DailyReturns(table)
	require.NoError(t, err)

	opts := HRPOptions{Linkage: LinkageAverage, RiskFreeRate: 0.02}
	hrp, err := NewHRPOptimizer(table.Assets, returns, mu, cov, opts, DefaultCleanOptions(), testLog)
	require.NoError(t, err)

	weights, _, err := hrp.Optimize()
	require.NoError(t, err)
	assertValidWeights(t, weights, table.Assets)
}
