package optimization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMVO(t *testing.T, table PriceTable) *MVOptimizer {
	t.Helper()
	mu, cov, err := estimateFor(table)
	require.NoError(t, err)
	mvo, err := NewMVOptimizer(table.Assets, mu, cov, DefaultCleanOptions(), testLog)
	require.NoError(t, err)
	return mvo
}

func assertValidWeights(t *testing.T, weights map[string]float64, assets []string) {
	t.Helper()
	require.Len(t, weights, len(assets))
	for asset, w := range weights {
		assert.GreaterOrEqual(t, w, 0.0, "weight for %s must be non-negative", asset)
		assert.LessOrEqual(t, w, 1.0+1e-9, "weight for %s must be <= 1", asset)
	}
	// Cleaning may drop up to threshold-sized weights without renormalizing.
	assert.InDelta(t, 1.0, weightSum(weights), 1e-3, "weights should sum to 1")
}

func TestMVOptimizer_MaximizeSharpe(t *testing.T) {
	table := fourAssetTable()
	mvo := newTestMVO(t, table)

	weights, perf, err := mvo.MaximizeSharpe(context.Background(), 0.02)
	require.NoError(t, err)
	assertValidWeights(t, weights, table.Assets)
	assert.Greater(t, perf.Volatility, 0.0)
	assert.Greater(t, perf.SharpeRatio, 0.0)
}

func TestMVOptimizer_MinVolatilityIsLowestVol(t *testing.T) {
	table := fourAssetTable()
	mvo := newTestMVO(t, table)
	ctx := context.Background()

	_, minVolPerf, err := mvo.MinimizeVolatility(ctx)
	require.NoError(t, err)

	_, sharpePerf, err := mvo.MaximizeSharpe(ctx, 0.02)
	require.NoError(t, err)

	mu, cov, err := estimateFor(table)
	require.NoError(t, err)
	ew, err := NewEqualWeightOptimizer(table.Assets, mu, cov, testLog)
	require.NoError(t, err)
	_, ewPerf, err := ew.Optimize()
	require.NoError(t, err)

	// The global minimum-variance portfolio cannot be beaten on volatility by
	// any other feasible portfolio (small slack for the numerical solver).
	assert.LessOrEqual(t, minVolPerf.Volatility, sharpePerf.Volatility+1e-6)
	assert.LessOrEqual(t, minVolPerf.Volatility, ewPerf.Volatility+1e-6)

	// And the tangency portfolio cannot be beaten on Sharpe. Equal weight's
	// summary uses rf 0, so recompute its Sharpe at the same rate.
	ewSharpe := (ewPerf.ExpectedReturn - 0.02) / ewPerf.Volatility
	assert.GreaterOrEqual(t, sharpePerf.SharpeRatio, ewSharpe-1e-6)
}

func TestMVOptimizer_EfficientReturnHitsTarget(t *testing.T) {
	table := fourAssetTable()
	mvo := newTestMVO(t, table)
	ctx := context.Background()

	// Pick a target strictly inside the attainable band.
	_, minVolPerf, err := mvo.MinimizeVolatility(ctx)
	require.NoError(t, err)

	mu, _, err := estimateFor(table)
	require.NoError(t, err)
	maxMu := mu[table.Assets[0]]
	for _, m := range mu {
		if m > maxMu {
			maxMu = m
		}
	}
	target := minVolPerf.ExpectedReturn + 0.5*(maxMu-minVolPerf.ExpectedReturn)

	weights, perf, err := mvo.EfficientReturn(ctx, target)
	require.NoError(t, err)
	assertValidWeights(t, weights, table.Assets)
	assert.InDelta(t, target, perf.ExpectedReturn, 2e-3, "achieved return should match target")
}

func TestMVOptimizer_EfficientReturnInfeasibleTarget(t *testing.T) {
	table := fourAssetTable()
	mvo := newTestMVO(t, table)
	ctx := context.Background()

	mu, _, err := estimateFor(table)
	require.NoError(t, err)
	maxMu := mu[table.Assets[0]]
	for _, m := range mu {
		if m > maxMu {
			maxMu = m
		}
	}

	// Above the best single asset: unattainable for a long-only portfolio.
	_, _, err = mvo.EfficientReturn(ctx, maxMu+0.10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOptimizationInfeasible)

	// Well below the global-minimum-volatility return is equally unattainable
	// on the efficient frontier.
	_, minVolPerf, err := mvo.MinimizeVolatility(ctx)
	require.NoError(t, err)
	_, _, err = mvo.EfficientReturn(ctx, minVolPerf.ExpectedReturn-0.10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOptimizationInfeasible)
}

func TestMVOptimizer_SingleAsset(t *testing.T) {
	table := makePriceTable(11, 300, []assetParams{{Symbol: "ONLY", Drift: 0.0005, Vol: 0.01}})
	mvo := newTestMVO(t, table)
	ctx := context.Background()

	weights, _, err := mvo.MaximizeSharpe(ctx, 0.02)
	require.NoError(t, err)
	assert.Equal(t, 1.0, weights["ONLY"])

	weights, _, err = mvo.MinimizeVolatility(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, weights["ONLY"])
}

func TestMVOptimizer_ContextCancellation(t *testing.T) {
	table := fourAssetTable()
	mvo := newTestMVO(t, table)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := mvo.MaximizeSharpe(ctx, 0.02)
	require.Error(t, err)
}

func TestMVOptimizer_ConstructorValidation(t *testing.T) {
	mu := map[string]float64{"A": 0.1, "B": 0.08}
	cov := [][]float64{{0.04, 0.01}, {0.01, 0.03}}

	_, err := NewMVOptimizer(nil, mu, cov, DefaultCleanOptions(), testLog)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewMVOptimizer([]string{"A", "B", "C"}, mu, cov, DefaultCleanOptions(), testLog)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewMVOptimizer([]string{"A", "X"}, mu, cov, DefaultCleanOptions(), testLog)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMVOptimizer_Deterministic(t *testing.T) {
	table := fourAssetTable()
	ctx := context.Background()

	w1, _, err := newTestMVO(t, table).MaximizeSharpe(ctx, 0.02)
	require.NoError(t, err)
	w2, _, err := newTestMVO(t, table).MaximizeSharpe(ctx, 0.02)
	require.NoError(t, err)

	assert.Equal(t, w1, w2)
}
