package optimization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(ServiceConfig{MonteCarloSamples: 500}, testLog)
}

func TestService_AllStrategies(t *testing.T) {
	table := fourAssetTable()
	svc := newTestService()
	ctx := context.Background()

	// Pick an efficient-return target strictly inside the attainable band.
	mu, cov, err := estimateFor(table)
	require.NoError(t, err)
	mvo, err := NewMVOptimizer(table.Assets, mu, cov, DefaultCleanOptions(), testLog)
	require.NoError(t, err)
	_, gmvPerf, err := mvo.MinimizeVolatility(ctx)
	require.NoError(t, err)
	maxMu := mu[table.Assets[0]]
	for _, m := range mu {
		if m > maxMu {
			maxMu = m
		}
	}
	target := gmvPerf.ExpectedReturn + 0.5*(maxMu-gmvPerf.ExpectedReturn)

	seed := int64(21)

	cases := []Request{
		{Strategy: StrategyMaxSharpe, RiskFreeRate: 0.02},
		{Strategy: StrategyMinVolatility},
		{Strategy: StrategyEfficientRet, TargetReturn: &target},
		{Strategy: StrategyHRP, RiskFreeRate: 0.02},
		{Strategy: StrategyEqualWeight},
		{Strategy: StrategyMonteCarlo, RiskFreeRate: 0.02, Seed: &seed},
	}

	for _, req := range cases {
		t.Run(req.Strategy, func(t *testing.T) {
			result, err := svc.Optimize(ctx, table, req)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, req.Strategy, result.Strategy)
			assertValidWeights(t, result.Weights, table.Assets)
			assert.Greater(t, result.Performance.Volatility, 0.0)

			if req.Strategy == StrategyMonteCarlo {
				require.NotNil(t, result.Simulation)
				assert.Len(t, result.Simulation.Samples, 500)
			} else {
				assert.Nil(t, result.Simulation)
			}
		})
	}
}

func TestService_MonteCarloVolatilityMetric(t *testing.T) {
	table := fourAssetTable()
	svc := newTestService()
	seed := int64(5)

	result, err := svc.Optimize(context.Background(), table, Request{
		Strategy: StrategyMonteCarlo,
		Metric:   MetricVolatility,
		Seed:     &seed,
	})
	require.NoError(t, err)

	for _, sample := range result.Simulation.Samples {
		assert.LessOrEqual(t, result.Performance.Volatility, sample.Performance.Volatility)
	}
}

func TestService_UnknownStrategy(t *testing.T) {
	table := fourAssetTable()
	svc := newTestService()

	_, err := svc.Optimize(context.Background(), table, Request{Strategy: "black_litterman"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_EfficientReturnRequiresTarget(t *testing.T) {
	table := fourAssetTable()
	svc := newTestService()

	_, err := svc.Optimize(context.Background(), table, Request{Strategy: StrategyEfficientRet})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_InsufficientData(t *testing.T) {
	table := fourAssetTable()
	table.Dates = table.Dates[:1]
	for _, asset := range table.Assets {
		table.Prices[asset] = table.Prices[asset][:1]
	}

	svc := newTestService()
	_, err := svc.Optimize(context.Background(), table, Request{Strategy: StrategyEqualWeight})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
