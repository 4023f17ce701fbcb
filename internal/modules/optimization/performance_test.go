package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanWeights_ZeroesBelowThreshold(t *testing.T) {
	weights := map[string]float64{
		"A": 0.60,
		"B": 0.39995,
		"C": 0.00005,
	}

	cleaned := cleanWeights(weights, DefaultCleanOptions())

	assert.Equal(t, 0.60, cleaned["A"])
	assert.Equal(t, 0.39995, cleaned["B"])
	assert.Equal(t, 0.0, cleaned["C"])

	// Reference behavior: no renormalization, so the sum drops slightly below 1.
	assert.InDelta(t, 0.99995, weightSum(cleaned), 1e-12)
}

func TestCleanWeights_Renormalize(t *testing.T) {
	weights := map[string]float64{
		"A": 0.60,
		"B": 0.39995,
		"C": 0.00005,
	}

	cleaned := cleanWeights(weights, CleanOptions{Threshold: 1e-4, Renormalize: true})

	assert.Equal(t, 0.0, cleaned["C"])
	assert.InDelta(t, 1.0, weightSum(cleaned), 1e-12)
	assert.InDelta(t, 0.60/0.99995, cleaned["A"], 1e-12)
}

func TestCleanWeights_DefaultThresholdWhenUnset(t *testing.T) {
	weights := map[string]float64{"A": 0.99999, "B": 0.00001}

	cleaned := cleanWeights(weights, CleanOptions{})

	assert.Equal(t, 0.0, cleaned["B"])
}

func TestEvaluatePerformance(t *testing.T) {
	assets := []string{"A", "B"}
	mu := []float64{0.10, 0.06}
	cov := [][]float64{
		{0.04, 0.00},
		{0.00, 0.01},
	}
	weights := map[string]float64{"A": 0.5, "B": 0.5}

	perf := evaluatePerformance(weights, assets, mu, cov, 0.02)

	assert.InDelta(t, 0.08, perf.ExpectedReturn, 1e-12)
	// sqrt(0.25*0.04 + 0.25*0.01) = sqrt(0.0125)
	assert.InDelta(t, 0.1118033988749895, perf.Volatility, 1e-12)
	assert.InDelta(t, (0.08-0.02)/0.1118033988749895, perf.SharpeRatio, 1e-12)
}
