package optimization

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// testLog is the silent logger used across the package tests.
var testLog = zerolog.Nop()

// assetParams drives the synthetic price generator: daily drift and daily
// volatility per asset.
type assetParams struct {
	Symbol string
	Drift  float64
	Vol    float64
}

// makePriceTable generates a seeded geometric random-walk price table with
// one column per asset and numRows daily rows.
func makePriceTable(seed int64, numRows int, params []assetParams) PriceTable {
	rng := rand.New(rand.NewSource(seed))

	table := PriceTable{
		Dates:  make([]time.Time, numRows),
		Assets: make([]string, len(params)),
		Prices: make(map[string][]float64, len(params)),
	}

	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < numRows; i++ {
		table.Dates[i] = start.AddDate(0, 0, i)
	}

	for k, p := range params {
		table.Assets[k] = p.Symbol
		col := make([]float64, numRows)
		price := 100.0
		for i := 0; i < numRows; i++ {
			col[i] = price
			price *= 1 + p.Drift + p.Vol*rng.NormFloat64()
			if price < 1 {
				price = 1
			}
		}
		table.Prices[p.Symbol] = col
	}

	return table
}

// fourAssetTable is the shared realistic scenario: four assets with distinct
// risk/return profiles over roughly four years of daily data.
func fourAssetTable() PriceTable {
	return makePriceTable(42, 1000, []assetParams{
		{Symbol: "GROWTH", Drift: 0.0008, Vol: 0.020},
		{Symbol: "VALUE", Drift: 0.0004, Vol: 0.012},
		{Symbol: "BOND", Drift: 0.0002, Vol: 0.004},
		{Symbol: "COMMODITY", Drift: 0.0003, Vol: 0.016},
	})
}

// estimateFor runs the estimator over a table and fails the test on error.
func estimateFor(table PriceTable) (map[string]float64, [][]float64, error) {
	return NewEstimator(testLog).Estimate(table)
}

// weightSum adds up a weight map.
func weightSum(weights map[string]float64) float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	return sum
}
