package optimization

import (
	"fmt"
	"math"
	"time"
)

// PriceTable is a time-ordered table of historical prices, one column per
// asset. The table is read-only input owned by the caller. Missing cells are
// marked NaN and dropped (whole row) before return computation.
type PriceTable struct {
	Dates  []time.Time
	Assets []string
	// Prices[asset][i] is the price of asset at Dates[i].
	Prices map[string][]float64
}

// NumRows returns the number of trading periods in the table.
func (pt PriceTable) NumRows() int {
	return len(pt.Dates)
}

// NumAssets returns the number of asset columns in the table.
func (pt PriceTable) NumAssets() int {
	return len(pt.Assets)
}

// Validate checks the structural invariants: at least one asset column,
// strictly increasing unique timestamps, aligned column lengths, and prices
// that are either positive or NaN (missing).
func (pt PriceTable) Validate() error {
	if pt.NumAssets() == 0 {
		return fmt.Errorf("%w: price table has no assets", ErrInvalidInput)
	}
	if pt.NumRows() == 0 {
		return fmt.Errorf("%w: price table has no rows", ErrInvalidInput)
	}

	for i := 1; i < len(pt.Dates); i++ {
		if !pt.Dates[i].After(pt.Dates[i-1]) {
			return fmt.Errorf("%w: timestamps must be strictly increasing (row %d)", ErrInvalidInput, i)
		}
	}

	for _, asset := range pt.Assets {
		col, ok := pt.Prices[asset]
		if !ok {
			return fmt.Errorf("%w: missing price column for asset %s", ErrInvalidInput, asset)
		}
		if len(col) != pt.NumRows() {
			return fmt.Errorf("%w: asset %s has %d prices, expected %d", ErrInvalidInput, asset, len(col), pt.NumRows())
		}
		for i, p := range col {
			if math.IsNaN(p) {
				continue // missing observation, handled by row dropping
			}
			if p <= 0 || math.IsInf(p, 0) {
				return fmt.Errorf("%w: asset %s has non-positive price %v at row %d", ErrInvalidInput, asset, p, i)
			}
		}
	}

	return nil
}

// dropMissingRows returns a copy of the table with every row that contains a
// missing cell removed (complete-case), along with the number of rows dropped.
func (pt PriceTable) dropMissingRows() (PriceTable, int) {
	keep := make([]int, 0, pt.NumRows())
	for i := 0; i < pt.NumRows(); i++ {
		complete := true
		for _, asset := range pt.Assets {
			if math.IsNaN(pt.Prices[asset][i]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}

	if len(keep) == pt.NumRows() {
		return pt, 0
	}

	out := PriceTable{
		Dates:  make([]time.Time, 0, len(keep)),
		Assets: pt.Assets,
		Prices: make(map[string][]float64, pt.NumAssets()),
	}
	for _, i := range keep {
		out.Dates = append(out.Dates, pt.Dates[i])
	}
	for _, asset := range pt.Assets {
		col := make([]float64, 0, len(keep))
		for _, i := range keep {
			col = append(col, pt.Prices[asset][i])
		}
		out.Prices[asset] = col
	}

	return out, pt.NumRows() - len(keep)
}

// PerformanceSummary describes a weight vector's expected annual return,
// annual volatility, and Sharpe ratio, all derived from the same mu/S the
// optimizer used.
type PerformanceSummary struct {
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// SimulatedPortfolio is one Monte Carlo draw: a weight vector and its
// evaluated performance.
type SimulatedPortfolio struct {
	Weights     map[string]float64 `json:"weights"`
	Performance PerformanceSummary `json:"performance"`
}

// SimulationResult is the full table of Monte Carlo draws from a single run.
// The table is retained so callers can render the simulated frontier.
type SimulationResult struct {
	RunID        string               `json:"run_id"`
	RiskFreeRate float64              `json:"risk_free_rate"`
	Sampler      string               `json:"sampler"`
	Samples      []SimulatedPortfolio `json:"samples"`
}
