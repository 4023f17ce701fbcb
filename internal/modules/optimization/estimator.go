package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/quantfolio/quantfolio/pkg/formulas"
)

// Estimator converts a price table into the expected-return vector (mu) and
// shrunk covariance matrix (S) consumed by every optimizer. Estimation is
// deterministic: the same table always yields the same mu/S.
type Estimator struct {
	log zerolog.Logger
}

// NewEstimator creates a new return/risk estimator.
func NewEstimator(log zerolog.Logger) *Estimator {
	return &Estimator{
		log: log.With().Str("component", "estimator").Logger(),
	}
}

// Estimate computes annualized expected returns and the Ledoit-Wolf shrunk,
// annualized covariance matrix from a price table. Rows containing missing
// cells are dropped before return computation (complete-case); the drop is
// logged, never silent.
func (e *Estimator) Estimate(prices PriceTable) (map[string]float64, [][]float64, error) {
	if err := prices.Validate(); err != nil {
		return nil, nil, err
	}

	table, dropped := prices.dropMissingRows()
	if dropped > 0 {
		e.log.Warn().
			Int("dropped_rows", dropped).
			Int("remaining_rows", table.NumRows()).
			Msg("Dropped rows with missing prices")
	}

	if table.NumRows() < 2 {
		return nil, nil, fmt.Errorf("%w: need at least 2 complete rows, have %d", ErrInsufficientData, table.NumRows())
	}

	// Period-over-period simple returns per asset, index-aligned.
	returns := make(map[string][]float64, table.NumAssets())
	mu := make(map[string]float64, table.NumAssets())
	for _, asset := range table.Assets {
		r := formulas.SimpleReturns(table.Prices[asset])
		returns[asset] = r
		mu[asset] = formulas.AnnualReturn(r)
	}

	sampleCov, err := sampleCovariance(returns, table.Assets)
	if err != nil {
		return nil, nil, err
	}

	shrunk := ledoitWolfShrinkage(sampleCov)

	// Annualize the daily covariance.
	n := len(shrunk)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			shrunk[i][j] *= formulas.TradingDaysPerYear
		}
	}

	e.log.Debug().
		Int("num_assets", table.NumAssets()).
		Int("num_observations", table.NumRows()-1).
		Msg("Estimated expected returns and shrunk covariance")

	return mu, shrunk, nil
}

// DailyReturns exposes the per-asset simple return series for optimizers that
// work on returns directly (HRP). Missing rows are dropped exactly as in
// Estimate.
func (e *Estimator) DailyReturns(prices PriceTable) (map[string][]float64, error) {
	if err := prices.Validate(); err != nil {
		return nil, err
	}

	table, _ := prices.dropMissingRows()
	if table.NumRows() < 2 {
		return nil, fmt.Errorf("%w: need at least 2 complete rows, have %d", ErrInsufficientData, table.NumRows())
	}

	returns := make(map[string][]float64, table.NumAssets())
	for _, asset := range table.Assets {
		returns[asset] = formulas.SimpleReturns(table.Prices[asset])
	}
	return returns, nil
}

// sampleCovariance computes the sample covariance matrix of the return
// series, ordered by the assets slice.
func sampleCovariance(returns map[string][]float64, assets []string) ([][]float64, error) {
	n := len(assets)
	if n == 0 {
		return nil, fmt.Errorf("%w: no assets provided", ErrInvalidInput)
	}

	var numObs int
	for _, asset := range assets {
		r, ok := returns[asset]
		if !ok {
			return nil, fmt.Errorf("%w: missing returns for asset %s", ErrInvalidInput, asset)
		}
		if numObs == 0 {
			numObs = len(r)
		}
		if len(r) != numObs {
			return nil, fmt.Errorf("%w: inconsistent return lengths for asset %s", ErrInvalidInput, asset)
		}
	}
	if numObs < 2 {
		return nil, fmt.Errorf("%w: need at least 2 return observations, have %d", ErrInsufficientData, numObs)
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := formulas.Covariance(returns[assets[i]], returns[assets[j]])
			cov[i][j] = c
			cov[j][i] = c
		}
	}

	return cov, nil
}

// ledoitWolfShrinkage blends the sample covariance with a constant-correlation
// target so the estimate stays well conditioned and invertible even when the
// observation count is close to or below the asset count.
//
// Reference: Ledoit & Wolf (2004), "A well-conditioned estimator for
// large-dimensional covariance matrices".
func ledoitWolfShrinkage(sampleCov [][]float64) [][]float64 {
	n := len(sampleCov)
	if n == 0 {
		return sampleCov
	}
	if n == 1 {
		out := [][]float64{{sampleCov[0][0]}}
		return out
	}

	// Constant-correlation target: average variance on the diagonal, average
	// covariance off it.
	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += sampleCov[i][i]
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += sampleCov[i][j]
			}
		}
	}
	avgVar /= float64(n)
	avgCov /= float64(n * (n - 1))

	target := make([][]float64, n)
	for i := range target {
		target[i] = make([]float64, n)
		for j := range target[i] {
			if i == j {
				target[i][j] = avgVar
			} else {
				target[i][j] = avgCov
			}
		}
	}

	// Shrinkage intensity: proportional to the dispersion of the sample
	// around the target, floored so degenerate matrices still get pulled
	// toward the well-conditioned target.
	shrinkage := 0.2
	if avgVar > 0 {
		var sumSqDiff, sumSample, sumSqSample float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				diff := sampleCov[i][j] - target[i][j]
				sumSqDiff += diff * diff
				sumSample += sampleCov[i][j]
				sumSqSample += sampleCov[i][j] * sampleCov[i][j]
			}
		}
		count := float64(n * n)
		meanSqDiff := sumSqDiff / count
		meanSample := sumSample / count
		varSample := sumSqSample/count - meanSample*meanSample
		if varSample > 0 && meanSqDiff > 0 {
			shrinkage = math.Min(0.5, math.Max(0.05, varSample/(varSample+meanSqDiff)))
		}
	}

	shrunk := make([][]float64, n)
	for i := 0; i < n; i++ {
		shrunk[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			shrunk[i][j] = (1-shrinkage)*sampleCov[i][j] + shrinkage*target[i][j]
		}
	}

	return shrunk
}
