package formulas

import (
	"fmt"
	"math"
)

// CorrelationMatrixFromCovariance converts a covariance matrix into a
// correlation matrix: corr(i,j) = cov(i,j) / sqrt(var(i) * var(j)).
// Zero-variance assets correlate 0 with everything and 1 with themselves.
func CorrelationMatrixFromCovariance(cov [][]float64) ([][]float64, error) {
	n := len(cov)
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix")
	}
	for i := range cov {
		if len(cov[i]) != n {
			return nil, fmt.Errorf("covariance matrix is not square: row %d has %d columns, expected %d", i, len(cov[i]), n)
		}
	}

	corr := make([][]float64, n)
	for i := range corr {
		corr[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		corr[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			vi := cov[i][i]
			vj := cov[j][j]
			if vi <= 0 || vj <= 0 {
				continue
			}
			c := cov[i][j] / math.Sqrt(vi*vj)
			c = math.Max(-1.0, math.Min(1.0, c))
			corr[i][j] = c
			corr[j][i] = c
		}
	}

	return corr, nil
}

// CorrelationToDistance converts a correlation matrix to a correlation
// distance matrix: d(i,j) = sqrt(0.5 * (1 - corr(i,j))). Perfectly correlated
// assets sit at distance 0, perfectly anti-correlated at distance 1.
func CorrelationToDistance(corr [][]float64) [][]float64 {
	n := len(corr)
	dist := make([][]float64, n)

	for i := 0; i < n; i++ {
		dist[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			c := math.Max(-1.0, math.Min(1.0, corr[i][j]))
			dist[i][j] = math.Sqrt(0.5 * (1.0 - c))
		}
	}

	return dist
}
