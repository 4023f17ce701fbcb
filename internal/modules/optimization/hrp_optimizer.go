package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/quantfolio/quantfolio/pkg/formulas"
)

// Linkage selects how cluster-to-cluster distance is measured when building
// the dendrogram.
type Linkage string

const (
	LinkageSingle  Linkage = "single"
	LinkageAverage Linkage = "average"
)

// HRPOptions configures the hierarchical clustering step.
type HRPOptions struct {
	Linkage      Linkage
	RiskFreeRate float64 // only used for the descriptive Sharpe in the summary
}

// DefaultHRPOptions matches the reference: single linkage, 2% risk-free rate.
func DefaultHRPOptions() HRPOptions {
	return HRPOptions{Linkage: LinkageSingle, RiskFreeRate: 0.02}
}

// HRPOptimizer performs Hierarchical Risk Parity allocation:
//
//  1. Correlation distance d(i,j) = sqrt(0.5 * (1 - corr(i,j)))
//  2. Agglomerative clustering over the distance matrix
//  3. Quasi-diagonal asset ordering from the dendrogram leaves
//  4. Recursive bisection of the ordered list, splitting the risk budget
//     inversely to each half's cluster variance (covariance submatrix via an
//     inverse-variance portfolio, never a matrix inverse)
//
// Unlike mean-variance it targets no return or Sharpe; the performance summary
// is a descriptive byproduct computed from the historical mu/S.
type HRPOptimizer struct {
	assets  []string
	returns map[string][]float64
	mu      []float64
	cov     [][]float64
	opts    HRPOptions
	clean   CleanOptions
	log     zerolog.Logger
}

// NewHRPOptimizer creates an HRP optimizer from the per-asset daily return
// series plus the estimator's annualized mu/S (used for allocation and
// reporting respectively).
func NewHRPOptimizer(
	assets []string,
	returns map[string][]float64,
	expectedReturns map[string]float64,
	covMatrix [][]float64,
	opts HRPOptions,
	clean CleanOptions,
	log zerolog.Logger,
) (*HRPOptimizer, error) {
	n := len(assets)
	if n == 0 {
		return nil, fmt.Errorf("%w: no assets provided", ErrInvalidInput)
	}
	if len(covMatrix) != n {
		return nil, fmt.Errorf("%w: covariance matrix size %d does not match asset count %d", ErrInvalidInput, len(covMatrix), n)
	}
	for i := range covMatrix {
		if len(covMatrix[i]) != n {
			return nil, fmt.Errorf("%w: covariance matrix is not square", ErrInvalidInput)
		}
	}

	mu := make([]float64, n)
	for i, asset := range assets {
		mu[i] = expectedReturns[asset]
	}

	if opts.Linkage == "" {
		opts.Linkage = LinkageSingle
	}

	return &HRPOptimizer{
		assets:  assets,
		returns: returns,
		mu:      mu,
		cov:     covMatrix,
		opts:    opts,
		clean:   clean,
		log:     log.With().Str("component", "hrp_optimizer").Logger(),
	}, nil
}

// Optimize runs the full HRP allocation. It fails with ErrOptimizationError
// when the return series is empty or shorter than the asset count, since the
// correlation structure is then statistically meaningless.
func (hrp *HRPOptimizer) Optimize() (map[string]float64, PerformanceSummary, error) {
	n := len(hrp.assets)

	numObs := 0
	for _, asset := range hrp.assets {
		r, ok := hrp.returns[asset]
		if !ok {
			return nil, PerformanceSummary{}, fmt.Errorf("%w: missing returns for asset %s", ErrInvalidInput, asset)
		}
		if numObs == 0 {
			numObs = len(r)
		}
		if len(r) != numObs {
			return nil, PerformanceSummary{}, fmt.Errorf("%w: inconsistent return lengths for asset %s", ErrInvalidInput, asset)
		}
	}
	if numObs == 0 {
		return nil, PerformanceSummary{}, fmt.Errorf("%w: empty return series", ErrOptimizationError)
	}
	if numObs < n {
		return nil, PerformanceSummary{}, fmt.Errorf("%w: %d observations for %d assets, clustering cannot proceed", ErrOptimizationError, numObs, n)
	}

	if n == 1 {
		weights := map[string]float64{hrp.assets[0]: 1.0}
		perf := evaluatePerformance(weights, hrp.assets, hrp.mu, hrp.cov, hrp.opts.RiskFreeRate)
		return weights, perf, nil
	}

	corr, err := formulas.CorrelationMatrixFromCovariance(hrp.cov)
	if err != nil {
		return nil, PerformanceSummary{}, fmt.Errorf("%w: %v", ErrOptimizationError, err)
	}
	dist := formulas.CorrelationToDistance(corr)

	root := buildDendrogram(dist, hrp.opts.Linkage)
	order := quasiDiagonalOrder(root)
	if len(order) != n {
		return nil, PerformanceSummary{}, fmt.Errorf("%w: invalid leaf order length %d", ErrOptimizationError, len(order))
	}

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = 1.0
	}
	recursiveBisection(raw, hrp.cov, order)

	sum := 0.0
	for _, w := range raw {
		sum += w
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, PerformanceSummary{}, fmt.Errorf("%w: invalid weight sum %v", ErrOptimizationError, sum)
	}

	weights := make(map[string]float64, n)
	for i, asset := range hrp.assets {
		weights[asset] = raw[i] / sum
	}

	cleaned := cleanWeights(weights, hrp.clean)
	perf := evaluatePerformance(cleaned, hrp.assets, hrp.mu, hrp.cov, hrp.opts.RiskFreeRate)

	hrp.log.Debug().
		Str("linkage", string(hrp.opts.Linkage)).
		Float64("volatility", perf.Volatility).
		Msg("HRP allocation finished")

	return cleaned, perf, nil
}

// clusterNode is one node of the dendrogram: an explicit binary tree with
// owned children, built once and walked top-down.
type clusterNode struct {
	left    *clusterNode
	right   *clusterNode
	leaves  []int
	minLeaf int
}

// buildDendrogram agglomerates singleton clusters bottom-up, always merging
// the closest pair under the chosen linkage with a deterministic tie-break on
// the smallest leaf indices.
func buildDendrogram(dist [][]float64, linkage Linkage) *clusterNode {
	n := len(dist)
	clusters := make([]*clusterNode, 0, n)
	for i := 0; i < n; i++ {
		clusters = append(clusters, &clusterNode{leaves: []int{i}, minLeaf: i})
	}

	for len(clusters) > 1 {
		bestI, bestJ := 0, 1
		bestD := clusterDistance(dist, clusters[0], clusters[1], linkage)

		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				d := clusterDistance(dist, clusters[i], clusters[j], linkage)
				if d < bestD || (d == bestD && pairLess(clusters[i], clusters[j], clusters[bestI], clusters[bestJ])) {
					bestD = d
					bestI, bestJ = i, j
				}
			}
		}

		left, right := clusters[bestI], clusters[bestJ]
		if right.minLeaf < left.minLeaf {
			left, right = right, left
		}

		mergedLeaves := make([]int, 0, len(left.leaves)+len(right.leaves))
		mergedLeaves = append(mergedLeaves, left.leaves...)
		mergedLeaves = append(mergedLeaves, right.leaves...)

		merged := &clusterNode{
			left:    left,
			right:   right,
			leaves:  mergedLeaves,
			minLeaf: left.minLeaf,
		}

		next := make([]*clusterNode, 0, len(clusters)-1)
		for k := range clusters {
			if k == bestI || k == bestJ {
				continue
			}
			next = append(next, clusters[k])
		}
		clusters = append(next, merged)
	}

	return clusters[0]
}

// pairLess orders candidate merges by (smaller minLeaf, then the other
// minLeaf) so distance ties resolve identically on every run.
func pairLess(a1, b1, a2, b2 *clusterNode) bool {
	x1, y1 := a1.minLeaf, b1.minLeaf
	if y1 < x1 {
		x1, y1 = y1, x1
	}
	x2, y2 := a2.minLeaf, b2.minLeaf
	if y2 < x2 {
		x2, y2 = y2, x2
	}
	if x1 != x2 {
		return x1 < x2
	}
	return y1 < y2
}

func clusterDistance(dist [][]float64, a, b *clusterNode, linkage Linkage) float64 {
	switch linkage {
	case LinkageAverage:
		sum := 0.0
		count := 0
		for _, i := range a.leaves {
			for _, j := range b.leaves {
				sum += dist[i][j]
				count++
			}
		}
		if count == 0 {
			return math.Inf(1)
		}
		return sum / float64(count)
	default: // single
		best := math.Inf(1)
		for _, i := range a.leaves {
			for _, j := range b.leaves {
				if dist[i][j] < best {
					best = dist[i][j]
				}
			}
		}
		return best
	}
}

// quasiDiagonalOrder is the seriation step: the dendrogram's left-to-right
// leaf order places correlated assets adjacent to one another.
func quasiDiagonalOrder(node *clusterNode) []int {
	if node == nil {
		return nil
	}
	if node.left == nil && node.right == nil {
		return []int{node.leaves[0]}
	}
	left := quasiDiagonalOrder(node.left)
	right := quasiDiagonalOrder(node.right)
	out := make([]int, 0, len(left)+len(right))
	out = append(out, left...)
	out = append(out, right...)
	return out
}

// recursiveBisection splits the ordered list in half top-down, scaling each
// half's weights by alpha = 1 - vLeft/(vLeft+vRight). Equal cluster variances
// split the budget 50/50.
func recursiveBisection(weights []float64, cov [][]float64, order []int) {
	if len(order) <= 1 {
		return
	}
	split := len(order) / 2
	left := order[:split]
	right := order[split:]

	vLeft := clusterVariance(cov, left)
	vRight := clusterVariance(cov, right)

	alpha := 0.5
	if vLeft+vRight > 0 {
		alpha = 1.0 - vLeft/(vLeft+vRight)
	}
	alpha = math.Max(0.0, math.Min(1.0, alpha))

	for _, idx := range left {
		weights[idx] *= alpha
	}
	for _, idx := range right {
		weights[idx] *= 1.0 - alpha
	}

	recursiveBisection(weights, cov, left)
	recursiveBisection(weights, cov, right)
}

// clusterVariance is the variance of the inverse-variance portfolio over the
// cluster's covariance submatrix. This is what lets HRP degrade gracefully on
// ill-conditioned covariance matrices: no inversion of the full matrix.
func clusterVariance(cov [][]float64, idxs []int) float64 {
	if len(idxs) == 0 {
		return 0.0
	}
	if len(idxs) == 1 {
		return math.Max(cov[idxs[0]][idxs[0]], 0.0)
	}

	const eps = 1e-12
	inv := make([]float64, len(idxs))
	sumInv := 0.0
	for k, i := range idxs {
		v := math.Max(cov[i][i], eps)
		inv[k] = 1.0 / v
		sumInv += inv[k]
	}
	if sumInv <= 0 {
		return 0.0
	}
	for k := range inv {
		inv[k] /= sumInv
	}

	variance := 0.0
	for a, i := range idxs {
		for b, j := range idxs {
			variance += inv[a] * cov[i][j] * inv[b]
		}
	}
	return math.Max(variance, 0.0)
}
