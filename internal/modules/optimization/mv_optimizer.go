package optimization

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// penaltyWeight scales the quadratic penalties that enforce the equality
// constraints (weights sum to 1, target return hit).
const penaltyWeight = 1e4

// feasibilityTol is the slack allowed when checking whether a target return
// lies inside the attainable band.
const feasibilityTol = 1e-6

// MVOptimizer performs long-only mean-variance (Markowitz) optimization. It
// is constructed once per price table and holds the mu/S estimated from it;
// the three operations are independently callable.
//
// Mathematical formulation (long-only, fully invested):
//   - MaximizeSharpe:    max (mu'w - rf) / sqrt(w'Sw)
//   - MinimizeVolatility: min w'Sw
//   - EfficientReturn:   min w'Sw subject to mu'w = target
//
// subject to sum(w) = 1 and w_i >= 0 in all three.
type MVOptimizer struct {
	assets []string
	mu     []float64
	sigma  *mat.Dense
	cov    [][]float64
	clean  CleanOptions
	log    zerolog.Logger
}

// NewMVOptimizer creates a mean-variance optimizer from estimator output.
// The expected-return map must cover every asset and the covariance matrix
// must be square with matching dimension.
func NewMVOptimizer(
	assets []string,
	expectedReturns map[string]float64,
	covMatrix [][]float64,
	clean CleanOptions,
	log zerolog.Logger,
) (*MVOptimizer, error) {
	n := len(assets)
	if n == 0 {
		return nil, fmt.Errorf("%w: no assets provided", ErrInvalidInput)
	}
	if len(expectedReturns) == 0 {
		return nil, fmt.Errorf("%w: empty expected returns", ErrInvalidInput)
	}
	if len(covMatrix) != n {
		return nil, fmt.Errorf("%w: covariance matrix size %d does not match asset count %d", ErrInvalidInput, len(covMatrix), n)
	}
	for i := range covMatrix {
		if len(covMatrix[i]) != n {
			return nil, fmt.Errorf("%w: covariance matrix row %d has size %d, expected %d", ErrInvalidInput, i, len(covMatrix[i]), n)
		}
	}

	mu := make([]float64, n)
	for i, asset := range assets {
		ret, ok := expectedReturns[asset]
		if !ok {
			return nil, fmt.Errorf("%w: missing expected return for asset %s", ErrInvalidInput, asset)
		}
		mu[i] = ret
	}

	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sigma.Set(i, j, covMatrix[i][j])
		}
	}

	return &MVOptimizer{
		assets: assets,
		mu:     mu,
		sigma:  sigma,
		cov:    covMatrix,
		clean:  clean,
		log:    log.With().Str("component", "mv_optimizer").Logger(),
	}, nil
}

// MaximizeSharpe solves for the tangency portfolio: the feasible weight
// vector with the highest (mu'w - rf) / sqrt(w'Sw).
func (mvo *MVOptimizer) MaximizeSharpe(ctx context.Context, riskFreeRate float64) (map[string]float64, PerformanceSummary, error) {
	n := len(mvo.mu)
	if n == 1 {
		return mvo.finish(riskFreeRate, []float64{1.0})
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToSimplexBox(x)
			ret, variance := mvo.returnAndVariance(w)
			stdDev := math.Sqrt(math.Max(variance, 1e-12))
			obj := -(ret - riskFreeRate) / stdDev
			obj += sumPenalty(w)
			return obj
		},
		Grad: func(grad, x []float64) {
			w := projectToSimplexBox(x)
			ret, variance := mvo.returnAndVariance(w)
			stdDev := math.Sqrt(math.Max(variance, 1e-12))
			excess := ret - riskFreeRate
			for i := 0; i < n; i++ {
				var dVar float64
				for j := 0; j < n; j++ {
					dVar += 2 * mvo.sigma.At(i, j) * w[j]
				}
				grad[i] = -mvo.mu[i]/stdDev + excess*dVar/(2*stdDev*stdDev*stdDev)
			}
			addSumPenaltyGradient(grad, w)
		},
		Status: ctxStatus(ctx),
	}

	x, err := mvo.solve(problem, n)
	if err != nil {
		return nil, PerformanceSummary{}, err
	}
	return mvo.finish(riskFreeRate, x)
}

// MinimizeVolatility solves for the global minimum-variance portfolio.
func (mvo *MVOptimizer) MinimizeVolatility(ctx context.Context) (map[string]float64, PerformanceSummary, error) {
	n := len(mvo.mu)
	if n == 1 {
		return mvo.finish(0.0, []float64{1.0})
	}

	x, err := mvo.solveMinVolatility(ctx)
	if err != nil {
		return nil, PerformanceSummary{}, err
	}
	return mvo.finish(0.0, x)
}

// EfficientReturn solves for the minimum-volatility portfolio whose expected
// return equals the target. Targets outside the attainable band — below the
// global-minimum-volatility return or above the best single asset — fail with
// ErrOptimizationInfeasible rather than being clamped.
func (mvo *MVOptimizer) EfficientReturn(ctx context.Context, targetReturn float64) (map[string]float64, PerformanceSummary, error) {
	n := len(mvo.mu)
	if n == 1 {
		if math.Abs(mvo.mu[0]-targetReturn) > 1e-4 {
			return nil, PerformanceSummary{}, fmt.Errorf("%w: target return %.4f unreachable with a single asset returning %.4f",
				ErrOptimizationInfeasible, targetReturn, mvo.mu[0])
		}
		return mvo.finish(0.0, []float64{1.0})
	}

	maxMu := mvo.mu[0]
	for _, m := range mvo.mu[1:] {
		maxMu = math.Max(maxMu, m)
	}
	if targetReturn > maxMu+feasibilityTol {
		return nil, PerformanceSummary{}, fmt.Errorf("%w: target return %.4f exceeds maximum attainable %.4f",
			ErrOptimizationInfeasible, targetReturn, maxMu)
	}

	gmv, err := mvo.solveMinVolatility(ctx)
	if err != nil {
		return nil, PerformanceSummary{}, err
	}
	gmvReturn, _ := mvo.returnAndVariance(gmv)
	if targetReturn < gmvReturn-1e-4 {
		return nil, PerformanceSummary{}, fmt.Errorf("%w: target return %.4f below global-minimum-volatility return %.4f",
			ErrOptimizationInfeasible, targetReturn, gmvReturn)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToSimplexBox(x)
			ret, variance := mvo.returnAndVariance(w)
			obj := variance
			obj += sumPenalty(w)
			obj += penaltyWeight * (ret - targetReturn) * (ret - targetReturn)
			return obj
		},
		Grad: func(grad, x []float64) {
			w := projectToSimplexBox(x)
			ret, _ := mvo.returnAndVariance(w)
			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * mvo.sigma.At(i, j) * w[j]
				}
				grad[i] += 2 * penaltyWeight * (ret - targetReturn) * mvo.mu[i]
			}
			addSumPenaltyGradient(grad, w)
		},
		Status: ctxStatus(ctx),
	}

	x, err := mvo.solve(problem, n)
	if err != nil {
		return nil, PerformanceSummary{}, err
	}
	return mvo.finish(0.0, x)
}

// solveMinVolatility runs the min w'Sw program and returns the raw solution
// vector; shared by MinimizeVolatility and the EfficientReturn feasibility
// check.
func (mvo *MVOptimizer) solveMinVolatility(ctx context.Context) ([]float64, error) {
	n := len(mvo.mu)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToSimplexBox(x)
			_, variance := mvo.returnAndVariance(w)
			return variance + sumPenalty(w)
		},
		Grad: func(grad, x []float64) {
			w := projectToSimplexBox(x)
			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * mvo.sigma.At(i, j) * w[j]
				}
			}
			addSumPenaltyGradient(grad, w)
		},
		Status: ctxStatus(ctx),
	}
	return mvo.solve(problem, n)
}

// solve minimizes the problem starting from equal weights, trying BFGS first
// and NelderMead as a fallback, accepting the usual convergence statuses.
func (mvo *MVOptimizer) solve(problem optimize.Problem, n int) ([]float64, error) {
	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !successStatuses[result.Status] {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("%w: solver failed: %v", ErrOptimizationInfeasible, err)
		}
		if !successStatuses[result.Status] {
			return nil, fmt.Errorf("%w: solver did not converge: status=%v", ErrOptimizationInfeasible, result.Status)
		}
	}

	return result.X, nil
}

// finish projects and normalizes the raw solution, cleans the output weights,
// and reports performance recomputed from those final weights.
func (mvo *MVOptimizer) finish(riskFreeRate float64, x []float64) (map[string]float64, PerformanceSummary, error) {
	w := projectToSimplexBox(x)
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, PerformanceSummary{}, fmt.Errorf("%w: degenerate solution (weight sum %v)", ErrOptimizationError, sum)
	}

	weights := make(map[string]float64, len(mvo.assets))
	for i, asset := range mvo.assets {
		weights[asset] = w[i] / sum
	}

	cleaned := cleanWeights(weights, mvo.clean)
	perf := evaluatePerformance(cleaned, mvo.assets, mvo.mu, mvo.cov, riskFreeRate)

	mvo.log.Debug().
		Float64("expected_return", perf.ExpectedReturn).
		Float64("volatility", perf.Volatility).
		Float64("sharpe", perf.SharpeRatio).
		Msg("Mean-variance optimization finished")

	return cleaned, perf, nil
}

// returnAndVariance computes mu'w and w'Sw for an index-aligned vector.
func (mvo *MVOptimizer) returnAndVariance(w []float64) (float64, float64) {
	n := len(w)
	var ret, variance float64
	for i := 0; i < n; i++ {
		ret += mvo.mu[i] * w[i]
		for j := 0; j < n; j++ {
			variance += w[i] * w[j] * mvo.sigma.At(i, j)
		}
	}
	return ret, variance
}

// projectToSimplexBox clamps each coordinate into [0, 1]; the sum constraint
// is handled by penalty.
func projectToSimplexBox(x []float64) []float64 {
	proj := make([]float64, len(x))
	for i, v := range x {
		proj[i] = math.Max(0.0, math.Min(1.0, v))
	}
	return proj
}

// sumPenalty returns the quadratic penalty for violating sum(w)=1.
func sumPenalty(w []float64) float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return penaltyWeight * (sum - 1.0) * (sum - 1.0)
}

// addSumPenaltyGradient adds the gradient of sumPenalty in place.
func addSumPenaltyGradient(grad, w []float64) {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	for i := range grad {
		grad[i] += 2 * penaltyWeight * (sum - 1.0)
	}
}

// ctxStatus adapts a context to the solver's status polling so deadlines and
// cancellation abort a non-converging solve.
func ctxStatus(ctx context.Context) func() (optimize.Status, error) {
	return func() (optimize.Status, error) {
		select {
		case <-ctx.Done():
			return optimize.Failure, ctx.Err()
		default:
			return optimize.NotTerminated, nil
		}
	}
}
