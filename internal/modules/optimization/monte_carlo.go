package optimization

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Metric selects which column of the simulation table drives portfolio
// selection.
type Metric string

const (
	MetricSharpeRatio Metric = "SharpeRatio"
	MetricVolatility  Metric = "Volatility"
)

// WeightSampler generates one random long-only weight vector of dimension n.
// Samplers must be safe to call from multiple goroutines with distinct rngs.
type WeightSampler interface {
	Name() string
	Sample(rng *rand.Rand, n int) []float64
}

// NormalizedUniformSampler draws n independent U(0,1) values and normalizes
// them to sum to 1. This matches the reference method; note it concentrates
// samples toward the simplex center rather than covering it uniformly.
type NormalizedUniformSampler struct{}

func (NormalizedUniformSampler) Name() string { return "normalized_uniform" }

func (NormalizedUniformSampler) Sample(rng *rand.Rand, n int) []float64 {
	w := make([]float64, n)
	sum := 0.0
	for i := range w {
		w[i] = rng.Float64()
		sum += w[i]
	}
	if sum <= 0 {
		// All-zero draw is vanishingly rare; fall back to equal weights.
		for i := range w {
			w[i] = 1.0 / float64(n)
		}
		return w
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// DirichletSampler draws unit-rate exponentials and normalizes, which samples
// uniformly over the simplex (flat Dirichlet). Substitute for the default
// when geometric uniformity matters.
type DirichletSampler struct{}

func (DirichletSampler) Name() string { return "dirichlet" }

func (DirichletSampler) Sample(rng *rand.Rand, n int) []float64 {
	w := make([]float64, n)
	sum := 0.0
	for i := range w {
		w[i] = rng.ExpFloat64()
		sum += w[i]
	}
	if sum <= 0 {
		for i := range w {
			w[i] = 1.0 / float64(n)
		}
		return w
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// MonteCarloOptions configures the simulator.
type MonteCarloOptions struct {
	Sampler WeightSampler
	Seed    *int64 // nil = fresh randomness per run
	Workers int    // <= 0 = GOMAXPROCS
}

// MonteCarloSimulator samples the feasible simplex at random, evaluates every
// draw against the estimator's mu/S, and selects the best draw under a chosen
// metric. Draws are independent, so evaluation runs on a worker pool; given a
// caller-supplied seed the result is reproducible regardless of worker count.
type MonteCarloSimulator struct {
	assets  []string
	mu      []float64
	cov     [][]float64
	sampler WeightSampler
	seed    *int64
	workers int
	log     zerolog.Logger

	mu2    sync.Mutex
	result *SimulationResult
}

// NewMonteCarloSimulator creates a simulator from estimator output.
func NewMonteCarloSimulator(
	assets []string,
	expectedReturns map[string]float64,
	covMatrix [][]float64,
	opts MonteCarloOptions,
	log zerolog.Logger,
) (*MonteCarloSimulator, error) {
	n := len(assets)
	if n == 0 {
		return nil, fmt.Errorf("%w: no assets provided", ErrInvalidInput)
	}
	if len(covMatrix) != n {
		return nil, fmt.Errorf("%w: covariance matrix size %d does not match asset count %d", ErrInvalidInput, len(covMatrix), n)
	}

	mu := make([]float64, n)
	for i, asset := range assets {
		ret, ok := expectedReturns[asset]
		if !ok {
			return nil, fmt.Errorf("%w: missing expected return for asset %s", ErrInvalidInput, asset)
		}
		mu[i] = ret
	}

	sampler := opts.Sampler
	if sampler == nil {
		sampler = NormalizedUniformSampler{}
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &MonteCarloSimulator{
		assets:  assets,
		mu:      mu,
		cov:     covMatrix,
		sampler: sampler,
		seed:    opts.Seed,
		workers: workers,
		log:     log.With().Str("component", "monte_carlo").Logger(),
	}, nil
}

// Run draws numSamples independent weight vectors and evaluates each for
// annualized return, volatility, and Sharpe. The full table is retained for
// Select and for frontier visualization by callers.
func (mc *MonteCarloSimulator) Run(ctx context.Context, numSamples int, riskFreeRate float64) (*SimulationResult, error) {
	if numSamples <= 0 {
		return nil, fmt.Errorf("%w: num_samples must be positive, got %d", ErrInvalidInput, numSamples)
	}

	n := len(mc.assets)
	samples := make([]SimulatedPortfolio, numSamples)

	baseSeed := time.Now().UnixNano()
	if mc.seed != nil {
		baseSeed = *mc.seed
	}

	// Sample indices are partitioned into fixed-size blocks, each drawn from
	// an rng seeded by the block index alone. Whichever worker picks a block
	// up, a seeded run produces the same table.
	const blockSize = 512
	numBlocks := (numSamples + blockSize - 1) / blockSize

	workers := mc.workers
	if workers > numBlocks {
		workers = numBlocks
	}

	blocks := make(chan int, numBlocks)
	for b := 0; b < numBlocks; b++ {
		blocks <- b
	}
	close(blocks)

	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for block := range blocks {
				select {
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				default:
				}

				rng := rand.New(rand.NewSource(baseSeed + int64(block)*0x9E3779B9))
				start := block * blockSize
				end := start + blockSize
				if end > numSamples {
					end = numSamples
				}

				for i := start; i < end; i++ {
					w := mc.sampler.Sample(rng, n)
					ret, vol := evaluateVector(w, mc.mu, mc.cov)

					sharpe := 0.0
					if vol > 0 {
						sharpe = (ret - riskFreeRate) / vol
					}

					weights := make(map[string]float64, n)
					for j, asset := range mc.assets {
						weights[asset] = w[j]
					}
					samples[i] = SimulatedPortfolio{
						Weights: weights,
						Performance: PerformanceSummary{
							ExpectedReturn: ret,
							Volatility:     vol,
							SharpeRatio:    sharpe,
						},
					}
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return nil, fmt.Errorf("simulation aborted: %w", err)
	}

	result := &SimulationResult{
		RunID:        uuid.New().String(),
		RiskFreeRate: riskFreeRate,
		Sampler:      mc.sampler.Name(),
		Samples:      samples,
	}

	mc.mu2.Lock()
	mc.result = result
	mc.mu2.Unlock()

	mc.log.Info().
		Str("run_id", result.RunID).
		Int("num_samples", numSamples).
		Int("workers", workers).
		Str("sampler", result.Sampler).
		Msg("Monte Carlo simulation finished")

	return result, nil
}

// Select returns the best sampled portfolio from the latest run:
// MetricSharpeRatio picks the maximum Sharpe row, MetricVolatility the
// minimum volatility row.
func (mc *MonteCarloSimulator) Select(metric Metric) (map[string]float64, PerformanceSummary, error) {
	mc.mu2.Lock()
	result := mc.result
	mc.mu2.Unlock()

	if result == nil || len(result.Samples) == 0 {
		return nil, PerformanceSummary{}, fmt.Errorf("%w: call Run before Select", ErrNotRun)
	}

	var better func(candidate, best PerformanceSummary) bool
	switch metric {
	case MetricSharpeRatio:
		better = func(c, b PerformanceSummary) bool { return c.SharpeRatio > b.SharpeRatio }
	case MetricVolatility:
		better = func(c, b PerformanceSummary) bool { return c.Volatility < b.Volatility }
	default:
		return nil, PerformanceSummary{}, fmt.Errorf("%w: %q (use %q or %q)", ErrUnsupportedMetric, metric, MetricSharpeRatio, MetricVolatility)
	}

	bestIdx := 0
	for i := 1; i < len(result.Samples); i++ {
		if better(result.Samples[i].Performance, result.Samples[bestIdx].Performance) {
			bestIdx = i
		}
	}

	best := result.Samples[bestIdx]
	weights := make(map[string]float64, len(best.Weights))
	for asset, w := range best.Weights {
		weights[asset] = w
	}

	if math.IsNaN(best.Performance.Volatility) {
		return nil, PerformanceSummary{}, fmt.Errorf("%w: selected sample has undefined volatility", ErrOptimizationError)
	}

	return weights, best.Performance, nil
}
