package optimization

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Strategy names accepted by the service.
const (
	StrategyMaxSharpe     = "max_sharpe"
	StrategyMinVolatility = "min_volatility"
	StrategyEfficientRet  = "efficient_return"
	StrategyHRP           = "hrp"
	StrategyEqualWeight   = "equal_weight"
	StrategyMonteCarlo    = "monte_carlo"
)

// Request describes one optimization call over a price table.
type Request struct {
	Strategy     string   `json:"strategy"`
	RiskFreeRate float64  `json:"risk_free_rate"`
	TargetReturn *float64 `json:"target_return,omitempty"`
	NumSamples   int      `json:"num_samples,omitempty"`
	Metric       Metric   `json:"metric,omitempty"`
	Seed         *int64   `json:"seed,omitempty"`
}

// Result is the outcome of one optimization call. Simulation is populated for
// Monte Carlo runs only, so callers can render the sampled frontier.
type Result struct {
	Strategy    string             `json:"strategy"`
	Weights     map[string]float64 `json:"weights"`
	Performance PerformanceSummary `json:"performance"`
	Simulation  *SimulationResult  `json:"simulation,omitempty"`
}

// ServiceConfig carries the service-level defaults.
type ServiceConfig struct {
	Clean             CleanOptions
	MonteCarloSamples int // default sample count when the request leaves it 0
}

// Service turns a price table into portfolio weights using a named strategy.
// Data flows one way: price table -> estimator -> optimizer -> weights +
// performance. Optimizer instances share nothing; each call estimates its own
// mu/S from the table it was given.
type Service struct {
	estimator *Estimator
	cfg       ServiceConfig
	log       zerolog.Logger
}

// NewService creates the optimization service.
func NewService(cfg ServiceConfig, log zerolog.Logger) *Service {
	if cfg.MonteCarloSamples <= 0 {
		cfg.MonteCarloSamples = 10000
	}
	if cfg.Clean.Threshold == 0 {
		cfg.Clean = DefaultCleanOptions()
	}
	return &Service{
		estimator: NewEstimator(log),
		cfg:       cfg,
		log:       log.With().Str("component", "optimization_service").Logger(),
	}
}

// Optimize estimates mu/S from the price table and dispatches to the
// requested strategy.
func (s *Service) Optimize(ctx context.Context, prices PriceTable, req Request) (*Result, error) {
	mu, cov, err := s.estimator.Estimate(prices)
	if err != nil {
		return nil, err
	}
	assets := prices.Assets

	switch req.Strategy {
	case StrategyMaxSharpe:
		mvo, err := NewMVOptimizer(assets, mu, cov, s.cfg.Clean, s.log)
		if err != nil {
			return nil, err
		}
		weights, perf, err := mvo.MaximizeSharpe(ctx, req.RiskFreeRate)
		if err != nil {
			return nil, err
		}
		return &Result{Strategy: req.Strategy, Weights: weights, Performance: perf}, nil

	case StrategyMinVolatility:
		mvo, err := NewMVOptimizer(assets, mu, cov, s.cfg.Clean, s.log)
		if err != nil {
			return nil, err
		}
		weights, perf, err := mvo.MinimizeVolatility(ctx)
		if err != nil {
			return nil, err
		}
		return &Result{Strategy: req.Strategy, Weights: weights, Performance: perf}, nil

	case StrategyEfficientRet:
		if req.TargetReturn == nil {
			return nil, fmt.Errorf("%w: target_return required for %s", ErrInvalidInput, StrategyEfficientRet)
		}
		mvo, err := NewMVOptimizer(assets, mu, cov, s.cfg.Clean, s.log)
		if err != nil {
			return nil, err
		}
		weights, perf, err := mvo.EfficientReturn(ctx, *req.TargetReturn)
		if err != nil {
			return nil, err
		}
		return &Result{Strategy: req.Strategy, Weights: weights, Performance: perf}, nil

	case StrategyHRP:
		returns, err := s.estimator.DailyReturns(prices)
		if err != nil {
			return nil, err
		}
		opts := DefaultHRPOptions()
		opts.RiskFreeRate = req.RiskFreeRate
		hrp, err := NewHRPOptimizer(assets, returns, mu, cov, opts, s.cfg.Clean, s.log)
		if err != nil {
			return nil, err
		}
		weights, perf, err := hrp.Optimize()
		if err != nil {
			return nil, err
		}
		return &Result{Strategy: req.Strategy, Weights: weights, Performance: perf}, nil

	case StrategyEqualWeight:
		ew, err := NewEqualWeightOptimizer(assets, mu, cov, s.log)
		if err != nil {
			return nil, err
		}
		weights, perf, err := ew.Optimize()
		if err != nil {
			return nil, err
		}
		return &Result{Strategy: req.Strategy, Weights: weights, Performance: perf}, nil

	case StrategyMonteCarlo:
		numSamples := req.NumSamples
		if numSamples <= 0 {
			numSamples = s.cfg.MonteCarloSamples
		}
		metric := req.Metric
		if metric == "" {
			metric = MetricSharpeRatio
		}
		mc, err := NewMonteCarloSimulator(assets, mu, cov, MonteCarloOptions{Seed: req.Seed}, s.log)
		if err != nil {
			return nil, err
		}
		sim, err := mc.Run(ctx, numSamples, req.RiskFreeRate)
		if err != nil {
			return nil, err
		}
		weights, perf, err := mc.Select(metric)
		if err != nil {
			return nil, err
		}
		return &Result{Strategy: req.Strategy, Weights: weights, Performance: perf, Simulation: sim}, nil

	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, req.Strategy)
	}
}
