package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfolio/quantfolio/internal/modules/optimization"
)

// JobConfig describes what the periodic snapshot job optimizes.
type JobConfig struct {
	Strategy     string
	Symbols      []string
	LookbackDays int
	RiskFreeRate float64
	Timeout      time.Duration
}

// Job runs a configured optimization on a schedule and stores the result.
type Job struct {
	cfg    JobConfig
	svc    *optimization.Service
	prices optimization.PriceSource
	repo   *Repository
	log    zerolog.Logger
}

// NewJob creates the periodic snapshot job.
func NewJob(cfg JobConfig, svc *optimization.Service, prices optimization.PriceSource, repo *Repository, log zerolog.Logger) *Job {
	if cfg.Strategy == "" {
		cfg.Strategy = optimization.StrategyHRP
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 252
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Job{
		cfg:    cfg,
		svc:    svc,
		prices: prices,
		repo:   repo,
		log:    log.With().Str("job", "optimization_snapshot").Logger(),
	}
}

// Name implements scheduler.Job.
func (j *Job) Name() string {
	return "optimization_snapshot"
}

// Run loads price history, optimizes with the configured strategy, and
// persists the resulting allocation.
func (j *Job) Run() error {
	if len(j.cfg.Symbols) == 0 {
		return fmt.Errorf("no symbols configured for snapshot job")
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.Timeout)
	defer cancel()

	prices, err := j.prices.GetPriceTable(j.cfg.Symbols, j.cfg.LookbackDays)
	if err != nil {
		return fmt.Errorf("failed to load price history: %w", err)
	}

	result, err := j.svc.Optimize(ctx, prices, optimization.Request{
		Strategy:     j.cfg.Strategy,
		RiskFreeRate: j.cfg.RiskFreeRate,
	})
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	id, err := j.repo.Save(result.Strategy, result.Weights, result.Performance)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	j.log.Info().
		Str("snapshot_id", id).
		Str("strategy", result.Strategy).
		Float64("volatility", result.Performance.Volatility).
		Msg("Stored optimization snapshot")

	return nil
}
