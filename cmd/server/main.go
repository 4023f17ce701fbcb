// Package main is the entry point for the quantfolio portfolio optimization
// service. It wires the price history store, the optimization service, the
// snapshot scheduler, and the HTTP API, then runs until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantfolio/quantfolio/internal/config"
	"github.com/quantfolio/quantfolio/internal/database"
	"github.com/quantfolio/quantfolio/internal/modules/history"
	"github.com/quantfolio/quantfolio/internal/modules/optimization"
	"github.com/quantfolio/quantfolio/internal/modules/snapshots"
	"github.com/quantfolio/quantfolio/internal/scheduler"
	"github.com/quantfolio/quantfolio/internal/server"
	"github.com/quantfolio/quantfolio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Msg("Starting quantfolio")

	historyDB, err := database.New(database.Config{
		Path: cfg.HistoryDBPath(),
		Name: "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	snapshotsDB, err := database.New(database.Config{
		Path: cfg.SnapshotsDBPath(),
		Name: "snapshots",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open snapshots database")
	}
	defer snapshotsDB.Close()

	historyRepo := history.NewRepository(historyDB.Conn(), log)
	if err := historyRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize history schema")
	}

	snapshotRepo := snapshots.NewRepository(snapshotsDB.Conn(), log)
	if err := snapshotRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshots schema")
	}

	svc := optimization.NewService(optimization.ServiceConfig{
		Clean: optimization.CleanOptions{
			Threshold:   optimization.DefaultCleanThreshold,
			Renormalize: cfg.CleanRenormalize,
		},
		MonteCarloSamples: cfg.MonteCarloSamples,
	}, log)

	sched := scheduler.New(log)
	if cfg.SnapshotSchedule != "" {
		job := snapshots.NewJob(snapshots.JobConfig{
			Strategy:     cfg.SnapshotStrategy,
			Symbols:      cfg.SnapshotSymbols,
			LookbackDays: cfg.LookbackDays,
			RiskFreeRate: cfg.RiskFreeRate,
		}, svc, historyRepo, snapshotRepo, log)

		if err := sched.AddJob(cfg.SnapshotSchedule, job); err != nil {
			log.Fatal().Err(err).Msg("Failed to register snapshot job")
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := server.New(server.Config{
		Log:                 log,
		Port:                cfg.Port,
		DevMode:             cfg.DevMode,
		OptimizationHandler: optimization.NewHandler(svc, historyRepo, log),
		SnapshotHandler:     snapshots.NewHandler(snapshotRepo, log),
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
