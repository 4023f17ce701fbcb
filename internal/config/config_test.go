package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 252, cfg.LookbackDays)
	assert.InDelta(t, 0.02, cfg.RiskFreeRate, 1e-12)
	assert.Equal(t, 10000, cfg.MonteCarloSamples)
	assert.False(t, cfg.CleanRenormalize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RISK_FREE_RATE", "0.035")
	t.Setenv("SNAPSHOT_SCHEDULE", "@daily")
	t.Setenv("SNAPSHOT_SYMBOLS", "AAPL, MSFT ,GOOG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.InDelta(t, 0.035, cfg.RiskFreeRate, 1e-12)
	assert.Equal(t, "@daily", cfg.SnapshotSchedule)
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, cfg.SnapshotSymbols)
}

func TestValidate(t *testing.T) {
	valid := &Config{
		DataDir:           "./data",
		Port:              8080,
		LookbackDays:      252,
		MonteCarloSamples: 1000,
	}
	assert.NoError(t, valid.Validate())

	noDir := *valid
	noDir.DataDir = ""
	assert.Error(t, noDir.Validate())

	badPort := *valid
	badPort.Port = -1
	assert.Error(t, badPort.Validate())

	badLookback := *valid
	badLookback.LookbackDays = 1
	assert.Error(t, badLookback.Validate())

	scheduleWithoutSymbols := *valid
	scheduleWithoutSymbols.SnapshotSchedule = "@daily"
	assert.Error(t, scheduleWithoutSymbols.Validate())
}

func TestDBPaths(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/quantfolio"}
	assert.Equal(t, "/var/lib/quantfolio/history.db", cfg.HistoryDBPath())
	assert.Equal(t, "/var/lib/quantfolio/snapshots.db", cfg.SnapshotsDBPath())
}
