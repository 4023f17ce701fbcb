// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir  string
	Port     int
	LogLevel string
	DevMode  bool

	LookbackDays      int
	RiskFreeRate      float64
	MonteCarloSamples int
	CleanRenormalize  bool

	SnapshotSchedule string
	SnapshotStrategy string
	SnapshotSymbols  []string
}

// Load reads configuration from environment variables, consulting a .env
// file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:  getEnv("DATA_DIR", "./data"),
		Port:     getEnvAsInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		LookbackDays:      getEnvAsInt("LOOKBACK_DAYS", 252),
		RiskFreeRate:      getEnvAsFloat("RISK_FREE_RATE", 0.02),
		MonteCarloSamples: getEnvAsInt("MONTE_CARLO_SAMPLES", 10000),
		CleanRenormalize:  getEnvAsBool("CLEAN_RENORMALIZE", false),

		SnapshotSchedule: getEnv("SNAPSHOT_SCHEDULE", ""),
		SnapshotStrategy: getEnv("SNAPSHOT_STRATEGY", "hrp"),
		SnapshotSymbols:  getEnvAsList("SNAPSHOT_SYMBOLS"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be in 1..65535, got %d", c.Port)
	}
	if c.LookbackDays < 2 {
		return fmt.Errorf("LOOKBACK_DAYS must be at least 2, got %d", c.LookbackDays)
	}
	if c.MonteCarloSamples <= 0 {
		return fmt.Errorf("MONTE_CARLO_SAMPLES must be positive, got %d", c.MonteCarloSamples)
	}
	if c.SnapshotSchedule != "" && len(c.SnapshotSymbols) == 0 {
		return fmt.Errorf("SNAPSHOT_SYMBOLS is required when SNAPSHOT_SCHEDULE is set")
	}
	return nil
}

// HistoryDBPath is the location of the price history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// SnapshotsDBPath is the location of the snapshot database.
func (c *Config) SnapshotsDBPath() string {
	return filepath.Join(c.DataDir, "snapshots.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
