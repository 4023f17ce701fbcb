package snapshots

import (
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/quantfolio/quantfolio/internal/modules/optimization"
)

// stubPriceSource serves a deterministic synthetic price table.
type stubPriceSource struct{}

func (stubPriceSource) GetPriceTable(symbols []string, lookbackDays int) (optimization.PriceTable, error) {
	rng := rand.New(rand.NewSource(1))
	numRows := 300

	table := optimization.PriceTable{
		Dates:  make([]time.Time, numRows),
		Assets: symbols,
		Prices: make(map[string][]float64, len(symbols)),
	}
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range table.Dates {
		table.Dates[i] = start.AddDate(0, 0, i)
	}
	for _, symbol := range symbols {
		col := make([]float64, numRows)
		price := 100.0
		for i := range col {
			col[i] = price
			price *= 1 + 0.0004 + 0.01*rng.NormFloat64()
			if price < 1 {
				price = 1
			}
		}
		table.Prices[symbol] = col
	}
	return table, nil
}

func TestJob_RunStoresSnapshot(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.InitSchema())

	svc := optimization.NewService(optimization.ServiceConfig{}, zerolog.Nop())

	job := NewJob(JobConfig{
		Strategy:     optimization.StrategyEqualWeight,
		Symbols:      []string{"AAA", "BBB"},
		LookbackDays: 252,
	}, svc, stubPriceSource{}, repo, zerolog.Nop())

	require.Equal(t, "optimization_snapshot", job.Name())
	require.NoError(t, job.Run())

	stored, err := repo.Latest(optimization.StrategyEqualWeight)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 0.5, stored.Weights["AAA"])
	assert.Equal(t, 0.5, stored.Weights["BBB"])
}

func TestJob_RunFailsWithoutSymbols(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.InitSchema())
	svc := optimization.NewService(optimization.ServiceConfig{}, zerolog.Nop())

	job := NewJob(JobConfig{}, svc, stubPriceSource{}, repo, zerolog.Nop())
	assert.Error(t, job.Run())
}
