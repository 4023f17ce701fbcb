// Package history stores daily closing prices and serves them back as
// aligned price tables for the optimization module.
package history

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfolio/quantfolio/internal/modules/optimization"
)

// DailyPrice is one close observation for one symbol.
type DailyPrice struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
}

// Repository handles daily price persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new price history repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "history").Logger(),
	}
}

// InitSchema creates the daily_prices table if it does not exist.
func (r *Repository) InitSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS daily_prices (
			symbol TEXT NOT NULL,
			date   TEXT NOT NULL,
			close  REAL NOT NULL,
			PRIMARY KEY (symbol, date)
		);
		CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create daily_prices schema: %w", err)
	}
	return nil
}

// SaveDailyPrice upserts one close observation.
func (r *Repository) SaveDailyPrice(p DailyPrice) error {
	if p.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if p.Close <= 0 || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
		return fmt.Errorf("invalid close %v for %s", p.Close, p.Symbol)
	}

	query := `
		INSERT INTO daily_prices (symbol, date, close)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET close = excluded.close
	`
	if _, err := r.db.Exec(query, p.Symbol, p.Date.Format("2006-01-02"), p.Close); err != nil {
		return fmt.Errorf("failed to save daily price: %w", err)
	}
	return nil
}

// SaveDailyPrices upserts a batch inside one transaction.
func (r *Repository) SaveDailyPrices(prices []DailyPrice) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (symbol, date, close)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET close = excluded.close
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		if p.Close <= 0 || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			return fmt.Errorf("invalid close %v for %s", p.Close, p.Symbol)
		}
		if _, err := stmt.Exec(p.Symbol, p.Date.Format("2006-01-02"), p.Close); err != nil {
			return fmt.Errorf("failed to insert price for %s: %w", p.Symbol, err)
		}
	}

	return tx.Commit()
}

// GetPriceTable loads the closes for the given symbols over the lookback
// window and pivots them into an aligned table. Dates where a symbol has no
// observation are filled with NaN; the optimizer decides how to treat them.
func (r *Repository) GetPriceTable(symbols []string, lookbackDays int) (optimization.PriceTable, error) {
	if len(symbols) == 0 {
		return optimization.PriceTable{}, fmt.Errorf("no symbols provided")
	}
	if lookbackDays <= 0 {
		return optimization.PriceTable{}, fmt.Errorf("lookback_days must be positive, got %d", lookbackDays)
	}

	// Lookback is in trading days; fetch a generous calendar window and trim
	// to the most recent lookbackDays distinct dates afterwards.
	cutoff := time.Now().AddDate(0, 0, -lookbackDays*2).Format("2006-01-02")

	placeholders := strings.Repeat("?,", len(symbols))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`
		SELECT symbol, date, close
		FROM daily_prices
		WHERE symbol IN (%s) AND date >= ?
		ORDER BY date ASC
	`, placeholders)

	args := make([]interface{}, 0, len(symbols)+1)
	for _, s := range symbols {
		args = append(args, s)
	}
	args = append(args, cutoff)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return optimization.PriceTable{}, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	bySymbol := make(map[string]map[string]float64, len(symbols))
	dateSet := make(map[string]struct{})

	for rows.Next() {
		var symbol, date string
		var close float64
		if err := rows.Scan(&symbol, &date, &close); err != nil {
			return optimization.PriceTable{}, fmt.Errorf("failed to scan daily price: %w", err)
		}
		if bySymbol[symbol] == nil {
			bySymbol[symbol] = make(map[string]float64)
		}
		bySymbol[symbol][date] = close
		dateSet[date] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return optimization.PriceTable{}, fmt.Errorf("error iterating daily prices: %w", err)
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > lookbackDays {
		dates = dates[len(dates)-lookbackDays:]
	}

	table := optimization.PriceTable{
		Dates:  make([]time.Time, 0, len(dates)),
		Assets: append([]string(nil), symbols...),
		Prices: make(map[string][]float64, len(symbols)),
	}

	for _, d := range dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			return optimization.PriceTable{}, fmt.Errorf("invalid stored date %q: %w", d, err)
		}
		table.Dates = append(table.Dates, t)
	}

	for _, symbol := range symbols {
		col := make([]float64, len(dates))
		obs := bySymbol[symbol]
		for i, d := range dates {
			if close, ok := obs[d]; ok {
				col[i] = close
			} else {
				col[i] = math.NaN()
			}
		}
		table.Prices[symbol] = col
	}

	r.log.Debug().
		Strs("symbols", symbols).
		Int("rows", len(dates)).
		Msg("Built price table")

	return table, nil
}

// CountObservations returns the number of stored closes for a symbol.
func (r *Repository) CountObservations(symbol string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM daily_prices WHERE symbol = ?", symbol).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return count, nil
}
