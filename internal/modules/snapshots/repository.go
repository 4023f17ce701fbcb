// Package snapshots persists periodic optimization results so allocation
// drift can be tracked over time.
package snapshots

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantfolio/quantfolio/internal/modules/optimization"
)

// Snapshot is one stored optimization result.
type Snapshot struct {
	ID          string                          `json:"id"`
	CreatedAt   time.Time                       `json:"created_at"`
	Strategy    string                          `json:"strategy"`
	Weights     map[string]float64              `json:"weights"`
	Performance optimization.PerformanceSummary `json:"performance"`
}

// Repository handles snapshot persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// InitSchema creates the optimization_snapshots table if it does not exist.
func (r *Repository) InitSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS optimization_snapshots (
			id              TEXT PRIMARY KEY,
			created_at      TEXT NOT NULL,
			strategy        TEXT NOT NULL,
			weights_json    TEXT NOT NULL,
			expected_return REAL NOT NULL,
			volatility      REAL NOT NULL,
			sharpe_ratio    REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_created_at
			ON optimization_snapshots(created_at);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create snapshots schema: %w", err)
	}
	return nil
}

// Save stores one optimization result and returns its generated ID.
func (r *Repository) Save(strategy string, weights map[string]float64, perf optimization.PerformanceSummary) (string, error) {
	weightsJSON, err := json.Marshal(weights)
	if err != nil {
		return "", fmt.Errorf("failed to marshal weights: %w", err)
	}

	id := uuid.New().String()
	createdAt := time.Now().UTC().Format("2006-01-02 15:04:05")

	query := `
		INSERT INTO optimization_snapshots (
			id, created_at, strategy, weights_json,
			expected_return, volatility, sharpe_ratio
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, id, createdAt, strategy, string(weightsJSON),
		perf.ExpectedReturn, perf.Volatility, perf.SharpeRatio)
	if err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return id, nil
}

// Latest returns the most recent snapshot for a strategy, or nil when none
// has been stored yet.
func (r *Repository) Latest(strategy string) (*Snapshot, error) {
	query := `
		SELECT id, created_at, strategy, weights_json,
		       expected_return, volatility, sharpe_ratio
		FROM optimization_snapshots
		WHERE strategy = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	var s Snapshot
	var createdAt, weightsJSON string

	err := r.db.QueryRow(query, strategy).Scan(
		&s.ID,
		&createdAt,
		&s.Strategy,
		&weightsJSON,
		&s.Performance.ExpectedReturn,
		&s.Performance.Volatility,
		&s.Performance.SharpeRatio,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	s.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
	if err := json.Unmarshal([]byte(weightsJSON), &s.Weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot weights: %w", err)
	}

	return &s, nil
}

// List returns snapshots for a strategy, newest first, up to limit.
func (r *Repository) List(strategy string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, created_at, strategy, weights_json,
		       expected_return, volatility, sharpe_ratio
		FROM optimization_snapshots
		WHERE strategy = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		var createdAt, weightsJSON string

		if err := rows.Scan(
			&s.ID,
			&createdAt,
			&s.Strategy,
			&weightsJSON,
			&s.Performance.ExpectedReturn,
			&s.Performance.Volatility,
			&s.Performance.SharpeRatio,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		s.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
		if err := json.Unmarshal([]byte(weightsJSON), &s.Weights); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot weights: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}
