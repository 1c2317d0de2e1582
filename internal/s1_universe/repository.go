package s1_universe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/qualmom/internal/contracts"
)

// Repository handles data persistence for S1
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveUniverse saves a universe snapshot to the database
func (r *Repository) SaveUniverse(ctx context.Context, universe *contracts.UniverseSnapshot) error {
	securitiesJSON, err := json.Marshal(universe.Securities)
	if err != nil {
		return fmt.Errorf("marshal securities: %w", err)
	}

	query := `
		INSERT INTO rebalance.universe_snapshots (
			snapshot_date,
			data_as_of,
			securities,
			total_count,
			created_at
		) VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (snapshot_date) DO UPDATE SET
			data_as_of = EXCLUDED.data_as_of,
			securities = EXCLUDED.securities,
			total_count = EXCLUDED.total_count,
			created_at = NOW()
	`

	_, err = r.db.Exec(ctx, query,
		universe.Date,
		universe.DataAsOf,
		securitiesJSON,
		universe.Count(),
	)
	if err != nil {
		return fmt.Errorf("insert universe: %w", err)
	}

	return nil
}

// GetLatestUniverse retrieves the most recent universe snapshot
func (r *Repository) GetLatestUniverse(ctx context.Context) (*contracts.UniverseSnapshot, error) {
	query := `
		SELECT snapshot_date, data_as_of, securities
		FROM rebalance.universe_snapshots
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	universe := &contracts.UniverseSnapshot{}
	var securitiesJSON []byte
	err := r.db.QueryRow(ctx, query).Scan(
		&universe.Date,
		&universe.DataAsOf,
		&securitiesJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest universe: %w", err)
	}

	if err := json.Unmarshal(securitiesJSON, &universe.Securities); err != nil {
		return nil, fmt.Errorf("unmarshal securities: %w", err)
	}

	return universe, nil
}
