package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/qualmom/internal/contracts"
)

// Repository persists the last traded weight vector
// ⭐ SSOT: 목표 비중 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new portfolio repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveWeights replaces the stored vector for runID
func (r *Repository) SaveWeights(ctx context.Context, runID string, weights *contracts.WeightVector) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM rebalance.target_weights WHERE run_id = $1", runID); err != nil {
		return fmt.Errorf("failed to delete old weights: %w", err)
	}

	query := `
		INSERT INTO rebalance.target_weights (
			run_id, target_date, position, security, weight, sleeve, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	for i, tw := range weights.Weights {
		_, err := tx.Exec(ctx, query, runID, weights.Date, i, string(tw.Security), tw.Weight, string(tw.Sleeve))
		if err != nil {
			return fmt.Errorf("failed to insert weight %s: %w", tw.Security, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LatestWeights returns the most recently saved vector, or nil if none
func (r *Repository) LatestWeights(ctx context.Context) (*contracts.WeightVector, error) {
	var runID string
	var date time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT run_id, target_date
		FROM rebalance.target_weights
		ORDER BY created_at DESC, target_date DESC
		LIMIT 1
	`).Scan(&runID, &date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT security, weight, sleeve
		FROM rebalance.target_weights
		WHERE run_id = $1
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query weights: %w", err)
	}
	defer rows.Close()

	weights := &contracts.WeightVector{Date: date}
	for rows.Next() {
		var sec, sleeve string
		var w float64
		if err := rows.Scan(&sec, &w, &sleeve); err != nil {
			return nil, fmt.Errorf("scan weight: %w", err)
		}
		weights.Weights = append(weights.Weights, contracts.TargetWeight{
			Security: contracts.Security(sec),
			Weight:   w,
			Sleeve:   contracts.Sleeve(sleeve),
		})
	}
	return weights, rows.Err()
}
