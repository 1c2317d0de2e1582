package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/qualmom/internal/brain"
	"github.com/wonny/qualmom/internal/contracts"
)

// ErrNoCycles is returned when the log is empty
var ErrNoCycles = errors.New("no rebalance cycles recorded")

// Repository handles the rebalance cycle log
// ⭐ SSOT: Audit 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordCycle implements brain.CycleRecorder
func (r *Repository) RecordCycle(ctx context.Context, result *brain.RunResult) error {
	return r.SaveCycle(ctx, NewCycleRecord(result))
}

// SaveCycle upserts one cycle record
func (r *Repository) SaveCycle(ctx context.Context, rec *CycleRecord) error {
	selectedJSON, err := json.Marshal(rec.Selected)
	if err != nil {
		return fmt.Errorf("failed to marshal selected: %w", err)
	}
	weightsJSON, err := json.Marshal(rec.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	var fillsJSON []byte
	if rec.Fills != nil {
		if fillsJSON, err = json.Marshal(rec.Fills); err != nil {
			return fmt.Errorf("failed to marshal fills: %w", err)
		}
	}

	query := `
		INSERT INTO rebalance.cycles (
			run_id, cycle_date, data_as_of, status, failed_stage, error,
			trend_up, stock_weight, bond_weight, selected, weights, fills,
			strategy_hash, dry_run, started_at, finished_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14, $15, $16)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			failed_stage = EXCLUDED.failed_stage,
			error = EXCLUDED.error,
			trend_up = EXCLUDED.trend_up,
			stock_weight = EXCLUDED.stock_weight,
			bond_weight = EXCLUDED.bond_weight,
			selected = EXCLUDED.selected,
			weights = EXCLUDED.weights,
			fills = EXCLUDED.fills,
			finished_at = EXCLUDED.finished_at
	`

	_, err = r.pool.Exec(ctx, query,
		rec.RunID, rec.CycleDate, rec.DataAsOf, rec.Status, rec.FailedStage, rec.Error,
		rec.TrendUp, rec.StockWeight, rec.BondWeight, selectedJSON, weightsJSON, fillsJSON,
		rec.StrategyHash, rec.DryRun, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save cycle %s: %w", rec.RunID, err)
	}
	return nil
}

// LatestCycle returns the most recent cycle
func (r *Repository) LatestCycle(ctx context.Context) (*CycleRecord, error) {
	records, err := r.ListCycles(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoCycles
	}
	return records[0], nil
}

// ListCycles returns up to limit cycles, newest first
func (r *Repository) ListCycles(ctx context.Context, limit int) ([]*CycleRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, cycle_date, data_as_of, status,
			COALESCE(failed_stage, ''), COALESCE(error, ''), trend_up,
			stock_weight, bond_weight, selected, weights, fills,
			COALESCE(strategy_hash, ''), dry_run, started_at, finished_at
		FROM rebalance.cycles
		ORDER BY cycle_date DESC, started_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var records []*CycleRecord
	for rows.Next() {
		rec, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cycles: %w", err)
	}
	return records, nil
}

func scanCycle(row pgx.Row) (*CycleRecord, error) {
	var rec CycleRecord
	var selectedJSON, weightsJSON, fillsJSON []byte

	err := row.Scan(
		&rec.RunID, &rec.CycleDate, &rec.DataAsOf, &rec.Status,
		&rec.FailedStage, &rec.Error, &rec.TrendUp,
		&rec.StockWeight, &rec.BondWeight, &selectedJSON, &weightsJSON, &fillsJSON,
		&rec.StrategyHash, &rec.DryRun, &rec.StartedAt, &rec.FinishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan cycle: %w", err)
	}

	if err := json.Unmarshal(selectedJSON, &rec.Selected); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selected: %w", err)
	}
	if err := json.Unmarshal(weightsJSON, &rec.Weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	if len(fillsJSON) > 0 {
		rec.Fills = &contracts.Fills{}
		if err := json.Unmarshal(fillsJSON, rec.Fills); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fills: %w", err)
		}
	}
	return &rec, nil
}
