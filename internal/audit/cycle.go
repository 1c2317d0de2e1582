package audit

import (
	"time"

	"github.com/wonny/qualmom/internal/brain"
	"github.com/wonny/qualmom/internal/contracts"
)

// Cycle status values stored in rebalance.cycles
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusDryRun  = "dry_run"
)

// CycleRecord is one row of the rebalance log
type CycleRecord struct {
	RunID        string                   `json:"run_id"`
	CycleDate    time.Time                `json:"cycle_date"`
	DataAsOf     time.Time                `json:"data_as_of"`
	Status       string                   `json:"status"`
	FailedStage  string                   `json:"failed_stage,omitempty"`
	Error        string                   `json:"error,omitempty"`
	TrendUp      *bool                    `json:"trend_up,omitempty"` // trend 미사용 시 nil
	StockWeight  float64                  `json:"stock_weight"`
	BondWeight   float64                  `json:"bond_weight"`
	Selected     []contracts.Security     `json:"selected"`
	Weights      []contracts.TargetWeight `json:"weights"`
	Fills        *contracts.Fills         `json:"fills,omitempty"`
	StrategyHash string                   `json:"strategy_hash,omitempty"`
	DryRun       bool                     `json:"dry_run"`
	StartedAt    time.Time                `json:"started_at"`
	FinishedAt   time.Time                `json:"finished_at"`
}

// NewCycleRecord flattens a run result into a record
func NewCycleRecord(result *brain.RunResult) *CycleRecord {
	rec := &CycleRecord{
		RunID:        result.RunID,
		CycleDate:    result.Date,
		DataAsOf:     result.DataAsOf,
		Status:       StatusSuccess,
		FailedStage:  string(result.FailedStage),
		StockWeight:  result.StockWeight,
		BondWeight:   result.BondWeight,
		Selected:     []contracts.Security{},
		Weights:      []contracts.TargetWeight{},
		Fills:        result.Fills,
		StrategyHash: result.StrategyHash,
		DryRun:       result.DryRun,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.StartedAt.Add(result.Duration),
	}

	switch {
	case result.Error != nil:
		rec.Status = StatusFailed
		rec.Error = result.Error.Error()
	case result.DryRun:
		rec.Status = StatusDryRun
	}

	if result.Trend != nil {
		up := result.Trend.Up
		rec.TrendUp = &up
	}
	if result.Selected != nil {
		rec.Selected = append(rec.Selected, result.Selected.Securities...)
	}
	if result.Weights != nil {
		rec.Weights = append(rec.Weights, result.Weights.Weights...)
	}
	return rec
}
