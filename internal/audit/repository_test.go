package audit

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/qualmom/internal/brain"
	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/pkg/config"
	"github.com/wonny/qualmom/pkg/database"
)

func tradedResult() *brain.RunResult {
	started := time.Date(2024, 1, 31, 14, 30, 0, 0, time.UTC)
	return &brain.RunResult{
		RunID:        "run_test_1",
		Date:         time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		DataAsOf:     time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC),
		StrategyHash: "abc123",
		State:        brain.StateTrade,
		Success:      true,
		Selected:     &contracts.TargetHoldings{Securities: []contracts.Security{"B", "C"}},
		Trend:        &contracts.TrendSignal{Up: false},
		Weights: &contracts.WeightVector{Weights: []contracts.TargetWeight{
			{Security: "C", Weight: 0.5, Sleeve: contracts.SleeveEquity},
			{Security: "IEF", Weight: 0.25, Sleeve: contracts.SleeveDefensive},
			{Security: "TLT", Weight: 0.25, Sleeve: contracts.SleeveDefensive},
		}},
		Fills: &contracts.Fills{Orders: []contracts.Fill{{
			Security: "IEF",
			Side:     contracts.OrderSideBuy,
			Qty:      decimal.NewFromInt(25),
			Price:    decimal.NewFromInt(100),
			Notional: decimal.NewFromInt(2500),
		}}},
		StockWeight: 0.5,
		BondWeight:  0.5,
		StartedAt:   started,
		Duration:    3 * time.Second,
	}
}

func TestNewCycleRecord(t *testing.T) {
	rec := NewCycleRecord(tradedResult())

	assert.Equal(t, StatusSuccess, rec.Status)
	assert.Empty(t, rec.Error)
	require.NotNil(t, rec.TrendUp)
	assert.False(t, *rec.TrendUp)
	assert.Equal(t, []contracts.Security{"B", "C"}, rec.Selected)
	assert.Len(t, rec.Weights, 3)
	assert.Equal(t, 0.5, rec.BondWeight)
	assert.Equal(t, rec.StartedAt.Add(3*time.Second), rec.FinishedAt)
}

func TestNewCycleRecord_Failed(t *testing.T) {
	result := &brain.RunResult{
		RunID:       "run_test_2",
		State:       brain.StateSelect,
		Error:       errors.New("S2 failed: data unavailable"),
		FailedStage: contracts.StageFactors,
	}
	rec := NewCycleRecord(result)

	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "S2_FACTORS", rec.FailedStage)
	assert.Contains(t, rec.Error, "S2 failed")
	assert.Nil(t, rec.TrendUp)
	assert.NotNil(t, rec.Selected)
	assert.Empty(t, rec.Weights)
}

func TestNewCycleRecord_DryRun(t *testing.T) {
	result := tradedResult()
	result.DryRun = true
	result.Fills = nil

	assert.Equal(t, StatusDryRun, NewCycleRecord(result).Status)
}

func TestRepository_RecordAndLatest(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := database.New(ctx, &config.Config{Database: config.DatabaseConfig{
		URL:             url,
		MaxConns:        2,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	}})
	require.NoError(t, err, "database connection failed")
	defer db.Close()
	require.NoError(t, db.Migrate(ctx))

	repo := NewRepository(db.Pool)
	result := tradedResult()
	result.RunID = "run_audit_" + time.Now().Format("150405.000000")
	result.Date = time.Date(2031, 1, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordCycle(ctx, result))

	latest, err := repo.LatestCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, latest.RunID)
	assert.Equal(t, StatusSuccess, latest.Status)
	assert.Equal(t, []contracts.Security{"B", "C"}, latest.Selected)
	require.NotNil(t, latest.Fills)
	assert.Equal(t, 1, latest.Fills.Count())
}
