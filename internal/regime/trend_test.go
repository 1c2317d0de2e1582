package regime

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/internal/provider"
	"github.com/wonny/qualmom/pkg/logger"
)

func TestLastSMA(t *testing.T) {
	assert.InDelta(t, 4.5, LastSMA([]float64{1, 2, 3, 4, 5}, 2), 1e-12)
	assert.True(t, math.IsNaN(LastSMA([]float64{1, 2}, 3)))
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		wantUp bool
	}{
		{"rising", []float64{1, 2, 3, 4, 5, 6}, true},
		{"falling", []float64{6, 5, 4, 3, 2, 1}, false},
		{"flat is not up", []float64{3, 3, 3, 3, 3, 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := Evaluate(tt.closes, 2, 6)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUp, sig.Up)
		})
	}

	_, err := Evaluate([]float64{1, math.NaN(), 3}, 1, 3)
	assert.Error(t, err)
	_, err = Evaluate([]float64{1, 2}, 1, 3)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Benchmark: "SPY", FastLookback: 0, SlowLookback: 10}.Validate())
	assert.Error(t, Config{Benchmark: "SPY", FastLookback: 20, SlowLookback: 10}.Validate())
	assert.Error(t, Config{FastLookback: 1, SlowLookback: 10}.Validate())
}

func TestTrendFilter_Signal(t *testing.T) {
	ctx := context.Background()
	asOf := time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)
	cycle := contracts.Cycle{RunID: "t", Date: time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC), DataAsOf: asOf}

	mem := provider.NewMemory()
	// the bar on cycle.Date itself must be ignored: a crash on the 22nd
	mem.SetCloses("SPY", asOf, 1, 2, 3, 4, 5, 6, 7, 8)
	mem.SetCloses("SPY", cycle.Date, 0.01)

	f := NewTrendFilter(mem, Config{Benchmark: "SPY", FastLookback: 2, SlowLookback: 6}, logger.NewNop())
	sig, err := f.Signal(ctx, cycle)
	require.NoError(t, err)

	assert.True(t, sig.Up)
	assert.InDelta(t, 7.5, sig.Fast, 1e-12)
	assert.InDelta(t, 5.5, sig.Slow, 1e-12)
	assert.Equal(t, contracts.Security("SPY"), sig.Benchmark)
	assert.Equal(t, asOf, sig.DataAsOf)
}

func TestTrendFilter_InsufficientHistory(t *testing.T) {
	mem := provider.NewMemory()
	asOf := time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)
	mem.SetCloses("SPY", asOf, 1, 2, 3)

	f := NewTrendFilter(mem, Config{Benchmark: "SPY", FastLookback: 2, SlowLookback: 6}, logger.NewNop())
	_, err := f.Signal(context.Background(), contracts.Cycle{DataAsOf: asOf})
	assert.ErrorIs(t, err, contracts.ErrDataUnavailable)
}
