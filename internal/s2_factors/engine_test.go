package s2_factors

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/internal/provider"
	"github.com/wonny/qualmom/pkg/logger"
)

var asOf = time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)

func setFundamentals(m *provider.Memory, sec contracts.Security, v float64) {
	for _, name := range contracts.QualityFactors() {
		m.SetFactor(sec, name, asOf.AddDate(0, -1, 0), contracts.Present(v))
	}
}

func TestTrailingReturn(t *testing.T) {
	tests := []struct {
		name     string
		closes   []float64
		lookback int
		want     contracts.FactorValue
	}{
		{"exact window", []float64{100, 105, 110}, 3, contracts.Present(0.1)},
		{"longer history uses last window", []float64{1, 100, 90}, 2, contracts.Present(-0.1)},
		{"short history", []float64{100, 110}, 3, contracts.Missing()},
		{"non-positive first", []float64{0, 110}, 2, contracts.Missing()},
		{"nan first", []float64{math.NaN(), 110}, 2, contracts.Missing()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrailingReturn(tt.closes, tt.lookback)
			assert.Equal(t, tt.want.Valid, got.Valid)
			if tt.want.Valid {
				assert.InDelta(t, tt.want.Value, got.Value, 1e-12)
			}
		})
	}
}

func TestEngine_Build(t *testing.T) {
	m := provider.NewMemory()
	setFundamentals(m, "A", 1)
	setFundamentals(m, "B", 2)
	m.SetFactor("B", contracts.FactorROIC, asOf.AddDate(0, 0, -1), contracts.Missing())
	m.SetCloses("A", asOf, 100, 110, 120)
	m.SetCloses("B", asOf, 50, 60)
	// bar after DataAsOf must not leak into momentum
	m.SetCloses("A", asOf.AddDate(0, 0, 3), 1000)

	universe := &contracts.UniverseSnapshot{
		Date:       asOf.AddDate(0, 0, 3),
		DataAsOf:   asOf,
		Securities: []contracts.Security{"B", "A", "C"},
	}

	engine := NewEngine(m, Config{MomentumLookbackDays: 3, Workers: 2}, logger.NewNop())
	set, err := engine.Build(context.Background(), universe)
	require.NoError(t, err)

	require.Len(t, set.Rows, 3)
	// universe order preserved
	assert.Equal(t, contracts.Security("B"), set.Rows[0].Security)
	assert.Equal(t, contracts.Security("A"), set.Rows[1].Security)
	assert.Equal(t, contracts.Security("C"), set.Rows[2].Security)

	a := set.Rows[1]
	assert.True(t, a.Complete())
	assert.InDelta(t, 0.2, a.Momentum.Value, 1e-12)

	b := set.Rows[0]
	assert.False(t, b.ROIC.Valid, "missing stays missing, never zero")
	assert.True(t, b.CashReturn.Valid)
	assert.False(t, b.Momentum.Valid, "two closes for a three-close window")

	c := set.Rows[2]
	assert.False(t, c.Complete())
	assert.False(t, c.Momentum.Valid)

	assert.Equal(t, 1, set.CompleteCount())
	assert.Equal(t, asOf, set.DataAsOf)
}

func TestEngine_ProviderFailureAborts(t *testing.T) {
	m := provider.NewMemory()
	setFundamentals(m, "A", 1)
	m.Fail("closes", "A", errors.New("timeout"))

	universe := &contracts.UniverseSnapshot{DataAsOf: asOf, Securities: []contracts.Security{"A"}}
	_, err := NewEngine(m, DefaultConfig(), logger.NewNop()).Build(context.Background(), universe)
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrDataUnavailable)

	var due *contracts.DataUnavailableError
	require.ErrorAs(t, err, &due)
	assert.Equal(t, contracts.StageFactors, due.Stage)
	assert.Equal(t, contracts.Security("A"), due.Security)
}

func TestEngine_InvalidLookback(t *testing.T) {
	_, err := NewEngine(provider.NewMemory(), Config{MomentumLookbackDays: 1}, logger.NewNop()).
		Build(context.Background(), &contracts.UniverseSnapshot{})
	assert.Error(t, err)
}
