package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/qualmom/internal/calendar"
	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/internal/provider"
	"github.com/wonny/qualmom/pkg/logger"
)

var (
	tradeDate = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	closeDate = time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC) // session before tradeDate
)

func priced(prices map[contracts.Security]float64) *provider.Memory {
	m := provider.NewMemory()
	for sec, p := range prices {
		m.SetCloses(sec, closeDate, p)
	}
	return m
}

func vector(weights ...contracts.TargetWeight) contracts.WeightVector {
	return contracts.WeightVector{Date: tradeDate, Weights: weights}
}

func equity(sec contracts.Security, w float64) contracts.TargetWeight {
	return contracts.TargetWeight{Security: sec, Weight: w, Sleeve: contracts.SleeveEquity}
}

func TestPaperBroker_Submit(t *testing.T) {
	ctx := context.Background()
	prices := priced(map[contracts.Security]float64{"A": 100, "B": 50, "C": 200})
	broker := NewPaperBroker(prices, 10_000, logger.NewNop())

	fills, err := broker.Submit(ctx, vector(equity("A", 0.5), equity("B", 0.5)), contracts.DefaultConstraints())
	require.NoError(t, err)
	require.Equal(t, 2, fills.Count())
	assert.Equal(t, contracts.OrderSideBuy, fills.Orders[0].Side)
	assert.True(t, fills.Orders[0].Qty.Equal(decimal.NewFromInt(50)))
	assert.True(t, fills.Orders[1].Qty.Equal(decimal.NewFromInt(100)))
	assert.True(t, broker.Cash().IsZero())

	h, err := broker.Holdings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []contracts.Security{"A", "B"}, h.Securities())
	assert.Equal(t, 50.0, h.Positions["A"])

	// A and B are absent from the new vector and get closed
	fills, err = broker.Submit(ctx, vector(equity("C", 1.0)), contracts.DefaultConstraints())
	require.NoError(t, err)
	require.Equal(t, 3, fills.Count())
	assert.Equal(t, contracts.OrderSideSell, fills.Orders[0].Side)
	assert.Equal(t, contracts.Security("A"), fills.Orders[0].Security)
	assert.Equal(t, contracts.OrderSideSell, fills.Orders[1].Side)
	assert.Equal(t, contracts.Security("B"), fills.Orders[1].Security)
	assert.Equal(t, contracts.OrderSideBuy, fills.Orders[2].Side)
	assert.True(t, fills.Orders[2].Qty.Equal(decimal.NewFromInt(50)))
	assert.True(t, fills.Turnover().Equal(decimal.NewFromInt(20_000)))

	h, err = broker.Holdings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []contracts.Security{"C"}, h.Securities())
}

func TestPaperBroker_WholeSharesLeaveCash(t *testing.T) {
	prices := priced(map[contracts.Security]float64{"A": 300})
	broker := NewPaperBroker(prices, 1_000, logger.NewNop())

	fills, err := broker.Submit(context.Background(), vector(equity("A", 1.0)), contracts.DefaultConstraints())
	require.NoError(t, err)
	require.Equal(t, 1, fills.Count())
	assert.True(t, fills.Orders[0].Qty.Equal(decimal.NewFromInt(3)))
	assert.True(t, broker.Cash().Equal(decimal.NewFromInt(100)))
}

func TestPaperBroker_ZeroWeightKeepsNothing(t *testing.T) {
	prices := priced(map[contracts.Security]float64{"A": 100, "IEF": 100})
	broker := NewPaperBroker(prices, 1_000, logger.NewNop())
	broker.SetPosition("A", 5)

	weights := vector(contracts.TargetWeight{Security: "IEF", Weight: 0, Sleeve: contracts.SleeveDefensive})
	fills, err := broker.Submit(context.Background(), weights, contracts.DefaultConstraints())
	require.NoError(t, err)
	require.Equal(t, 1, fills.Count())
	assert.Equal(t, contracts.OrderSideSell, fills.Orders[0].Side)
	assert.True(t, broker.Cash().Equal(decimal.NewFromInt(1_500)))
}

func TestPaperBroker_ConstraintViolation(t *testing.T) {
	prices := priced(map[contracts.Security]float64{"A": 100, "B": 100})
	broker := NewPaperBroker(prices, 1_000, logger.NewNop())

	_, err := broker.Submit(context.Background(), vector(equity("A", 0.7), equity("B", 0.7)), contracts.DefaultConstraints())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConstraintViolation))

	var violation *contracts.ConstraintViolationError
	require.True(t, errors.As(err, &violation))
	assert.InDelta(t, 1.4, violation.Actual, 1e-12)
	assert.True(t, broker.Cash().Equal(decimal.NewFromInt(1_000)))
}

func TestPaperBroker_PriceFailureLeavesStateUntouched(t *testing.T) {
	prices := priced(map[contracts.Security]float64{"A": 100})
	broker := NewPaperBroker(prices, 1_000, logger.NewNop())
	broker.SetPosition("A", 2)

	_, err := broker.Submit(context.Background(), vector(equity("A", 0.5), equity("MISSING", 0.5)), contracts.DefaultConstraints())
	require.Error(t, err)
	assert.True(t, errors.Is(err, provider.ErrNotFound))

	h, err := broker.Holdings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, h.Positions["A"])
	assert.Equal(t, 1_000.0, h.Cash)
}

func TestPaperBroker_FillsAtPreviousSessionClose(t *testing.T) {
	// 30th close 100, 31st close 250; the 31st close is not known at the open
	prices := provider.NewMemory()
	prices.SetCloses("A", tradeDate, 100, 250)
	broker := NewPaperBroker(prices, 1_000, logger.NewNop())

	fills, err := broker.Submit(context.Background(), vector(equity("A", 1.0)), contracts.DefaultConstraints())
	require.NoError(t, err)
	require.Equal(t, 1, fills.Count())
	assert.True(t, fills.Orders[0].Price.Equal(decimal.NewFromInt(100)))
	assert.True(t, fills.Orders[0].Qty.Equal(decimal.NewFromInt(10)))
}

func TestPaperBroker_CalendarSkipsHoliday(t *testing.T) {
	// Fri 2025-12-26 trades on the Wed 24th close; Christmas has no session
	day := time.Date(2025, 12, 26, 0, 0, 0, 0, time.UTC)
	prices := provider.NewMemory()
	prices.SetCloses("A", time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC), 100)
	prices.SetCloses("A", time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC), 400)

	broker := NewPaperBroker(prices, 1_000, logger.NewNop()).
		WithCalendar(calendar.New(time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)))

	fills, err := broker.Submit(context.Background(),
		contracts.WeightVector{Date: day, Weights: []contracts.TargetWeight{equity("A", 1.0)}},
		contracts.DefaultConstraints())
	require.NoError(t, err)
	assert.True(t, fills.Orders[0].Price.Equal(decimal.NewFromInt(100)))
}
