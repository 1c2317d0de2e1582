package execution

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/qualmom/internal/calendar"
	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/internal/portfolio"
	"github.com/wonny/qualmom/pkg/logger"
)

// PriceSource prices orders for the paper broker
type PriceSource interface {
	Price(ctx context.Context, sec contracts.Security, date time.Time) (float64, error)
}

// PaperBroker is an in-memory executor with whole-share, zero-slippage fills.
// Orders fill at the last close known before the cycle date's open, i.e. the
// close of PreviousSession(weights.Date). Positions absent from a submitted
// vector are closed, matching target-weight semantics. It also serves as the
// HoldingsSource.
// ⭐ 실제 운영에서는 RemoteExecutor 사용
type PaperBroker struct {
	mu        sync.Mutex
	prices    PriceSource
	calendar  *calendar.Calendar
	cash      decimal.Decimal
	positions map[contracts.Security]decimal.Decimal
	clock     func() time.Time
	logger    *logger.Logger
}

// NewPaperBroker creates a paper broker funded with initialCash
func NewPaperBroker(prices PriceSource, initialCash float64, log *logger.Logger) *PaperBroker {
	return &PaperBroker{
		prices:    prices,
		calendar:  calendar.New(),
		cash:      decimal.NewFromFloat(initialCash),
		positions: make(map[contracts.Security]decimal.Decimal),
		clock:     time.Now,
		logger:    log.WithStage(contracts.StageExecution.String()),
	}
}

// WithCalendar sets the session calendar used to pick the fill close
func (b *PaperBroker) WithCalendar(cal *calendar.Calendar) *PaperBroker {
	if cal != nil {
		b.calendar = cal
	}
	return b
}

// SetPosition seeds a position (tests, state restore)
func (b *PaperBroker) SetPosition(sec contracts.Security, qty int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if qty == 0 {
		delete(b.positions, sec)
		return
	}
	b.positions[sec] = decimal.NewFromInt(qty)
}

// Cash returns uninvested cash
func (b *PaperBroker) Cash() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash
}

// Holdings implements contracts.HoldingsSource
func (b *PaperBroker) Holdings(ctx context.Context) (*contracts.Holdings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := &contracts.Holdings{
		AsOf:      b.clock(),
		Positions: make(map[contracts.Security]float64, len(b.positions)),
		Cash:      b.cash.InexactFloat64(),
	}
	for sec, qty := range b.positions {
		h.Positions[sec] = qty.InexactFloat64()
	}
	return h, nil
}

// Submit implements contracts.Executor. Either every order fills or none does.
func (b *PaperBroker) Submit(ctx context.Context, weights contracts.WeightVector, constraints contracts.Constraints) (*contracts.Fills, error) {
	if err := portfolio.CheckConstraints(weights, constraints); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	targets := weights.Map()
	universe := b.orderUniverse(weights)

	// 장 시작 전 마지막 종가로 체결
	priceDate := b.calendar.PreviousSession(weights.Date)
	prices := make(map[contracts.Security]decimal.Decimal, len(universe))
	for _, sec := range universe {
		p, err := b.prices.Price(ctx, sec, priceDate)
		if err != nil {
			return nil, fmt.Errorf("price %s: %w", sec, err)
		}
		if !(p > 0) {
			return nil, fmt.Errorf("price %s: non-positive %.4f", sec, p)
		}
		prices[sec] = decimal.NewFromFloat(p)
	}

	nav := b.cash
	for sec, qty := range b.positions {
		nav = nav.Add(qty.Mul(prices[sec]))
	}

	var sells, buys []contracts.Fill
	for _, sec := range universe {
		price := prices[sec]
		weight := targets[sec]
		targetQty := nav.Mul(decimal.NewFromFloat(weight)).Div(price).Floor()
		delta := targetQty.Sub(b.positions[sec])
		if delta.IsZero() {
			continue
		}

		fill := contracts.Fill{
			Security:     sec,
			Qty:          delta.Abs(),
			Price:        price,
			Notional:     delta.Abs().Mul(price),
			TargetWeight: weight,
		}
		if delta.IsNegative() {
			fill.Side = contracts.OrderSideSell
			sells = append(sells, fill)
		} else {
			fill.Side = contracts.OrderSideBuy
			buys = append(buys, fill)
		}
	}

	// sells settle first so buys are funded
	orders := append(sells, buys...)
	for _, o := range orders {
		qty := o.Qty
		if o.Side == contracts.OrderSideSell {
			qty = qty.Neg()
		}
		next := b.positions[o.Security].Add(qty)
		if next.IsZero() {
			delete(b.positions, o.Security)
		} else {
			b.positions[o.Security] = next
		}
		b.cash = b.cash.Sub(qty.Mul(o.Price))
	}

	fills := &contracts.Fills{SubmittedAt: b.clock(), Orders: orders}

	b.logger.WithFields(map[string]interface{}{
		"orders":   fills.Count(),
		"turnover": fills.Turnover().StringFixed(2),
		"nav":      nav.StringFixed(2),
		"cash":     b.cash.StringFixed(2),
	}).Info("Paper orders filled")

	return fills, nil
}

// orderUniverse is the vector's securities followed by held securities it omits
func (b *PaperBroker) orderUniverse(weights contracts.WeightVector) []contracts.Security {
	out := make([]contracts.Security, 0, len(weights.Weights)+len(b.positions))
	seen := make(map[contracts.Security]bool)
	for _, tw := range weights.Weights {
		if !seen[tw.Security] {
			seen[tw.Security] = true
			out = append(out, tw.Security)
		}
	}

	var closing []contracts.Security
	for sec := range b.positions {
		if !seen[sec] {
			closing = append(closing, sec)
		}
	}
	sort.Slice(closing, func(i, j int) bool { return closing[i] < closing[j] })
	return append(out, closing...)
}
