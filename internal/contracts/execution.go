package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents order direction
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Fill is one executed order returned by S7
type Fill struct {
	Security     Security        `json:"security"`
	Side         OrderSide       `json:"side"`
	Qty          decimal.Decimal `json:"qty"`
	Price        decimal.Decimal `json:"price"`
	Notional     decimal.Decimal `json:"notional"`
	TargetWeight float64         `json:"target_weight"`
}

// Fills is the executor's answer to a weight vector
// ⭐ SSOT: S7 실행 결과
type Fills struct {
	SubmittedAt time.Time `json:"submitted_at"`
	Orders      []Fill    `json:"orders"`
}

// Count returns the number of filled orders
func (f *Fills) Count() int {
	if f == nil {
		return 0
	}
	return len(f.Orders)
}

// Turnover returns the gross traded notional
func (f *Fills) Turnover() decimal.Decimal {
	total := decimal.Zero
	if f == nil {
		return total
	}
	for _, o := range f.Orders {
		total = total.Add(o.Notional.Abs())
	}
	return total
}
