package portfolio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/pkg/logger"
)

// Policy selects how equities and the defensive basket are combined
type Policy string

const (
	// PolicyNoTrend: every selected equity at 1/N, no defensive basket
	PolicyNoTrend Policy = "no_trend"

	// PolicyTrendFollowing: new entries blocked in a downtrend, leftover to the basket
	PolicyTrendFollowing Policy = "trend_following"
)

// Config defines weight allocation parameters
type Config struct {
	Policy           Policy               `json:"policy"`
	TargetSecurities int                  `json:"target_securities"` // 종목당 비중 = 1/N
	DefensiveBasket  []contracts.Security `json:"defensive_basket"`  // 예: IEF, TLT
}

// DefaultConfig returns the trend-following configuration
func DefaultConfig() Config {
	return Config{
		Policy:           PolicyTrendFollowing,
		TargetSecurities: 5,
		DefensiveBasket:  []contracts.Security{"IEF", "TLT"},
	}
}

// AllocationInput is everything S6 needs for one cycle
type AllocationInput struct {
	Date     time.Time
	Holdings *contracts.TargetHoldings
	Trend    *contracts.TrendSignal // required for PolicyTrendFollowing
	Current  *contracts.Holdings    // positions at cycle start
}

// Allocator implements S6: target weight allocation
// ⭐ SSOT: S6 비중 배분 로직은 여기서만
type Allocator struct {
	config Config
	logger *logger.Logger
}

// NewAllocator creates a new weight allocator
func NewAllocator(config Config, log *logger.Logger) *Allocator {
	return &Allocator{
		config: config,
		logger: log.WithStage(contracts.StageAllocation.String()),
	}
}

// Allocate turns the selected equities into a validated WeightVector
func (a *Allocator) Allocate(ctx context.Context, in AllocationInput) (*contracts.WeightVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.config.TargetSecurities <= 0 {
		return nil, fmt.Errorf("target_securities must be > 0, got %d", a.config.TargetSecurities)
	}
	if in.Holdings == nil {
		return nil, fmt.Errorf("allocation requires target holdings")
	}
	if in.Holdings.Count() > a.config.TargetSecurities {
		return nil, fmt.Errorf("%d selected securities exceed %d slots", in.Holdings.Count(), a.config.TargetSecurities)
	}

	var (
		weights *contracts.WeightVector
		err     error
	)
	switch a.config.Policy {
	case PolicyNoTrend:
		weights = a.allocateNoTrend(in)
	case PolicyTrendFollowing:
		weights, err = a.allocateTrendFollowing(in)
	default:
		err = fmt.Errorf("unknown allocation policy %q", a.config.Policy)
	}
	if err != nil {
		return nil, err
	}

	if err := weights.Validate(contracts.WeightEpsilon); err != nil {
		return nil, fmt.Errorf("allocation invariant: %w", err)
	}

	a.logger.WithFields(map[string]interface{}{
		"policy":           a.config.Policy,
		"entries":          weights.Count(),
		"equity_weight":    weights.EquityWeight(),
		"defensive_weight": weights.DefensiveWeight(),
		"gross":            weights.Gross(),
	}).Info("Weights allocated")

	return weights, nil
}

func (a *Allocator) slotWeight() float64 {
	return 1.0 / float64(a.config.TargetSecurities)
}

// allocateNoTrend weights every selected equity at 1/N; unfilled slots stay cash
func (a *Allocator) allocateNoTrend(in AllocationInput) *contracts.WeightVector {
	w := &contracts.WeightVector{
		Date:    in.Date,
		Weights: make([]contracts.TargetWeight, 0, in.Holdings.Count()),
	}
	for _, sec := range in.Holdings.Securities {
		w.Weights = append(w.Weights, contracts.TargetWeight{
			Security: sec,
			Weight:   a.slotWeight(),
			Sleeve:   contracts.SleeveEquity,
		})
	}
	return w
}

// allocateTrendFollowing keeps an equity if the trend is up or it is already
// held, then splits max(1-Σequity, 0) evenly over the defensive basket.
// Every basket member is listed, even at zero, so the executor trims it.
func (a *Allocator) allocateTrendFollowing(in AllocationInput) (*contracts.WeightVector, error) {
	if in.Trend == nil {
		return nil, fmt.Errorf("trend_following policy requires a trend signal")
	}

	w := &contracts.WeightVector{
		Date:    in.Date,
		Weights: make([]contracts.TargetWeight, 0, in.Holdings.Count()+len(a.config.DefensiveBasket)),
	}
	index := make(map[contracts.Security]int)

	equity := 0.0
	blocked := 0
	for _, sec := range in.Holdings.Securities {
		if !in.Trend.Up && !in.Current.Contains(sec) {
			// 하락 추세: 신규 진입 금지, 기존 보유만 유지
			blocked++
			continue
		}
		index[sec] = len(w.Weights)
		w.Weights = append(w.Weights, contracts.TargetWeight{
			Security: sec,
			Weight:   a.slotWeight(),
			Sleeve:   contracts.SleeveEquity,
		})
		equity += a.slotWeight()
	}

	basket := a.config.DefensiveBasket
	if len(basket) > 0 {
		leftover := math.Max(1-equity, 0)
		each := leftover / float64(len(basket))
		for _, sec := range basket {
			if i, ok := index[sec]; ok {
				// basket member also selected as equity: one entry carrying both
				w.Weights[i].Weight += each
				continue
			}
			index[sec] = len(w.Weights)
			w.Weights = append(w.Weights, contracts.TargetWeight{
				Security: sec,
				Weight:   each,
				Sleeve:   contracts.SleeveDefensive,
			})
		}
	}

	if blocked > 0 {
		a.logger.WithFields(map[string]interface{}{
			"blocked":  blocked,
			"trend_up": in.Trend.Up,
		}).Info("New entries blocked by downtrend")
	}

	return w, nil
}
