package regime

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/pkg/logger"
)

// Config holds trend filter configuration
type Config struct {
	Benchmark    contracts.Security `json:"benchmark"`
	FastLookback int                `json:"fast_lookback"`
	SlowLookback int                `json:"slow_lookback"`
}

// DefaultConfig returns SPY 10/100
func DefaultConfig() Config {
	return Config{
		Benchmark:    "SPY",
		FastLookback: 10,
		SlowLookback: 100,
	}
}

// Validate checks window sanity
func (c Config) Validate() error {
	if c.Benchmark == "" {
		return fmt.Errorf("trend benchmark is required")
	}
	if c.FastLookback <= 0 {
		return fmt.Errorf("fast lookback must be > 0, got %d", c.FastLookback)
	}
	if c.SlowLookback < c.FastLookback {
		return fmt.Errorf("slow lookback %d must be >= fast lookback %d", c.SlowLookback, c.FastLookback)
	}
	return nil
}

// TrendFilter computes the fast/slow SMA regime of a benchmark (S5)
// ⭐ SSOT: S5 추세 필터
type TrendFilter struct {
	provider contracts.DataProvider
	config   Config
	logger   *logger.Logger
}

// NewTrendFilter creates a new trend filter
func NewTrendFilter(provider contracts.DataProvider, config Config, log *logger.Logger) *TrendFilter {
	return &TrendFilter{
		provider: provider,
		config:   config,
		logger:   log.WithStage(contracts.StageTrend.String()),
	}
}

// Signal reads SlowLookback benchmark closes ending at cycle.DataAsOf.
// Up is fast > slow; equality is not an uptrend.
func (f *TrendFilter) Signal(ctx context.Context, cycle contracts.Cycle) (*contracts.TrendSignal, error) {
	closes, err := f.provider.Closes(ctx, f.config.Benchmark, cycle.DataAsOf, f.config.SlowLookback)
	if err != nil {
		return nil, contracts.NewDataUnavailable(contracts.StageTrend, f.config.Benchmark, cycle.DataAsOf, err)
	}
	if len(closes) < f.config.SlowLookback {
		return nil, contracts.NewDataUnavailable(contracts.StageTrend, f.config.Benchmark, cycle.DataAsOf,
			fmt.Errorf("need %d closes, got %d", f.config.SlowLookback, len(closes)))
	}
	closes = closes[len(closes)-f.config.SlowLookback:]

	signal, err := Evaluate(closes, f.config.FastLookback, f.config.SlowLookback)
	if err != nil {
		return nil, contracts.NewDataUnavailable(contracts.StageTrend, f.config.Benchmark, cycle.DataAsOf, err)
	}
	signal.Date = cycle.Date
	signal.DataAsOf = cycle.DataAsOf
	signal.Benchmark = f.config.Benchmark

	f.logger.WithFields(map[string]interface{}{
		"benchmark": signal.Benchmark,
		"fast_sma":  signal.Fast,
		"slow_sma":  signal.Slow,
		"up":        signal.Up,
		"as_of":     cycle.DataAsOf.Format(time.DateOnly),
	}).Info("Trend signal computed")

	return signal, nil
}

// Evaluate computes the crossover on closes (oldest first)
func Evaluate(closes []float64, fast, slow int) (*contracts.TrendSignal, error) {
	for i, c := range closes {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("close %d is not finite", i)
		}
	}

	fastSMA := LastSMA(closes, fast)
	slowSMA := LastSMA(closes, slow)
	if math.IsNaN(fastSMA) || math.IsNaN(slowSMA) {
		return nil, fmt.Errorf("need %d closes, got %d", slow, len(closes))
	}

	return &contracts.TrendSignal{
		Fast: fastSMA,
		Slow: slowSMA,
		Up:   fastSMA > slowSMA,
	}, nil
}
