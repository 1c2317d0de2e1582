package s2_factors

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/pkg/logger"
)

// Config holds factor engine configuration
type Config struct {
	MomentumLookbackDays int `json:"momentum_lookback_days"`
	Workers              int `json:"workers"` // 동시 조회 수 (결과 순서는 유니버스 순서 유지)
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		MomentumLookbackDays: 140,
		Workers:              8,
	}
}

// Engine implements S2: point-in-time factor retrieval
// ⭐ SSOT: S2 팩터 계산은 여기서만
type Engine struct {
	provider contracts.DataProvider
	config   Config
	logger   *logger.Logger
}

// NewEngine creates a new factor engine
func NewEngine(provider contracts.DataProvider, config Config, log *logger.Logger) *Engine {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Engine{
		provider: provider,
		config:   config,
		logger:   log.WithStage(contracts.StageFactors.String()),
	}
}

// Build reads the four fundamentals and trailing momentum for every security
// as of universe.DataAsOf. Missing values stay missing in the row. Any
// provider error aborts the whole set with a DataUnavailableError.
func (e *Engine) Build(ctx context.Context, universe *contracts.UniverseSnapshot) (*contracts.FactorSet, error) {
	if e.config.MomentumLookbackDays < 2 {
		return nil, fmt.Errorf("momentum lookback must be >= 2, got %d", e.config.MomentumLookbackDays)
	}

	asOf := universe.DataAsOf
	e.logger.WithFields(map[string]interface{}{
		"as_of":          asOf.Format(time.DateOnly),
		"universe_count": universe.Count(),
	}).Info("Starting factor computation")

	rows := make([]contracts.FactorRow, universe.Count())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)
	for i, sec := range universe.Securities {
		i, sec := i, sec
		g.Go(func() error {
			row, err := e.buildRow(gctx, sec, asOf)
			if err != nil {
				return err
			}
			rows[i] = *row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := &contracts.FactorSet{
		Date:     universe.Date,
		DataAsOf: asOf,
		Rows:     rows,
	}

	withMomentum := 0
	for i := range rows {
		if rows[i].Momentum.Valid {
			withMomentum++
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"total":         set.Count(),
		"complete":      set.CompleteCount(),
		"with_momentum": withMomentum,
	}).Info("Factor computation completed")

	return set, nil
}

// buildRow reads one security's inputs
func (e *Engine) buildRow(ctx context.Context, sec contracts.Security, asOf time.Time) (*contracts.FactorRow, error) {
	row := &contracts.FactorRow{Security: sec}

	for _, name := range contracts.QualityFactors() {
		v, err := e.provider.Factor(ctx, sec, name, asOf)
		if err != nil {
			return nil, contracts.NewDataUnavailable(contracts.StageFactors, sec, asOf,
				fmt.Errorf("factor %s: %w", name, err))
		}
		// provider may hand back NaN inside a "valid" value
		if v.Valid {
			v = contracts.Present(v.Value)
		}
		row.SetFactor(name, v)
	}

	closes, err := e.provider.Closes(ctx, sec, asOf, e.config.MomentumLookbackDays)
	if err != nil {
		return nil, contracts.NewDataUnavailable(contracts.StageFactors, sec, asOf,
			fmt.Errorf("closes: %w", err))
	}
	row.Momentum = TrailingReturn(closes, e.config.MomentumLookbackDays)

	return row, nil
}

// TrailingReturn is (last-first)/first over exactly lookback closes (oldest
// first). Short history or a non-positive first close is missing.
func TrailingReturn(closes []float64, lookback int) contracts.FactorValue {
	if lookback < 2 || len(closes) < lookback {
		return contracts.Missing()
	}
	window := closes[len(closes)-lookback:]
	first, last := window[0], window[len(window)-1]
	if !(first > 0) {
		return contracts.Missing()
	}
	return contracts.Present((last - first) / first)
}
