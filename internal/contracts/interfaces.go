package contracts

import (
	"context"
	"time"
)

// DataProvider is the point-in-time market data collaborator.
// Implementations must never return data published after the requested date.
// ⭐ SSOT: 모든 시장 데이터 조회 인터페이스
type DataProvider interface {
	// Universe returns eligible securities as of date, in a stable order
	Universe(ctx context.Context, date time.Time) ([]Security, error)

	// Factor returns the latest value of name known on date (Missing when absent)
	Factor(ctx context.Context, sec Security, name FactorName, date time.Time) (FactorValue, error)

	// Price returns the close on or before date
	Price(ctx context.Context, sec Security, date time.Time) (float64, error)

	// Closes returns up to n closes ending on or before end, oldest first
	Closes(ctx context.Context, sec Security, end time.Time, n int) ([]float64, error)
}

// Executor turns a weight vector into fills (S7)
// ⭐ SSOT: 외부 실행기 인터페이스. 제약 위반은 *ConstraintViolationError
type Executor interface {
	Submit(ctx context.Context, weights WeightVector, constraints Constraints) (*Fills, error)
}

// HoldingsSource reports broker positions at cycle start
type HoldingsSource interface {
	Holdings(ctx context.Context) (*Holdings, error)
}

// UniverseBuilder creates the investable universe (S1)
type UniverseBuilder interface {
	Build(ctx context.Context, cycle Cycle) (*UniverseSnapshot, error)
}

// FactorBuilder computes raw factor rows (S2)
type FactorBuilder interface {
	Build(ctx context.Context, universe *UniverseSnapshot) (*FactorSet, error)
}

// QualityRanker produces the quality shortlist (S3)
type QualityRanker interface {
	Rank(ctx context.Context, factors *FactorSet) ([]ScoredSecurity, error)
}

// MomentumSelector picks final equities from the shortlist (S4)
type MomentumSelector interface {
	Select(ctx context.Context, date time.Time, shortlist []ScoredSecurity) (*TargetHoldings, error)
}

// TrendFilter computes the benchmark regime (S5)
type TrendFilter interface {
	Signal(ctx context.Context, cycle Cycle) (*TrendSignal, error)
}
