package brain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/qualmom/internal/calendar"
	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/internal/portfolio"
	"github.com/wonny/qualmom/pkg/logger"
)

// CycleState is the orchestrator state reached by a run
type CycleState string

const (
	// StateSelect: 비중 벡터 계산 중 (S1~S6)
	StateSelect CycleState = "SELECT"
	// StateTrade: 실행기에 제출 (S7)
	StateTrade CycleState = "TRADE"
)

// CycleRecorder persists a finished run (audit.Repository)
type CycleRecorder interface {
	RecordCycle(ctx context.Context, result *RunResult) error
}

// WeightStore keeps the last traded weight vector across restarts (portfolio.Repository)
type WeightStore interface {
	SaveWeights(ctx context.Context, runID string, weights *contracts.WeightVector) error
	LatestWeights(ctx context.Context) (*contracts.WeightVector, error)
}

// Dependencies wires the stage components into the orchestrator.
// Trend is nil for the no-trend strategy; Recorder and Weights are optional.
type Dependencies struct {
	Universe  contracts.UniverseBuilder
	Factors   contracts.FactorBuilder
	Quality   contracts.QualityRanker
	Momentum  contracts.MomentumSelector
	Trend     contracts.TrendFilter
	Allocator *portfolio.Allocator

	Holdings    contracts.HoldingsSource
	Executor    contracts.Executor
	Constraints contracts.Constraints
	Calendar    *calendar.Calendar

	Recorder CycleRecorder
	Weights  WeightStore
}

// Orchestrator coordinates one rebalance cycle: SELECT (S1..S6) then TRADE (S7)
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	deps   Dependencies
	logger *logger.Logger

	mu       sync.RWMutex
	previous *contracts.WeightVector
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	Date         time.Time
	RunID        string
	StrategyHash string
	DryRun       bool // true면 S7 제출 생략
}

// RunResult holds every stage output of one cycle
type RunResult struct {
	RunID        string
	Date         time.Time
	DataAsOf     time.Time
	StrategyHash string
	DryRun       bool

	State       CycleState
	Success     bool
	Error       error
	FailedStage contracts.Stage
	Stages      []contracts.StageResult

	Holdings  *contracts.Holdings
	Universe  *contracts.UniverseSnapshot
	Factors   *contracts.FactorSet
	Shortlist []contracts.ScoredSecurity
	Selected  *contracts.TargetHoldings
	Trend     *contracts.TrendSignal
	Weights   *contracts.WeightVector
	Fills     *contracts.Fills

	StockWeight float64 // Σ EQUITY 비중
	BondWeight  float64 // Σ DEFENSIVE 비중

	StartedAt time.Time
	Duration  time.Duration
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(deps Dependencies, log *logger.Logger) *Orchestrator {
	if deps.Calendar == nil {
		deps.Calendar = calendar.New()
	}
	if deps.Constraints.MaxGrossExposure == 0 {
		deps.Constraints = contracts.DefaultConstraints()
	}
	return &Orchestrator{
		deps:   deps,
		logger: log,
	}
}

// LoadPrevious seeds the previous weight vector from the WeightStore
func (o *Orchestrator) LoadPrevious(ctx context.Context) error {
	if o.deps.Weights == nil {
		return nil
	}
	weights, err := o.deps.Weights.LatestWeights(ctx)
	if err != nil {
		return fmt.Errorf("load previous weights: %w", err)
	}

	o.mu.Lock()
	o.previous = weights
	o.mu.Unlock()
	return nil
}

// Previous returns a copy of the last traded weight vector (nil before the first trade)
func (o *Orchestrator) Previous() *contracts.WeightVector {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.previous.Clone()
}

// RunCycle executes SELECT and, unless DryRun, TRADE.
// A failure in any stage aborts the cycle before submission.
func (o *Orchestrator) RunCycle(ctx context.Context, config RunConfig) (*RunResult, error) {
	if config.RunID == "" {
		config.RunID = GenerateRunID()
	}

	cycle := contracts.Cycle{
		RunID:    config.RunID,
		Date:     calendar.Day(config.Date),
		DataAsOf: o.deps.Calendar.PreviousSession(config.Date),
	}

	result := &RunResult{
		RunID:        cycle.RunID,
		Date:         cycle.Date,
		DataAsOf:     cycle.DataAsOf,
		StrategyHash: config.StrategyHash,
		DryRun:       config.DryRun,
		State:        StateSelect,
		StartedAt:    time.Now(),
	}

	log := o.logger.WithRunID(cycle.RunID)
	log.WithFields(map[string]interface{}{
		"date":       cycle.Date.Format(time.DateOnly),
		"data_as_of": cycle.DataAsOf.Format(time.DateOnly),
		"dry_run":    config.DryRun,
		"trend":      o.deps.Trend != nil,
	}).Info("Starting rebalance cycle")

	err := o.run(ctx, cycle, result)
	result.Duration = time.Since(result.StartedAt)
	if err != nil {
		result.Error = err
		log.WithError(err).WithFields(map[string]interface{}{
			"state":        result.State,
			"failed_stage": result.FailedStage,
		}).Error("Rebalance cycle failed")
	} else {
		result.Success = true
		log.WithFields(map[string]interface{}{
			"duration": result.Duration.Seconds(),
			"stocks":   result.StockWeight,
			"bonds":    result.BondWeight,
			"orders":   result.Fills.Count(),
		}).Info("Rebalance cycle completed")
	}

	o.record(ctx, result)
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, cycle contracts.Cycle, result *RunResult) error {
	holdings, err := o.deps.Holdings.Holdings(ctx)
	if err != nil {
		return fmt.Errorf("holdings failed: %w", err)
	}
	result.Holdings = holdings.Clone()

	// ===== SELECT =====
	result.Universe, err = runStage(ctx, o, result, contracts.StageUniverse, 0,
		func() (*contracts.UniverseSnapshot, int, error) {
			u, err := o.deps.Universe.Build(ctx, cycle)
			return u, u.Count(), err
		})
	if err != nil {
		return err
	}

	result.Factors, err = runStage(ctx, o, result, contracts.StageFactors, result.Universe.Count(),
		func() (*contracts.FactorSet, int, error) {
			f, err := o.deps.Factors.Build(ctx, result.Universe)
			return f, f.CompleteCount(), err
		})
	if err != nil {
		return err
	}

	result.Shortlist, err = runStage(ctx, o, result, contracts.StageQuality, result.Factors.Count(),
		func() ([]contracts.ScoredSecurity, int, error) {
			s, err := o.deps.Quality.Rank(ctx, result.Factors)
			return s, len(s), err
		})
	if err != nil {
		return err
	}

	result.Selected, err = runStage(ctx, o, result, contracts.StageMomentum, len(result.Shortlist),
		func() (*contracts.TargetHoldings, int, error) {
			h, err := o.deps.Momentum.Select(ctx, cycle.Date, result.Shortlist)
			return h, h.Count(), err
		})
	if err != nil {
		return err
	}

	if o.deps.Trend != nil {
		result.Trend, err = runStage(ctx, o, result, contracts.StageTrend, 1,
			func() (*contracts.TrendSignal, int, error) {
				s, err := o.deps.Trend.Signal(ctx, cycle)
				return s, 1, err
			})
		if err != nil {
			return err
		}
	}

	result.Weights, err = runStage(ctx, o, result, contracts.StageAllocation, result.Selected.Count(),
		func() (*contracts.WeightVector, int, error) {
			w, err := o.deps.Allocator.Allocate(ctx, portfolio.AllocationInput{
				Date:     cycle.Date,
				Holdings: result.Selected,
				Trend:    result.Trend,
				Current:  result.Holdings,
			})
			if err != nil {
				return nil, 0, err
			}
			return w, w.Count(), nil
		})
	if err != nil {
		return err
	}
	result.StockWeight = result.Weights.EquityWeight()
	result.BondWeight = result.Weights.DefensiveWeight()

	if result.DryRun {
		o.logger.WithRunID(cycle.RunID).Info("Skipping S7:Execution (dry run mode)")
		return nil
	}

	// ===== TRADE =====
	result.State = StateTrade
	result.Fills, err = runStage(ctx, o, result, contracts.StageExecution, result.Weights.Count(),
		func() (*contracts.Fills, int, error) {
			f, err := o.deps.Executor.Submit(ctx, *result.Weights.Clone(), o.deps.Constraints)
			return f, f.Count(), err
		})
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.previous = result.Weights.Clone()
	o.mu.Unlock()

	if o.deps.Weights != nil {
		if err := o.deps.Weights.SaveWeights(ctx, cycle.RunID, result.Weights); err != nil {
			o.logger.WithRunID(cycle.RunID).WithError(err).Warn("Failed to persist target weights")
		}
	}
	return nil
}

// runStage times one stage, records its StageResult and prefixes errors ("S2 failed: ...")
func runStage[T any](ctx context.Context, o *Orchestrator, result *RunResult, stage contracts.Stage, in int, fn func() (T, int, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		result.FailedStage = stage
		return zero, fmt.Errorf("%s failed: %w", stage.ShortName(), err)
	}

	start := time.Now()
	out, count, err := fn()
	sr := contracts.StageResult{
		Stage:       stage,
		Success:     err == nil,
		InputCount:  in,
		OutputCount: count,
		Duration:    time.Since(start).Milliseconds(),
	}

	log := o.logger.WithRunID(result.RunID).WithStage(stage.String())
	if err != nil {
		sr.Error = err.Error()
		sr.OutputCount = 0
		result.Stages = append(result.Stages, sr)
		result.FailedStage = stage
		return zero, fmt.Errorf("%s failed: %w", stage.ShortName(), err)
	}
	result.Stages = append(result.Stages, sr)

	log.WithFields(map[string]interface{}{
		"input":       in,
		"output":      count,
		"duration_ms": sr.Duration,
	}).Infof("%s completed", stage.ShortName())

	return out, nil
}

// record hands the result to the recorder. Orders may already be placed, so
// a recording failure never fails the cycle.
func (o *Orchestrator) record(ctx context.Context, result *RunResult) {
	if o.deps.Recorder == nil {
		return
	}
	// 취소된 사이클도 기록은 남김
	if err := o.deps.Recorder.RecordCycle(context.WithoutCancel(ctx), result); err != nil {
		o.logger.WithRunID(result.RunID).WithError(err).Warn("Failed to record cycle")
	}
}

// GenerateRunID generates a unique run ID
func GenerateRunID() string {
	return fmt.Sprintf("run_%s_%s", time.Now().Format("20060102_150405"), uuid.NewString()[:8])
}
