package brain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/internal/execution"
	"github.com/wonny/qualmom/internal/portfolio"
	"github.com/wonny/qualmom/internal/provider"
	"github.com/wonny/qualmom/internal/regime"
	"github.com/wonny/qualmom/internal/s1_universe"
	"github.com/wonny/qualmom/internal/s2_factors"
	"github.com/wonny/qualmom/internal/selection"
	"github.com/wonny/qualmom/pkg/logger"
)

var (
	cycleDate = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC) // Wed
	dataAsOf  = time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)
)

// scenarioMarket: 5 complete securities, quality A>B>C>D>E, momentum D>E>B>C>A
func scenarioMarket(trendUp bool) *provider.Memory {
	m := provider.NewMemory()
	m.SetUniverse(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "A", "B", "C", "D", "E")

	quality := map[contracts.Security]float64{"A": 5, "B": 4, "C": 3, "D": 2, "E": 1}
	for sec, v := range quality {
		for _, name := range contracts.QualityFactors() {
			m.SetFactor(sec, name, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), contracts.Present(v))
		}
	}

	m.SetCloses("A", dataAsOf, 100, 100, 101)
	m.SetCloses("B", dataAsOf, 100, 110, 130)
	m.SetCloses("C", dataAsOf, 100, 110, 120)
	m.SetCloses("D", dataAsOf, 100, 150, 190)
	m.SetCloses("E", dataAsOf, 100, 150, 180)
	m.SetCloses("IEF", dataAsOf, 100)
	m.SetCloses("TLT", dataAsOf, 100)

	if trendUp {
		m.SetCloses("SPY", dataAsOf, 90, 95, 100, 110)
	} else {
		m.SetCloses("SPY", dataAsOf, 110, 108, 100, 95)
	}
	return m
}

type countingExecutor struct {
	inner contracts.Executor
	err   error
	calls int
	last  contracts.WeightVector
}

func (e *countingExecutor) Submit(ctx context.Context, w contracts.WeightVector, c contracts.Constraints) (*contracts.Fills, error) {
	e.calls++
	e.last = w
	if e.err != nil {
		return nil, e.err
	}
	return e.inner.Submit(ctx, w, c)
}

type failingHoldings struct{}

func (failingHoldings) Holdings(ctx context.Context) (*contracts.Holdings, error) {
	return nil, errors.New("broker offline")
}

type memoryRecorder struct {
	err     error
	results []*RunResult
}

func (r *memoryRecorder) RecordCycle(ctx context.Context, result *RunResult) error {
	r.results = append(r.results, result)
	return r.err
}

type memoryWeights struct {
	saved map[string]*contracts.WeightVector
	seed  *contracts.WeightVector
}

func (s *memoryWeights) SaveWeights(ctx context.Context, runID string, w *contracts.WeightVector) error {
	if s.saved == nil {
		s.saved = make(map[string]*contracts.WeightVector)
	}
	s.saved[runID] = w.Clone()
	return nil
}

func (s *memoryWeights) LatestWeights(ctx context.Context) (*contracts.WeightVector, error) {
	return s.seed.Clone(), nil
}

type fixture struct {
	market   *provider.Memory
	broker   *execution.PaperBroker
	executor *countingExecutor
	recorder *memoryRecorder
	orch     *Orchestrator
}

func newFixture(t *testing.T, trend bool, trendUp bool) *fixture {
	t.Helper()
	log := logger.NewNop()

	market := scenarioMarket(trendUp)
	broker := execution.NewPaperBroker(market, 10_000, log)
	exec := &countingExecutor{inner: broker}
	recorder := &memoryRecorder{}

	allocCfg := portfolio.Config{Policy: portfolio.PolicyNoTrend, TargetSecurities: 2}
	deps := Dependencies{
		Universe:  s1_universe.NewBuilder(market, s1_universe.Config{}, nil, log),
		Factors:   s2_factors.NewEngine(market, s2_factors.Config{MomentumLookbackDays: 3, Workers: 2}, log),
		Quality:   selection.NewQualityRanker(selection.QualityConfig{TopQualityQty: 3}, log),
		Momentum:  selection.NewMomentumSelector(selection.MomentumConfig{TargetSecurities: 2}, log),
		Holdings:  broker,
		Executor:  exec,
		Recorder:  recorder,
		Allocator: nil,
	}
	if trend {
		allocCfg = portfolio.Config{
			Policy:           portfolio.PolicyTrendFollowing,
			TargetSecurities: 2,
			DefensiveBasket:  []contracts.Security{"IEF", "TLT"},
		}
		deps.Trend = regime.NewTrendFilter(market, regime.Config{Benchmark: "SPY", FastLookback: 2, SlowLookback: 4}, log)
	}
	deps.Allocator = portfolio.NewAllocator(allocCfg, log)

	return &fixture{
		market:   market,
		broker:   broker,
		executor: exec,
		recorder: recorder,
		orch:     NewOrchestrator(deps, log),
	}
}

func TestRunCycle_NoTrendScenario(t *testing.T) {
	f := newFixture(t, false, true)

	result, err := f.orch.RunCycle(context.Background(), RunConfig{Date: cycleDate, RunID: "run-1"})
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, dataAsOf, result.DataAsOf)
	assert.Equal(t, StateTrade, result.State)
	assert.Equal(t, []contracts.Security{"B", "C"}, result.Selected.Securities)
	assert.Equal(t, map[contracts.Security]float64{"B": 0.5, "C": 0.5}, result.Weights.Map())
	assert.InDelta(t, 1.0, result.StockWeight, 1e-12)
	assert.Zero(t, result.BondWeight)
	assert.Nil(t, result.Trend)
	assert.Len(t, result.Stages, 6) // S5 없음

	assert.Equal(t, 1, f.executor.calls)
	assert.Equal(t, 1.0, f.executor.last.Gross())
	assert.Equal(t, 2, result.Fills.Count())

	h, err := f.broker.Holdings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []contracts.Security{"B", "C"}, h.Securities())

	require.Len(t, f.recorder.results, 1)
	assert.Equal(t, "run-1", f.recorder.results[0].RunID)
}

func TestRunCycle_TrendDownScenario(t *testing.T) {
	f := newFixture(t, true, false)
	f.broker.SetPosition("C", 10)

	result, err := f.orch.RunCycle(context.Background(), RunConfig{Date: cycleDate})
	require.NoError(t, err)
	require.NotNil(t, result.Trend)
	assert.False(t, result.Trend.Up)

	got := result.Weights.Map()
	require.Len(t, got, 3)
	assert.InDelta(t, 0.5, got["C"], 1e-12)
	assert.InDelta(t, 0.25, got["IEF"], 1e-12)
	assert.InDelta(t, 0.25, got["TLT"], 1e-12)
	assert.NotContains(t, got, contracts.Security("B"))
	assert.InDelta(t, 0.5, result.StockWeight, 1e-12)
	assert.InDelta(t, 0.5, result.BondWeight, 1e-12)
	assert.True(t, strings.HasPrefix(result.RunID, "run_"))
}

func TestRunCycle_TrendUpBuysAll(t *testing.T) {
	f := newFixture(t, true, true)

	result, err := f.orch.RunCycle(context.Background(), RunConfig{Date: cycleDate})
	require.NoError(t, err)

	got := result.Weights.Map()
	assert.InDelta(t, 0.5, got["B"], 1e-12)
	assert.InDelta(t, 0.5, got["C"], 1e-12)
	assert.Zero(t, got["IEF"])
	assert.Zero(t, got["TLT"])
}

func TestRunCycle_DataFailureSubmitsNothing(t *testing.T) {
	f := newFixture(t, false, true)
	f.broker.SetPosition("A", 7)
	f.market.Fail("factor", "C", errors.New("feed down"))

	result, err := f.orch.RunCycle(context.Background(), RunConfig{Date: cycleDate})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrDataUnavailable))
	assert.True(t, strings.HasPrefix(err.Error(), "S2 failed:"))

	assert.False(t, result.Success)
	assert.Equal(t, StateSelect, result.State)
	assert.Equal(t, contracts.StageFactors, result.FailedStage)
	assert.Nil(t, result.Weights)
	assert.Zero(t, f.executor.calls)
	assert.Nil(t, f.orch.Previous())

	// 기존 포지션 유지 (암묵적 청산 없음)
	h, err := f.broker.Holdings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7.0, h.Positions["A"])

	require.Len(t, f.recorder.results, 1)
	assert.Equal(t, contracts.StageFactors, f.recorder.results[0].FailedStage)
}

func TestRunCycle_UniverseFailure(t *testing.T) {
	f := newFixture(t, false, true)
	f.market.Fail("universe", "", errors.New("membership unavailable"))

	result, err := f.orch.RunCycle(context.Background(), RunConfig{Date: cycleDate})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrDataUnavailable))
	assert.Equal(t, contracts.StageUniverse, result.FailedStage)
	assert.Zero(t, f.executor.calls)
}

func TestRunCycle_HoldingsFailure(t *testing.T) {
	f := newFixture(t, false, true)
	f.orch.deps.Holdings = failingHoldings{}

	_, err := f.orch.RunCycle(context.Background(), RunConfig{Date: cycleDate})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker offline")
	assert.Zero(t, f.executor.calls)
}

func TestRunCycle_ConstraintViolationSurfaced(t *testing.T) {
	f := newFixture(t, false, true)
	f.executor.err = &contracts.ConstraintViolationError{
		Constraint: portfolio.ConstraintMaxGrossExposure,
		Limit:      1.0,
		Actual:     1.1,
	}

	result, err := f.orch.RunCycle(context.Background(), RunConfig{Date: cycleDate})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConstraintViolation))

	var violation *contracts.ConstraintViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, 1.1, violation.Actual)

	assert.Equal(t, StateTrade, result.State)
	assert.Equal(t, contracts.StageExecution, result.FailedStage)
	assert.Equal(t, 1, f.executor.calls) // 재시도 없음
	assert.Nil(t, f.orch.Previous())
}

func TestRunCycle_DryRun(t *testing.T) {
	f := newFixture(t, false, true)

	result, err := f.orch.RunCycle(context.Background(), RunConfig{Date: cycleDate, DryRun: true})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, StateSelect, result.State)
	assert.NotNil(t, result.Weights)
	assert.Nil(t, result.Fills)
	assert.Zero(t, f.executor.calls)
	assert.Nil(t, f.orch.Previous())
}

func TestRunCycle_SelectIsIdempotent(t *testing.T) {
	f := newFixture(t, true, false)
	f.broker.SetPosition("C", 10)

	first, err := f.orch.RunCycle(context.Background(), RunConfig{Date: cycleDate, DryRun: true})
	require.NoError(t, err)
	second, err := f.orch.RunCycle(context.Background(), RunConfig{Date: cycleDate, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, first.Weights.Weights, second.Weights.Weights)
}

func TestRunCycle_PreviousReplacedAfterTrade(t *testing.T) {
	f := newFixture(t, false, true)
	store := &memoryWeights{}
	f.orch.deps.Weights = store

	result, err := f.orch.RunCycle(context.Background(), RunConfig{Date: cycleDate, RunID: "run-prev"})
	require.NoError(t, err)

	prev := f.orch.Previous()
	require.NotNil(t, prev)
	assert.Equal(t, result.Weights.Weights, prev.Weights)
	require.Contains(t, store.saved, "run-prev")

	// 반환값 수정이 내부 상태에 영향 없음
	prev.Weights[0].Weight = 0.9
	assert.Equal(t, 0.5, f.orch.Previous().Weights[0].Weight)
}

func TestRunCycle_RecorderFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, false, true)
	f.recorder.err = errors.New("db down")

	result, err := f.orch.RunCycle(context.Background(), RunConfig{Date: cycleDate})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, f.executor.calls)
}

func TestRunCycle_CancelledContext(t *testing.T) {
	f := newFixture(t, false, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.orch.RunCycle(ctx, RunConfig{Date: cycleDate})
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, f.executor.calls)
}

func TestLoadPrevious(t *testing.T) {
	f := newFixture(t, false, true)
	seed := &contracts.WeightVector{
		Date:    dataAsOf,
		Weights: []contracts.TargetWeight{{Security: "A", Weight: 1, Sleeve: contracts.SleeveEquity}},
	}
	f.orch.deps.Weights = &memoryWeights{seed: seed}

	require.NoError(t, f.orch.LoadPrevious(context.Background()))
	assert.Equal(t, seed.Weights, f.orch.Previous().Weights)
}

func TestGenerateRunID(t *testing.T) {
	a, b := GenerateRunID(), GenerateRunID()
	assert.True(t, strings.HasPrefix(a, "run_"))
	assert.NotEqual(t, a, b)
}
