package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/qualmom/internal/api/handlers"
	"github.com/wonny/qualmom/internal/audit"
	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/internal/scheduler"
	"github.com/wonny/qualmom/internal/strategyconfig"
	"github.com/wonny/qualmom/pkg/logger"
)

type fakeCycles struct {
	records []*audit.CycleRecord
	err     error
	limit   int
}

func (f *fakeCycles) LatestCycle(ctx context.Context) (*audit.CycleRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.records) == 0 {
		return nil, audit.ErrNoCycles
	}
	return f.records[0], nil
}

func (f *fakeCycles) ListCycles(ctx context.Context, limit int) ([]*audit.CycleRecord, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

type fakeWeights struct {
	vector *contracts.WeightVector
}

func (f *fakeWeights) LatestWeights(ctx context.Context) (*contracts.WeightVector, error) {
	return f.vector, nil
}

type fakeStats map[string]scheduler.JobStats

func (f fakeStats) GetJobStats() map[string]scheduler.JobStats { return f }

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func newTestRouter(t *testing.T, cycles *fakeCycles, weights *fakeWeights, stats fakeStats, db Pinger) http.Handler {
	t.Helper()
	log := logger.NewNop()

	snapshot, err := strategyconfig.NewDecisionSnapshot(strategyconfig.Default(), nil, "test")
	require.NoError(t, err)

	h := Handlers{
		Rebalance: handlers.NewRebalanceHandler(cycles, weights, log),
		Strategy:  handlers.NewStrategyHandler(snapshot, nil),
		DB:        db,
	}
	if stats != nil {
		h.Scheduler = handlers.NewSchedulerHandler(stats)
	}
	return NewRouter(h, log)
}

func get(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func sampleRecord(runID string) *audit.CycleRecord {
	return &audit.CycleRecord{
		RunID:       runID,
		CycleDate:   time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC),
		Status:      audit.StatusSuccess,
		StockWeight: 0.5,
		BondWeight:  0.5,
		Selected:    []contracts.Security{"C"},
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &fakeCycles{}, &fakeWeights{}, nil, fakePinger{})
	rec, body := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	router := newTestRouter(t, &fakeCycles{}, &fakeWeights{}, nil, fakePinger{err: errors.New("connection refused")})
	rec, body := get(t, router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}

func TestLatestCycle(t *testing.T) {
	cycles := &fakeCycles{records: []*audit.CycleRecord{sampleRecord("run_2"), sampleRecord("run_1")}}
	router := newTestRouter(t, cycles, &fakeWeights{}, nil, nil)

	rec, body := get(t, router, "/api/rebalance/latest")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run_2", body["run_id"])
	assert.Equal(t, 0.5, body["bond_weight"])
}

func TestLatestCycle_Empty(t *testing.T) {
	router := newTestRouter(t, &fakeCycles{}, &fakeWeights{}, nil, nil)
	rec, _ := get(t, router, "/api/rebalance/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestCycle_StoreError(t *testing.T) {
	router := newTestRouter(t, &fakeCycles{err: errors.New("db down")}, &fakeWeights{}, nil, nil)
	rec, body := get(t, router, "/api/rebalance/latest")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to get latest cycle", body["error"])
}

func TestListCycles(t *testing.T) {
	cycles := &fakeCycles{records: []*audit.CycleRecord{sampleRecord("run_3"), sampleRecord("run_2"), sampleRecord("run_1")}}
	router := newTestRouter(t, cycles, &fakeWeights{}, nil, nil)

	rec, body := get(t, router, "/api/rebalance/cycles?limit=2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, cycles.limit)
	assert.Equal(t, float64(2), body["count"])

	_, _ = get(t, router, "/api/rebalance/cycles")
	assert.Equal(t, 20, cycles.limit)
}

func TestListCycles_BadLimit(t *testing.T) {
	router := newTestRouter(t, &fakeCycles{}, &fakeWeights{}, nil, nil)
	for _, q := range []string{"0", "-1", "abc", "501"} {
		rec, _ := get(t, router, "/api/rebalance/cycles?limit="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListCycles_EmptyIsArray(t *testing.T) {
	router := newTestRouter(t, &fakeCycles{}, &fakeWeights{}, nil, nil)
	rec, body := get(t, router, "/api/rebalance/cycles")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, body["cycles"])
}

func TestLatestWeights(t *testing.T) {
	weights := &fakeWeights{vector: &contracts.WeightVector{
		Date: time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC),
		Weights: []contracts.TargetWeight{
			{Security: "C", Weight: 0.5, Sleeve: contracts.SleeveEquity},
			{Security: "IEF", Weight: 0.25, Sleeve: contracts.SleeveDefensive},
			{Security: "TLT", Weight: 0.25, Sleeve: contracts.SleeveDefensive},
		},
	}}
	router := newTestRouter(t, &fakeCycles{}, weights, nil, nil)

	rec, body := get(t, router, "/api/rebalance/weights")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1.0, body["gross"], 1e-9)
	assert.InDelta(t, 0.5, body["equity_weight"], 1e-9)
	assert.InDelta(t, 0.5, body["defensive_weight"], 1e-9)
}

func TestLatestWeights_None(t *testing.T) {
	router := newTestRouter(t, &fakeCycles{}, &fakeWeights{}, nil, nil)
	rec, _ := get(t, router, "/api/rebalance/weights")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStrategy(t *testing.T) {
	router := newTestRouter(t, &fakeCycles{}, &fakeWeights{}, nil, nil)
	hash, err := strategyconfig.Hash(strategyconfig.Default())
	require.NoError(t, err)

	rec, body := get(t, router, "/api/strategy")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, hash, body["config_hash"])
	assert.Equal(t, []interface{}{}, body["warnings"])
}

func TestSchedulerJobs(t *testing.T) {
	stats := fakeStats{
		"rebalance": {JobName: "rebalance", Schedule: "0 31 9 * * MON-FRI", TotalRuns: 3, SuccessCount: 3},
	}
	router := newTestRouter(t, &fakeCycles{}, &fakeWeights{}, stats, nil)

	rec, body := get(t, router, "/api/scheduler/jobs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestSchedulerJobs_NotMounted(t *testing.T) {
	router := newTestRouter(t, &fakeCycles{}, &fakeWeights{}, nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scheduler/jobs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
