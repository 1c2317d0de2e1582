package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/qualmom/internal/brain"
	"github.com/wonny/qualmom/internal/calendar"
	"github.com/wonny/qualmom/pkg/logger"
	"github.com/wonny/qualmom/pkg/redis"
)

type fakeRunner struct {
	err     error
	configs []brain.RunConfig
}

func (r *fakeRunner) RunCycle(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error) {
	r.configs = append(r.configs, config)
	if r.err != nil {
		return &brain.RunResult{RunID: config.RunID, Error: r.err}, r.err
	}
	return &brain.RunResult{RunID: config.RunID, Success: true}, nil
}

type fakeLocker struct {
	acquireErr error
	acquired   []string
	released   []string
}

func (l *fakeLocker) Acquire(ctx context.Context, name, owner string, ttl time.Duration) error {
	if l.acquireErr != nil {
		return l.acquireErr
	}
	l.acquired = append(l.acquired, name)
	return nil
}

func (l *fakeLocker) Release(ctx context.Context, name, owner string) error {
	l.released = append(l.released, name)
	return nil
}

func newJob(runner CycleRunner, lock Locker, now time.Time) *RebalanceJob {
	job := NewRebalanceJob(runner, calendar.New(), lock, RebalanceConfig{MonthEndDays: 7, StrategyHash: "h1"}, logger.NewNop())
	job.clock = func() time.Time { return now }
	return job
}

// 2024-01-22 (Mon) is 7 sessions before 2024-01-31
var rebalanceDay = time.Date(2024, 1, 22, 14, 31, 0, 0, time.UTC)

func TestRebalanceJob_Defaults(t *testing.T) {
	job := NewRebalanceJob(&fakeRunner{}, calendar.New(), nil, RebalanceConfig{}, logger.NewNop())
	assert.Equal(t, "rebalance", job.Name())
	assert.Equal(t, DefaultRebalanceSchedule, job.Schedule())
	assert.Zero(t, job.MaxRetries())
}

func TestRebalanceJob_RunsOnOffsetSession(t *testing.T) {
	runner := &fakeRunner{}
	lock := &fakeLocker{}

	require.NoError(t, newJob(runner, lock, rebalanceDay).Run(context.Background()))

	require.Len(t, runner.configs, 1)
	cfg := runner.configs[0]
	assert.Equal(t, time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC), cfg.Date)
	assert.Equal(t, "h1", cfg.StrategyHash)
	assert.NotEmpty(t, cfg.RunID)
	assert.Equal(t, []string{"rebalance:2024-01-22"}, lock.acquired)
	assert.Equal(t, lock.acquired, lock.released)
}

func TestRebalanceJob_SkipsOtherSessions(t *testing.T) {
	runner := &fakeRunner{}
	for _, day := range []int{19, 23, 27, 31} {
		require.NoError(t, newJob(runner, nil, time.Date(2024, 1, day, 14, 31, 0, 0, time.UTC)).Run(context.Background()))
	}
	assert.Empty(t, runner.configs)
}

func TestRebalanceJob_LockHeldSkips(t *testing.T) {
	runner := &fakeRunner{}
	lock := &fakeLocker{acquireErr: fmt.Errorf("rebalance:2024-01-22: %w", redis.ErrLockHeld)}

	require.NoError(t, newJob(runner, lock, rebalanceDay).Run(context.Background()))
	assert.Empty(t, runner.configs)
	assert.Empty(t, lock.released)
}

func TestRebalanceJob_LockErrorFails(t *testing.T) {
	runner := &fakeRunner{}
	lock := &fakeLocker{acquireErr: errors.New("connection refused")}

	err := newJob(runner, lock, rebalanceDay).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, runner.configs)
}

func TestRebalanceJob_CycleErrorSurfaced(t *testing.T) {
	runner := &fakeRunner{err: errors.New("S2 failed: data unavailable")}
	lock := &fakeLocker{}

	err := newJob(runner, lock, rebalanceDay).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S2 failed")
	assert.Len(t, lock.released, 1)
}

func TestRebalanceJob_UsesMarketTimeZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	runner := &fakeRunner{}
	job := NewRebalanceJob(runner, calendar.New(), nil, RebalanceConfig{MonthEndDays: 7, Location: ny}, logger.NewNop())
	// 2024-01-23 02:00 UTC is still 2024-01-22 in New York
	job.clock = func() time.Time { return time.Date(2024, 1, 23, 2, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, runner.configs, 1)
	assert.Equal(t, 22, runner.configs[0].Date.Day())
}

func TestRebalanceJob_HolidayMovesSession(t *testing.T) {
	cal := calendar.New(time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC))
	runner := &fakeRunner{}

	for _, day := range []int{19, 22} {
		job := NewRebalanceJob(runner, cal, nil, RebalanceConfig{MonthEndDays: 7}, logger.NewNop())
		job.clock = func() time.Time { return time.Date(2025, 12, day, 14, 31, 0, 0, time.UTC) }
		require.NoError(t, job.Run(context.Background()))
	}

	// Christmas is not a session, so the rebalance is Fri 19th, not Mon 22nd
	require.Len(t, runner.configs, 1)
	assert.Equal(t, time.Date(2025, 12, 19, 0, 0, 0, 0, time.UTC), runner.configs[0].Date)
}
