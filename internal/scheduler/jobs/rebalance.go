package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/qualmom/internal/brain"
	"github.com/wonny/qualmom/internal/calendar"
	"github.com/wonny/qualmom/pkg/logger"
	"github.com/wonny/qualmom/pkg/redis"
)

// DefaultRebalanceSchedule fires every weekday just after the US open (with seconds)
const DefaultRebalanceSchedule = "0 31 9 * * MON-FRI"

// CycleRunner runs one rebalance cycle (brain.Orchestrator)
type CycleRunner interface {
	RunCycle(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
}

// Locker guards a cycle across processes (redis.Lock)
type Locker interface {
	Acquire(ctx context.Context, name, owner string, ttl time.Duration) error
	Release(ctx context.Context, name, owner string) error
}

// RebalanceConfig configures the rebalance job
type RebalanceConfig struct {
	Schedule     string
	MonthEndDays int           // 월말 N 거래일 전
	LockTTL      time.Duration // 사이클 최대 소요 시간
	StrategyHash string
	DryRun       bool
	Location     *time.Location
}

// RebalanceJob runs the cycle on the session MonthEndDays before month end
// ⭐ SSOT: 리밸런스 스케줄은 이 Job에서만
type RebalanceJob struct {
	runner   CycleRunner
	calendar *calendar.Calendar
	lock     Locker
	config   RebalanceConfig
	clock    func() time.Time
	logger   *logger.Logger
}

// NewRebalanceJob creates a new rebalance job. lock may be nil.
func NewRebalanceJob(runner CycleRunner, cal *calendar.Calendar, lock Locker, config RebalanceConfig, log *logger.Logger) *RebalanceJob {
	if config.Schedule == "" {
		config.Schedule = DefaultRebalanceSchedule
	}
	if config.LockTTL <= 0 {
		config.LockTTL = time.Hour
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &RebalanceJob{
		runner:   runner,
		calendar: cal,
		lock:     lock,
		config:   config,
		clock:    time.Now,
		logger:   log,
	}
}

// Name returns the job name
func (j *RebalanceJob) Name() string {
	return "rebalance"
}

// Schedule returns the cron schedule
func (j *RebalanceJob) Schedule() string {
	return j.config.Schedule
}

// MaxRetries is zero: a failed cycle is surfaced, never re-submitted
func (j *RebalanceJob) MaxRetries() int {
	return 0
}

// Run executes the cycle if today is the rebalance session
func (j *RebalanceJob) Run(ctx context.Context) error {
	today := calendar.Day(j.clock().In(j.config.Location))

	if !j.calendar.IsMonthEndOffset(today, j.config.MonthEndDays) {
		j.logger.WithFields(map[string]interface{}{
			"date":          today.Format(time.DateOnly),
			"sessions_left": j.calendar.SessionsLeftInMonth(today),
		}).Debug("Not a rebalance session")
		return nil
	}

	runID := brain.GenerateRunID()
	lockName := "rebalance:" + today.Format(time.DateOnly)
	if j.lock != nil {
		if err := j.lock.Acquire(ctx, lockName, runID, j.config.LockTTL); err != nil {
			if errors.Is(err, redis.ErrLockHeld) {
				j.logger.WithField("date", today.Format(time.DateOnly)).Info("Rebalance already running elsewhere, skipped")
				return nil
			}
			return fmt.Errorf("acquire rebalance lock: %w", err)
		}
		defer func() {
			if err := j.lock.Release(context.WithoutCancel(ctx), lockName, runID); err != nil {
				j.logger.WithError(err).Warn("Failed to release rebalance lock")
			}
		}()
	}

	result, err := j.runner.RunCycle(ctx, brain.RunConfig{
		Date:         today,
		RunID:        runID,
		StrategyHash: j.config.StrategyHash,
		DryRun:       j.config.DryRun,
	})
	if err != nil {
		return fmt.Errorf("rebalance %s: %w", today.Format(time.DateOnly), err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"stocks": result.StockWeight,
		"bonds":  result.BondWeight,
		"orders": result.Fills.Count(),
	}).Info("Scheduled rebalance completed")
	return nil
}
