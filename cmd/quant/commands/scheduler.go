package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/qualmom/internal/api"
	"github.com/wonny/qualmom/internal/api/handlers"
	"github.com/wonny/qualmom/internal/scheduler"
	"github.com/wonny/qualmom/internal/scheduler/jobs"
	"github.com/wonny/qualmom/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `리밸런스 스케줄러를 시작하거나 다음 실행 시각을 조회합니다.

Subcommands:
  start   - 스케줄러 시작 (--api 로 조회 API 동시 기동)
  next    - 다음 리밸런스 세션 조회

Example:
  go run ./cmd/quant scheduler start --api
  go run ./cmd/quant scheduler next`,
}

var (
	schedulerWithAPI bool
	schedulerDryRun  bool

	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `rebalance 작업을 등록하고 스케줄러를 시작합니다.

cron 은 매 거래일 실행되고, 월말 N 거래일 전 세션에서만 사이클을 돌립니다.
스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerNextCmd = &cobra.Command{
		Use:   "next",
		Short: "다음 리밸런스 세션",
		RunE:  showNextRebalance,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerNextCmd)

	schedulerStartCmd.Flags().BoolVar(&schedulerWithAPI, "api", false, "serve the read-only API in the same process")
	schedulerStartCmd.Flags().BoolVar(&schedulerDryRun, "dry-run", false, "compute weights without submitting")
}

// newScheduler registers the rebalance job
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.logger, a.location)

	job := jobs.NewRebalanceJob(a.orchestrator, a.calendar, redis.NewLock(a.redis, "qualmom"), jobs.RebalanceConfig{
		Schedule:     a.strategy.Schedule.Cron,
		MonthEndDays: a.strategy.Schedule.MonthEndOffsetDays,
		StrategyHash: a.snapshot.ConfigHash,
		DryRun:       schedulerDryRun,
		Location:     a.location,
	}, a.logger)

	if err := sched.AddJob(job); err != nil {
		return nil, fmt.Errorf("add rebalance job: %w", err)
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if next, err := sched.NextRun("rebalance"); err == nil {
		a.logger.WithField("next_run", next.Format(time.RFC3339)).Info("Scheduler started")
	}

	if schedulerWithAPI {
		server := api.New(a.cfg, a.logger, a.newRouter(handlers.NewSchedulerHandler(sched)))
		return server.Run(ctx)
	}

	<-ctx.Done()
	a.logger.Info("Shutting down scheduler")
	return nil
}

func showNextRebalance(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadStrategy(resolveStrategyPath(nil))
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	cal, err := cfg.Calendar()
	if err != nil {
		return err
	}

	offset := cfg.Schedule.MonthEndOffsetDays
	session, ok := cal.NextMonthEndOffset(time.Now().In(loc), offset)
	if !ok {
		return fmt.Errorf("no rebalance session found within the scan window")
	}

	fmt.Printf("Next rebalance session: %s (%d sessions before month end, %s)\n",
		session.Format(time.DateOnly), offset, loc)
	return nil
}
