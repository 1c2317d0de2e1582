package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/qualmom/internal/audit"
	"github.com/wonny/qualmom/internal/brain"
)

// rebalanceCmd represents the rebalance command
var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "리밸런스 사이클 실행/조회",
	Long: `리밸런스 사이클을 수동으로 실행하거나 기록을 조회합니다.

Subcommands:
  run      - 사이클 1회 실행 (월말 게이트 없음)
  latest   - 마지막 사이클 조회
  history  - 최근 사이클 목록

Example:
  go run ./cmd/quant rebalance run --date 2024-01-22 --dry-run
  go run ./cmd/quant rebalance history --limit 12`,
}

var (
	rebalanceDate    string
	rebalanceDryRun  bool
	rebalanceHistory int

	rebalanceRunCmd = &cobra.Command{
		Use:   "run",
		Short: "사이클 1회 실행",
		RunE:  runRebalance,
	}

	rebalanceLatestCmd = &cobra.Command{
		Use:   "latest",
		Short: "마지막 사이클 조회",
		RunE:  showLatestCycle,
	}

	rebalanceHistoryCmd = &cobra.Command{
		Use:   "history",
		Short: "최근 사이클 목록",
		RunE:  showCycleHistory,
	}
)

func init() {
	rootCmd.AddCommand(rebalanceCmd)
	rebalanceCmd.AddCommand(rebalanceRunCmd)
	rebalanceCmd.AddCommand(rebalanceLatestCmd)
	rebalanceCmd.AddCommand(rebalanceHistoryCmd)

	rebalanceRunCmd.Flags().StringVar(&rebalanceDate, "date", "", "cycle date YYYY-MM-DD (default: today in strategy timezone)")
	rebalanceRunCmd.Flags().BoolVar(&rebalanceDryRun, "dry-run", false, "compute weights without submitting")
	rebalanceHistoryCmd.Flags().IntVar(&rebalanceHistory, "limit", 12, "number of cycles")
}

func runRebalance(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	date := time.Now().In(a.location)
	if rebalanceDate != "" {
		date, err = time.ParseInLocation(time.DateOnly, rebalanceDate, a.location)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	result, err := a.orchestrator.RunCycle(ctx, brain.RunConfig{
		Date:         date,
		StrategyHash: a.snapshot.ConfigHash,
		DryRun:       rebalanceDryRun,
	})
	printRunResult(result)
	return err
}

func showLatestCycle(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.cycles.LatestCycle(ctx)
	if err != nil {
		return err
	}
	printCycleRecord(rec)
	return nil
}

func showCycleHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.cycles.ListCycles(ctx, rebalanceHistory)
	if err != nil {
		return err
	}

	fmt.Printf("%-32s %-10s %-8s %6s %6s %s\n", "RUN ID", "DATE", "STATUS", "STOCK", "BOND", "HASH")
	for _, rec := range records {
		hash := rec.StrategyHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Printf("%-32s %-10s %-8s %6.2f %6.2f %s\n",
			rec.RunID, rec.CycleDate.Format(time.DateOnly), rec.Status, rec.StockWeight, rec.BondWeight, hash)
	}
	return nil
}

func printRunResult(result *brain.RunResult) {
	if result == nil {
		return
	}
	printCycleRecord(audit.NewCycleRecord(result))

	fmt.Println("  Stages:")
	for _, sr := range result.Stages {
		mark := "✅"
		if !sr.Success {
			mark = "❌"
		}
		fmt.Printf("    %s %-14s in=%-4d out=%-4d %dms\n", mark, sr.Stage, sr.InputCount, sr.OutputCount, sr.Duration)
	}
	fmt.Println("═══════════════════════════════════════════════════════════")
}

func printCycleRecord(rec *audit.CycleRecord) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Rebalance %s\n", rec.CycleDate.Format(time.DateOnly))
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Run ID    : %s\n", rec.RunID)
	fmt.Printf("  Data as of: %s\n", rec.DataAsOf.Format(time.DateOnly))
	fmt.Printf("  Status    : %s\n", rec.Status)
	if rec.Error != "" {
		fmt.Printf("  Error     : %s\n", rec.Error)
	}
	if rec.TrendUp != nil {
		fmt.Printf("  Trend up  : %t\n", *rec.TrendUp)
	}
	fmt.Printf("  Stocks    : %.4f\n", rec.StockWeight)
	fmt.Printf("  Bonds     : %.4f\n", rec.BondWeight)
	fmt.Println("───────────────────────────────────────────────────────────")
	for _, w := range rec.Weights {
		fmt.Printf("  %-10s %-9s %.4f\n", w.Security, w.Sleeve, w.Weight)
	}
	if rec.Fills != nil {
		fmt.Printf("  Orders    : %d (turnover %s)\n", rec.Fills.Count(), rec.Fills.Turnover().StringFixed(2))
	}
}
