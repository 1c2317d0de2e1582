package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyPath string
	verbose      bool

	// GitCommit is stamped at build time (-ldflags "-X .../commands.GitCommit=...")
	GitCommit = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Quality-Momentum 월간 리밸런스 시스템",
	Long: `Quality-Momentum Unified CLI

월말 N 거래일 전에 한 번 리밸런스하는 퀄리티-모멘텀 전략.
SELECT(S1~S6) → TRADE(S7) 단일 사이클.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant rebalance run --dry-run
  go run ./cmd/quant scheduler start --api
  go run ./cmd/quant strategy validate config/strategy/quality_momentum.yaml
  go run ./cmd/quant db migrate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyPath, "strategy", "", "strategy YAML (default: $STRATEGY_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
