package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/qualmom/internal/strategyconfig"
	"github.com/wonny/qualmom/pkg/config"
)

// strategyCmd represents the strategy command
var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "전략 YAML 검증/해시",
	Long: `전략 설정 파일을 검증하고 감사용 해시를 출력합니다.
DB 연결 없이 동작합니다.

Example:
  go run ./cmd/quant strategy validate config/strategy/quality_momentum.yaml
  go run ./cmd/quant strategy hash
  go run ./cmd/quant strategy show`,
}

var (
	strategyValidateCmd = &cobra.Command{
		Use:   "validate [path]",
		Short: "전략 검증 (경고 포함)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  validateStrategy,
	}

	strategyHashCmd = &cobra.Command{
		Use:   "hash [path]",
		Short: "전략 해시",
		Args:  cobra.MaximumNArgs(1),
		RunE:  hashStrategy,
	}

	strategyShowCmd = &cobra.Command{
		Use:   "show [path]",
		Short: "정규화된 전략 JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showStrategy,
	}
)

func init() {
	rootCmd.AddCommand(strategyCmd)
	strategyCmd.AddCommand(strategyValidateCmd)
	strategyCmd.AddCommand(strategyHashCmd)
	strategyCmd.AddCommand(strategyShowCmd)
}

// resolveStrategyPath: 인자 > --strategy > 기본 경로
func resolveStrategyPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if strategyPath != "" {
		return strategyPath
	}
	return config.DefaultStrategyPath
}

func validateStrategy(cmd *cobra.Command, args []string) error {
	path := resolveStrategyPath(args)
	cfg, snapshot, err := loadStrategy(path)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %s is valid\n", path)
	fmt.Printf("   Strategy : %s (%s)\n", cfg.Meta.StrategyID, cfg.Meta.Version)
	fmt.Printf("   Policy   : %s\n", cfg.Policy())
	fmt.Printf("   Hash     : %s\n", snapshot.ConfigHash)

	for _, w := range strategyconfig.Warn(cfg) {
		fmt.Printf("⚠️  [%s] %s\n", w.Code, w.Message)
	}
	return nil
}

func hashStrategy(cmd *cobra.Command, args []string) error {
	_, snapshot, err := loadStrategy(resolveStrategyPath(args))
	if err != nil {
		return err
	}
	fmt.Println(snapshot.ConfigHash)
	return nil
}

func showStrategy(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadStrategy(resolveStrategyPath(args))
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
