package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/qualmom/internal/api"
	"github.com/wonny/qualmom/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "조회 API 서버 시작",
	Long: `리밸런스 기록 조회용 REST API 서버를 시작합니다.

Endpoints:
  GET  /health                  - Health check (DB ping)
  GET  /api/rebalance/latest    - 마지막 사이클
  GET  /api/rebalance/cycles    - 최근 사이클 (?limit=)
  GET  /api/rebalance/weights   - 마지막 체결 목표 비중
  GET  /api/strategy            - 전략 설정 + 해시

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: $PORT)")
}

// newRouter builds the API router. sched may be nil.
func (a *app) newRouter(sched *handlers.SchedulerHandler) http.Handler {
	return api.NewRouter(api.Handlers{
		Rebalance: handlers.NewRebalanceHandler(a.cycles, a.weights, a.logger),
		Strategy:  handlers.NewStrategyHandler(a.snapshot, a.warnings),
		Scheduler: sched,
		DB:        a.db,
	}, a.logger)
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	return api.New(a.cfg, a.logger, a.newRouter(nil)).Run(ctx)
}
