package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/qualmom/pkg/config"
	"github.com/wonny/qualmom/pkg/database"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "데이터베이스 관리",
	Long: `스키마 마이그레이션과 연결 상태를 확인합니다.

Example:
  go run ./cmd/quant db migrate
  go run ./cmd/quant db status`,
}

var (
	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "스키마 적용 (IF NOT EXISTS)",
		RunE:  runMigrate,
	}

	dbStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "연결 상태/풀 통계",
		RunE:  showDBStatus,
	}
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
}

func connectDB(ctx context.Context) (*database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	files, err := database.MigrationFiles()
	if err != nil {
		return err
	}
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	for _, f := range files {
		fmt.Printf("  ✅ %s\n", f)
	}
	fmt.Printf("Applied %d migration(s)\n", len(files))
	return nil
}

func showDBStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	health, err := db.HealthCheck(ctx)
	if err != nil {
		return err
	}
	stats := health.Stats

	fmt.Printf("Healthy     : %t\n", health.Healthy)
	fmt.Printf("Latency     : %s\n", health.ResponseTime)
	fmt.Printf("Connections : %d total / %d idle / %d acquired (max %d)\n",
		stats.TotalConns, stats.IdleConns, stats.AcquiredConns, stats.MaxConns)
	return nil
}
