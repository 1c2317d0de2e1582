package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/qualmom/internal/audit"
	"github.com/wonny/qualmom/internal/brain"
	"github.com/wonny/qualmom/internal/calendar"
	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/internal/execution"
	"github.com/wonny/qualmom/internal/portfolio"
	"github.com/wonny/qualmom/internal/provider"
	"github.com/wonny/qualmom/internal/regime"
	"github.com/wonny/qualmom/internal/s1_universe"
	"github.com/wonny/qualmom/internal/s2_factors"
	"github.com/wonny/qualmom/internal/selection"
	"github.com/wonny/qualmom/internal/strategyconfig"
	"github.com/wonny/qualmom/pkg/config"
	"github.com/wonny/qualmom/pkg/database"
	"github.com/wonny/qualmom/pkg/logger"
	"github.com/wonny/qualmom/pkg/redis"
)

// app holds every wired component for one CLI process
type app struct {
	cfg    *config.Config
	logger *logger.Logger
	db     *database.DB
	redis  *redis.Client

	strategy *strategyconfig.Config
	snapshot *strategyconfig.DecisionSnapshot
	warnings []strategyconfig.Warning
	location *time.Location

	calendar     *calendar.Calendar
	cycles       *audit.Repository
	weights      *portfolio.Repository
	orchestrator *brain.Orchestrator
}

// loadStrategy reads, validates and hashes the strategy YAML
func loadStrategy(path string) (*strategyconfig.Config, *strategyconfig.DecisionSnapshot, error) {
	cfg, data, err := strategyconfig.Load(path)
	if err != nil {
		return nil, nil, err
	}
	snapshot, err := strategyconfig.NewDecisionSnapshot(cfg, data, GitCommit)
	if err != nil {
		return nil, nil, fmt.Errorf("hash strategy: %w", err)
	}
	return cfg, snapshot, nil
}

// bootstrap wires config → logger → database → redis → pipeline
// ⭐ SSOT: 의존성 조립은 여기서만
func bootstrap(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if strategyPath != "" {
		cfg.StrategyPath = strategyPath
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load strategy
	strategy, snapshot, err := loadStrategy(cfg.StrategyPath)
	if err != nil {
		return nil, err
	}
	loc, err := strategy.Location()
	if err != nil {
		return nil, err
	}
	cal, err := strategy.Calendar()
	if err != nil {
		return nil, err
	}
	warnings := strategyconfig.Warn(strategy)
	for _, w := range warnings {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	// 4. Connect to database
	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	// 5. Connect to redis (disabled → no-op cache/lock)
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   log,
		db:       db,
		redis:    rc,
		strategy: strategy,
		snapshot: snapshot,
		warnings: warnings,
		location: loc,
		calendar: cal,
		cycles:   audit.NewRepository(db.Pool),
		weights:  portfolio.NewRepository(db.Pool),
	}

	// 6. Build pipeline
	a.orchestrator, err = a.newOrchestrator()
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.orchestrator.LoadPrevious(ctx); err != nil {
		log.WithError(err).Warn("Starting without previous weights")
	}

	log.WithFields(map[string]interface{}{
		"strategy_id": snapshot.StrategyID,
		"config_hash": snapshot.ConfigHash,
		"executor":    cfg.Executor.Mode,
		"redis":       rc.Enabled(),
	}).Info("Application initialized")

	return a, nil
}

func (a *app) newOrchestrator() (*brain.Orchestrator, error) {
	log := a.logger

	data := provider.NewCached(
		provider.NewPostgres(a.db.Pool),
		redis.NewCache(a.redis, "qualmom"),
		a.cfg.Redis.TTL,
		log,
	)

	holdings, executor, err := a.newExecutor(data)
	if err != nil {
		return nil, err
	}

	deps := brain.Dependencies{
		Universe:    s1_universe.NewBuilder(data, a.strategy.UniverseConfig(), s1_universe.NewRepository(a.db.Pool), log),
		Factors:     s2_factors.NewEngine(data, a.strategy.FactorConfig(), log),
		Quality:     selection.NewQualityRanker(a.strategy.QualityConfig(), log),
		Momentum:    selection.NewMomentumSelector(a.strategy.MomentumConfig(), log),
		Allocator:   portfolio.NewAllocator(a.strategy.AllocatorConfig(), log),
		Holdings:    holdings,
		Executor:    executor,
		Constraints: a.strategy.Constraints(),
		Calendar:    a.calendar,
		Recorder:    a.cycles,
		Weights:     a.weights,
	}
	if a.strategy.Trend.Enable {
		deps.Trend = regime.NewTrendFilter(data, a.strategy.TrendConfig(), log)
	}

	return brain.NewOrchestrator(deps, log), nil
}

// newExecutor selects the paper broker or the remote optimizer service
func (a *app) newExecutor(prices execution.PriceSource) (contracts.HoldingsSource, contracts.Executor, error) {
	switch a.cfg.Executor.Mode {
	case config.ExecutorModePaper:
		broker := execution.NewPaperBroker(prices, a.cfg.Paper.InitialCash, a.logger).WithCalendar(a.calendar)
		return broker, broker, nil
	case config.ExecutorModeRemote:
		remote := execution.NewRemoteExecutor(a.cfg.Executor.BaseURL, a.cfg.Executor.Timeout, a.cfg.Executor.RateLimit, a.logger)
		return remote, remote, nil
	default:
		return nil, nil, fmt.Errorf("unknown executor mode %q", a.cfg.Executor.Mode)
	}
}

// Close releases database and redis connections
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
