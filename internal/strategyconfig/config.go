package strategyconfig

import (
	"time"
	_ "time/tzdata" // meta.timezone 검증용 (컨테이너에 zoneinfo 없을 수 있음)

	"github.com/wonny/qualmom/internal/calendar"
	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/internal/portfolio"
	"github.com/wonny/qualmom/internal/regime"
	"github.com/wonny/qualmom/internal/s1_universe"
	"github.com/wonny/qualmom/internal/s2_factors"
	"github.com/wonny/qualmom/internal/selection"
)

// Config는 퀄리티/모멘텀 리밸런스 전략의 전체 설정
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Universe  Universe  `yaml:"universe" json:"universe"`
	Quality   Quality   `yaml:"quality" json:"quality"`
	Momentum  Momentum  `yaml:"momentum" json:"momentum"`
	Trend     Trend     `yaml:"trend" json:"trend"`
	Defensive Defensive `yaml:"defensive" json:"defensive"`
	Schedule  Schedule  `yaml:"schedule" json:"schedule"`
	Execution Execution `yaml:"execution" json:"execution"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID        string `yaml:"strategy_id" json:"strategy_id"`
	Version           string `yaml:"version" json:"version"`
	Timezone          string `yaml:"timezone" json:"timezone"`
	DecisionTimeLocal string `yaml:"decision_time_local" json:"decision_time_local"` // HH:MM, 장 시작 직후
}

// Universe S1: 투자 가능 풀 (편입 규칙은 데이터 제공자 소관)
type Universe struct {
	Name    string               `yaml:"name" json:"name"`       // 예: Q500US
	Exclude []contracts.Security `yaml:"exclude" json:"exclude"` // 추가 제외 종목
}

// Quality S3: 퀄리티 숏리스트
type Quality struct {
	TopQualityQty int `yaml:"top_quality_qty" json:"top_quality_qty"`
}

// Momentum S2/S4: 모멘텀 기간과 최종 편입 수
type Momentum struct {
	LookbackDays     int `yaml:"lookback_days" json:"lookback_days"`
	TargetSecurities int `yaml:"target_securities" json:"target_securities"`
}

// Trend S5: 벤치마크 추세 필터
type Trend struct {
	Enable       bool               `yaml:"enable" json:"enable"`
	Benchmark    contracts.Security `yaml:"benchmark" json:"benchmark"`
	FastLookback int                `yaml:"fast_lookback" json:"fast_lookback"`
	SlowLookback int                `yaml:"slow_lookback" json:"slow_lookback"`
}

// Defensive S6: 잔여 비중을 받는 채권 바스켓
type Defensive struct {
	Basket []contracts.Security `yaml:"basket" json:"basket"`
}

// Schedule 리밸런스 주기 (월말 N 거래일 전)
type Schedule struct {
	MonthEndOffsetDays int      `yaml:"month_end_offset_days" json:"month_end_offset_days"`
	Cron               string   `yaml:"cron" json:"cron"`         // 초 포함 6필드
	Holidays           []string `yaml:"holidays" json:"holidays"` // 휴장일 YYYY-MM-DD (주말 제외)
}

// Execution S7: 실행기 제약
type Execution struct {
	MaxGrossExposure float64 `yaml:"max_gross_exposure" json:"max_gross_exposure"`
}

// NYSEHolidays NYSE 휴장일 2024~2027 (배포 YAML 과 동일해야 해시가 일치)
// TODO: 2028 휴장일은 NYSE 공표 후 추가 (YAML 두 파일 포함)
var NYSEHolidays = []string{
	"2024-01-01", "2024-01-15", "2024-02-19", "2024-03-29", "2024-05-27", "2024-06-19", "2024-07-04", "2024-09-02", "2024-11-28", "2024-12-25",
	"2025-01-01", "2025-01-09", "2025-01-20", "2025-02-17", "2025-04-18", "2025-05-26", "2025-06-19", "2025-07-04", "2025-09-01", "2025-11-27", "2025-12-25",
	"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03", "2026-05-25", "2026-06-19", "2026-07-03", "2026-09-07", "2026-11-26", "2026-12-25",
	"2027-01-01", "2027-01-18", "2027-02-15", "2027-03-26", "2027-05-31", "2027-06-18", "2027-07-05", "2027-09-06", "2027-11-25", "2027-12-24",
}

// Default returns the trend-following variant
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID:        "quality_momentum_trend",
			Version:           "1.0.0",
			Timezone:          "America/New_York",
			DecisionTimeLocal: "09:31",
		},
		Universe: Universe{Name: "Q500US"},
		Quality:  Quality{TopQualityQty: 50},
		Momentum: Momentum{LookbackDays: 140, TargetSecurities: 5},
		Trend: Trend{
			Enable:       true,
			Benchmark:    "SPY",
			FastLookback: 10,
			SlowLookback: 100,
		},
		Defensive: Defensive{Basket: []contracts.Security{"IEF", "TLT"}},
		Schedule: Schedule{
			MonthEndOffsetDays: 7,
			Cron:               "0 31 9 * * MON-FRI",
			Holidays:           append([]string(nil), NYSEHolidays...),
		},
		Execution: Execution{MaxGrossExposure: 1.0},
	}
}

// Policy returns the allocation policy implied by trend.enable
func (c *Config) Policy() portfolio.Policy {
	if c.Trend.Enable {
		return portfolio.PolicyTrendFollowing
	}
	return portfolio.PolicyNoTrend
}

// UniverseConfig excludes the defensive basket and benchmark from equity selection
func (c *Config) UniverseConfig() s1_universe.Config {
	exclude := append([]contracts.Security(nil), c.Universe.Exclude...)
	exclude = append(exclude, c.Defensive.Basket...)
	if c.Trend.Benchmark != "" {
		exclude = append(exclude, c.Trend.Benchmark)
	}
	return s1_universe.Config{Exclude: exclude}
}

// FactorConfig maps to the S2 engine
func (c *Config) FactorConfig() s2_factors.Config {
	cfg := s2_factors.DefaultConfig()
	cfg.MomentumLookbackDays = c.Momentum.LookbackDays
	return cfg
}

// QualityConfig maps to the S3 ranker
func (c *Config) QualityConfig() selection.QualityConfig {
	return selection.QualityConfig{TopQualityQty: c.Quality.TopQualityQty}
}

// MomentumConfig maps to the S4 selector
func (c *Config) MomentumConfig() selection.MomentumConfig {
	return selection.MomentumConfig{TargetSecurities: c.Momentum.TargetSecurities}
}

// TrendConfig maps to the S5 filter
func (c *Config) TrendConfig() regime.Config {
	return regime.Config{
		Benchmark:    c.Trend.Benchmark,
		FastLookback: c.Trend.FastLookback,
		SlowLookback: c.Trend.SlowLookback,
	}
}

// AllocatorConfig maps to the S6 allocator
func (c *Config) AllocatorConfig() portfolio.Config {
	cfg := portfolio.Config{
		Policy:           c.Policy(),
		TargetSecurities: c.Momentum.TargetSecurities,
	}
	if c.Trend.Enable {
		cfg.DefensiveBasket = append([]contracts.Security(nil), c.Defensive.Basket...)
	}
	return cfg
}

// Constraints maps to the executor constraints
func (c *Config) Constraints() contracts.Constraints {
	return contracts.Constraints{MaxGrossExposure: c.Execution.MaxGrossExposure}
}

// Location returns the market time zone (UTC if unset)
func (c *Config) Location() (*time.Location, error) {
	if c.Meta.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Meta.Timezone)
}

// Calendar builds the trading calendar from schedule.holidays
func (c *Config) Calendar() (*calendar.Calendar, error) {
	days, err := parseHolidays(c.Schedule.Holidays)
	if err != nil {
		return nil, err
	}
	return calendar.New(days...), nil
}

// DecisionSnapshot 의사결정 스냅샷 (재현성용)
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml,omitempty"`
	StrategyID string    `json:"strategy_id"`
	Version    string    `json:"version"`
	GitCommit  string    `json:"git_commit,omitempty"`
	Config     *Config   `json:"config"`
	CreatedAt  time.Time `json:"created_at"`
}
