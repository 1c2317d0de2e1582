package strategyconfig

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var hhmm = regexp.MustCompile(`^\d{2}:\d{2}$`)

// cronParser matches the scheduler's parser (seconds field required)
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}
	if cfg.Meta.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil {
			return ValidationError{"meta.timezone", err.Error()}
		}
	}
	if cfg.Meta.DecisionTimeLocal != "" {
		if err := validateHHMM(cfg.Meta.DecisionTimeLocal); err != nil {
			return ValidationError{"meta.decision_time_local", err.Error()}
		}
	}

	// === Universe ===
	for i, sec := range cfg.Universe.Exclude {
		if sec == "" {
			return ValidationError{fmt.Sprintf("universe.exclude[%d]", i), "must not be blank"}
		}
	}

	// === Quality / Momentum ===
	if cfg.Momentum.TargetSecurities <= 0 {
		return ValidationError{"momentum.target_securities", "must be > 0"}
	}
	if cfg.Quality.TopQualityQty < cfg.Momentum.TargetSecurities {
		return ValidationError{"quality.top_quality_qty", fmt.Sprintf("must be >= target_securities=%d, got %d",
			cfg.Momentum.TargetSecurities, cfg.Quality.TopQualityQty)}
	}
	if cfg.Momentum.LookbackDays < 2 {
		return ValidationError{"momentum.lookback_days", "must be >= 2"}
	}

	// === Trend ===
	if cfg.Trend.Enable {
		if cfg.Trend.Benchmark == "" {
			return ValidationError{"trend.benchmark", "required when trend.enable"}
		}
		if cfg.Trend.FastLookback <= 0 {
			return ValidationError{"trend.fast_lookback", "must be > 0"}
		}
		if cfg.Trend.FastLookback >= cfg.Trend.SlowLookback {
			return ValidationError{"trend", "fast_lookback must be < slow_lookback"}
		}
	}

	// === Defensive ===
	seen := make(map[string]bool, len(cfg.Defensive.Basket))
	for i, sec := range cfg.Defensive.Basket {
		if sec == "" {
			return ValidationError{fmt.Sprintf("defensive.basket[%d]", i), "must not be blank"}
		}
		if seen[string(sec)] {
			return ValidationError{fmt.Sprintf("defensive.basket[%d]", i), fmt.Sprintf("duplicate %s", sec)}
		}
		seen[string(sec)] = true
	}

	// === Schedule ===
	if cfg.Schedule.MonthEndOffsetDays < 0 || cfg.Schedule.MonthEndOffsetDays > 22 {
		return ValidationError{"schedule.month_end_offset_days", "must be in range [0, 22]"}
	}
	if cfg.Schedule.Cron != "" {
		if _, err := cronParser.Parse(cfg.Schedule.Cron); err != nil {
			return ValidationError{"schedule.cron", err.Error()}
		}
	}

	if _, err := parseHolidays(cfg.Schedule.Holidays); err != nil {
		return err
	}

	// === Execution ===
	if cfg.Execution.MaxGrossExposure <= 0 || cfg.Execution.MaxGrossExposure > 1 {
		return ValidationError{"execution.max_gross_exposure", "must be in range (0, 1]"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 숏리스트가 너무 좁으면 모멘텀 선별 의미 없음
	if cfg.Quality.TopQualityQty < 2*cfg.Momentum.TargetSecurities {
		warnings = append(warnings, Warning{
			Code:    "NARROW_SHORTLIST",
			Message: "top_quality_qty < 2 × target_securities: 모멘텀 선별 폭이 좁음",
		})
	}

	if cfg.Trend.Enable && len(cfg.Defensive.Basket) == 0 {
		warnings = append(warnings, Warning{
			Code:    "EMPTY_BASKET",
			Message: "하락 추세의 잔여 비중이 현금으로 남음",
		})
	}

	if !cfg.Trend.Enable && len(cfg.Defensive.Basket) > 0 {
		warnings = append(warnings, Warning{
			Code:    "BASKET_UNUSED",
			Message: "trend.enable=false: defensive.basket은 사용되지 않음",
		})
	}

	if cfg.Momentum.LookbackDays < 20 {
		warnings = append(warnings, Warning{
			Code:    "SHORT_MOMENTUM",
			Message: "모멘텀 기간 < 20 거래일: 단기 반전 노이즈",
		})
	}

	// 휴장일이 없으면 월말 오프셋이 휴장일을 거래일로 셈
	if len(cfg.Schedule.Holidays) == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_HOLIDAYS",
			Message: "schedule.holidays 비어 있음: 주말만 휴장으로 간주",
		})
	}

	if cfg.Execution.MaxGrossExposure < 1 {
		warnings = append(warnings, Warning{
			Code:    "PARTIAL_EXPOSURE",
			Message: "max_gross_exposure < 1.0: 배분 비중 합이 1.0이면 실행기가 거부함",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateHHMM(s string) error {
	if !hhmm.MatchString(s) {
		return errors.New("must be HH:MM format")
	}
	_, err := time.Parse("15:04", s)
	return err
}

// parseHolidays parses schedule.holidays; weekends and duplicates are rejected
func parseHolidays(values []string) ([]time.Time, error) {
	days := make([]time.Time, 0, len(values))
	seen := make(map[time.Time]bool, len(values))
	for i, v := range values {
		field := fmt.Sprintf("schedule.holidays[%d]", i)
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return nil, ValidationError{field, "must be YYYY-MM-DD"}
		}
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return nil, ValidationError{field, fmt.Sprintf("%s is a %s", v, wd)}
		}
		if seen[d] {
			return nil, ValidationError{field, fmt.Sprintf("duplicate %s", v)}
		}
		seen[d] = true
		days = append(days, d)
	}
	return days, nil
}
