package contracts

import "time"

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 스냅샷, DB row에서 이 상수를 사용해야 함
//
// 파이프라인 흐름 (SELECT → TRADE):
//   S1 → S2 → S3 → S4 → S5 → S6 | S7
//   Universe  Factors  Quality  Momentum  Trend  Allocation | Execution

// Stage represents a pipeline stage
type Stage string

const (
	// StageUniverse S1: 투자 가능 종목 (Universe)
	// 책임: 데이터 제공자의 편입 규칙에 위임, 중복 제거
	// 위치: internal/s1_universe/
	StageUniverse Stage = "S1_UNIVERSE"

	// StageFactors S2: 팩터 계산
	// 책임: 4개 펀더멘털 + 모멘텀 (point-in-time)
	// 위치: internal/s2_factors/
	StageFactors Stage = "S2_FACTORS"

	// StageQuality S3: 퀄리티 랭킹
	// 책임: 복합 순위 점수, Top K, 결측 종목 제외
	// 위치: internal/selection/quality.go
	StageQuality Stage = "S3_QUALITY"

	// StageMomentum S4: 모멘텀 선별
	// 책임: Top K 중 모멘텀 상위 N 선택
	// 위치: internal/selection/momentum.go
	StageMomentum Stage = "S4_MOMENTUM"

	// StageTrend S5: 추세 필터 (trend_following 전략만)
	// 책임: 벤치마크 fast SMA > slow SMA
	// 위치: internal/regime/
	StageTrend Stage = "S5_TREND"

	// StageAllocation S6: 비중 배분
	// 책임: 주식 1/N, 잔여 비중은 방어 바스켓으로
	// 위치: internal/portfolio/
	StageAllocation Stage = "S6_ALLOCATION"

	// StageExecution S7: 주문 제출
	// 책임: 외부 실행기에 목표 비중 + 제약 전달
	// 위치: internal/execution/
	StageExecution Stage = "S7_EXECUTION"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S1", "S2")
func (s Stage) ShortName() string {
	switch s {
	case StageUniverse:
		return "S1"
	case StageFactors:
		return "S2"
	case StageQuality:
		return "S3"
	case StageMomentum:
		return "S4"
	case StageTrend:
		return "S5"
	case StageAllocation:
		return "S6"
	case StageExecution:
		return "S7"
	default:
		return "UNKNOWN"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageUniverse,
		StageFactors,
		StageQuality,
		StageMomentum,
		StageTrend,
		StageAllocation,
		StageExecution,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// Cycle is the evaluation snapshot shared by every stage of one rebalance.
// ⭐ SSOT: 사이클 시각은 한 번만 고정하고 모든 하위 계산에서 재사용
type Cycle struct {
	RunID    string    `json:"run_id"`
	Date     time.Time `json:"date"`       // 리밸런스 실행일
	DataAsOf time.Time `json:"data_as_of"` // 조회 기준일 (직전 거래일, 당일 미확정 봉 제외)
}

// StageResult records the outcome of one stage for the run report
type StageResult struct {
	Stage       Stage  `json:"stage"`
	Success     bool   `json:"success"`
	InputCount  int    `json:"input_count"`
	OutputCount int    `json:"output_count"`
	Duration    int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}
