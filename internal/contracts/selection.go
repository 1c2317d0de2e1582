package contracts

import "time"

// ScoredSecurity is a quality shortlist entry passed from S3 to S4
// ⭐ SSOT: S3 → S4 퀄리티 상위 종목 전달
type ScoredSecurity struct {
	Security     Security    `json:"security"`
	QualityScore float64     `json:"quality_score"`
	QualityRank  int         `json:"quality_rank"` // 1 = 최고 점수
	Momentum     FactorValue `json:"momentum"`
}

// TargetHoldings is the final equity list passed from S4 to S6
type TargetHoldings struct {
	Date       time.Time  `json:"date"`
	Securities []Security `json:"securities"`
}

// Contains checks if a security was selected
func (t *TargetHoldings) Contains(sec Security) bool {
	for _, s := range t.Securities {
		if s == sec {
			return true
		}
	}
	return false
}

// Count returns the number of selected securities
func (t *TargetHoldings) Count() int {
	if t == nil {
		return 0
	}
	return len(t.Securities)
}
