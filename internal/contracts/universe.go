package contracts

import "time"

// Security is a tradable instrument identifier (ticker)
type Security string

// String returns the ticker
func (s Security) String() string {
	return string(s)
}

// UniverseSnapshot represents investable securities passed from S1 to S2
// ⭐ SSOT: S1 → S2 투자 가능 종목 전달
// Securities 순서가 이후 모든 단계의 동순위 tie-break 기준
type UniverseSnapshot struct {
	Date       time.Time  `json:"date"`
	DataAsOf   time.Time  `json:"data_as_of"`
	Securities []Security          `json:"securities"`
	Excluded   map[Security]string `json:"excluded,omitempty"` // 제외 종목: 사유
}

// Contains checks if a security is in the universe
func (u *UniverseSnapshot) Contains(sec Security) bool {
	return u.Index(sec) >= 0
}

// Index returns the position of sec in universe order, or -1
func (u *UniverseSnapshot) Index(sec Security) int {
	for i, s := range u.Securities {
		if s == sec {
			return i
		}
	}
	return -1
}

// IsExcluded reports whether sec was dropped by S1 and why
func (u *UniverseSnapshot) IsExcluded(sec Security) (bool, string) {
	reason, ok := u.Excluded[sec]
	return ok, reason
}

// Count returns the number of investable securities
func (u *UniverseSnapshot) Count() int {
	if u == nil {
		return 0
	}
	return len(u.Securities)
}
