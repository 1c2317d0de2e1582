package contracts

import "time"

// TrendSignal is the benchmark regime passed from S5 to S6
type TrendSignal struct {
	Date      time.Time `json:"date"`
	DataAsOf  time.Time `json:"data_as_of"`
	Benchmark Security  `json:"benchmark"`
	Fast      float64   `json:"fast_sma"`
	Slow      float64   `json:"slow_sma"`
	Up        bool      `json:"up"` // fast > slow (strict)
}
