package contracts

import (
	"fmt"
	"math"
	"time"
)

// WeightEpsilon is the floating-point tolerance on gross exposure
const WeightEpsilon = 1e-9

// Sleeve tags a weight as equity selection or defensive basket
type Sleeve string

const (
	SleeveEquity    Sleeve = "EQUITY"
	SleeveDefensive Sleeve = "DEFENSIVE"
)

// TargetWeight is one entry of the weight vector
type TargetWeight struct {
	Security Security `json:"security"`
	Weight   float64  `json:"weight"`
	Sleeve   Sleeve   `json:"sleeve"`
}

// WeightVector is the S6 output handed to the executor by value
// ⭐ SSOT: S6 → S7 목표 비중 전달
type WeightVector struct {
	Date    time.Time      `json:"date"`
	Weights []TargetWeight `json:"weights"`
}

// Gross returns the sum of weights
func (w *WeightVector) Gross() float64 {
	total := 0.0
	for _, tw := range w.Weights {
		total += tw.Weight
	}
	return total
}

// Get returns the weight of sec (0 when absent)
func (w *WeightVector) Get(sec Security) (float64, bool) {
	for _, tw := range w.Weights {
		if tw.Security == sec {
			return tw.Weight, true
		}
	}
	return 0, false
}

// Map returns security → weight
func (w *WeightVector) Map() map[Security]float64 {
	out := make(map[Security]float64, len(w.Weights))
	for _, tw := range w.Weights {
		out[tw.Security] += tw.Weight
	}
	return out
}

// EquityWeight returns the equity sleeve sum
func (w *WeightVector) EquityWeight() float64 {
	return w.sleeveWeight(SleeveEquity)
}

// DefensiveWeight returns the defensive basket sum
func (w *WeightVector) DefensiveWeight() float64 {
	return w.sleeveWeight(SleeveDefensive)
}

func (w *WeightVector) sleeveWeight(sleeve Sleeve) float64 {
	total := 0.0
	for _, tw := range w.Weights {
		if tw.Sleeve == sleeve {
			total += tw.Weight
		}
	}
	return total
}

// Count returns the number of entries
func (w *WeightVector) Count() int {
	if w == nil {
		return 0
	}
	return len(w.Weights)
}

// Clone returns a copy safe to hand across goroutines/stages
func (w *WeightVector) Clone() *WeightVector {
	if w == nil {
		return nil
	}
	weights := make([]TargetWeight, len(w.Weights))
	copy(weights, w.Weights)
	return &WeightVector{Date: w.Date, Weights: weights}
}

// Validate checks every weight is finite and ≥ 0, securities are unique,
// and the gross sum is ≤ 1 + eps.
func (w *WeightVector) Validate(eps float64) error {
	seen := make(map[Security]bool, len(w.Weights))
	for _, tw := range w.Weights {
		if math.IsNaN(tw.Weight) || math.IsInf(tw.Weight, 0) {
			return fmt.Errorf("%w: %s weight is not finite", ErrInvalidWeights, tw.Security)
		}
		if tw.Weight < 0 {
			return fmt.Errorf("%w: %s weight %.6f < 0", ErrInvalidWeights, tw.Security, tw.Weight)
		}
		if seen[tw.Security] {
			return fmt.Errorf("%w: duplicate security %s", ErrInvalidWeights, tw.Security)
		}
		seen[tw.Security] = true
	}

	if gross := w.Gross(); gross > 1+eps {
		return fmt.Errorf("%w: gross %.9f > 1", ErrInvalidWeights, gross)
	}
	return nil
}

// Constraints are forwarded to the executor alongside the weights
type Constraints struct {
	MaxGrossExposure float64 `json:"max_gross_exposure"`
}

// DefaultConstraints returns the fixed max-gross-exposure 1.0 constraint
func DefaultConstraints() Constraints {
	return Constraints{MaxGrossExposure: 1.0}
}
