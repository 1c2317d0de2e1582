package portfolio

import (
	"math"

	"github.com/wonny/qualmom/internal/contracts"
)

// Constraint names reported in ConstraintViolationError
const (
	ConstraintMaxGrossExposure = "max_gross_exposure"
	ConstraintNonNegative      = "non_negative_weight"
)

// CheckConstraints verifies a weight vector against executor constraints
// ⭐ SSOT: 제약조건 검증은 여기서만 (실행기 측)
func CheckConstraints(weights contracts.WeightVector, constraints contracts.Constraints) error {
	for _, tw := range weights.Weights {
		if tw.Weight < 0 || math.IsNaN(tw.Weight) {
			return &contracts.ConstraintViolationError{
				Constraint: ConstraintNonNegative,
				Limit:      0,
				Actual:     tw.Weight,
				Message:    string(tw.Security),
			}
		}
	}

	if gross := weights.Gross(); gross > constraints.MaxGrossExposure+contracts.WeightEpsilon {
		return &contracts.ConstraintViolationError{
			Constraint: ConstraintMaxGrossExposure,
			Limit:      constraints.MaxGrossExposure,
			Actual:     gross,
		}
	}
	return nil
}
