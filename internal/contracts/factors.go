package contracts

import (
	"encoding/json"
	"math"
	"time"
)

// FactorName identifies a fundamental factor
type FactorName string

const (
	FactorCashReturn    FactorName = "cash_return"
	FactorFCFYield      FactorName = "fcf_yield"
	FactorROIC          FactorName = "roic"
	FactorRevenueGrowth FactorName = "revenue_growth"
)

// QualityFactors lists the four fundamentals feeding QualityScore
func QualityFactors() []FactorName {
	return []FactorName{FactorCashReturn, FactorFCFYield, FactorROIC, FactorRevenueGrowth}
}

// FactorValue is a scalar that may be missing. Missing is never zero.
type FactorValue struct {
	Value float64
	Valid bool
}

// Present wraps a provider value. NaN and ±Inf are treated as missing.
func Present(v float64) FactorValue {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing()
	}
	return FactorValue{Value: v, Valid: true}
}

// Missing returns the explicit missing value
func Missing() FactorValue {
	return FactorValue{}
}

// Get returns the value and whether it is present
func (f FactorValue) Get() (float64, bool) {
	return f.Value, f.Valid
}

// MarshalJSON encodes missing as null
func (f FactorValue) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON decodes null as missing
func (f *FactorValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Missing()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Present(v)
	return nil
}

// FactorRow holds one security's raw inputs for a cycle
type FactorRow struct {
	Security      Security    `json:"security"`
	CashReturn    FactorValue `json:"cash_return"`
	FCFYield      FactorValue `json:"fcf_yield"`
	ROIC          FactorValue `json:"roic"`
	RevenueGrowth FactorValue `json:"revenue_growth"`
	Momentum      FactorValue `json:"momentum"`
}

// Factor returns the named fundamental
func (r *FactorRow) Factor(name FactorName) FactorValue {
	switch name {
	case FactorCashReturn:
		return r.CashReturn
	case FactorFCFYield:
		return r.FCFYield
	case FactorROIC:
		return r.ROIC
	case FactorRevenueGrowth:
		return r.RevenueGrowth
	default:
		return Missing()
	}
}

// SetFactor stores the named fundamental
func (r *FactorRow) SetFactor(name FactorName, v FactorValue) {
	switch name {
	case FactorCashReturn:
		r.CashReturn = v
	case FactorFCFYield:
		r.FCFYield = v
	case FactorROIC:
		r.ROIC = v
	case FactorRevenueGrowth:
		r.RevenueGrowth = v
	}
}

// Complete reports whether all four fundamentals are present
func (r *FactorRow) Complete() bool {
	return r.CashReturn.Valid && r.FCFYield.Valid && r.ROIC.Valid && r.RevenueGrowth.Valid
}

// FactorSet represents factor rows passed from S2 to S3
// ⭐ SSOT: S2 → S3 팩터 전달 (유니버스 순서 유지)
type FactorSet struct {
	Date     time.Time   `json:"date"`
	DataAsOf time.Time   `json:"data_as_of"`
	Rows     []FactorRow `json:"rows"`
}

// Get returns the row for sec
func (fs *FactorSet) Get(sec Security) (*FactorRow, bool) {
	for i := range fs.Rows {
		if fs.Rows[i].Security == sec {
			return &fs.Rows[i], true
		}
	}
	return nil, false
}

// Count returns the number of rows
func (fs *FactorSet) Count() int {
	if fs == nil {
		return 0
	}
	return len(fs.Rows)
}

// CompleteCount returns how many rows carry all four fundamentals
func (fs *FactorSet) CompleteCount() int {
	if fs == nil {
		return 0
	}
	n := 0
	for i := range fs.Rows {
		if fs.Rows[i].Complete() {
			n++
		}
	}
	return n
}
