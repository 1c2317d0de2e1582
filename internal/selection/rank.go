package selection

import (
	"sort"

	"github.com/wonny/qualmom/internal/contracts"
)

// OrdinalRank replaces each present value with its ascending ordinal rank
// (lowest value = 1) among the present values. Equal values keep input order,
// so the earlier element gets the lower rank. Missing stays missing.
func OrdinalRank(values []contracts.FactorValue) []contracts.FactorValue {
	idx := make([]int, 0, len(values))
	for i, v := range values {
		if v.Valid {
			idx = append(idx, i)
		}
	}

	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]].Value < values[idx[b]].Value
	})

	out := make([]contracts.FactorValue, len(values))
	for rank, i := range idx {
		out[i] = contracts.Present(float64(rank + 1))
	}
	return out
}

// addPresent sums element-wise; a missing operand makes the sum missing
func addPresent(a, b []contracts.FactorValue) []contracts.FactorValue {
	out := make([]contracts.FactorValue, len(a))
	for i := range a {
		if a[i].Valid && b[i].Valid {
			out[i] = contracts.Present(a[i].Value + b[i].Value)
		}
	}
	return out
}

// column extracts one fundamental from every row in order
func column(rows []contracts.FactorRow, name contracts.FactorName) []contracts.FactorValue {
	out := make([]contracts.FactorValue, len(rows))
	for i := range rows {
		out[i] = rows[i].Factor(name)
	}
	return out
}

// QualityScores computes, per row,
//
//	rank(rank(cash_return) + rank(fcf_yield)) + rank(roic) + rank(revenue_growth)
//
// Each raw factor is ranked over the rows where it is present. The composite
// is missing unless all four inputs are present.
func QualityScores(rows []contracts.FactorRow) []contracts.FactorValue {
	value := OrdinalRank(addPresent(
		OrdinalRank(column(rows, contracts.FactorCashReturn)),
		OrdinalRank(column(rows, contracts.FactorFCFYield)),
	))

	score := addPresent(value, OrdinalRank(column(rows, contracts.FactorROIC)))
	return addPresent(score, OrdinalRank(column(rows, contracts.FactorRevenueGrowth)))
}
