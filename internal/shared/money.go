package shared

import "github.com/shopspring/decimal"

// BalanceEpsilon is the tolerance applied when comparing debit and credit
// totals. Rounding during currency translation can leave sub-cent drift.
var BalanceEpsilon = decimal.NewFromFloat(0.01)

// Round2 applies the uniform rounding policy for currency amounts:
// round half up to two decimal places. Applied at currency conversion
// and wherever a line total is derived.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// WithinEpsilon reports whether two amounts differ by at most BalanceEpsilon.
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(BalanceEpsilon) <= 0
}
