package calculation

import (
	"github.com/shopspring/decimal"
)

// ReturnSource supplies the exogenous monthly fractional return for each
// simulated period. Implementations must be deterministic for a given period
// index; all randomness is drawn up front.
type ReturnSource interface {
	MonthlyReturn(month int) decimal.Decimal
}

// ConstantReturns applies the same monthly rate to every period.
type ConstantReturns struct {
	rate decimal.Decimal
}

// NewConstantReturns builds a constant source from a monthly rate.
func NewConstantReturns(monthlyRate decimal.Decimal) ConstantReturns {
	return ConstantReturns{rate: monthlyRate}
}

// MonthlyReturn implements ReturnSource.
func (cr ConstantReturns) MonthlyReturn(int) decimal.Decimal { return cr.rate }

// PathReturns replays a pre-drawn or externally supplied monthly series.
// Periods beyond the path's end fall back to the given rate.
type PathReturns struct {
	path     []decimal.Decimal
	fallback decimal.Decimal
}

// NewPathReturns builds a path-backed source.
func NewPathReturns(path []decimal.Decimal, fallback decimal.Decimal) PathReturns {
	return PathReturns{path: path, fallback: fallback}
}

// MonthlyReturn implements ReturnSource.
func (pr PathReturns) MonthlyReturn(month int) decimal.Decimal {
	if month >= 0 && month < len(pr.path) {
		return pr.path[month]
	}
	return pr.fallback
}
