// Package finmath provides the money-weighted return computation over the
// simulator's signed, dated cash flows. It is a consumer of the core's
// output, not part of the simulation loop.
package finmath

import (
	"fmt"
	"math"

	"github.com/bauerfinanz/depotsim/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	xirrTolerance     = 1e-9
	xirrMaxIterations = 200
	daysPerYear       = 365.25
)

// XIRR computes the annualized internal rate of return of irregular dated
// cash flows by Newton iteration with a bisection fallback. Flows must
// contain at least one negative and one positive amount.
func XIRR(flows []domain.CashFlow) (decimal.Decimal, error) {
	if len(flows) < 2 {
		return decimal.Zero, fmt.Errorf("need at least two cash flows, got %d", len(flows))
	}
	hasNegative, hasPositive := false, false
	t0 := flows[0].Date
	amounts := make([]float64, len(flows))
	years := make([]float64, len(flows))
	for i, f := range flows {
		amounts[i] = f.Amount.InexactFloat64()
		years[i] = f.Date.Sub(t0).Hours() / 24 / daysPerYear
		if amounts[i] < 0 {
			hasNegative = true
		}
		if amounts[i] > 0 {
			hasPositive = true
		}
	}
	if !hasNegative || !hasPositive {
		return decimal.Zero, fmt.Errorf("cash flows must contain both inflows and outflows")
	}

	npv := func(rate float64) float64 {
		sum := 0.0
		for i := range amounts {
			sum += amounts[i] / math.Pow(1+rate, years[i])
		}
		return sum
	}
	npvPrime := func(rate float64) float64 {
		sum := 0.0
		for i := range amounts {
			if years[i] == 0 {
				continue
			}
			sum -= years[i] * amounts[i] / math.Pow(1+rate, years[i]+1)
		}
		return sum
	}

	// Newton from a moderate starting guess.
	rate := 0.1
	for i := 0; i < xirrMaxIterations; i++ {
		value := npv(rate)
		if math.Abs(value) < xirrTolerance {
			return decimal.NewFromFloat(rate), nil
		}
		derivative := npvPrime(rate)
		if derivative == 0 || math.IsNaN(derivative) {
			break
		}
		next := rate - value/derivative
		if next <= -1 {
			break
		}
		if math.Abs(next-rate) < xirrTolerance {
			return decimal.NewFromFloat(next), nil
		}
		rate = next
	}

	// Bisection fallback over a wide bracket.
	lo, hi := -0.9999, 10.0
	fLo := npv(lo)
	fHi := npv(hi)
	if fLo*fHi > 0 {
		return decimal.Zero, fmt.Errorf("no sign change in rate bracket [%.4f, %.4f]", lo, hi)
	}
	for i := 0; i < xirrMaxIterations; i++ {
		mid := (lo + hi) / 2
		fMid := npv(mid)
		if math.Abs(fMid) < xirrTolerance || (hi-lo)/2 < xirrTolerance {
			return decimal.NewFromFloat(mid), nil
		}
		if fLo*fMid < 0 {
			hi = mid
		} else {
			lo = mid
			fLo = fMid
		}
	}
	return decimal.Zero, fmt.Errorf("did not converge after %d iterations", xirrMaxIterations)
}

// RealXIRR computes the XIRR of the inflation-deflated flow amounts.
func RealXIRR(flows []domain.CashFlow) (decimal.Decimal, error) {
	deflated := make([]domain.CashFlow, len(flows))
	for i, f := range flows {
		deflated[i] = domain.CashFlow{Date: f.Date, Amount: f.RealAmount, RealAmount: f.RealAmount}
	}
	return XIRR(deflated)
}
