package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PruneEpsilon is the residual value below which a lot is dropped from the
// ledger. Keeps the ledger from accumulating vanishing tranches over long
// horizons.
var PruneEpsilon = decimal.New(1, -9)

// Lot is a single investment tranche: one deposit or reinvestment event
// tracked with its own cost basis and accrued-tax history.
type Lot struct {
	AcquisitionDate time.Time
	// AmountInvested is the remaining cost basis. Scaled down on partial sale.
	AmountInvested decimal.Decimal
	// Value is the current market value, mutated by growth, fees, taxes and sales.
	Value decimal.Decimal
	// StartOfPriorYearValue is the value snapshotted at the last year boundary,
	// basis of the following year's notional-yield assessment.
	StartOfPriorYearValue decimal.Decimal
	// AlreadyTaxedAccrual is the cumulative gain that already bore annual
	// accrual tax. Consumed on sale to avoid taxing the same gain twice.
	AlreadyTaxedAccrual decimal.Decimal
}

// NewLot creates a fresh lot from a net deposit amount.
func NewLot(date time.Time, netAmount decimal.Decimal) Lot {
	return Lot{
		AcquisitionDate:       date,
		AmountInvested:        netAmount,
		Value:                 netAmount,
		StartOfPriorYearValue: netAmount,
		AlreadyTaxedAccrual:   decimal.Zero,
	}
}

// TrancheSale records the consumption of a single lot (possibly partial)
// during a FIFO sale.
type TrancheSale struct {
	AcquisitionDate       time.Time
	SoldValue             decimal.Decimal
	CostBasisConsumed     decimal.Decimal
	AccrualCreditConsumed decimal.Decimal
}

// Gain is the realized gain of this tranche sale. May be negative.
func (ts TrancheSale) Gain() decimal.Decimal {
	return ts.SoldValue.Sub(ts.CostBasisConsumed)
}

// SaleResult aggregates one FIFO sale across all consumed tranches.
type SaleResult struct {
	Tranches              []TrancheSale
	SoldValue             decimal.Decimal
	CostBasisConsumed     decimal.Decimal
	AccrualCreditConsumed decimal.Decimal
}

// LotLedger is the FIFO collection of investment tranches, ordered by
// acquisition date ascending. All sales consume the oldest lot first; a
// partially consumed lot keeps its place at the front.
type LotLedger struct {
	lots []Lot
}

// AddLot appends a new lot created from a net deposit.
func (ll *LotLedger) AddLot(date time.Time, netAmount decimal.Decimal) {
	ll.lots = append(ll.lots, NewLot(date, netAmount))
}

// Len returns the number of lots currently held.
func (ll *LotLedger) Len() int { return len(ll.lots) }

// Lots exposes the underlying tranches, oldest first.
func (ll *LotLedger) Lots() []Lot { return ll.lots }

// Oldest returns the front lot. Callers must check Len first.
func (ll *LotLedger) Oldest() Lot { return ll.lots[0] }

// TotalValue sums the market value over all lots.
func (ll *LotLedger) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for i := range ll.lots {
		total = total.Add(ll.lots[i].Value)
	}
	return total
}

// TotalInvested sums the remaining cost basis over all lots.
func (ll *LotLedger) TotalInvested() decimal.Decimal {
	total := decimal.Zero
	for i := range ll.lots {
		total = total.Add(ll.lots[i].AmountInvested)
	}
	return total
}

// TotalAccrualCredit sums the already-taxed accrual amounts over all lots.
func (ll *LotLedger) TotalAccrualCredit() decimal.Decimal {
	total := decimal.Zero
	for i := range ll.lots {
		total = total.Add(ll.lots[i].AlreadyTaxedAccrual)
	}
	return total
}

// ApplyUniformGrowth multiplies every lot's value by (1+rate).
func (ll *LotLedger) ApplyUniformGrowth(rate decimal.Decimal) {
	factor := decimal.NewFromInt(1).Add(rate)
	for i := range ll.lots {
		ll.lots[i].Value = ll.lots[i].Value.Mul(factor)
	}
}

// ApplyProportionalDeduction subtracts totalAmount from the ledger, spread
// across lots in proportion to their value. No-op when the ledger is empty
// or worthless: a fee owed against a zero-value ledger is waived for the
// period rather than driving lots negative.
func (ll *LotLedger) ApplyProportionalDeduction(totalAmount decimal.Decimal) {
	total := ll.TotalValue()
	if total.LessThanOrEqual(decimal.Zero) || totalAmount.LessThanOrEqual(decimal.Zero) {
		return
	}
	share := totalAmount.Div(total)
	for i := range ll.lots {
		ll.lots[i].Value = ll.lots[i].Value.Sub(ll.lots[i].Value.Mul(share))
	}
}

// SellFIFO liquidates targetAmount of market value, oldest lot first.
// Each consumed lot's cost basis and accrual credit are scaled down by the
// sold fraction; a lot with residual value stays at the front of the queue.
// Selling stops when the target is met or the ledger is exhausted.
func (ll *LotLedger) SellFIFO(targetAmount decimal.Decimal) SaleResult {
	res := SaleResult{
		SoldValue:             decimal.Zero,
		CostBasisConsumed:     decimal.Zero,
		AccrualCreditConsumed: decimal.Zero,
	}
	remaining := targetAmount
	survivors := make([]Lot, 0, len(ll.lots))
	for _, lot := range ll.lots {
		if remaining.LessThanOrEqual(PruneEpsilon) {
			survivors = append(survivors, lot)
			continue
		}
		if lot.Value.Sign() <= 0 {
			continue
		}
		sold := decimal.Min(lot.Value, remaining)
		prop := sold.Div(lot.Value)
		basis := lot.AmountInvested.Mul(prop)
		credit := lot.AlreadyTaxedAccrual.Mul(prop)

		lot.Value = lot.Value.Sub(sold)
		lot.AmountInvested = lot.AmountInvested.Sub(basis)
		lot.AlreadyTaxedAccrual = decimal.Max(decimal.Zero, lot.AlreadyTaxedAccrual.Sub(credit))

		res.Tranches = append(res.Tranches, TrancheSale{
			AcquisitionDate:       lot.AcquisitionDate,
			SoldValue:             sold,
			CostBasisConsumed:     basis,
			AccrualCreditConsumed: credit,
		})
		res.SoldValue = res.SoldValue.Add(sold)
		res.CostBasisConsumed = res.CostBasisConsumed.Add(basis)
		res.AccrualCreditConsumed = res.AccrualCreditConsumed.Add(credit)

		remaining = remaining.Sub(sold)
		if lot.Value.GreaterThan(PruneEpsilon) {
			survivors = append(survivors, lot)
		}
	}
	ll.lots = survivors
	return res
}

// SnapshotYearStart copies each lot's current value into its prior-year
// snapshot. Invoked after December's processing, for use by next January's
// accrual assessment.
func (ll *LotLedger) SnapshotYearStart() {
	for i := range ll.lots {
		ll.lots[i].StartOfPriorYearValue = ll.lots[i].Value
	}
}

// Prune drops lots whose value fell below the epsilon threshold.
func (ll *LotLedger) Prune() {
	survivors := ll.lots[:0]
	for _, lot := range ll.lots {
		if lot.Value.GreaterThan(PruneEpsilon) {
			survivors = append(survivors, lot)
		}
	}
	ll.lots = survivors
}

// Clear removes all lots.
func (ll *LotLedger) Clear() {
	ll.lots = ll.lots[:0]
}
