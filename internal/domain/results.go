package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Money is a nominal amount paired with its inflation-deflated twin.
type Money struct {
	Nominal decimal.Decimal
	Real    decimal.Decimal
}

// Add accumulates amount at the given cumulative inflation deflator.
func (m *Money) Add(amount, deflator decimal.Decimal) {
	m.Nominal = m.Nominal.Add(amount)
	m.Real = m.Real.Add(amount.Div(deflator))
}

// RunTotals are the cumulative counters of one simulation run, by category.
// Constructed fresh per run; the simulator carries no cross-run state.
type RunTotals struct {
	EntryLoad           Money
	ExitLoad            Money
	FlatFees            Money
	FundCosts           Money
	ServiceFees         Money
	BalanceFees         Money
	AcquisitionCosts    Money
	AdministrationCosts Money

	// TotalTax covers every tax charged; WithdrawalTax and AccrualTax are
	// the contained sub-categories (realized vs annual accrual).
	TotalTax      Money
	AccrualTax    Money
	WithdrawalTax Money

	NetWithdrawals Money
}

// TotalFees sums every fee category, nominal.
func (rt RunTotals) TotalFees() decimal.Decimal {
	return rt.EntryLoad.Nominal.
		Add(rt.ExitLoad.Nominal).
		Add(rt.FlatFees.Nominal).
		Add(rt.FundCosts.Nominal).
		Add(rt.ServiceFees.Nominal).
		Add(rt.BalanceFees.Nominal).
		Add(rt.AcquisitionCosts.Nominal).
		Add(rt.AdministrationCosts.Nominal)
}

// PeriodLogRecord is one row of the per-period log: portfolio value and the
// cumulative counters after the period's processing. Append-only.
type PeriodLogRecord struct {
	Date      time.Time
	Value     decimal.Decimal
	RealValue decimal.Decimal
	Totals    RunTotals
}

// RebalancingEvent records one December rebalancing sale.
type RebalancingEvent struct {
	Date           time.Time
	GrossSale      decimal.Decimal
	TaxPaid        decimal.Decimal
	NetReinvested  decimal.Decimal
}

// CashFlow is a signed, dated flow suitable for money-weighted return
// computation: negative for contributions and charges paid in, positive for
// withdrawals and the final payout.
type CashFlow struct {
	Date       time.Time
	Amount     decimal.Decimal
	RealAmount decimal.Decimal
}

// SimulationResult is the complete output of one simulation run.
type SimulationResult struct {
	RunID  uuid.UUID
	Label  string
	Mode   AccountMode

	Periods      []PeriodLogRecord
	Rebalancings []RebalancingEvent
	CashFlows    []CashFlow
	Totals       RunTotals

	// FinalValue is the ledger value at horizon end before liquidation;
	// FinalPayout the net cash flow of the final taxed sale.
	FinalValue     decimal.Decimal
	FinalRealValue decimal.Decimal
	FinalPayout    decimal.Decimal
}

// ValueAtMonth returns the logged portfolio value after the given period
// (1-based month count); month 0 yields the initial investment baseline.
func (sr *SimulationResult) ValueAtMonth(month int, initial decimal.Decimal) decimal.Decimal {
	if month <= 0 {
		return initial
	}
	if month > len(sr.Periods) {
		month = len(sr.Periods)
	}
	return sr.Periods[month-1].Value
}
