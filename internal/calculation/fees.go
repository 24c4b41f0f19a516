package calculation

import (
	"github.com/bauerfinanz/depotsim/internal/domain"
	"github.com/shopspring/decimal"
)

var months12 = decimal.NewFromInt(12)

// PeriodFees is the fee breakdown of one period, by category. All categories
// are summed into one deduction and applied proportionally across the ledger
// in a single pass, so rounding does not compound per category.
type PeriodFees struct {
	FundCost           decimal.Decimal
	ServiceFee         decimal.Decimal
	BalanceFee         decimal.Decimal
	FlatFee            decimal.Decimal
	AcquisitionCost    decimal.Decimal
	AdministrationCost decimal.Decimal
}

// Total sums every category of the period.
func (pf PeriodFees) Total() decimal.Decimal {
	return pf.FundCost.
		Add(pf.ServiceFee).
		Add(pf.BalanceFee).
		Add(pf.FlatFee).
		Add(pf.AcquisitionCost).
		Add(pf.AdministrationCost)
}

// FeeEngine computes the per-period fee deductions. It owns the amortization
// state of the insurance acquisition-cost schedules, so it is constructed
// fresh for each simulation run.
type FeeEngine struct {
	expenseRatio decimal.Decimal
	serviceRate  decimal.Decimal

	// Brokerage only.
	entryLoadRate decimal.Decimal
	exitLoadRate  decimal.Decimal
	flatAnnualFee decimal.Decimal

	// Insurance only.
	insurance      bool
	balanceRate    decimal.Decimal
	adminRate      decimal.Decimal
	monthlyAcqCost decimal.Decimal
	acqMonthsLeft  int

	deathCostPerMonth decimal.Decimal
	deathMonthsLeft   int
}

// NewBrokerageFeeEngine builds the fee engine for the fund-account variant.
func NewBrokerageFeeEngine(cfg *domain.BrokerageConfig) *FeeEngine {
	return &FeeEngine{
		expenseRatio:  cfg.ExpenseRatio,
		serviceRate:   cfg.ServiceFeeRate,
		entryLoadRate: cfg.EntryLoadRate,
		exitLoadRate:  cfg.ExitLoadRate,
		flatAnnualFee: cfg.FlatAnnualFee,
	}
}

// NewInsuranceFeeEngine builds the fee engine for the insurance variant.
// The total acquisition cost is the one-off fraction of the initial
// investment plus the monthly fraction of all scheduled contributions,
// spread linearly over the amortization window.
func NewInsuranceFeeEngine(cfg *domain.InsuranceConfig) *FeeEngine {
	fe := &FeeEngine{
		insurance:    true,
		expenseRatio: cfg.ExpenseRatio,
		serviceRate:  cfg.ServiceFeeRate,
		balanceRate:  cfg.BalanceFeeRate,
		adminRate:    cfg.AdministrationCostRate,
	}
	totalAcq := cfg.InitialInvestment.Mul(cfg.OneOffAcquisitionCostRate).
		Add(cfg.MonthlyContribution.
			Mul(decimal.NewFromInt(int64(cfg.ContributionMonths()))).
			Mul(cfg.MonthlyAcquisitionCostRate))
	if cfg.AcquisitionAmortizationMonths > 0 && totalAcq.IsPositive() {
		fe.monthlyAcqCost = totalAcq.Div(decimal.NewFromInt(int64(cfg.AcquisitionAmortizationMonths)))
		fe.acqMonthsLeft = cfg.AcquisitionAmortizationMonths
	}
	return fe
}

// EntryLoad returns the load withheld from a gross deposit.
func (fe *FeeEngine) EntryLoad(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(fe.entryLoadRate)
}

// ExitLoad returns the load withheld from a gross sale amount.
func (fe *FeeEngine) ExitLoad(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(fe.exitLoadRate)
}

// OpenDeathSchedule starts the secondary acquisition-cost charge triggered
// by a mortality event: totalCost spread over the given number of months,
// added to the fixed monthly deduction while open.
func (fe *FeeEngine) OpenDeathSchedule(totalCost decimal.Decimal, months int) {
	if months <= 0 || !totalCost.IsPositive() {
		return
	}
	fe.deathCostPerMonth = totalCost.Div(decimal.NewFromInt(int64(months)))
	fe.deathMonthsLeft = months
}

// PeriodFees computes the current period's fee breakdown against the pre-fee
// portfolio value. Value-proportional categories are zero when the portfolio
// is worthless. Fixed charges (the flat annual fee and the amortization
// schedules) are billed regardless; whether a worthless ledger can absorb
// them is the caller's concern.
func (fe *FeeEngine) PeriodFees(value, currentContribution decimal.Decimal, isJanuary, inContributionPhase bool) PeriodFees {
	var pf PeriodFees
	hasValue := value.IsPositive()
	if hasValue {
		pf.FundCost = value.Mul(fe.expenseRatio).Div(months12)
		pf.ServiceFee = value.Mul(fe.serviceRate).Div(months12)
	}
	if !fe.insurance {
		if isJanuary {
			pf.FlatFee = fe.flatAnnualFee
		}
		return pf
	}
	if hasValue {
		pf.BalanceFee = value.Mul(fe.balanceRate).Div(months12)
	}
	if fe.acqMonthsLeft > 0 {
		pf.AcquisitionCost = fe.monthlyAcqCost
		fe.acqMonthsLeft--
	}
	if fe.deathMonthsLeft > 0 {
		pf.AcquisitionCost = pf.AcquisitionCost.Add(fe.deathCostPerMonth)
		fe.deathMonthsLeft--
	}
	if inContributionPhase {
		pf.AdministrationCost = currentContribution.Mul(fe.adminRate)
	}
	return pf
}
