package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// AccountMode distinguishes the two product variants the simulator models.
type AccountMode string

const (
	ModeBrokerage AccountMode = "brokerage"
	ModeInsurance AccountMode = "insurance"
)

// AccrualYieldBasis selects how the realized yield for the annual accrual
// assessment is measured. The two source conventions differ materially in
// years with rebalancing-driven cost-basis changes, so both are kept as
// named policies rather than reconciled.
type AccrualYieldBasis string

const (
	// YieldBasisPriorYearValue measures realized yield against the value
	// snapshotted at the last year boundary. Default.
	YieldBasisPriorYearValue AccrualYieldBasis = "prior-year-value"
	// YieldBasisCostBasis measures realized yield against the lot's
	// remaining cost basis.
	YieldBasisCostBasis AccrualYieldBasis = "cost-basis"
)

// WithdrawalMode controls whether the scheduled annual withdrawal amount is
// taken in one January sale or spread across twelve monthly sales.
type WithdrawalMode string

const (
	WithdrawYearly  WithdrawalMode = "yearly"
	WithdrawMonthly WithdrawalMode = "monthly"
)

// CommonConfig carries the scenario parameters shared by both account
// variants. Immutable once constructed; the simulator derives per-run working
// state from it and never writes back.
type CommonConfig struct {
	Label     string    `yaml:"label"`
	EntryAge  int       `yaml:"entry_age"`
	StartDate time.Time `yaml:"start_date"`

	InitialInvestment   decimal.Decimal `yaml:"initial_investment"`
	MonthlyContribution decimal.Decimal `yaml:"monthly_contribution"`
	HorizonYears        int             `yaml:"horizon_years"`
	ContributionYears   int             `yaml:"contribution_years"`

	// Contribution escalation: every EscalationIntervalMonths the recurring
	// contribution grows by EscalationRate.
	EscalationRate           decimal.Decimal `yaml:"escalation_rate"`
	EscalationIntervalMonths int             `yaml:"escalation_interval_months"`

	// One-off extra payment in a given plan year, plus an optional recurring
	// extra payment every RecurringExtraIntervalYears.
	OneOffExtraYear             int             `yaml:"one_off_extra_year"`
	OneOffExtraAmount           decimal.Decimal `yaml:"one_off_extra_amount"`
	RecurringExtraAmount        decimal.Decimal `yaml:"recurring_extra_amount"`
	RecurringExtraIntervalYears int             `yaml:"recurring_extra_interval_years"`

	// Withdrawal phase. WithdrawalSchedule maps a policy-relative year
	// (1 = first withdrawal year) to an annual amount; the entry with the
	// largest year not exceeding the current one wins. When empty,
	// AnnualWithdrawal applies flat.
	AnnualWithdrawal   decimal.Decimal         `yaml:"annual_withdrawal"`
	WithdrawalSchedule map[int]decimal.Decimal `yaml:"withdrawal_schedule"`
	WithdrawalMode     WithdrawalMode          `yaml:"withdrawal_mode"`

	// Expected annual nominal return used when no explicit return path is
	// supplied.
	AnnualReturn decimal.Decimal `yaml:"annual_return"`

	// Ongoing value-proportional costs shared by both variants.
	ExpenseRatio   decimal.Decimal `yaml:"expense_ratio"`
	ServiceFeeRate decimal.Decimal `yaml:"service_fee_rate"`

	// Inflation model for real-value deflation.
	InflationRate       decimal.Decimal `yaml:"inflation_rate"`
	InflationVolatility decimal.Decimal `yaml:"inflation_volatility"`
}

// HorizonMonths is the total number of simulated periods.
func (c CommonConfig) HorizonMonths() int { return c.HorizonYears * 12 }

// ContributionMonths is the length of the contribution phase in periods.
func (c CommonConfig) ContributionMonths() int { return c.ContributionYears * 12 }

// MonthlyReturn converts the configured annual return to its monthly
// equivalent, (1+r)^(1/12)-1.
func (c CommonConfig) MonthlyReturn() decimal.Decimal {
	return MonthlyFromAnnual(c.AnnualReturn)
}

// MonthlyFromAnnual converts an annual fractional rate to the equivalent
// compounding monthly rate.
func MonthlyFromAnnual(annual decimal.Decimal) decimal.Decimal {
	f := annual.InexactFloat64()
	return decimal.NewFromFloat(math.Pow(1+f, 1.0/12.0) - 1)
}

// BrokerageConfig is the parameter set for the fund-account ("Depot")
// variant: loads and flat fees apply, gains are subject to capital-gains tax
// with partial exemption, the annual accrual tax is assessed, and the
// tax-free allowance bucket offsets taxable amounts.
type BrokerageConfig struct {
	CommonConfig `yaml:",inline"`

	EntryLoadRate decimal.Decimal `yaml:"entry_load_rate"`
	ExitLoadRate  decimal.Decimal `yaml:"exit_load_rate"`
	FlatAnnualFee decimal.Decimal `yaml:"flat_annual_fee"`

	CapitalGainsTaxRate     decimal.Decimal `yaml:"capital_gains_tax_rate"`
	SolidaritySurchargeRate decimal.Decimal `yaml:"solidarity_surcharge_rate"`
	ChurchTaxRate           decimal.Decimal `yaml:"church_tax_rate"`
	// PersonalTaxRateCap, when positive, caps the effective sale tax rate at
	// min(full rate, personal rate).
	PersonalTaxRateCap decimal.Decimal `yaml:"personal_tax_rate_cap"`

	PartialExemptionRate    decimal.Decimal `yaml:"partial_exemption_rate"`
	AnnualAllowance         decimal.Decimal `yaml:"annual_allowance"`
	AllowanceIndexationRate decimal.Decimal `yaml:"allowance_indexation_rate"`
	// BaseRate is the notional minimum yield rate of the annual accrual tax.
	BaseRate decimal.Decimal `yaml:"base_rate"`

	// RebalancingRate, when positive, sells that fraction of the portfolio
	// every December and reinvests the net proceeds.
	RebalancingRate decimal.Decimal `yaml:"rebalancing_rate"`

	AccrualYieldBasis AccrualYieldBasis `yaml:"accrual_yield_basis"`
	// ExitLoadReducesGain controls whether the exit load withheld on
	// withdrawal and final-liquidation sales also reduces the taxable gain.
	ExitLoadReducesGain bool `yaml:"exit_load_reduces_gain"`
}

// Common returns the shared parameter block.
func (c *BrokerageConfig) Common() CommonConfig { return c.CommonConfig }

// Mode identifies the variant.
func (c *BrokerageConfig) Mode() AccountMode { return ModeBrokerage }

// FullTaxRate is the capital-gains rate grossed up by the solidarity
// surcharge and church tax.
func (c *BrokerageConfig) FullTaxRate() decimal.Decimal {
	return c.CapitalGainsTaxRate.Mul(
		decimal.NewFromInt(1).Add(c.SolidaritySurchargeRate).Add(c.ChurchTaxRate))
}

// InsuranceConfig is the parameter set for the insurance-wrapper
// ("Versicherung") variant: acquisition and administration costs apply
// instead of loads, no accrual tax or allowance, and sales are taxed under
// the half-income rule against the personal rate.
type InsuranceConfig struct {
	CommonConfig `yaml:",inline"`

	PersonalTaxRate decimal.Decimal `yaml:"personal_tax_rate"`

	// Acquisition costs: a one-off fraction of the initial investment plus a
	// fraction of all scheduled contributions, amortized linearly over
	// AcquisitionAmortizationMonths.
	OneOffAcquisitionCostRate    decimal.Decimal `yaml:"one_off_acquisition_cost_rate"`
	MonthlyAcquisitionCostRate   decimal.Decimal `yaml:"monthly_acquisition_cost_rate"`
	AcquisitionAmortizationMonths int            `yaml:"acquisition_amortization_months"`

	// AdministrationCostRate applies monthly to the current contribution
	// while the contribution phase is open; BalanceFeeRate applies annually
	// to the account value, deducted monthly.
	AdministrationCostRate decimal.Decimal `yaml:"administration_cost_rate"`
	BalanceFeeRate         decimal.Decimal `yaml:"balance_fee_rate"`

	// Mortality event: in plan year DeathYear (1-based, 0 = disabled) the
	// account is liquidated tax-free, a payout load withheld, and the net
	// re-invested. DeathAcquisitionCost opens a secondary acquisition-cost
	// schedule over DeathAcquisitionMonths.
	DeathYear              int             `yaml:"death_year"`
	DeathPayoutLoadRate    decimal.Decimal `yaml:"death_payout_load_rate"`
	DeathAcquisitionCost   decimal.Decimal `yaml:"death_acquisition_cost"`
	DeathAcquisitionMonths int             `yaml:"death_acquisition_months"`
}

// Common returns the shared parameter block.
func (c *InsuranceConfig) Common() CommonConfig { return c.CommonConfig }

// Mode identifies the variant.
func (c *InsuranceConfig) Mode() AccountMode { return ModeInsurance }

// AccountConfig is the closed set of scenario configurations; exactly
// BrokerageConfig and InsuranceConfig implement it.
type AccountConfig interface {
	Common() CommonConfig
	Mode() AccountMode
}
