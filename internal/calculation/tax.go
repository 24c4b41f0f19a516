package calculation

import (
	"github.com/bauerfinanz/depotsim/internal/domain"
	"github.com/shopspring/decimal"
)

// AllowanceBucket is the per-year tax-free allowance ("Freistellungsauftrag").
// Reset every January, consumed by taxable events during the year, never
// negative, never replenished mid-year.
type AllowanceBucket struct {
	remaining decimal.Decimal
}

// Reset sets the bucket to the year's allowance amount.
func (b *AllowanceBucket) Reset(amount decimal.Decimal) {
	b.remaining = amount
}

// Remaining reports the unconsumed allowance.
func (b *AllowanceBucket) Remaining() decimal.Decimal {
	return b.remaining
}

// Consume offsets up to taxable from the bucket and returns the amount used.
// A non-positive taxable amount consumes nothing.
func (b *AllowanceBucket) Consume(taxable decimal.Decimal) decimal.Decimal {
	if taxable.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	used := decimal.Min(b.remaining, taxable)
	b.remaining = b.remaining.Sub(used)
	return used
}

// TaxEngine computes the capital-gains taxation for the brokerage variant:
// the annual accrual tax on a notional minimum yield ("Vorabpauschale") and
// the realized-gain tax on FIFO sales, both net of the partial exemption and
// the allowance bucket.
type TaxEngine struct {
	fullRate        decimal.Decimal
	personalRateCap decimal.Decimal
	exemption       decimal.Decimal
	baseRate        decimal.Decimal
	yieldBasis      domain.AccrualYieldBasis
}

// NewTaxEngine derives the engine from a brokerage configuration.
func NewTaxEngine(cfg *domain.BrokerageConfig) *TaxEngine {
	basis := cfg.AccrualYieldBasis
	if basis == "" {
		basis = domain.YieldBasisPriorYearValue
	}
	return &TaxEngine{
		fullRate:        cfg.FullTaxRate(),
		personalRateCap: cfg.PersonalTaxRateCap,
		exemption:       cfg.PartialExemptionRate,
		baseRate:        cfg.BaseRate,
		yieldBasis:      basis,
	}
}

// EffectiveRate is the full grossed-up rate, capped at the personal rate
// when a cap is configured.
func (te *TaxEngine) EffectiveRate() decimal.Decimal {
	if te.personalRateCap.IsPositive() && te.personalRateCap.LessThan(te.fullRate) {
		return te.personalRateCap
	}
	return te.fullRate
}

// AccrualAssessment is the outcome of one lot's annual accrual evaluation.
type AccrualAssessment struct {
	TaxableYield  decimal.Decimal
	AllowanceUsed decimal.Decimal
	TaxOwed       decimal.Decimal
}

// AssessAccrual runs the January accrual evaluation against a single lot.
// The notional yield is the prior-year snapshot times the base rate, capped
// at the realized yield; a negative realized yield never produces a rebate.
// Side effects on the lot: the tax is deducted from its value and the amount
// that actually bore tax is credited against future sale taxation.
func (te *TaxEngine) AssessAccrual(lot *domain.Lot, allowance *AllowanceBucket) AccrualAssessment {
	notional := lot.StartOfPriorYearValue.Mul(te.baseRate)
	var realized decimal.Decimal
	switch te.yieldBasis {
	case domain.YieldBasisCostBasis:
		realized = lot.Value.Sub(lot.AmountInvested)
	default:
		realized = lot.Value.Sub(lot.StartOfPriorYearValue)
	}
	taxable := decimal.Min(notional, realized)

	partiallyExempt := taxable.Mul(decimal.NewFromInt(1).Sub(te.exemption))
	used := allowance.Consume(partiallyExempt)
	remainder := decimal.Max(decimal.Zero, partiallyExempt.Sub(used))
	tax := remainder.Mul(te.EffectiveRate())

	if tax.IsPositive() {
		lot.Value = lot.Value.Sub(tax)
		lot.AlreadyTaxedAccrual = lot.AlreadyTaxedAccrual.Add(remainder)
	}
	return AccrualAssessment{
		TaxableYield:  taxable,
		AllowanceUsed: used,
		TaxOwed:       decimal.Max(decimal.Zero, tax),
	}
}

// SaleTax computes the realized-gain tax for one consumed tranche of a FIFO
// sale. The gain net of the partial exemption is first reduced by the
// tranche's consumed accrual credit, then by the allowance; the remainder is
// taxed at the effective rate. Negative-gain tranches owe nothing.
// exitLoad reduces the gain basis only when the corresponding policy option
// is set; pass decimal.Zero otherwise.
func (te *TaxEngine) SaleTax(t domain.TrancheSale, exitLoad decimal.Decimal, allowance *AllowanceBucket) decimal.Decimal {
	gain := t.Gain().Sub(exitLoad)
	taxable := gain.Mul(decimal.NewFromInt(1).Sub(te.exemption))
	taxable = decimal.Max(decimal.Zero, taxable.Sub(t.AccrualCreditConsumed))
	used := allowance.Consume(taxable)
	return decimal.Max(decimal.Zero, taxable.Sub(used).Mul(te.EffectiveRate()))
}

// AggregateGainTax taxes an aggregate gain (final liquidation path): partial
// exemption, accrual credit, allowance, effective rate, floored at zero.
func (te *TaxEngine) AggregateGainTax(gain, accrualCredit decimal.Decimal, allowance *AllowanceBucket) decimal.Decimal {
	taxable := decimal.Max(decimal.Zero, gain).Mul(decimal.NewFromInt(1).Sub(te.exemption))
	taxable = decimal.Max(decimal.Zero, taxable.Sub(accrualCredit))
	used := allowance.Consume(taxable)
	return decimal.Max(decimal.Zero, taxable.Sub(used).Mul(te.EffectiveRate()))
}

// InsuranceTaxEngine taxes insurance-wrapper sales under the half-income
// rule: 50% of the gain is taxable at the personal rate when the holder is
// at least 62 and the tranche has been held at least 12 years, 85%
// otherwise. No partial exemption, allowance, or accrual tax applies.
type InsuranceTaxEngine struct {
	personalRate decimal.Decimal
}

// NewInsuranceTaxEngine derives the engine from an insurance configuration.
func NewInsuranceTaxEngine(cfg *domain.InsuranceConfig) *InsuranceTaxEngine {
	return &InsuranceTaxEngine{personalRate: cfg.PersonalTaxRate}
}

var (
	halfIncomeShare = decimal.NewFromFloat(0.5)
	fullIncomeShare = decimal.NewFromFloat(0.85)

	qualifyingAge      = 62.0
	qualifyingDuration = 12.0
)

// SaleTax computes the tax on one tranche's gain given the holder's age and
// the tranche's holding duration, both in fractional years. A negative gain
// owes nothing.
func (ie *InsuranceTaxEngine) SaleTax(gain decimal.Decimal, holderAgeYears, holdingYears float64) decimal.Decimal {
	if gain.Sign() <= 0 {
		return decimal.Zero
	}
	share := fullIncomeShare
	if holderAgeYears >= qualifyingAge && holdingYears >= qualifyingDuration {
		share = halfIncomeShare
	}
	return gain.Mul(share).Mul(ie.personalRate)
}
