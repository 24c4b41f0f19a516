package calculation

import (
	"math"
	"math/rand"
	"time"

	"github.com/bauerfinanz/depotsim/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// defaultStartDate anchors plan-relative months to calendar dates when a
// scenario does not set one. January start keeps the allowance reset, the
// accrual assessment and the year-end snapshot aligned with plan years.
var defaultStartDate = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

const daysPerYear = 365.25

// PeriodSimulator drives one simulation run: it owns the lot ledger and the
// per-run accumulators and walks the configured horizon month by month in
// the fixed order deposit, fees, growth, accrual tax, rebalancing,
// withdrawal, logging. Tax and fee correctness depends on that order.
//
// A simulator instance is single-use; construct a fresh one per run.
type PeriodSimulator struct {
	common    domain.CommonConfig
	brokerage *domain.BrokerageConfig
	insurance *domain.InsuranceConfig

	returns ReturnSource
	rng     *rand.Rand
	logger  Logger

	ledger    domain.LotLedger
	taxes     *TaxEngine
	insTaxes  *InsuranceTaxEngine
	fees      *FeeEngine
	allowance AllowanceBucket

	startDate        time.Time
	contribution     decimal.Decimal
	deflator         decimal.Decimal
	monthlyInflation []decimal.Decimal
	deathFired       bool

	totals       domain.RunTotals
	periods      []domain.PeriodLogRecord
	rebalancings []domain.RebalancingEvent
	cashFlows    []domain.CashFlow
}

// NewPeriodSimulator wires a simulator for the given scenario. The return
// source supplies the per-period growth; rng feeds the inflation draws and
// may be nil when inflation volatility is zero (a time-seeded generator is
// created otherwise).
func NewPeriodSimulator(cfg domain.AccountConfig, returns ReturnSource, rng *rand.Rand, logger Logger) *PeriodSimulator {
	if logger == nil {
		logger = NopLogger{}
	}
	common := cfg.Common()
	start := common.StartDate
	if start.IsZero() {
		start = defaultStartDate
	}
	ps := &PeriodSimulator{
		common:       common,
		returns:      returns,
		rng:          rng,
		logger:       logger,
		startDate:    start,
		contribution: common.MonthlyContribution,
		deflator:     decimal.NewFromInt(1),
	}
	switch c := cfg.(type) {
	case *domain.BrokerageConfig:
		ps.brokerage = c
		ps.taxes = NewTaxEngine(c)
		ps.fees = NewBrokerageFeeEngine(c)
	case *domain.InsuranceConfig:
		ps.insurance = c
		ps.insTaxes = NewInsuranceTaxEngine(c)
		ps.fees = NewInsuranceFeeEngine(c)
	}
	return ps
}

// Run executes the full horizon and returns the per-run result. The run is
// deterministic given its configuration, return source and rng.
func (ps *PeriodSimulator) Run() *domain.SimulationResult {
	ps.drawInflation()
	ps.openingDeposit()

	horizon := ps.common.HorizonMonths()
	for month := 0; month < horizon; month++ {
		ps.simulateMonth(month)
	}
	return ps.finalize()
}

// drawInflation pre-draws the monthly inflation rates for the whole horizon
// from a normal distribution around rate/12, matching the run's rng.
func (ps *PeriodSimulator) drawInflation() {
	horizon := ps.common.HorizonMonths()
	ps.monthlyInflation = make([]decimal.Decimal, horizon)
	mean := ps.common.InflationRate.InexactFloat64() / 12
	vol := ps.common.InflationVolatility.InexactFloat64() / math.Sqrt(12)
	if vol > 0 && ps.rng == nil {
		ps.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	for i := range ps.monthlyInflation {
		draw := mean
		if vol > 0 {
			draw = mean + ps.rng.NormFloat64()*vol
		}
		ps.monthlyInflation[i] = decimal.NewFromFloat(draw)
	}
}

func (ps *PeriodSimulator) openingDeposit() {
	initial := ps.common.InitialInvestment
	if !initial.IsPositive() {
		return
	}
	ps.deposit(ps.startDate, initial)
}

func (ps *PeriodSimulator) date(month int) time.Time {
	return ps.startDate.AddDate(0, month, 0)
}

func (ps *PeriodSimulator) simulateMonth(month int) {
	date := ps.date(month)
	isJanuary := date.Month() == time.January
	isDecember := date.Month() == time.December
	inContribution := month < ps.common.ContributionMonths()

	if isJanuary && ps.brokerage != nil {
		ps.allowance.Reset(ps.allowanceForYear(date.Year()))
	}
	if ps.insurance != nil && ps.insurance.DeathYear > 0 &&
		month/12 == ps.insurance.DeathYear && !ps.deathFired {
		ps.handleDeath(date)
	}

	// 1. Contribution escalation.
	if interval := ps.common.EscalationIntervalMonths; interval > 0 && month > 0 && month%interval == 0 {
		ps.contribution = ps.contribution.Mul(decimal.NewFromInt(1).Add(ps.common.EscalationRate))
	}

	// 2. Extra payments, 3. recurring contribution. Each becomes a lot net
	// of the entry load.
	if ps.common.OneOffExtraAmount.IsPositive() && month == ps.common.OneOffExtraYear*12 && month > 0 {
		ps.deposit(date, ps.common.OneOffExtraAmount)
	}
	if iv := ps.common.RecurringExtraIntervalYears; iv > 0 && month > 0 && month%(iv*12) == 0 {
		ps.deposit(date, ps.common.RecurringExtraAmount)
	}
	if inContribution {
		ps.deposit(date, ps.contribution)
	}

	// 4. Periodic fees against the pre-growth value, one deduction pass.
	ps.deductFees(date, isJanuary, inContribution)

	// 5. Growth.
	ps.ledger.ApplyUniformGrowth(ps.returns.MonthlyReturn(month))

	// 6. Inflation deflator.
	ps.deflator = ps.deflator.Mul(decimal.NewFromInt(1).Add(ps.monthlyInflation[month]))

	// 7. Annual accrual tax.
	if isJanuary && ps.brokerage != nil {
		ps.assessAccrualTax(date)
	}

	// 8. Rebalancing.
	if isDecember && ps.brokerage != nil && ps.brokerage.RebalancingRate.IsPositive() {
		ps.rebalance(date)
	}

	// 9. Withdrawal.
	if !inContribution {
		ps.withdraw(date, isJanuary)
	}

	ps.ledger.Prune()

	// 10. Period log.
	value := ps.ledger.TotalValue()
	ps.periods = append(ps.periods, domain.PeriodLogRecord{
		Date:      date,
		Value:     value,
		RealValue: value.Div(ps.deflator),
		Totals:    ps.totals,
	})

	// 11. Year-end snapshot for next January's accrual assessment.
	if isDecember {
		ps.ledger.SnapshotYearStart()
	}
}

// allowanceForYear indexes the annual allowance by the configured statute
// adjustment rate, compounded over the years elapsed since the start.
func (ps *PeriodSimulator) allowanceForYear(year int) decimal.Decimal {
	elapsed := year - ps.startDate.Year()
	if elapsed <= 0 {
		return ps.brokerage.AnnualAllowance
	}
	idx := ps.brokerage.AllowanceIndexationRate.InexactFloat64()
	factor := math.Pow(1+idx, float64(elapsed))
	return ps.brokerage.AnnualAllowance.Mul(decimal.NewFromFloat(factor))
}

func (ps *PeriodSimulator) deposit(date time.Time, gross decimal.Decimal) {
	if !gross.IsPositive() {
		return
	}
	load := ps.fees.EntryLoad(gross)
	net := gross.Sub(load)
	ps.totals.EntryLoad.Add(load, ps.deflator)
	ps.addCashFlow(date, gross.Neg())
	if net.IsPositive() {
		ps.ledger.AddLot(date, net)
	}
}

// deductFees computes the period's fee breakdown and applies the sum in one
// proportional pass. Charges owed against a worthless ledger are recorded in
// the counters and the cash-flow journal but waived from the ledger itself.
func (ps *PeriodSimulator) deductFees(date time.Time, isJanuary, inContribution bool) {
	value := ps.ledger.TotalValue()
	pf := ps.fees.PeriodFees(value, ps.contribution, isJanuary, inContribution)

	ps.totals.FundCosts.Add(pf.FundCost, ps.deflator)
	ps.totals.ServiceFees.Add(pf.ServiceFee, ps.deflator)
	ps.totals.BalanceFees.Add(pf.BalanceFee, ps.deflator)
	ps.totals.FlatFees.Add(pf.FlatFee, ps.deflator)
	ps.totals.AcquisitionCosts.Add(pf.AcquisitionCost, ps.deflator)
	ps.totals.AdministrationCosts.Add(pf.AdministrationCost, ps.deflator)

	// Flat and policy charges are money the holder is billed for, unlike the
	// fund-internal expense categories, so they enter the cash-flow journal.
	if pf.FlatFee.IsPositive() {
		ps.addCashFlow(date, pf.FlatFee.Neg())
	}
	if pf.AcquisitionCost.IsPositive() {
		ps.addCashFlow(date, pf.AcquisitionCost.Neg())
	}
	if pf.AdministrationCost.IsPositive() {
		ps.addCashFlow(date, pf.AdministrationCost.Neg())
	}

	ps.ledger.ApplyProportionalDeduction(pf.Total())
}

func (ps *PeriodSimulator) assessAccrualTax(date time.Time) {
	lots := ps.ledger.Lots()
	taxed := decimal.Zero
	for i := range lots {
		assessment := ps.taxes.AssessAccrual(&lots[i], &ps.allowance)
		taxed = taxed.Add(assessment.TaxOwed)
	}
	if taxed.IsPositive() {
		ps.totals.TotalTax.Add(taxed, ps.deflator)
		ps.totals.AccrualTax.Add(taxed, ps.deflator)
		ps.addCashFlow(date, taxed.Neg())
	}
}

// rebalance sells the configured fraction of the portfolio FIFO, taxes each
// consumed tranche, and reinvests the net proceeds as one fresh lot dated at
// the rebalancing date. The sale tax is always assessed on the gain before
// the exit load; the exit-load policy option applies to payouts only.
func (ps *PeriodSimulator) rebalance(date time.Time) {
	target := ps.ledger.TotalValue().Mul(ps.brokerage.RebalancingRate)
	if !target.IsPositive() {
		return
	}
	sale := ps.ledger.SellFIFO(target)
	tax := decimal.Zero
	load := decimal.Zero
	for _, tranche := range sale.Tranches {
		tax = tax.Add(ps.taxes.SaleTax(tranche, decimal.Zero, &ps.allowance))
		load = load.Add(ps.fees.ExitLoad(tranche.SoldValue))
	}
	net := sale.SoldValue.Sub(tax).Sub(load)

	ps.totals.TotalTax.Add(tax, ps.deflator)
	ps.totals.ExitLoad.Add(load, ps.deflator)
	if net.GreaterThan(domain.PruneEpsilon) {
		ps.ledger.AddLot(date, net)
	}
	ps.rebalancings = append(ps.rebalancings, domain.RebalancingEvent{
		Date:          date,
		GrossSale:     sale.SoldValue,
		TaxPaid:       tax,
		NetReinvested: net,
	})
}

// scheduledWithdrawal resolves the annual withdrawal amount for a date in
// the withdrawal phase: the schedule entry with the largest policy-relative
// year not exceeding the current one wins, else the flat annual amount.
func (ps *PeriodSimulator) scheduledWithdrawal(date time.Time) decimal.Decimal {
	withdrawalYear := date.Year() - ps.startDate.Year() - ps.common.ContributionYears + 1
	if len(ps.common.WithdrawalSchedule) > 0 {
		best := 0
		amount := decimal.Zero
		for year, a := range ps.common.WithdrawalSchedule {
			if withdrawalYear >= year && year > best {
				best = year
				amount = a
			}
		}
		return amount
	}
	return ps.common.AnnualWithdrawal
}

func (ps *PeriodSimulator) withdraw(date time.Time, isJanuary bool) {
	annual := ps.scheduledWithdrawal(date)
	if !annual.IsPositive() {
		return
	}
	amount := decimal.Zero
	switch ps.common.WithdrawalMode {
	case domain.WithdrawMonthly:
		amount = annual.Div(months12)
	default:
		if isJanuary {
			amount = annual
		}
	}
	if !amount.IsPositive() {
		return
	}
	if ps.ledger.TotalValue().LessThan(amount) {
		ps.logger.Debugf("withdrawal of %s skipped: portfolio below requested amount", amount)
		return
	}

	sale := ps.ledger.SellFIFO(amount)
	tax := decimal.Zero
	load := decimal.Zero
	for _, tranche := range sale.Tranches {
		trancheLoad := ps.fees.ExitLoad(tranche.SoldValue)
		load = load.Add(trancheLoad)
		if ps.brokerage != nil {
			loadForTax := decimal.Zero
			if ps.brokerage.ExitLoadReducesGain {
				loadForTax = trancheLoad
			}
			tax = tax.Add(ps.taxes.SaleTax(tranche, loadForTax, &ps.allowance))
		} else {
			age := float64(ps.insurance.EntryAge) + yearsBetween(ps.startDate, date)
			holding := yearsBetween(tranche.AcquisitionDate, date)
			tax = tax.Add(ps.insTaxes.SaleTax(tranche.Gain(), age, holding))
		}
	}
	net := sale.SoldValue.Sub(tax).Sub(load)

	ps.totals.TotalTax.Add(tax, ps.deflator)
	ps.totals.WithdrawalTax.Add(tax, ps.deflator)
	ps.totals.ExitLoad.Add(load, ps.deflator)
	ps.totals.NetWithdrawals.Add(net, ps.deflator)
	ps.addCashFlow(date, net)
}

// handleDeath liquidates the whole account tax-free, withholds the payout
// load, and re-invests the net as one fresh lot. A configured secondary
// acquisition-cost schedule opens at this point.
func (ps *PeriodSimulator) handleDeath(date time.Time) {
	ps.deathFired = true
	gross := ps.ledger.TotalValue()
	load := gross.Mul(ps.insurance.DeathPayoutLoadRate)
	net := gross.Sub(load)
	ps.logger.Infof("mortality event in plan year %d: gross %s, reinvested %s",
		ps.insurance.DeathYear, gross.StringFixed(2), net.StringFixed(2))

	ps.ledger.Clear()
	ps.totals.ExitLoad.Add(load, ps.deflator)
	if net.IsPositive() {
		ps.ledger.AddLot(date, net)
	}
	ps.fees.OpenDeathSchedule(ps.insurance.DeathAcquisitionCost, ps.insurance.DeathAcquisitionMonths)
}

// finalize liquidates the remaining ledger in one final taxed sale against
// the aggregate gain, emits the synthetic final log record and the closing
// cash flow. Runs where a mortality liquidation fired owe no final tax.
func (ps *PeriodSimulator) finalize() *domain.SimulationResult {
	endDate := ps.date(ps.common.HorizonMonths())
	restValue := ps.ledger.TotalValue()
	finalReal := restValue.Div(ps.deflator)

	if restValue.GreaterThan(domain.PruneEpsilon) {
		invested := ps.ledger.TotalInvested()
		gain := decimal.Max(decimal.Zero, restValue.Sub(invested))

		load := decimal.Zero
		if ps.brokerage != nil {
			load = ps.fees.ExitLoad(restValue)
		}
		tax := decimal.Zero
		if !ps.deathFired && gain.IsPositive() {
			if ps.brokerage != nil {
				gainForTax := gain
				if ps.brokerage.ExitLoadReducesGain {
					gainForTax = decimal.Max(decimal.Zero, gain.Sub(load))
				}
				tax = ps.taxes.AggregateGainTax(gainForTax, ps.ledger.TotalAccrualCredit(), &ps.allowance)
			} else {
				age := float64(ps.insurance.EntryAge + ps.common.HorizonYears)
				tax = ps.insTaxes.SaleTax(gain, age, float64(ps.common.HorizonYears))
			}
		}
		net := restValue.Sub(tax).Sub(load)

		ps.totals.ExitLoad.Add(load, ps.deflator)
		ps.totals.TotalTax.Add(tax, ps.deflator)
		if ps.brokerage != nil {
			ps.totals.WithdrawalTax.Add(tax, ps.deflator)
		}
		ps.totals.NetWithdrawals.Add(net, ps.deflator)
		ps.addCashFlow(endDate, net)
		ps.ledger.Clear()
	}

	ps.periods = append(ps.periods, domain.PeriodLogRecord{
		Date:      endDate,
		Value:     restValue,
		RealValue: finalReal,
		Totals:    ps.totals,
	})

	label := ps.common.Label
	mode := domain.ModeBrokerage
	if ps.insurance != nil {
		mode = domain.ModeInsurance
	}
	payout := decimal.Zero
	if n := len(ps.cashFlows); n > 0 && ps.cashFlows[n-1].Date.Equal(endDate) {
		payout = ps.cashFlows[n-1].Amount
	}
	return &domain.SimulationResult{
		RunID:          uuid.New(),
		Label:          label,
		Mode:           mode,
		Periods:        ps.periods,
		Rebalancings:   ps.rebalancings,
		CashFlows:      ps.cashFlows,
		Totals:         ps.totals,
		FinalValue:     restValue,
		FinalRealValue: finalReal,
		FinalPayout:    payout,
	}
}

func (ps *PeriodSimulator) addCashFlow(date time.Time, amount decimal.Decimal) {
	ps.cashFlows = append(ps.cashFlows, domain.CashFlow{
		Date:       date,
		Amount:     amount,
		RealAmount: amount.Div(ps.deflator),
	})
}

func yearsBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24 / daysPerYear
}
