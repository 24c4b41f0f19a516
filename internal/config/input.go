// Package config parses and validates scenario files. A scenario file
// describes exactly one account, either a brokerage depot or a unit-linked
// insurance wrapper, and resolves to the matching typed configuration at
// load time so mode-specific fields cannot leak across variants.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/bauerfinanz/depotsim/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the scenario file leaves a field unset.
var (
	DefaultStartDate               = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	DefaultEscalationInterval      = 12
	DefaultAllowanceIndexation     = decimal.NewFromFloat(0.02)
	DefaultCapitalGainsTaxRate     = decimal.NewFromFloat(0.25)
	DefaultSolidaritySurchargeRate = decimal.NewFromFloat(0.055)
	DefaultPartialExemptionRate    = decimal.NewFromFloat(0.30)
	DefaultAnnualAllowance         = decimal.NewFromInt(1000)
)

// ScenarioFile is the on-disk YAML schema. Exactly one of the Brokerage or
// Insurance sections must be present, matching AccountType.
type ScenarioFile struct {
	AccountType string                  `yaml:"account_type"`
	Common      domain.CommonConfig     `yaml:"common"`
	Brokerage   *domain.BrokerageConfig `yaml:"brokerage,omitempty"`
	Insurance   *domain.InsuranceConfig `yaml:"insurance,omitempty"`
}

// InputParser handles parsing of scenario files
type InputParser struct{}

// NewInputParser creates a new input parser
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile loads a scenario from a YAML file and resolves it to the
// typed account configuration.
func (ip *InputParser) LoadFromFile(filename string) (domain.AccountConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return ip.Parse(data)
}

// Parse resolves raw YAML into a validated account configuration.
func (ip *InputParser) Parse(data []byte) (domain.AccountConfig, error) {
	var file ScenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ip.applyCommonDefaults(&file.Common)

	if err := ip.validateCommon(&file.Common); err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}

	switch domain.AccountMode(file.AccountType) {
	case domain.ModeBrokerage:
		if file.Brokerage == nil {
			return nil, fmt.Errorf("account_type is %q but no brokerage section is present", file.AccountType)
		}
		if file.Insurance != nil {
			return nil, fmt.Errorf("account_type is %q but an insurance section is present", file.AccountType)
		}
		cfg := *file.Brokerage
		cfg.CommonConfig = file.Common
		if cfg.Label == "" {
			cfg.Label = string(domain.ModeBrokerage)
		}
		ip.applyBrokerageDefaults(&cfg)
		if err := ip.validateBrokerage(&cfg); err != nil {
			return nil, fmt.Errorf("brokerage validation failed: %w", err)
		}
		return &cfg, nil

	case domain.ModeInsurance:
		if file.Insurance == nil {
			return nil, fmt.Errorf("account_type is %q but no insurance section is present", file.AccountType)
		}
		if file.Brokerage != nil {
			return nil, fmt.Errorf("account_type is %q but a brokerage section is present", file.AccountType)
		}
		cfg := *file.Insurance
		cfg.CommonConfig = file.Common
		if cfg.Label == "" {
			cfg.Label = string(domain.ModeInsurance)
		}
		if err := ip.validateInsurance(&cfg); err != nil {
			return nil, fmt.Errorf("insurance validation failed: %w", err)
		}
		return &cfg, nil

	default:
		return nil, fmt.Errorf("unknown account_type %q (expected %q or %q)",
			file.AccountType, domain.ModeBrokerage, domain.ModeInsurance)
	}
}

func (ip *InputParser) applyCommonDefaults(c *domain.CommonConfig) {
	if c.StartDate.IsZero() {
		c.StartDate = DefaultStartDate
	}
	if c.EscalationIntervalMonths == 0 {
		c.EscalationIntervalMonths = DefaultEscalationInterval
	}
	if c.ContributionYears == 0 {
		c.ContributionYears = c.HorizonYears
	}
	if c.WithdrawalMode == "" {
		c.WithdrawalMode = domain.WithdrawYearly
	}
}

func (ip *InputParser) applyBrokerageDefaults(c *domain.BrokerageConfig) {
	if c.CapitalGainsTaxRate.IsZero() {
		c.CapitalGainsTaxRate = DefaultCapitalGainsTaxRate
	}
	if c.SolidaritySurchargeRate.IsZero() {
		c.SolidaritySurchargeRate = DefaultSolidaritySurchargeRate
	}
	if c.PartialExemptionRate.IsZero() {
		c.PartialExemptionRate = DefaultPartialExemptionRate
	}
	if c.AnnualAllowance.IsZero() {
		c.AnnualAllowance = DefaultAnnualAllowance
	}
	if c.AllowanceIndexationRate.IsZero() {
		c.AllowanceIndexationRate = DefaultAllowanceIndexation
	}
	if c.AccrualYieldBasis == "" {
		c.AccrualYieldBasis = domain.YieldBasisPriorYearValue
	}
}

func (ip *InputParser) validateCommon(c *domain.CommonConfig) error {
	if c.HorizonYears <= 0 {
		return fmt.Errorf("horizon_years must be positive, got %d", c.HorizonYears)
	}
	if c.ContributionYears < 0 || c.ContributionYears > c.HorizonYears {
		return fmt.Errorf("contribution_years must lie in [0, %d], got %d", c.HorizonYears, c.ContributionYears)
	}
	if c.InitialInvestment.IsNegative() {
		return fmt.Errorf("initial_investment cannot be negative")
	}
	if c.MonthlyContribution.IsNegative() {
		return fmt.Errorf("monthly_contribution cannot be negative")
	}
	if c.InitialInvestment.IsZero() && c.MonthlyContribution.IsZero() {
		return fmt.Errorf("at least one of initial_investment and monthly_contribution must be positive")
	}
	if c.EscalationIntervalMonths <= 0 {
		return fmt.Errorf("escalation_interval_months must be positive, got %d", c.EscalationIntervalMonths)
	}
	if c.AnnualReturn.LessThanOrEqual(decimal.NewFromInt(-1)) {
		return fmt.Errorf("annual_return must be greater than -100%%")
	}
	if c.ExpenseRatio.IsNegative() || c.ServiceFeeRate.IsNegative() {
		return fmt.Errorf("fee rates cannot be negative")
	}
	if c.AnnualWithdrawal.IsNegative() {
		return fmt.Errorf("annual_withdrawal cannot be negative")
	}
	for year, amount := range c.WithdrawalSchedule {
		if year < 0 || year >= c.HorizonYears {
			return fmt.Errorf("withdrawal_schedule year %d is outside the horizon", year)
		}
		if amount.IsNegative() {
			return fmt.Errorf("withdrawal_schedule amount for year %d cannot be negative", year)
		}
	}
	switch c.WithdrawalMode {
	case domain.WithdrawYearly, domain.WithdrawMonthly:
	default:
		return fmt.Errorf("unknown withdrawal_mode %q", c.WithdrawalMode)
	}
	if c.OneOffExtraAmount.IsPositive() && (c.OneOffExtraYear <= 0 || c.OneOffExtraYear >= c.HorizonYears) {
		return fmt.Errorf("one_off_extra_year must lie in (0, %d) when one_off_extra_amount is set", c.HorizonYears)
	}
	if c.RecurringExtraAmount.IsPositive() && c.RecurringExtraIntervalYears <= 0 {
		return fmt.Errorf("recurring_extra_interval_years must be positive when recurring_extra_amount is set")
	}
	if c.InflationVolatility.IsNegative() {
		return fmt.Errorf("inflation_volatility cannot be negative")
	}
	return nil
}

func (ip *InputParser) validateBrokerage(c *domain.BrokerageConfig) error {
	if err := validateRate("entry_load_rate", c.EntryLoadRate); err != nil {
		return err
	}
	if err := validateRate("exit_load_rate", c.ExitLoadRate); err != nil {
		return err
	}
	if err := validateRate("capital_gains_tax_rate", c.CapitalGainsTaxRate); err != nil {
		return err
	}
	if err := validateRate("partial_exemption_rate", c.PartialExemptionRate); err != nil {
		return err
	}
	if c.SolidaritySurchargeRate.IsNegative() {
		return fmt.Errorf("solidarity_surcharge_rate cannot be negative")
	}
	if c.ChurchTaxRate.IsNegative() {
		return fmt.Errorf("church_tax_rate cannot be negative")
	}
	if c.FlatAnnualFee.IsNegative() {
		return fmt.Errorf("flat_annual_fee cannot be negative")
	}
	if c.AnnualAllowance.IsNegative() {
		return fmt.Errorf("annual_allowance cannot be negative")
	}
	if c.BaseRate.IsNegative() {
		return fmt.Errorf("base_rate cannot be negative")
	}
	if err := validateRate("rebalancing_rate", c.RebalancingRate); err != nil {
		return err
	}
	if c.PersonalTaxRateCap.IsPositive() {
		if err := validateRate("personal_tax_rate_cap", c.PersonalTaxRateCap); err != nil {
			return err
		}
	}
	switch c.AccrualYieldBasis {
	case domain.YieldBasisPriorYearValue, domain.YieldBasisCostBasis:
	default:
		return fmt.Errorf("unknown accrual_yield_basis %q", c.AccrualYieldBasis)
	}
	return nil
}

func (ip *InputParser) validateInsurance(c *domain.InsuranceConfig) error {
	if err := validateRate("personal_tax_rate", c.PersonalTaxRate); err != nil {
		return err
	}
	if c.PersonalTaxRate.IsZero() {
		return fmt.Errorf("personal_tax_rate is required for insurance scenarios")
	}
	if c.MonthlyAcquisitionCostRate.IsNegative() || c.OneOffAcquisitionCostRate.IsNegative() {
		return fmt.Errorf("acquisition cost rates cannot be negative")
	}
	if c.AcquisitionAmortizationMonths < 0 {
		return fmt.Errorf("acquisition_amortization_months cannot be negative")
	}
	if (c.MonthlyAcquisitionCostRate.IsPositive() || c.OneOffAcquisitionCostRate.IsPositive()) && c.AcquisitionAmortizationMonths == 0 {
		return fmt.Errorf("acquisition_amortization_months must be positive when acquisition costs are set")
	}
	if c.AdministrationCostRate.IsNegative() || c.BalanceFeeRate.IsNegative() {
		return fmt.Errorf("insurance fee rates cannot be negative")
	}
	if c.DeathYear < 0 || c.DeathYear > c.HorizonYears {
		return fmt.Errorf("death_year must lie in [0, %d], got %d", c.HorizonYears, c.DeathYear)
	}
	if c.DeathYear > 0 {
		if err := validateRate("death_payout_load_rate", c.DeathPayoutLoadRate); err != nil {
			return err
		}
		if c.DeathAcquisitionCost.IsNegative() {
			return fmt.Errorf("death_acquisition_cost cannot be negative")
		}
		if c.DeathAcquisitionCost.IsPositive() && c.DeathAcquisitionMonths <= 0 {
			return fmt.Errorf("death_acquisition_months must be positive when death acquisition costs are set")
		}
	}
	return nil
}

func validateRate(name string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must lie in [0, 1], got %s", name, rate.String())
	}
	return nil
}
