// Package output renders simulation and Monte Carlo results to the console
// and to CSV files.
package output

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/bauerfinanz/depotsim/internal/calculation"
	"github.com/bauerfinanz/depotsim/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("110"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(32)

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	negativeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Underline(true)
)

// FormatCurrency formats a decimal as a euro amount.
func FormatCurrency(amount decimal.Decimal) string {
	return amount.StringFixed(2) + " €"
}

// FormatPercentage formats a fractional rate as a percentage.
func FormatPercentage(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

// ConsoleFormatter renders a styled single-run summary.
type ConsoleFormatter struct{}

func (c ConsoleFormatter) Name() string { return "console" }

// FormatSimulation renders the summary block of one simulation run.
func (c ConsoleFormatter) FormatSimulation(result *domain.SimulationResult) string {
	var buf bytes.Buffer

	buf.WriteString(titleStyle.Render(fmt.Sprintf("Savings Plan Simulation: %s (%s)", result.Label, result.Mode)))
	buf.WriteByte('\n')

	buf.WriteString(sectionStyle.Render("Portfolio"))
	buf.WriteByte('\n')
	writeRow(&buf, "Final value (nominal)", FormatCurrency(result.FinalValue))
	writeRow(&buf, "Final value (real)", FormatCurrency(result.FinalRealValue))
	writeRow(&buf, "Final payout after tax", FormatCurrency(result.FinalPayout))
	writeRow(&buf, "Net withdrawals (nominal)", FormatCurrency(result.Totals.NetWithdrawals.Nominal))
	writeRow(&buf, "Net withdrawals (real)", FormatCurrency(result.Totals.NetWithdrawals.Real))
	buf.WriteByte('\n')

	buf.WriteString(sectionStyle.Render("Costs"))
	buf.WriteByte('\n')
	writeCostRow(&buf, "Entry load", result.Totals.EntryLoad.Nominal)
	writeCostRow(&buf, "Exit load", result.Totals.ExitLoad.Nominal)
	writeCostRow(&buf, "Flat account fees", result.Totals.FlatFees.Nominal)
	writeCostRow(&buf, "Fund costs (TER)", result.Totals.FundCosts.Nominal)
	writeCostRow(&buf, "Service fees", result.Totals.ServiceFees.Nominal)
	writeCostRow(&buf, "Balance fees", result.Totals.BalanceFees.Nominal)
	writeCostRow(&buf, "Acquisition costs", result.Totals.AcquisitionCosts.Nominal)
	writeCostRow(&buf, "Administration costs", result.Totals.AdministrationCosts.Nominal)
	writeRow(&buf, "Total fees", FormatCurrency(result.Totals.TotalFees()))
	buf.WriteByte('\n')

	buf.WriteString(sectionStyle.Render("Taxes"))
	buf.WriteByte('\n')
	writeRow(&buf, "Accrual tax (Vorabpauschale)", FormatCurrency(result.Totals.AccrualTax.Nominal))
	writeRow(&buf, "Tax on sales", FormatCurrency(result.Totals.WithdrawalTax.Nominal))
	writeRow(&buf, "Total tax", FormatCurrency(result.Totals.TotalTax.Nominal))

	if len(result.Rebalancings) > 0 {
		buf.WriteByte('\n')
		buf.WriteString(sectionStyle.Render(fmt.Sprintf("Rebalancing events (%d)", len(result.Rebalancings))))
		buf.WriteByte('\n')
		buf.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-12s %16s %16s %16s", "Date", "Gross sale", "Tax paid", "Reinvested")))
		buf.WriteByte('\n')
		for _, ev := range result.Rebalancings {
			fmt.Fprintf(&buf, "%-12s %16s %16s %16s\n",
				ev.Date.Format("2006-01"),
				ev.GrossSale.StringFixed(2),
				ev.TaxPaid.StringFixed(2),
				ev.NetReinvested.StringFixed(2))
		}
	}

	return buf.String()
}

// FormatComparison renders two runs side by side, typically the brokerage and
// insurance variants of the same plan.
func (c ConsoleFormatter) FormatComparison(results []*domain.SimulationResult) string {
	var buf bytes.Buffer
	buf.WriteString(titleStyle.Render("Scenario Comparison"))
	buf.WriteByte('\n')

	header := fmt.Sprintf("%-32s", "")
	for _, r := range results {
		header += fmt.Sprintf("%20s", r.Label)
	}
	buf.WriteString(tableHeaderStyle.Render(header))
	buf.WriteByte('\n')

	rows := []struct {
		label string
		pick  func(*domain.SimulationResult) decimal.Decimal
	}{
		{"Final value (nominal)", func(r *domain.SimulationResult) decimal.Decimal { return r.FinalValue }},
		{"Final value (real)", func(r *domain.SimulationResult) decimal.Decimal { return r.FinalRealValue }},
		{"Final payout after tax", func(r *domain.SimulationResult) decimal.Decimal { return r.FinalPayout }},
		{"Net withdrawals", func(r *domain.SimulationResult) decimal.Decimal { return r.Totals.NetWithdrawals.Nominal }},
		{"Total fees", func(r *domain.SimulationResult) decimal.Decimal { return r.Totals.TotalFees() }},
		{"Total tax", func(r *domain.SimulationResult) decimal.Decimal { return r.Totals.TotalTax.Nominal }},
	}
	for _, row := range rows {
		line := labelStyle.Render(row.label)
		for _, r := range results {
			line += fmt.Sprintf("%20s", FormatCurrency(row.pick(r)))
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.String()
}

// FormatMonteCarlo renders the distribution tables of a Monte Carlo batch.
func (c ConsoleFormatter) FormatMonteCarlo(result *calculation.MonteCarloResult) string {
	var buf bytes.Buffer

	buf.WriteString(titleStyle.Render(fmt.Sprintf("Monte Carlo: %s (%d runs, mode %s)",
		result.Label, result.NumSimulations, result.Mode)))
	buf.WriteByte('\n')

	buf.WriteString(sectionStyle.Render("Value at end of contribution phase"))
	buf.WriteByte('\n')
	writeRow(&buf, "Mean", FormatCurrency(result.MeanAtContributionEnd))
	writeRow(&buf, "Median", FormatCurrency(result.MedianAtContributionEnd))
	writeRow(&buf, "95% interval", fmt.Sprintf("%s .. %s",
		FormatCurrency(result.CILowerAtContributionEnd),
		FormatCurrency(result.CIUpperAtContributionEnd)))
	buf.WriteByte('\n')

	buf.WriteString(sectionStyle.Render("Portfolio value by plan year"))
	buf.WriteByte('\n')
	buf.WriteString(formatCheckpointTable(result.CheckpointValues, func(v decimal.Decimal) string {
		return v.StringFixed(0)
	}))
	buf.WriteByte('\n')

	buf.WriteString(sectionStyle.Render("Annualized return since inception"))
	buf.WriteByte('\n')
	buf.WriteString(formatCheckpointTable(result.AnnualizedReturns, func(v decimal.Decimal) string {
		return FormatPercentage(v)
	}))
	buf.WriteByte('\n')

	if len(result.ReturnBinProbabilities) > 0 {
		buf.WriteString(sectionStyle.Render("Annual return probabilities"))
		buf.WriteByte('\n')
		labels := calculation.ReturnBinLabels()
		header := fmt.Sprintf("%-6s", "Year")
		for _, l := range labels {
			header += fmt.Sprintf("%15s", l)
		}
		buf.WriteString(tableHeaderStyle.Render(header))
		buf.WriteByte('\n')
		for year := 0; year < result.HorizonYears; year++ {
			fmt.Fprintf(&buf, "%-6d", year+1)
			for _, l := range labels {
				probs := result.ReturnBinProbabilities[l]
				if year < len(probs) {
					fmt.Fprintf(&buf, "%15s", FormatPercentage(probs[year]))
				}
			}
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}

	if len(result.DrawdownBreaches) > 0 {
		buf.WriteString(sectionStyle.Render("Drawdown probabilities"))
		buf.WriteByte('\n')
		for _, b := range result.DrawdownBreaches {
			writeRow(&buf, fmt.Sprintf("Max drawdown <= %s", FormatPercentage(b.Threshold)),
				FormatPercentage(b.Probability))
		}
	}

	return buf.String()
}

func writeRow(buf *bytes.Buffer, label, value string) {
	buf.WriteString(labelStyle.Render(label))
	buf.WriteString(valueStyle.Render(value))
	buf.WriteByte('\n')
}

func writeCostRow(buf *bytes.Buffer, label string, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	buf.WriteString(labelStyle.Render(label))
	buf.WriteString(negativeStyle.Render(FormatCurrency(amount)))
	buf.WriteByte('\n')
}

// formatCheckpointTable renders a year-keyed percentile-band map as a table
// with one column per percentile and one row per checkpoint year.
func formatCheckpointTable(table map[int]map[string]decimal.Decimal, format func(decimal.Decimal) string) string {
	if len(table) == 0 {
		return ""
	}
	years := sortedYears(table)
	percentiles := sortedPercentileLabels(table[years[0]])

	var buf bytes.Buffer
	header := fmt.Sprintf("%-6s", "Year")
	for _, p := range percentiles {
		header += fmt.Sprintf("%14s", p)
	}
	buf.WriteString(tableHeaderStyle.Render(header))
	buf.WriteByte('\n')
	for _, year := range years {
		fmt.Fprintf(&buf, "%-6d", year)
		for _, p := range percentiles {
			fmt.Fprintf(&buf, "%14s", format(table[year][p]))
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

func sortedYears(table map[int]map[string]decimal.Decimal) []int {
	years := make([]int, 0, len(table))
	for y := range table {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// sortedPercentileLabels orders labels like "2.5th", "50th" numerically.
func sortedPercentileLabels(band map[string]decimal.Decimal) []string {
	labels := make([]string, 0, len(band))
	for l := range band {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		return percentileLabelValue(labels[i]) < percentileLabelValue(labels[j])
	})
	return labels
}

func percentileLabelValue(label string) float64 {
	trimmed := strings.TrimSuffix(label, "th")
	var v float64
	fmt.Sscanf(trimmed, "%f", &v)
	return v
}
