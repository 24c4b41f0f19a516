package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/bauerfinanz/depotsim/internal/calculation"
	"github.com/bauerfinanz/depotsim/internal/domain"
)

// CSVReporter writes simulation and Monte Carlo outputs as CSV files.
type CSVReporter struct{}

func (c CSVReporter) Name() string { return "csv" }

// WritePeriodLog writes the per-period log, one row per month.
func (c CSVReporter) WritePeriodLog(result *domain.SimulationResult, filename string) error {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	header := []string{
		"Date", "Value", "RealValue",
		"EntryLoad", "ExitLoad", "FlatFees", "FundCosts", "ServiceFees",
		"BalanceFees", "AcquisitionCosts", "AdministrationCosts",
		"AccrualTax", "WithdrawalTax", "TotalTax", "NetWithdrawals",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, p := range result.Periods {
		row := []string{
			p.Date.Format("2006-01-02"),
			p.Value.StringFixed(2),
			p.RealValue.StringFixed(2),
			p.Totals.EntryLoad.Nominal.StringFixed(2),
			p.Totals.ExitLoad.Nominal.StringFixed(2),
			p.Totals.FlatFees.Nominal.StringFixed(2),
			p.Totals.FundCosts.Nominal.StringFixed(2),
			p.Totals.ServiceFees.Nominal.StringFixed(2),
			p.Totals.BalanceFees.Nominal.StringFixed(2),
			p.Totals.AcquisitionCosts.Nominal.StringFixed(2),
			p.Totals.AdministrationCosts.Nominal.StringFixed(2),
			p.Totals.AccrualTax.Nominal.StringFixed(2),
			p.Totals.WithdrawalTax.Nominal.StringFixed(2),
			p.Totals.TotalTax.Nominal.StringFixed(2),
			p.Totals.NetWithdrawals.Nominal.StringFixed(2),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}

// WriteRebalancingLog writes one row per December rebalancing event.
func (c CSVReporter) WriteRebalancingLog(result *domain.SimulationResult, filename string) error {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	if err := w.Write([]string{"Date", "GrossSale", "TaxPaid", "NetReinvested"}); err != nil {
		return err
	}
	for _, ev := range result.Rebalancings {
		row := []string{
			ev.Date.Format("2006-01-02"),
			ev.GrossSale.StringFixed(2),
			ev.TaxPaid.StringFixed(2),
			ev.NetReinvested.StringFixed(2),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}

// WriteMonteCarlo writes the distribution tables of a batch: one row per
// checkpoint year with the value percentiles followed by the
// annualized-return percentiles, then a second section with the
// annual-return bucket probabilities for every plan year.
func (c CSVReporter) WriteMonteCarlo(result *calculation.MonteCarloResult, filename string) error {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	years := sortedYears(result.CheckpointValues)
	if len(years) == 0 {
		return fmt.Errorf("monte carlo result has no checkpoint data")
	}
	valueLabels := sortedPercentileLabels(result.CheckpointValues[years[0]])
	returnLabels := sortedPercentileLabels(result.AnnualizedReturns[years[0]])

	header := []string{"Year"}
	for _, l := range valueLabels {
		header = append(header, "Value_"+l)
	}
	for _, l := range returnLabels {
		header = append(header, "Return_"+l)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, year := range years {
		row := []string{strconv.Itoa(year)}
		for _, l := range valueLabels {
			row = append(row, result.CheckpointValues[year][l].StringFixed(2))
		}
		for _, l := range returnLabels {
			row = append(row, result.AnnualizedReturns[year][l].StringFixed(6))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	if len(result.ReturnBinProbabilities) > 0 {
		if err := w.Write([]string{""}); err != nil {
			return err
		}
		binLabels := calculation.ReturnBinLabels()
		header := []string{"Year"}
		for _, l := range binLabels {
			header = append(header, "P("+l+")")
		}
		if err := w.Write(header); err != nil {
			return err
		}
		for year := 0; year < result.HorizonYears; year++ {
			row := []string{strconv.Itoa(year + 1)}
			for _, l := range binLabels {
				probs := result.ReturnBinProbabilities[l]
				if year < len(probs) {
					row = append(row, probs[year].StringFixed(6))
				} else {
					row = append(row, "")
				}
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}

// WriteOutcomes writes one row per simulation run of a batch.
func (c CSVReporter) WriteOutcomes(result *calculation.MonteCarloResult, filename string) error {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	if err := w.Write([]string{"RunID", "FinalValue", "ValueAtContributionEnd", "MaxDrawdown"}); err != nil {
		return err
	}
	for _, o := range result.Outcomes {
		row := []string{
			o.RunID.String(),
			o.FinalValue.StringFixed(2),
			o.ValueAtContributionEnd.StringFixed(2),
			o.MaxDrawdown.StringFixed(6),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}
