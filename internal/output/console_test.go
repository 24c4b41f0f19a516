package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bauerfinanz/depotsim/internal/calculation"
	"github.com/bauerfinanz/depotsim/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *domain.SimulationResult {
	totals := domain.RunTotals{}
	totals.FundCosts.Nominal = decimal.NewFromInt(120)
	totals.TotalTax.Nominal = decimal.NewFromInt(300)
	totals.WithdrawalTax.Nominal = decimal.NewFromInt(300)

	return &domain.SimulationResult{
		RunID:  uuid.New(),
		Label:  "depot",
		Mode:   domain.ModeBrokerage,
		Totals: totals,
		Periods: []domain.PeriodLogRecord{
			{
				Date:      time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
				Value:     decimal.NewFromInt(10400),
				RealValue: decimal.NewFromInt(10380),
				Totals:    totals,
			},
		},
		Rebalancings: []domain.RebalancingEvent{
			{
				Date:          time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC),
				GrossSale:     decimal.NewFromInt(1000),
				TaxPaid:       decimal.NewFromInt(20),
				NetReinvested: decimal.NewFromInt(980),
			},
		},
		FinalValue:     decimal.NewFromInt(25000),
		FinalRealValue: decimal.NewFromInt(21000),
		FinalPayout:    decimal.NewFromInt(24000),
	}
}

func TestFormatSimulationContainsKeyFigures(t *testing.T) {
	out := ConsoleFormatter{}.FormatSimulation(sampleResult())

	assert.Contains(t, out, "depot")
	assert.Contains(t, out, "25000.00")
	assert.Contains(t, out, "24000.00")
	assert.Contains(t, out, "Rebalancing events (1)")
}

func TestFormatComparisonOneColumnPerRun(t *testing.T) {
	a := sampleResult()
	b := sampleResult()
	b.Label = "police"
	b.Mode = domain.ModeInsurance

	out := ConsoleFormatter{}.FormatComparison([]*domain.SimulationResult{a, b})

	assert.Contains(t, out, "depot")
	assert.Contains(t, out, "police")
}

func TestFormatCurrencyAndPercentage(t *testing.T) {
	assert.Equal(t, "1234.50 €", FormatCurrency(decimal.NewFromFloat(1234.5)))
	assert.Equal(t, "6.00%", FormatPercentage(decimal.NewFromFloat(0.06)))
}

func TestSortedPercentileLabels(t *testing.T) {
	band := map[string]decimal.Decimal{
		"50th":   decimal.NewFromInt(1),
		"2.5th":  decimal.NewFromInt(1),
		"97.5th": decimal.NewFromInt(1),
		"10th":   decimal.NewFromInt(1),
	}

	labels := sortedPercentileLabels(band)
	assert.Equal(t, []string{"2.5th", "10th", "50th", "97.5th"}, labels)
}

func sampleMonteCarlo() *calculation.MonteCarloResult {
	values := map[string]decimal.Decimal{
		"2.5th":  decimal.NewFromInt(9000),
		"50th":   decimal.NewFromInt(12000),
		"97.5th": decimal.NewFromInt(16000),
	}
	returns := map[string]decimal.Decimal{
		"10th": decimal.NewFromFloat(0.01),
		"50th": decimal.NewFromFloat(0.05),
		"90th": decimal.NewFromFloat(0.09),
	}
	bins := make(map[string][]decimal.Decimal)
	for _, l := range calculation.ReturnBinLabels() {
		bins[l] = []decimal.Decimal{decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.2)}
	}
	return &calculation.MonteCarloResult{
		BatchID:                  uuid.New(),
		Label:                    "depot",
		Mode:                     calculation.ScenarioNormal,
		NumSimulations:           100,
		HorizonYears:             2,
		MeanAtContributionEnd:    decimal.NewFromInt(12000),
		MedianAtContributionEnd:  decimal.NewFromInt(11800),
		CILowerAtContributionEnd: decimal.NewFromInt(9000),
		CIUpperAtContributionEnd: decimal.NewFromInt(16000),
		CheckpointValues:         map[int]map[string]decimal.Decimal{1: values, 2: values},
		AnnualizedReturns:        map[int]map[string]decimal.Decimal{1: returns, 2: returns},
		ReturnBinProbabilities:   bins,
		DrawdownBreaches: []calculation.DrawdownBreach{
			{Threshold: decimal.NewFromFloat(-0.025), Probability: decimal.NewFromFloat(0.4)},
		},
	}
}

func TestFormatMonteCarloIncludesReturnBinTable(t *testing.T) {
	out := ConsoleFormatter{}.FormatMonteCarlo(sampleMonteCarlo())

	assert.Contains(t, out, "Annual return probabilities")
	assert.Contains(t, out, "<= 0%")
	assert.Contains(t, out, ">12.5%")
	assert.Contains(t, out, "10.00%")
	assert.Contains(t, out, "Drawdown probabilities")
}

func TestWriteMonteCarloCSVIncludesReturnBins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mc.csv")

	require.NoError(t, CSVReporter{}.WriteMonteCarlo(sampleMonteCarlo(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Value_2.5th")
	assert.Contains(t, text, "P(<= 0%)")
	assert.Contains(t, text, "P(>12.5%)")

	lines := strings.Split(strings.TrimSpace(text), "\n")
	// Checkpoint header and two rows, a separator, then the bin header and
	// one row per plan year.
	require.Len(t, lines, 7)
	assert.Contains(t, lines[6], "0.200000")
}

func TestWritePeriodLogCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periods.csv")

	require.NoError(t, CSVReporter{}.WritePeriodLog(sampleResult(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2, "header plus one period row")
	assert.True(t, strings.HasPrefix(lines[0], "Date,Value,RealValue"))
	assert.Contains(t, lines[1], "2025-01-01")
	assert.Contains(t, lines[1], "10400.00")
}

func TestWriteRebalancingLogCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rebalancing.csv")

	require.NoError(t, CSVReporter{}.WriteRebalancingLog(sampleResult(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2025-12-01,1000.00,20.00,980.00")
}
