// Package histdata loads historical monthly-return series used to
// parameterize the Monte Carlo draws and to extract stress windows. The
// simulation core never reads these files itself; a missing or malformed
// file is fatal before any run starts.
package histdata

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/bauerfinanz/depotsim/internal/calculation"
	"github.com/shopspring/decimal"
)

// Series is a loaded monthly-return history with its sample statistics.
type Series struct {
	Returns []calculation.MonthlyReturn
	Mean    decimal.Decimal
	StdDev  decimal.Decimal
}

// AnnualizedMean compounds the monthly mean return to a yearly rate.
func (s *Series) AnnualizedMean() decimal.Decimal {
	return decimal.NewFromFloat(math.Pow(1+s.Mean.InexactFloat64(), 12) - 1)
}

// AnnualizedStdDev scales the monthly volatility to an annual figure.
func (s *Series) AnnualizedStdDev() decimal.Decimal {
	return decimal.NewFromFloat(s.StdDev.InexactFloat64() * math.Sqrt(12))
}

// Load reads a semicolon-separated file of dated monthly returns. Dates are
// MM/DD/YYYY, return values use a decimal comma (the export format of the
// supported data feeds). Rows that fail to parse are skipped.
//
// inflationRate, when positive, deflates every observation to a real
// return: (r - i_m) / (1 + i_m) with i_m the equivalent monthly inflation.
func Load(path string, inflationRate decimal.Decimal) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("historical data file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	monthlyInflation := 0.0
	if inflationRate.IsPositive() {
		monthlyInflation = math.Pow(1+inflationRate.InexactFloat64(), 1.0/12.0) - 1
	}

	var returns []calculation.MonthlyReturn
	for _, record := range records {
		if len(record) < 2 {
			continue
		}
		date, err := time.Parse("01/02/2006", strings.TrimSpace(record[0]))
		if err != nil {
			continue
		}
		raw := strings.ReplaceAll(strings.TrimSpace(record[1]), ",", ".")
		value, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		r := value.InexactFloat64()
		if monthlyInflation > 0 {
			r = (r - monthlyInflation) / (1 + monthlyInflation)
		}
		returns = append(returns, calculation.MonthlyReturn{
			Date:   date,
			Return: decimal.NewFromFloat(r),
		})
	}
	if len(returns) == 0 {
		return nil, fmt.Errorf("no usable return rows in %s", path)
	}

	mean, stdDev := sampleStats(returns)
	return &Series{Returns: returns, Mean: mean, StdDev: stdDev}, nil
}

func sampleStats(returns []calculation.MonthlyReturn) (decimal.Decimal, decimal.Decimal) {
	n := float64(len(returns))
	sum := 0.0
	for _, r := range returns {
		sum += r.Return.InexactFloat64()
	}
	mean := sum / n

	variance := 0.0
	for _, r := range returns {
		d := r.Return.InexactFloat64() - mean
		variance += d * d
	}
	if len(returns) > 1 {
		variance /= n - 1
	}
	return decimal.NewFromFloat(mean), decimal.NewFromFloat(math.Sqrt(variance))
}
