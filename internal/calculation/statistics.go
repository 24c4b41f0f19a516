package calculation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Mean averages a sample. Zero for an empty sample.
func Mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// Median returns the 50th percentile of a sample.
func Median(values []decimal.Decimal) decimal.Decimal {
	return Percentile(values, 50)
}

// Percentile computes the p-th percentile (0-100) with linear interpolation
// between adjacent ranks. Zero for an empty sample.
func Percentile(values []decimal.Decimal, p float64) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	return percentileOfSorted(sorted, p)
}

func percentileOfSorted(sorted []decimal.Decimal, p float64) decimal.Decimal {
	index := p / 100 * float64(len(sorted)-1)
	lower := int(index)
	if float64(lower) == index || lower+1 >= len(sorted) {
		return sorted[lower]
	}
	fraction := decimal.NewFromFloat(index - float64(lower))
	return sorted[lower].Add(sorted[lower+1].Sub(sorted[lower]).Mul(fraction))
}

// PercentileBand evaluates several percentiles of one sample in a single
// sort, keyed by labels such as "2.5th" and "50th".
func PercentileBand(values []decimal.Decimal, percentiles []float64) map[string]decimal.Decimal {
	band := make(map[string]decimal.Decimal, len(percentiles))
	if len(values) == 0 {
		for _, p := range percentiles {
			band[percentileLabel(p)] = decimal.Zero
		}
		return band
	}
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	for _, p := range percentiles {
		band[percentileLabel(p)] = percentileOfSorted(sorted, p)
	}
	return band
}

func percentileLabel(p float64) string {
	s := strings.TrimSuffix(fmt.Sprintf("%.1f", p), ".0")
	return s + "th"
}
