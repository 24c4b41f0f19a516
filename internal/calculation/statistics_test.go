package calculation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func decimals(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestMeanAndMedian(t *testing.T) {
	values := decimals(1, 2, 3, 4, 10)

	assert.True(t, Mean(values).Equal(decimal.NewFromInt(4)))
	assert.True(t, Median(values).Equal(decimal.NewFromInt(3)))

	assert.True(t, Mean(nil).IsZero())
	assert.True(t, Median(nil).IsZero())
}

func TestPercentileInterpolates(t *testing.T) {
	values := decimals(10, 20, 30, 40)

	assert.True(t, Percentile(values, 0).Equal(decimal.NewFromInt(10)))
	assert.True(t, Percentile(values, 100).Equal(decimal.NewFromInt(40)))
	assert.True(t, Percentile(values, 50).Equal(decimal.NewFromInt(25)), "midpoint between the middle pair")
}

func TestPercentileDoesNotMutateInput(t *testing.T) {
	values := decimals(3, 1, 2)
	Percentile(values, 50)
	assert.True(t, values[0].Equal(decimal.NewFromInt(3)), "input order is preserved")
}

func TestPercentileBandLabels(t *testing.T) {
	values := decimals(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	band := PercentileBand(values, []float64{2.5, 50, 97.5})

	assert.Contains(t, band, "2.5th")
	assert.Contains(t, band, "50th")
	assert.Contains(t, band, "97.5th")
	assert.True(t, band["50th"].Equal(decimal.NewFromFloat(5.5)))
}
