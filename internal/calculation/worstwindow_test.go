package calculation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticSeries builds monthly returns for full calendar years, using the
// given per-month return for each year.
func syntheticSeries(startYear int, yearlyMonthlyReturns []float64) []MonthlyReturn {
	var series []MonthlyReturn
	for i, r := range yearlyMonthlyReturns {
		for m := time.January; m <= time.December; m++ {
			series = append(series, MonthlyReturn{
				Date:   time.Date(startYear+i, m, 1, 0, 0, 0, 0, time.UTC),
				Return: decimal.NewFromFloat(r),
			})
		}
	}
	return series
}

func TestFindWorstThreeYears(t *testing.T) {
	// 1999-2001 is the engineered crash stretch.
	series := syntheticSeries(1995, []float64{
		0.01, 0.01, 0.01, 0.01, // 1995-1998
		-0.02, -0.02, -0.03, // 1999-2001
		0.01, 0.01, // 2002-2003
	})

	window, err := FindWorstThreeYears(series)
	require.NoError(t, err)

	assert.Equal(t, 1999, window.StartYear)
	assert.Len(t, window.Returns, 36)
	assert.True(t, window.CumulativeReturn.IsNegative())
	assert.True(t, window.Returns[0].Equal(decimal.NewFromFloat(-0.02)))
	assert.True(t, window.Returns[35].Equal(decimal.NewFromFloat(-0.03)))
}

func TestFindWorstThreeYearsNeedsEnoughHistory(t *testing.T) {
	series := syntheticSeries(2000, []float64{0.01, 0.01})

	_, err := FindWorstThreeYears(series)
	assert.Error(t, err)
}

func TestFindWorstThreeYearsInPaths(t *testing.T) {
	// Path values indexed by month, starting at 100. The flat path grows 1%
	// a month; the crash path loses 2% a month during years 1-3.
	growPath := valuePath(100, 72, func(m int) float64 { return 0.01 })
	crashPath := valuePath(100, 72, func(m int) float64 {
		if m >= 12 && m < 48 {
			return -0.02
		}
		return 0.01
	})

	window, err := FindWorstThreeYearsInPaths([][]decimal.Decimal{growPath, crashPath})
	require.NoError(t, err)

	assert.Equal(t, 1, window.StartYear, "the crash window starts in year index 1")
	assert.Len(t, window.Returns, 36)
	for _, r := range window.Returns {
		assert.InDelta(t, -0.02, r.InexactFloat64(), 1e-9)
	}
}

func TestFindWorstThreeYearsInPathsTooShort(t *testing.T) {
	short := valuePath(100, 24, func(int) float64 { return 0.01 })

	_, err := FindWorstThreeYearsInPaths([][]decimal.Decimal{short})
	assert.Error(t, err)
}

func valuePath(initial float64, months int, monthlyReturn func(int) float64) []decimal.Decimal {
	path := make([]decimal.Decimal, 0, months+1)
	value := initial
	path = append(path, decimal.NewFromFloat(value))
	for m := 0; m < months; m++ {
		value *= 1 + monthlyReturn(m)
		path = append(path, decimal.NewFromFloat(value))
	}
	return path
}
