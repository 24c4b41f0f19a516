package calculation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// worstWindowYears is the length of the extracted stress window.
const worstWindowYears = 3

// MonthlyReturn is one dated observation of a monthly fractional return.
type MonthlyReturn struct {
	Date   time.Time
	Return decimal.Decimal
}

// WorstWindow is the worst consecutive three-year stretch extracted from a
// historical series or a simulated batch, ready for injection into the
// stress scenario modes.
type WorstWindow struct {
	// Returns holds the 36 monthly returns of the window.
	Returns []decimal.Decimal
	// StartYear is the calendar year (historical) or the zero-based year
	// index (simulated) the window starts in.
	StartYear int
	// CumulativeReturn is the compounded return over the whole window.
	CumulativeReturn decimal.Decimal
}

// FindWorstThreeYears scans a historical monthly series for the three
// consecutive calendar years with the lowest compounded return and returns
// that window's monthly sub-path.
func FindWorstThreeYears(series []MonthlyReturn) (*WorstWindow, error) {
	type yearGroup struct {
		year   int
		months []decimal.Decimal
	}
	var years []yearGroup
	for _, mr := range series {
		y := mr.Date.Year()
		if len(years) == 0 || years[len(years)-1].year != y {
			years = append(years, yearGroup{year: y})
		}
		last := &years[len(years)-1]
		last.months = append(last.months, mr.Return)
	}
	if len(years) < worstWindowYears {
		return nil, fmt.Errorf("need at least %d calendar years of returns, got %d", worstWindowYears, len(years))
	}

	annual := make([]decimal.Decimal, len(years))
	for i, yg := range years {
		annual[i] = compound(yg.months)
	}

	worstIdx := -1
	worst := decimal.Zero
	for i := 0; i+worstWindowYears <= len(annual); i++ {
		rolling := compoundAnnual(annual[i : i+worstWindowYears])
		if worstIdx < 0 || rolling.LessThan(worst) {
			worst = rolling
			worstIdx = i
		}
	}

	var window []decimal.Decimal
	for _, yg := range years[worstIdx : worstIdx+worstWindowYears] {
		window = append(window, yg.months...)
	}
	return &WorstWindow{
		Returns:          window,
		StartYear:        years[worstIdx].year,
		CumulativeReturn: worst,
	}, nil
}

// FindWorstThreeYearsInPaths scans a batch of simulated value paths (each
// path indexed by month, starting at the initial value) for the single path
// and offset with the lowest rolling three-year compounded return, and
// rebuilds that window's monthly returns from the path values.
func FindWorstThreeYearsInPaths(paths [][]decimal.Decimal) (*WorstWindow, error) {
	worstPath := -1
	worstYear := 0
	worst := decimal.Zero
	for p, path := range paths {
		years := (len(path) - 1) / 12
		if years < worstWindowYears {
			continue
		}
		annual := make([]decimal.Decimal, years)
		for y := 0; y < years; y++ {
			start := path[y*12]
			end := path[(y+1)*12]
			if start.IsPositive() {
				annual[y] = end.Div(start).Sub(decimal.NewFromInt(1))
			}
		}
		for y := 0; y+worstWindowYears <= years; y++ {
			rolling := compoundAnnual(annual[y : y+worstWindowYears])
			if worstPath < 0 || rolling.LessThan(worst) {
				worst = rolling
				worstPath = p
				worstYear = y
			}
		}
	}
	if worstPath < 0 {
		return nil, fmt.Errorf("no path spans %d years", worstWindowYears)
	}

	path := paths[worstPath]
	start := worstYear * 12
	window := make([]decimal.Decimal, 0, worstWindowYears*12)
	for m := start; m < start+worstWindowYears*12; m++ {
		if path[m].IsPositive() {
			window = append(window, path[m+1].Div(path[m]).Sub(decimal.NewFromInt(1)))
		} else {
			window = append(window, decimal.Zero)
		}
	}
	return &WorstWindow{
		Returns:          window,
		StartYear:        worstYear,
		CumulativeReturn: worst,
	}, nil
}

// compound chains monthly returns into one period return.
func compound(monthly []decimal.Decimal) decimal.Decimal {
	product := decimal.NewFromInt(1)
	for _, r := range monthly {
		product = product.Mul(decimal.NewFromInt(1).Add(r))
	}
	return product.Sub(decimal.NewFromInt(1))
}

// compoundAnnual chains annual returns into one rolling return.
func compoundAnnual(annual []decimal.Decimal) decimal.Decimal {
	return compound(annual)
}
