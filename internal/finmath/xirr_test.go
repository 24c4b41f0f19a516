package finmath

import (
	"math"
	"testing"
	"time"

	"github.com/bauerfinanz/depotsim/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flow(y int, m time.Month, d int, amount float64) domain.CashFlow {
	a := decimal.NewFromFloat(amount)
	return domain.CashFlow{
		Date:       time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Amount:     a,
		RealAmount: a,
	}
}

func TestXIRRSingleYearGain(t *testing.T) {
	flows := []domain.CashFlow{
		flow(2025, time.January, 1, -1000),
		flow(2026, time.January, 1, 1100),
	}

	rate, err := XIRR(flows)
	require.NoError(t, err)
	// 365 days at 365.25 days per year, so fractionally above 10%.
	assert.InDelta(t, 0.10, rate.InexactFloat64(), 1e-3)
}

func TestXIRRLoss(t *testing.T) {
	flows := []domain.CashFlow{
		flow(2025, time.January, 1, -1000),
		flow(2026, time.January, 1, 900),
	}

	rate, err := XIRR(flows)
	require.NoError(t, err)
	assert.InDelta(t, -0.10, rate.InexactFloat64(), 1e-3)
}

func TestXIRRMultipleFlows(t *testing.T) {
	// Monthly investments of 100 for a year, paid out at 1300 after two.
	flows := make([]domain.CashFlow, 0, 13)
	for m := 0; m < 12; m++ {
		flows = append(flows, domain.CashFlow{
			Date:       time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, m, 0),
			Amount:     decimal.NewFromInt(-100),
			RealAmount: decimal.NewFromInt(-100),
		})
	}
	flows = append(flows, flow(2027, time.January, 1, 1300))

	rate, err := XIRR(flows)
	require.NoError(t, err)
	assert.True(t, rate.IsPositive())
	assert.True(t, rate.LessThan(decimal.NewFromFloat(0.15)))

	// The computed rate must actually zero the NPV.
	npv := 0.0
	t0 := flows[0].Date
	r := rate.InexactFloat64()
	for _, f := range flows {
		years := f.Date.Sub(t0).Hours() / 24 / 365.25
		npv += f.Amount.InexactFloat64() / math.Pow(1+r, years)
	}
	assert.InDelta(t, 0, npv, 1e-6)
}

func TestXIRRRejectsDegenerateInput(t *testing.T) {
	_, err := XIRR(nil)
	assert.Error(t, err, "empty flows")

	_, err = XIRR([]domain.CashFlow{flow(2025, time.January, 1, -1000)})
	assert.Error(t, err, "single flow")

	_, err = XIRR([]domain.CashFlow{
		flow(2025, time.January, 1, -1000),
		flow(2026, time.January, 1, -500),
	})
	assert.Error(t, err, "no positive flow")
}

func TestRealXIRRUsesDeflatedAmounts(t *testing.T) {
	flows := []domain.CashFlow{
		{
			Date:       time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			Amount:     decimal.NewFromInt(-1000),
			RealAmount: decimal.NewFromInt(-1000),
		},
		{
			Date:       time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			Amount:     decimal.NewFromInt(1100),
			RealAmount: decimal.NewFromInt(1078), // deflated by ~2%
		},
	}

	nominal, err := XIRR(flows)
	require.NoError(t, err)
	realRate, err := RealXIRR(flows)
	require.NoError(t, err)

	assert.True(t, realRate.LessThan(nominal))
	assert.InDelta(t, 0.078, realRate.InexactFloat64(), 1e-3)
}
