package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestNewLotStartsAtCost(t *testing.T) {
	lot := NewLot(date(2025, time.January), decimal.NewFromInt(1000))

	assert.True(t, lot.Value.Equal(decimal.NewFromInt(1000)))
	assert.True(t, lot.AmountInvested.Equal(decimal.NewFromInt(1000)))
	assert.True(t, lot.StartOfPriorYearValue.Equal(decimal.NewFromInt(1000)))
	assert.True(t, lot.AlreadyTaxedAccrual.IsZero())
}

func TestSellFIFOConsumesOldestFirst(t *testing.T) {
	var ledger LotLedger
	ledger.AddLot(date(2025, time.January), decimal.NewFromInt(100))
	ledger.AddLot(date(2025, time.February), decimal.NewFromInt(100))
	ledger.AddLot(date(2025, time.March), decimal.NewFromInt(100))

	sale := ledger.SellFIFO(decimal.NewFromInt(150))

	require.Len(t, sale.Tranches, 2)
	assert.Equal(t, date(2025, time.January), sale.Tranches[0].AcquisitionDate)
	assert.Equal(t, date(2025, time.February), sale.Tranches[1].AcquisitionDate)
	assert.True(t, sale.Tranches[0].SoldValue.Equal(decimal.NewFromInt(100)), "oldest lot fully consumed")
	assert.True(t, sale.Tranches[1].SoldValue.Equal(decimal.NewFromInt(50)), "second lot half consumed")
	assert.True(t, sale.SoldValue.Equal(decimal.NewFromInt(150)))

	// The partially consumed lot keeps its place at the front.
	require.Equal(t, 2, ledger.Len())
	assert.Equal(t, date(2025, time.February), ledger.Oldest().AcquisitionDate)
	assert.True(t, ledger.Oldest().Value.Equal(decimal.NewFromInt(50)))
}

func TestSellFIFOScalesBasisAndCreditProportionally(t *testing.T) {
	var ledger LotLedger
	ledger.AddLot(date(2025, time.January), decimal.NewFromInt(1000))
	lots := ledger.Lots()
	lots[0].Value = decimal.NewFromInt(2000) // 100% gain
	lots[0].AlreadyTaxedAccrual = decimal.NewFromInt(80)

	sale := ledger.SellFIFO(decimal.NewFromInt(500)) // a quarter of the value

	require.Len(t, sale.Tranches, 1)
	tranche := sale.Tranches[0]
	assert.True(t, tranche.CostBasisConsumed.Equal(decimal.NewFromInt(250)))
	assert.True(t, tranche.AccrualCreditConsumed.Equal(decimal.NewFromInt(20)))
	assert.True(t, tranche.Gain().Equal(decimal.NewFromInt(250)))

	remaining := ledger.Oldest()
	assert.True(t, remaining.Value.Equal(decimal.NewFromInt(1500)))
	assert.True(t, remaining.AmountInvested.Equal(decimal.NewFromInt(750)))
	assert.True(t, remaining.AlreadyTaxedAccrual.Equal(decimal.NewFromInt(60)))
}

func TestSellFIFOExhaustsLedger(t *testing.T) {
	var ledger LotLedger
	ledger.AddLot(date(2025, time.January), decimal.NewFromInt(100))

	sale := ledger.SellFIFO(decimal.NewFromInt(500))

	assert.True(t, sale.SoldValue.Equal(decimal.NewFromInt(100)), "sale stops at the available value")
	assert.Equal(t, 0, ledger.Len())
}

func TestApplyUniformGrowth(t *testing.T) {
	var ledger LotLedger
	ledger.AddLot(date(2025, time.January), decimal.NewFromInt(100))
	ledger.AddLot(date(2025, time.February), decimal.NewFromInt(300))

	ledger.ApplyUniformGrowth(decimal.NewFromFloat(0.10))

	assert.True(t, ledger.TotalValue().Equal(decimal.NewFromInt(440)))
	// Cost basis is untouched by growth.
	assert.True(t, ledger.TotalInvested().Equal(decimal.NewFromInt(400)))

	ledger.ApplyUniformGrowth(decimal.Zero)
	assert.True(t, ledger.TotalValue().Equal(decimal.NewFromInt(440)), "zero growth leaves values unchanged")
}

func TestApplyProportionalDeduction(t *testing.T) {
	var ledger LotLedger
	ledger.AddLot(date(2025, time.January), decimal.NewFromInt(100))
	ledger.AddLot(date(2025, time.February), decimal.NewFromInt(300))

	ledger.ApplyProportionalDeduction(decimal.NewFromInt(40))

	lots := ledger.Lots()
	assert.True(t, lots[0].Value.Equal(decimal.NewFromInt(90)), "deduction split 1:3")
	assert.True(t, lots[1].Value.Equal(decimal.NewFromInt(270)))
	assert.True(t, ledger.TotalValue().Equal(decimal.NewFromInt(360)))
}

func TestApplyProportionalDeductionOnEmptyLedger(t *testing.T) {
	var ledger LotLedger
	ledger.ApplyProportionalDeduction(decimal.NewFromInt(40))
	assert.Equal(t, 0, ledger.Len())

	// A worthless ledger waives the charge instead of going negative.
	ledger.AddLot(date(2025, time.January), decimal.NewFromInt(100))
	ledger.Lots()[0].Value = decimal.Zero
	ledger.ApplyProportionalDeduction(decimal.NewFromInt(40))
	assert.True(t, ledger.TotalValue().IsZero())
}

func TestSnapshotYearStart(t *testing.T) {
	var ledger LotLedger
	ledger.AddLot(date(2025, time.January), decimal.NewFromInt(1000))
	ledger.ApplyUniformGrowth(decimal.NewFromFloat(0.06))

	ledger.SnapshotYearStart()

	lot := ledger.Oldest()
	assert.True(t, lot.StartOfPriorYearValue.Equal(lot.Value))
}

func TestPruneDropsResidualLots(t *testing.T) {
	var ledger LotLedger
	ledger.AddLot(date(2025, time.January), decimal.NewFromInt(100))
	ledger.AddLot(date(2025, time.February), decimal.NewFromInt(100))
	ledger.Lots()[0].Value = decimal.New(1, -12) // below epsilon

	ledger.Prune()

	require.Equal(t, 1, ledger.Len())
	assert.Equal(t, date(2025, time.February), ledger.Oldest().AcquisitionDate)
}

func TestValueConservationAcrossSale(t *testing.T) {
	var ledger LotLedger
	ledger.AddLot(date(2025, time.January), decimal.NewFromInt(777))
	ledger.AddLot(date(2026, time.June), decimal.NewFromInt(333))
	ledger.ApplyUniformGrowth(decimal.NewFromFloat(0.0371))

	before := ledger.TotalValue()
	sale := ledger.SellFIFO(decimal.NewFromFloat(412.55))
	after := ledger.TotalValue()

	diff := before.Sub(after).Sub(sale.SoldValue).Abs()
	assert.True(t, diff.LessThan(decimal.New(1, -6)), "sold value plus remainder equals the pre-sale value")
}
