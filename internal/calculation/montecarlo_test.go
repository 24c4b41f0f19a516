package calculation

import (
	"context"
	"math/rand"
	"testing"

	"github.com/bauerfinanz/depotsim/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monteCarloScenario() *domain.BrokerageConfig {
	cfg := &domain.BrokerageConfig{}
	cfg.Label = "mc"
	cfg.InitialInvestment = decimal.NewFromInt(10000)
	cfg.MonthlyContribution = decimal.NewFromInt(200)
	cfg.HorizonYears = 5
	cfg.ContributionYears = 5
	cfg.AnnualReturn = decimal.NewFromFloat(0.06)
	return cfg
}

func TestMonteCarloSeedReproducibility(t *testing.T) {
	mc := MonteCarloConfig{
		NumSimulations:     20,
		Seed:               42,
		AnnualReturnStdDev: decimal.NewFromFloat(0.15),
		Workers:            4,
	}

	first, err := NewMonteCarloEngine(monteCarloScenario(), mc, nil).Run(context.Background())
	require.NoError(t, err)
	second, err := NewMonteCarloEngine(monteCarloScenario(), mc, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, first.Outcomes, 20)
	for i := range first.Outcomes {
		assert.True(t, first.Outcomes[i].FinalValue.Equal(second.Outcomes[i].FinalValue),
			"run %d must reproduce with the same seed", i)
	}
	assert.NotEqual(t, first.BatchID, second.BatchID)
}

func TestMonteCarloCheckpointsIncludeHorizon(t *testing.T) {
	mc := MonteCarloConfig{
		NumSimulations:     10,
		Seed:               1,
		AnnualReturnStdDev: decimal.NewFromFloat(0.10),
	}

	result, err := NewMonteCarloEngine(monteCarloScenario(), mc, nil).Run(context.Background())
	require.NoError(t, err)

	// Configured checkpoints beyond the 5-year horizon are dropped; the
	// horizon itself is always present.
	assert.Contains(t, result.CheckpointValues, 5)
	assert.Contains(t, result.CheckpointValues, 1)
	assert.NotContains(t, result.CheckpointValues, 10)
	assert.Contains(t, result.AnnualizedReturns, 5)

	band := result.CheckpointValues[5]
	assert.Contains(t, band, "2.5th")
	assert.Contains(t, band, "50th")
	assert.Contains(t, band, "97.5th")
	assert.True(t, band["2.5th"].LessThanOrEqual(band["97.5th"]))
}

func TestMonteCarloStatisticsAreOrdered(t *testing.T) {
	mc := MonteCarloConfig{
		NumSimulations:     50,
		Seed:               7,
		AnnualReturnStdDev: decimal.NewFromFloat(0.20),
	}

	result, err := NewMonteCarloEngine(monteCarloScenario(), mc, nil).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.CILowerAtContributionEnd.LessThanOrEqual(result.MedianAtContributionEnd))
	assert.True(t, result.MedianAtContributionEnd.LessThanOrEqual(result.CIUpperAtContributionEnd))

	for _, o := range result.Outcomes {
		assert.True(t, o.MaxDrawdown.LessThanOrEqual(decimal.Zero))
		assert.True(t, o.MaxDrawdown.GreaterThan(decimal.NewFromInt(-1)))
	}

	// Breach probabilities shrink (weakly) as the threshold deepens.
	for i := 1; i < len(result.DrawdownBreaches); i++ {
		assert.True(t, result.DrawdownBreaches[i].Probability.
			LessThanOrEqual(result.DrawdownBreaches[i-1].Probability))
		assert.True(t, result.DrawdownBreaches[i].Threshold.
			LessThan(result.DrawdownBreaches[i-1].Threshold))
	}
}

func TestMonteCarloReturnBins(t *testing.T) {
	mc := MonteCarloConfig{
		NumSimulations:     30,
		Seed:               3,
		AnnualReturnStdDev: decimal.NewFromFloat(0.15),
	}

	result, err := NewMonteCarloEngine(monteCarloScenario(), mc, nil).Run(context.Background())
	require.NoError(t, err)

	require.Contains(t, result.ReturnBinProbabilities, "<= 0%")
	require.Contains(t, result.ReturnBinProbabilities, ">12.5%")

	labels := ReturnBinLabels()
	require.Len(t, labels, 7)
	assert.Equal(t, "<= 0%", labels[0])
	assert.Equal(t, ">12.5%", labels[len(labels)-1])
	for _, l := range labels {
		require.Contains(t, result.ReturnBinProbabilities, l)
	}

	horizonYears := monteCarloScenario().HorizonYears
	for year := 0; year < horizonYears; year++ {
		sum := decimal.Zero
		for _, probs := range result.ReturnBinProbabilities {
			require.Len(t, probs, horizonYears)
			sum = sum.Add(probs[year])
		}
		assert.True(t, sum.Sub(decimal.NewFromInt(1)).Abs().LessThan(decimal.NewFromFloat(1e-9)),
			"bin probabilities of year %d sum to one", year)
	}
}

func TestNormalModeDrawsEveryMonthIndependently(t *testing.T) {
	cfg := monteCarloScenario()
	mc := MonteCarloConfig{
		NumSimulations:     1,
		Seed:               13,
		AnnualReturnStdDev: decimal.NewFromFloat(0.15),
	}
	engine := NewMonteCarloEngine(cfg, mc, nil)

	path := engine.buildPath(rand.New(rand.NewSource(13)))

	require.Len(t, path, cfg.HorizonMonths())
	distinct := make(map[string]struct{})
	for _, r := range path[:12] {
		distinct[r.String()] = struct{}{}
	}
	assert.Len(t, distinct, 12, "each month of a year gets its own draw")
}

func TestNormalModeMeanOverride(t *testing.T) {
	cfg := monteCarloScenario()
	override := decimal.NewFromFloat(0.03)
	mc := MonteCarloConfig{
		NumSimulations:   1,
		Seed:             13,
		AnnualReturnMean: override,
	}
	engine := NewMonteCarloEngine(cfg, mc, nil)

	path := engine.buildPath(rand.New(rand.NewSource(13)))

	expected := domain.MonthlyFromAnnual(override)
	for _, r := range path {
		assert.True(t, r.Equal(expected), "zero volatility replays the overridden mean")
	}
}

func TestNormalModeSurvivesHighVolatility(t *testing.T) {
	cfg := monteCarloScenario()
	mc := MonteCarloConfig{
		NumSimulations:     1,
		Seed:               17,
		AnnualReturnStdDev: decimal.NewFromFloat(4),
	}
	engine := NewMonteCarloEngine(cfg, mc, nil)

	floor := decimal.NewFromInt(-1)
	path := engine.buildPath(rand.New(rand.NewSource(17)))
	for m, r := range path {
		assert.True(t, r.GreaterThanOrEqual(floor), "month %d draw floors at a total loss", m)
	}

	batch := MonteCarloConfig{
		NumSimulations:     100,
		Seed:               17,
		AnnualReturnStdDev: decimal.NewFromFloat(0.6),
	}
	result, err := NewMonteCarloEngine(monteCarloScenario(), batch, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 100)
}

func TestMonteCarloPathModeIsDeterministic(t *testing.T) {
	cfg := monteCarloScenario()
	months := cfg.HorizonMonths()
	path := make([]decimal.Decimal, months)
	monthly := domain.MonthlyFromAnnual(decimal.NewFromFloat(0.06))
	for i := range path {
		path[i] = monthly
	}

	mc := MonteCarloConfig{
		NumSimulations: 5,
		Seed:           9,
		Mode:           ScenarioPath,
		Path:           path,
	}

	result, err := NewMonteCarloEngine(cfg, mc, nil).Run(context.Background())
	require.NoError(t, err)

	base := runSimulation(t, monteCarloScenario())
	for _, o := range result.Outcomes {
		assert.True(t, o.FinalValue.Equal(base.FinalValue),
			"replaying the constant path matches the deterministic run")
	}
}

func TestMonteCarloKeepPaths(t *testing.T) {
	mc := MonteCarloConfig{
		NumSimulations:     4,
		Seed:               11,
		AnnualReturnStdDev: decimal.NewFromFloat(0.10),
		KeepPaths:          true,
	}
	cfg := monteCarloScenario()

	result, err := NewMonteCarloEngine(cfg, mc, nil).Run(context.Background())
	require.NoError(t, err)

	for _, o := range result.Outcomes {
		require.Len(t, o.Values, cfg.HorizonMonths()+1)
		assert.True(t, o.Values[0].Equal(cfg.InitialInvestment))
	}
}

func TestMonteCarloValidation(t *testing.T) {
	tests := []struct {
		name string
		mc   MonteCarloConfig
	}{
		{"worst-start without window", MonteCarloConfig{NumSimulations: 1, Seed: 1, Mode: ScenarioWorstStart}},
		{"worst-withdrawal without window", MonteCarloConfig{NumSimulations: 1, Seed: 1, Mode: ScenarioWorstWithdrawal}},
		{"path mode without path", MonteCarloConfig{NumSimulations: 1, Seed: 1, Mode: ScenarioPath}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMonteCarloEngine(monteCarloScenario(), tt.mc, nil).Run(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestMonteCarloWorstStartInjectsWindow(t *testing.T) {
	window := make([]decimal.Decimal, 36)
	for i := range window {
		window[i] = decimal.NewFromFloat(-0.05)
	}
	mc := MonteCarloConfig{
		NumSimulations: 10,
		Seed:           21,
		Mode:           ScenarioWorstStart,
		WorstWindow:    window,
	}

	stressed, err := NewMonteCarloEngine(monteCarloScenario(), mc, nil).Run(context.Background())
	require.NoError(t, err)

	plain, err := NewMonteCarloEngine(monteCarloScenario(), MonteCarloConfig{
		NumSimulations: 10,
		Seed:           21,
	}, nil).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, stressed.MedianAtContributionEnd.LessThan(plain.MedianAtContributionEnd),
		"a three-year crash at the start depresses the outcome")
}

func TestMonteCarloCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mc := MonteCarloConfig{
		NumSimulations:     1000,
		Seed:               5,
		AnnualReturnStdDev: decimal.NewFromFloat(0.10),
		Workers:            1,
	}
	_, err := NewMonteCarloEngine(monteCarloScenario(), mc, nil).Run(ctx)
	assert.Error(t, err)
}
