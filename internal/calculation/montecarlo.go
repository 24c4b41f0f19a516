package calculation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/bauerfinanz/depotsim/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScenarioMode selects how each simulation's monthly return path is built.
type ScenarioMode string

const (
	// ScenarioNormal draws every monthly return independently from a normal
	// distribution around the expected monthly rate.
	ScenarioNormal ScenarioMode = "normal"
	// ScenarioPath replays a supplied deterministic or historical series.
	ScenarioPath ScenarioMode = "path"
	// ScenarioWorstStart injects the worst window at the start of the horizon.
	ScenarioWorstStart ScenarioMode = "worst-start"
	// ScenarioWorstWithdrawal injects the worst window at the start of the
	// withdrawal phase.
	ScenarioWorstWithdrawal ScenarioMode = "worst-withdrawal"
	// ScenarioWorstSimulated replays an entire extracted worst path.
	ScenarioWorstSimulated ScenarioMode = "worst-simulated"
)

// Default distribution checkpoints, in plan years. The horizon year is
// always appended when missing.
var defaultCheckpointYears = []int{1, 2, 5, 10, 15, 20, 25}

var (
	valuePercentiles  = []float64{2.5, 10, 25, 50, 75, 90, 97.5}
	returnPercentiles = []float64{10, 25, 50, 75, 90}
)

// returnBins are the annual-return probability buckets (upper bounds are
// inclusive), ending in an open ">12.5%" bucket.
var returnBins = []struct {
	Label string
	Lower float64 // exclusive; -inf for the first bucket
	Upper float64 // inclusive; +inf for the last bucket
}{
	{"<= 0%", math.Inf(-1), 0},
	{">0% to 2.5%", 0, 0.025},
	{">2.5% to 5%", 0.025, 0.05},
	{">5% to 7.5%", 0.05, 0.075},
	{">7.5% to 10%", 0.075, 0.10},
	{">10% to 12.5%", 0.10, 0.125},
	{">12.5%", 0.125, math.Inf(1)},
}

// ReturnBinLabels lists the annual-return bucket labels in display order,
// matching the keys of MonteCarloResult.ReturnBinProbabilities.
func ReturnBinLabels() []string {
	labels := make([]string, len(returnBins))
	for i, b := range returnBins {
		labels[i] = b.Label
	}
	return labels
}

// drawdownThresholds run from -2.5% to -30% in -2.5% steps.
func drawdownThresholds() []decimal.Decimal {
	step := decimal.NewFromFloat(-0.025)
	thresholds := make([]decimal.Decimal, 0, 12)
	for i := 1; i <= 12; i++ {
		thresholds = append(thresholds, step.Mul(decimal.NewFromInt(int64(i))))
	}
	return thresholds
}

// MonteCarloConfig parameterizes one simulation batch.
type MonteCarloConfig struct {
	NumSimulations int
	Seed           int64
	// AnnualReturnMean overrides the scenario's expected return when nonzero,
	// e.g. with the mean of a historical series.
	AnnualReturnMean   decimal.Decimal
	AnnualReturnStdDev decimal.Decimal
	Mode               ScenarioMode
	// WorstWindow holds the injected monthly stress returns for the
	// worst-start and worst-withdrawal modes.
	WorstWindow []decimal.Decimal
	// Path is the supplied monthly series for the path and worst-simulated
	// modes.
	Path            []decimal.Decimal
	Workers         int
	CheckpointYears []int
	// KeepPaths retains every run's full monthly value path on its outcome.
	// Off by default; a large batch over a long horizon gets heavy.
	KeepPaths bool
}

// RunOutcome captures the distribution-relevant numbers of one simulation.
type RunOutcome struct {
	RunID                  uuid.UUID
	FinalValue             decimal.Decimal
	ValueAtContributionEnd decimal.Decimal
	CheckpointValues       map[int]decimal.Decimal
	AnnualReturns          []decimal.Decimal
	MaxDrawdown            decimal.Decimal
	// Values is the month-indexed value path, only populated with KeepPaths.
	Values []decimal.Decimal
}

// DrawdownBreach is the probability of the maximum drawdown reaching a
// threshold at any point of the horizon.
type DrawdownBreach struct {
	Threshold   decimal.Decimal
	Probability decimal.Decimal
}

// MonteCarloResult aggregates the distributional statistics of one batch.
type MonteCarloResult struct {
	BatchID        uuid.UUID
	Label          string
	Mode           ScenarioMode
	NumSimulations int
	HorizonYears   int

	// Value distribution at the end of the contribution phase.
	MeanAtContributionEnd    decimal.Decimal
	MedianAtContributionEnd  decimal.Decimal
	CILowerAtContributionEnd decimal.Decimal // 2.5th percentile
	CIUpperAtContributionEnd decimal.Decimal // 97.5th percentile

	// CheckpointValues maps a plan year to the percentile band of portfolio
	// values; AnnualizedReturns to the band of annualized returns since
	// inception.
	CheckpointValues  map[int]map[string]decimal.Decimal
	AnnualizedReturns map[int]map[string]decimal.Decimal

	// ReturnBinProbabilities maps a bucket label to the per-year probability
	// of the annual return landing in that bucket.
	ReturnBinProbabilities map[string][]decimal.Decimal
	// DrawdownBreaches lists the probability of breaching each drawdown
	// threshold within the horizon.
	DrawdownBreaches []DrawdownBreach

	Outcomes []RunOutcome
}

// MonteCarloEngine replays the full period simulator under randomized or
// stress return paths and aggregates the outcome distribution. Runs are
// independent: each gets its own ledger, accumulators and seeded generator,
// so the batch parallelizes across a bounded worker pool.
type MonteCarloEngine struct {
	cfg    domain.AccountConfig
	mc     MonteCarloConfig
	logger Logger
}

// NewMonteCarloEngine wires a batch engine. Zero-valued settings fall back
// to defaults: 1000 simulations, one worker per CPU, a time-based seed, and
// the standard checkpoint years.
func NewMonteCarloEngine(cfg domain.AccountConfig, mc MonteCarloConfig, logger Logger) *MonteCarloEngine {
	if logger == nil {
		logger = NopLogger{}
	}
	if mc.NumSimulations <= 0 {
		mc.NumSimulations = 1000
	}
	if mc.Workers <= 0 {
		mc.Workers = runtime.NumCPU()
	}
	if mc.Seed == 0 {
		mc.Seed = time.Now().UnixNano()
	}
	if mc.Mode == "" {
		mc.Mode = ScenarioNormal
	}
	if len(mc.CheckpointYears) == 0 {
		mc.CheckpointYears = append([]int(nil), defaultCheckpointYears...)
	}
	horizon := cfg.Common().HorizonYears
	hasHorizon := false
	for _, y := range mc.CheckpointYears {
		if y == horizon {
			hasHorizon = true
		}
	}
	if !hasHorizon {
		mc.CheckpointYears = append(mc.CheckpointYears, horizon)
	}
	return &MonteCarloEngine{cfg: cfg, mc: mc, logger: logger}
}

// Run executes the batch. Cancellation is coarse-grained: the context is
// checked between runs, never inside one.
func (mce *MonteCarloEngine) Run(ctx context.Context) (*MonteCarloResult, error) {
	common := mce.cfg.Common()
	if err := mce.validate(common); err != nil {
		return nil, err
	}
	mce.logger.Infof("starting Monte Carlo batch: %d runs, mode %s, seed %d",
		mce.mc.NumSimulations, mce.mc.Mode, mce.mc.Seed)

	outcomes := make([]RunOutcome, mce.mc.NumSimulations)
	jobs := make(chan int)
	errOnce := sync.Once{}
	var runErr error

	var wg sync.WaitGroup
	for w := 0; w < mce.mc.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rng := rand.New(rand.NewSource(mce.mc.Seed + int64(i)))
				outcome, err := mce.runOne(rng)
				if err != nil {
					errOnce.Do(func() { runErr = err })
					continue
				}
				outcomes[i] = *outcome
			}
		}()
	}

feed:
	for i := 0; i < mce.mc.NumSimulations; i++ {
		select {
		case <-ctx.Done():
			errOnce.Do(func() { runErr = ctx.Err() })
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if runErr != nil {
		return nil, runErr
	}

	return mce.summarize(outcomes), nil
}

func (mce *MonteCarloEngine) validate(common domain.CommonConfig) error {
	switch mce.mc.Mode {
	case ScenarioPath, ScenarioWorstSimulated:
		if len(mce.mc.Path) == 0 {
			return fmt.Errorf("mode %s requires a return path", mce.mc.Mode)
		}
	case ScenarioWorstStart, ScenarioWorstWithdrawal:
		if len(mce.mc.WorstWindow) == 0 {
			return fmt.Errorf("mode %s requires an extracted worst window", mce.mc.Mode)
		}
	case ScenarioNormal:
	default:
		return fmt.Errorf("unknown scenario mode %q", mce.mc.Mode)
	}
	if common.HorizonYears <= 0 {
		return fmt.Errorf("horizon must be at least one year")
	}
	return nil
}

// buildPath assembles one run's monthly return path according to the
// scenario mode.
func (mce *MonteCarloEngine) buildPath(rng *rand.Rand) []decimal.Decimal {
	common := mce.cfg.Common()
	months := common.HorizonMonths()

	if mce.mc.Mode == ScenarioPath || mce.mc.Mode == ScenarioWorstSimulated {
		path := make([]decimal.Decimal, months)
		for m := 0; m < months; m++ {
			if m < len(mce.mc.Path) {
				path[m] = mce.mc.Path[m]
			}
		}
		return path
	}

	annualMean := common.AnnualReturn
	if !mce.mc.AnnualReturnMean.IsZero() {
		annualMean = mce.mc.AnnualReturnMean
	}
	monthlyMean := domain.MonthlyFromAnnual(annualMean).InexactFloat64()
	monthlyStdDev := mce.mc.AnnualReturnStdDev.InexactFloat64() / math.Sqrt(12)
	path := make([]decimal.Decimal, months)
	for m := 0; m < months; m++ {
		r := monthlyMean
		if monthlyStdDev > 0 {
			r = monthlyMean + rng.NormFloat64()*monthlyStdDev
			if r < -1 {
				r = -1
			}
		}
		path[m] = decimal.NewFromFloat(r)
	}

	offset := -1
	switch mce.mc.Mode {
	case ScenarioWorstStart:
		offset = 0
	case ScenarioWorstWithdrawal:
		offset = common.ContributionMonths()
	}
	if offset >= 0 {
		for i, r := range mce.mc.WorstWindow {
			if offset+i >= len(path) {
				break
			}
			path[offset+i] = r
		}
	}
	return path
}

func (mce *MonteCarloEngine) runOne(rng *rand.Rand) (*RunOutcome, error) {
	common := mce.cfg.Common()
	path := mce.buildPath(rng)
	sim := NewPeriodSimulator(mce.cfg, NewPathReturns(path, decimal.Zero), rng, NopLogger{})
	res := sim.Run()

	months := common.HorizonMonths()
	values := make([]decimal.Decimal, months+1)
	values[0] = common.InitialInvestment
	for m := 1; m <= months; m++ {
		values[m] = res.Periods[m-1].Value
	}

	outcome := &RunOutcome{
		RunID:            res.RunID,
		FinalValue:       values[months],
		CheckpointValues: make(map[int]decimal.Decimal, len(mce.mc.CheckpointYears)),
		AnnualReturns:    make([]decimal.Decimal, common.HorizonYears),
		MaxDrawdown:      decimal.Zero,
	}
	if mce.mc.KeepPaths {
		outcome.Values = values
	}

	contributionEnd := common.ContributionMonths()
	if contributionEnd >= months {
		contributionEnd = months - 1
	}
	if contributionEnd >= 0 {
		outcome.ValueAtContributionEnd = values[contributionEnd]
	}

	for _, y := range mce.mc.CheckpointYears {
		if y*12 <= months {
			outcome.CheckpointValues[y] = values[y*12]
		}
	}
	for y := 0; y < common.HorizonYears; y++ {
		start := values[y*12]
		end := values[(y+1)*12]
		if start.IsPositive() {
			outcome.AnnualReturns[y] = end.Div(start).Sub(decimal.NewFromInt(1))
		}
	}

	peak := values[0]
	for _, v := range values {
		if v.GreaterThan(peak) {
			peak = v
		}
		if peak.IsPositive() {
			dd := v.Sub(peak).Div(peak)
			if dd.LessThan(outcome.MaxDrawdown) {
				outcome.MaxDrawdown = dd
			}
		}
	}
	return outcome, nil
}

func (mce *MonteCarloEngine) summarize(outcomes []RunOutcome) *MonteCarloResult {
	common := mce.cfg.Common()
	n := len(outcomes)
	nDec := decimal.NewFromInt(int64(n))

	result := &MonteCarloResult{
		BatchID:                uuid.New(),
		Label:                  common.Label,
		Mode:                   mce.mc.Mode,
		NumSimulations:         n,
		HorizonYears:           common.HorizonYears,
		CheckpointValues:       make(map[int]map[string]decimal.Decimal),
		AnnualizedReturns:      make(map[int]map[string]decimal.Decimal),
		ReturnBinProbabilities: make(map[string][]decimal.Decimal),
		Outcomes:               outcomes,
	}

	atContributionEnd := make([]decimal.Decimal, n)
	for i, o := range outcomes {
		atContributionEnd[i] = o.ValueAtContributionEnd
	}
	result.MeanAtContributionEnd = Mean(atContributionEnd)
	result.MedianAtContributionEnd = Median(atContributionEnd)
	result.CILowerAtContributionEnd = Percentile(atContributionEnd, 2.5)
	result.CIUpperAtContributionEnd = Percentile(atContributionEnd, 97.5)

	initial := common.InitialInvestment
	for _, year := range mce.mc.CheckpointYears {
		values := make([]decimal.Decimal, 0, n)
		annualized := make([]decimal.Decimal, 0, n)
		for _, o := range outcomes {
			v, ok := o.CheckpointValues[year]
			if !ok {
				continue
			}
			values = append(values, v)
			if initial.IsPositive() && year > 0 {
				growth := v.Div(initial).InexactFloat64()
				annualized = append(annualized,
					decimal.NewFromFloat(math.Pow(growth, 1/float64(year))-1))
			}
		}
		if len(values) == 0 {
			continue
		}
		result.CheckpointValues[year] = PercentileBand(values, valuePercentiles)
		result.AnnualizedReturns[year] = PercentileBand(annualized, returnPercentiles)
	}

	for _, bin := range returnBins {
		perYear := make([]decimal.Decimal, common.HorizonYears)
		for y := 0; y < common.HorizonYears; y++ {
			count := 0
			for _, o := range outcomes {
				r := o.AnnualReturns[y].InexactFloat64()
				if r > bin.Lower && r <= bin.Upper {
					count++
				}
			}
			perYear[y] = decimal.NewFromInt(int64(count)).Div(nDec)
		}
		result.ReturnBinProbabilities[bin.Label] = perYear
	}

	for _, threshold := range drawdownThresholds() {
		count := 0
		for _, o := range outcomes {
			if o.MaxDrawdown.LessThanOrEqual(threshold) {
				count++
			}
		}
		result.DrawdownBreaches = append(result.DrawdownBreaches, DrawdownBreach{
			Threshold:   threshold,
			Probability: decimal.NewFromInt(int64(count)).Div(nDec),
		})
	}
	return result
}
