package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime/debug"
	"time"

	"github.com/bauerfinanz/depotsim/internal/calculation"
	"github.com/bauerfinanz/depotsim/internal/config"
	"github.com/bauerfinanz/depotsim/internal/domain"
	"github.com/bauerfinanz/depotsim/internal/finmath"
	"github.com/bauerfinanz/depotsim/internal/histdata"
	"github.com/bauerfinanz/depotsim/internal/output"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// simpleCLILogger implements calculation.Logger using the standard log package
type simpleCLILogger struct{}

func (simpleCLILogger) Debugf(format string, args ...any) { log.Printf("DEBUG: "+format, args...) }
func (simpleCLILogger) Infof(format string, args ...any)  { log.Printf("INFO: "+format, args...) }
func (simpleCLILogger) Warnf(format string, args ...any)  { log.Printf("WARN: "+format, args...) }
func (simpleCLILogger) Errorf(format string, args ...any) { log.Printf("ERROR: "+format, args...) }

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(os.Stdout, "depotsim %s (commit %s, built %s)\n", version, commit, date)
			if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
				fmt.Fprintln(os.Stdout, bi.Main.Path)
			}
		},
	}
}

func cliLogger(cmd *cobra.Command) calculation.Logger {
	if debugMode, _ := cmd.Flags().GetBool("debug"); debugMode {
		return simpleCLILogger{}
	}
	return calculation.NopLogger{}
}

var rootCmd = &cobra.Command{
	Use:   "depotsim",
	Short: "German savings-plan simulator",
	Long: "Simulates long-horizon fund savings plans under German capital-gains\n" +
		"taxation, comparing the brokerage depot and insurance-wrapper variants.",
}

var simulateCmd = &cobra.Command{
	Use:   "simulate [scenario-file...]",
	Short: "Run deterministic scenario simulations",
	Long: `Run one deterministic simulation per scenario file and print a summary.
With two or more files a side-by-side comparison table is appended.

Examples:
  depotsim simulate depot.yaml
  depotsim simulate depot.yaml police.yaml --period-log periods.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := cliLogger(cmd)
		parser := config.NewInputParser()
		formatter := output.ConsoleFormatter{}

		var results []*domain.SimulationResult
		for _, inputFile := range args {
			cfg, err := parser.LoadFromFile(inputFile)
			if err != nil {
				return err
			}

			returns := calculation.NewConstantReturns(cfg.Common().MonthlyReturn())
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			sim := calculation.NewPeriodSimulator(cfg, returns, rng, logger)
			result := sim.Run()
			results = append(results, result)

			fmt.Println(formatter.FormatSimulation(result))
			if irr, err := finmath.XIRR(result.CashFlows); err == nil {
				fmt.Printf("Money-weighted return (XIRR): %s\n", output.FormatPercentage(irr))
			} else {
				logger.Debugf("XIRR not computable for %s: %v", result.Label, err)
			}
			if realIRR, err := finmath.RealXIRR(result.CashFlows); err == nil {
				fmt.Printf("Real money-weighted return:   %s\n", output.FormatPercentage(realIRR))
			}
			fmt.Println()
		}

		if len(results) > 1 {
			fmt.Println(formatter.FormatComparison(results))
		}

		reporter := output.CSVReporter{}
		if periodLog, _ := cmd.Flags().GetString("period-log"); periodLog != "" {
			if err := reporter.WritePeriodLog(results[0], periodLog); err != nil {
				return fmt.Errorf("writing period log: %w", err)
			}
			fmt.Printf("Period log written to %s\n", periodLog)
		}
		if rebalLog, _ := cmd.Flags().GetString("rebalancing-log"); rebalLog != "" {
			if err := reporter.WriteRebalancingLog(results[0], rebalLog); err != nil {
				return fmt.Errorf("writing rebalancing log: %w", err)
			}
			fmt.Printf("Rebalancing log written to %s\n", rebalLog)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [scenario-file]",
	Short: "Validate a scenario file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser := config.NewInputParser()
		cfg, err := parser.LoadFromFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Scenario file %s is valid (%s, %d year horizon)\n",
			args[0], cfg.Mode(), cfg.Common().HorizonYears)
		return nil
	},
}

var monteCarloCmd = &cobra.Command{
	Use:   "montecarlo [scenario-file]",
	Short: "Run a Monte Carlo batch over a scenario",
	Long: `Run many randomized simulations of one scenario and print distribution
tables: value percentiles by plan year, annualized-return percentiles,
annual-return bucket probabilities and drawdown breach probabilities.

Return volatility comes from --stddev, or is estimated from a historical
monthly-return file given with --data; a historical file also replaces the
scenario's expected return with the series mean. The stress modes (worst-start,
worst-withdrawal) inject the worst three-year window of the historical
series; worst-simulated replays the worst path of a pilot batch.

Examples:
  depotsim montecarlo depot.yaml --simulations 5000 --stddev 0.15
  depotsim montecarlo depot.yaml --data msci_world.csv --mode worst-start`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := cliLogger(cmd)
		parser := config.NewInputParser()
		cfg, err := parser.LoadFromFile(args[0])
		if err != nil {
			return err
		}

		sims, _ := cmd.Flags().GetInt("simulations")
		seed, _ := cmd.Flags().GetInt64("seed")
		workers, _ := cmd.Flags().GetInt("workers")
		stdDevFlag, _ := cmd.Flags().GetFloat64("stddev")
		modeFlag, _ := cmd.Flags().GetString("mode")
		dataFile, _ := cmd.Flags().GetString("data")
		realReturns, _ := cmd.Flags().GetBool("real-returns")

		mc := calculation.MonteCarloConfig{
			NumSimulations: sims,
			Seed:           seed,
			Workers:        workers,
			Mode:           calculation.ScenarioMode(modeFlag),
		}

		var series *histdata.Series
		if dataFile != "" {
			inflation := decimal.Zero
			if realReturns {
				inflation = cfg.Common().InflationRate
			}
			series, err = histdata.Load(dataFile, inflation)
			if err != nil {
				return err
			}
			logger.Infof("loaded %d monthly returns from %s (mean %s, stddev %s)",
				len(series.Returns), dataFile, series.Mean.StringFixed(6), series.StdDev.StringFixed(6))
			mc.AnnualReturnMean = series.AnnualizedMean()
			mc.AnnualReturnStdDev = series.AnnualizedStdDev()
		}
		if stdDevFlag > 0 {
			mc.AnnualReturnStdDev = decimal.NewFromFloat(stdDevFlag)
		}

		switch mc.Mode {
		case calculation.ScenarioWorstStart, calculation.ScenarioWorstWithdrawal:
			if series == nil {
				return fmt.Errorf("mode %s requires --data with a historical return series", mc.Mode)
			}
			window, err := calculation.FindWorstThreeYears(series.Returns)
			if err != nil {
				return err
			}
			logger.Infof("worst three-year window starts %d, cumulative return %s",
				window.StartYear, window.CumulativeReturn.StringFixed(4))
			mc.WorstWindow = window.Returns
		case calculation.ScenarioWorstSimulated:
			window, err := pilotWorstPath(cmd.Context(), cfg, mc, logger)
			if err != nil {
				return err
			}
			mc.Mode = calculation.ScenarioWorstStart
			mc.WorstWindow = window
		}

		engine := calculation.NewMonteCarloEngine(cfg, mc, logger)
		result, err := engine.Run(cmd.Context())
		if err != nil {
			return err
		}
		result.Label = cfg.Common().Label

		formatter := output.ConsoleFormatter{}
		fmt.Println(formatter.FormatMonteCarlo(result))

		reporter := output.CSVReporter{}
		if csvFile, _ := cmd.Flags().GetString("csv"); csvFile != "" {
			if err := reporter.WriteMonteCarlo(result, csvFile); err != nil {
				return fmt.Errorf("writing Monte Carlo tables: %w", err)
			}
			fmt.Printf("Distribution tables written to %s\n", csvFile)
		}
		if outcomesFile, _ := cmd.Flags().GetString("outcomes"); outcomesFile != "" {
			if err := reporter.WriteOutcomes(result, outcomesFile); err != nil {
				return fmt.Errorf("writing outcomes: %w", err)
			}
			fmt.Printf("Per-run outcomes written to %s\n", outcomesFile)
		}
		return nil
	},
}

// pilotWorstPath runs a small normal-mode batch with path retention and
// extracts the worst simulated three-year window as a monthly return series.
func pilotWorstPath(ctx context.Context, cfg domain.AccountConfig, mc calculation.MonteCarloConfig, logger calculation.Logger) ([]decimal.Decimal, error) {
	pilot := mc
	pilot.Mode = calculation.ScenarioNormal
	pilot.KeepPaths = true
	if pilot.NumSimulations <= 0 || pilot.NumSimulations > 200 {
		pilot.NumSimulations = 200
	}
	engine := calculation.NewMonteCarloEngine(cfg, pilot, logger)
	result, err := engine.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("pilot batch: %w", err)
	}

	paths := make([][]decimal.Decimal, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		paths = append(paths, o.Values)
	}
	window, err := calculation.FindWorstThreeYearsInPaths(paths)
	if err != nil {
		return nil, err
	}
	logger.Infof("worst simulated window: cumulative return %s", window.CumulativeReturn.StringFixed(4))
	return window.Returns, nil
}

func main() {
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	simulateCmd.Flags().String("period-log", "", "write the first scenario's per-month log to this CSV file")
	simulateCmd.Flags().String("rebalancing-log", "", "write the first scenario's rebalancing events to this CSV file")

	monteCarloCmd.Flags().Int("simulations", 1000, "number of simulation runs")
	monteCarloCmd.Flags().Int64("seed", 0, "random seed (0 = time-based)")
	monteCarloCmd.Flags().Int("workers", 0, "parallel workers (0 = one per CPU)")
	monteCarloCmd.Flags().Float64("stddev", 0, "annual return standard deviation (overrides --data estimate)")
	monteCarloCmd.Flags().String("mode", string(calculation.ScenarioNormal),
		"scenario mode: normal, worst-start, worst-withdrawal, worst-simulated")
	monteCarloCmd.Flags().String("data", "", "historical monthly-return file (semicolon CSV)")
	monteCarloCmd.Flags().Bool("real-returns", false, "deflate historical returns by the scenario inflation rate")
	monteCarloCmd.Flags().String("csv", "", "write distribution tables to this CSV file")
	monteCarloCmd.Flags().String("outcomes", "", "write per-run outcomes to this CSV file")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(monteCarloCmd)
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
