package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yielddelta/backtester/internal/archive"
	"github.com/yielddelta/backtester/internal/backtest"
	"github.com/yielddelta/backtester/internal/report"
	"github.com/yielddelta/backtester/internal/risk"
	"github.com/yielddelta/backtester/internal/strategy"
)

// runFlags are the single-run parameters shared by run and sweep.
type runFlags struct {
	strategy  string
	days      int
	capital   float64
	gas       float64
	feeRate   float64
	frequency string
	seed      int64
	asset     string
	pool      string
	synthetic bool
}

func (f *runFlags) bind(cmd *cobra.Command) {
	ids := make([]string, 0, len(strategy.IDs()))
	for _, id := range strategy.IDs() {
		ids = append(ids, string(id))
	}

	cmd.Flags().StringVar(&f.strategy, "strategy", "", "strategy id ("+strings.Join(ids, "|")+")")
	cmd.Flags().IntVar(&f.days, "days", 90, "days of history")
	cmd.Flags().Float64Var(&f.capital, "capital", 0, "initial capital in USD (default BACKTEST_INITIAL_CAPITAL)")
	cmd.Flags().Float64Var(&f.gas, "gas", -1, "gas cost per rebalance in USD (default BACKTEST_GAS_COST)")
	cmd.Flags().Float64Var(&f.feeRate, "fee-rate", -1, "pool fee tier (default BACKTEST_FEE_RATE)")
	cmd.Flags().StringVar(&f.frequency, "frequency", string(strategy.OnThreshold), "rebalance frequency (daily|weekly|on-threshold)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed (default BACKTEST_SEED)")
	cmd.Flags().StringVar(&f.asset, "asset", "", "CoinGecko asset id (default MARKET_ASSET_ID)")
	cmd.Flags().StringVar(&f.pool, "pool", "", "pool address (default MARKET_POOL_ADDRESS)")
	cmd.Flags().BoolVar(&f.synthetic, "synthetic", false, "use seeded synthetic series instead of the network")

	_ = cmd.MarkFlagRequired("strategy")
}

// resolve fills unset flags from the environment defaults.
func (f *runFlags) resolve(a *app) {
	if f.capital <= 0 {
		f.capital = a.cfg.Backtest.InitialCapital
	}
	if f.gas < 0 {
		f.gas = a.cfg.Backtest.GasCost
	}
	if f.feeRate < 0 {
		f.feeRate = a.cfg.Backtest.FeeRate
	}
	if f.seed == 0 {
		f.seed = a.cfg.Backtest.Seed
	}
	if f.asset == "" {
		f.asset = a.cfg.Market.AssetID
	}
	if f.pool == "" {
		f.pool = a.cfg.Market.PoolAddress
	}
}

func (f *runFlags) config() backtest.Config {
	return backtest.Config{
		Strategy:            strategy.ID(f.strategy),
		InitialCapital:      f.capital,
		RebalanceFrequency:  strategy.Frequency(f.frequency),
		FeeRate:             f.feeRate,
		GasCostPerRebalance: f.gas,
		Seed:                f.seed,
	}
}

// job validates the flags and fetches the series for one run.
func (f *runFlags) job(ctx context.Context, a *app) (backtest.Job, error) {
	f.resolve(a)

	cfg := f.config()
	if err := cfg.Validate(); err != nil {
		return backtest.Job{}, err
	}

	prices, pools, err := a.series(ctx, f.asset, f.pool, f.days, cfg.Strategy.UsesPool())
	if err != nil {
		return backtest.Job{}, err
	}
	cfg.StartDate, cfg.EndDate = window(prices)

	return backtest.Job{Name: cfg.Strategy.DisplayName(), Config: cfg, Prices: prices, Pools: pools}, nil
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Backtest one strategy",
	Long: `Backtests one strategy over recent history and prints the report.

Prices come from CoinGecko, falling back to the CoinGecko history page and
finally to a seeded synthetic series. Pool strategies also load the pool's
daily data from the DEX subgraph.

Example:
  go run ./cmd/backtester run --strategy concentrated-liquidity
  go run ./cmd/backtester run --strategy stable-max --frequency daily --fee-rate 0.001 --gas 0
  go run ./cmd/backtester run --strategy delta-neutral --synthetic --seed 7 --csv dn.csv
  go run ./cmd/backtester run --strategy yield-farming --bootstrap --save`,
	RunE: runBacktest,
}

var (
	runOpts        runFlags
	runSave        bool
	runCSV         string
	runJSON        string
	runBootstrap   bool
	runBootPaths   int
	runBootHorizon int
)

func init() {
	rootCmd.AddCommand(runCmd)

	runOpts.bind(runCmd)
	runCmd.Flags().BoolVar(&runSave, "save", false, "archive the run (SQLite when ARCHIVE_DRIVER=none)")
	runCmd.Flags().StringVar(&runCSV, "csv", "", "write daily performance to this CSV file")
	runCmd.Flags().StringVar(&runJSON, "json", "", "write the full result to this JSON file")
	runCmd.Flags().BoolVar(&runBootstrap, "bootstrap", false, "bootstrap holding-period returns from the daily returns")
	runCmd.Flags().IntVar(&runBootPaths, "bootstrap-paths", risk.DefaultBootstrapConfig().NumSimulations, "bootstrap paths")
	runCmd.Flags().IntVar(&runBootHorizon, "bootstrap-days", risk.DefaultBootstrapConfig().HoldingPeriod, "bootstrap holding period in days")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{Synthetic: runOpts.synthetic, Seed: runOpts.seed})
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := runOpts.job(ctx, a)
	if err != nil {
		return err
	}

	PrintHeader("Yield Delta Backtest", [][2]string{
		{"Strategy", job.Config.Strategy.DisplayName()},
		{"Period", fmt.Sprintf("%s ~ %s (%d days)", job.Config.StartDate.Format("2006-01-02"), job.Config.EndDate.Format("2006-01-02"), len(job.Prices))},
		{"Capital", fmt.Sprintf("$%.2f", job.Config.InitialCapital)},
		{"Frequency", string(job.Config.RebalanceFrequency)},
		{"Seed", fmt.Sprintf("%d", job.Config.Seed)},
	})

	result, err := a.engine.Run(ctx, job.Config, job.Prices, job.Pools)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	console := report.NewConsole()
	console.PrintResult(result)

	if runBootstrap {
		if err := printBootstrap(ctx, console, result); err != nil {
			return err
		}
	}

	if runCSV != "" {
		if err := report.ExportFile(runCSV, func(w io.Writer) error {
			return report.WriteCSV(w, result.DailyPerformance)
		}); err != nil {
			return err
		}
		PrintSuccess("Daily performance written to " + runCSV)
	}
	if runJSON != "" {
		if err := report.ExportFile(runJSON, func(w io.Writer) error {
			return report.WriteJSON(w, result)
		}); err != nil {
			return err
		}
		PrintSuccess("Result written to " + runJSON)
	}

	if runSave {
		if err := saveResults(ctx, a, []*backtest.Result{result}, ""); err != nil {
			return err
		}
	}
	return nil
}

func printBootstrap(ctx context.Context, console *report.Console, result *backtest.Result) error {
	cfg := risk.DefaultBootstrapConfig()
	cfg.NumSimulations = runBootPaths
	cfg.HoldingPeriod = runBootHorizon
	cfg.Seed = result.Seed

	b, err := risk.NewBootstrapper(cfg)
	if err != nil {
		return err
	}

	returns := make([]float64, 0, len(result.DailyPerformance))
	for i, rec := range result.DailyPerformance {
		if i == 0 {
			continue
		}
		returns = append(returns, rec.DailyReturnPct)
	}

	boot, err := b.Simulate(ctx, returns)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	console.PrintBootstrap(boot)
	return nil
}

func saveResults(ctx context.Context, a *app, results []*backtest.Result, planHash string) error {
	store, err := a.openStore(ctx, true)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, r := range results {
		if err := store.Save(ctx, r, archive.SaveOptions{PlanHash: planHash}); err != nil {
			return fmt.Errorf("save run %s: %w", r.RunID, err)
		}
	}
	PrintSuccess(fmt.Sprintf("Archived %d run(s)", len(results)))
	return nil
}
