package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yielddelta/backtester/internal/backtest"
	"github.com/yielddelta/backtester/internal/report"
	"github.com/yielddelta/backtester/internal/runplan"
)

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run a YAML plan and compare strategies side by side",
	Long: `Runs every entry of a run plan over the same price and pool series
and prints a comparison table.

Runs are independent and execute concurrently, bounded by --workers.

Example:
  go run ./cmd/backtester compare --plan config/plans/concentrated_vs_stable.yaml
  go run ./cmd/backtester compare --plan plan.yaml --workers 8 --detail --save`,
	RunE: runCompare,
}

var (
	comparePlan    string
	compareWorkers int
	compareDetail  bool
	compareSave    bool
	compareJSON    string
)

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringVar(&comparePlan, "plan", "", "run plan YAML file (required)")
	compareCmd.Flags().IntVar(&compareWorkers, "workers", 0, "concurrent runs (default BACKTEST_WORKERS)")
	compareCmd.Flags().BoolVar(&compareDetail, "detail", false, "print the full report of every run")
	compareCmd.Flags().BoolVar(&compareSave, "save", false, "archive every run")
	compareCmd.Flags().StringVar(&compareJSON, "json", "", "write all results to this JSON file")

	_ = compareCmd.MarkFlagRequired("plan")
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	plan, raw, err := runplan.Load(comparePlan)
	if err != nil {
		return err
	}
	snapshot, err := runplan.NewSnapshot(plan, raw)
	if err != nil {
		return fmt.Errorf("snapshot plan: %w", err)
	}

	a, err := newApp(ctx, appOptions{Synthetic: plan.Market.Synthetic, Seed: plan.Defaults.Seed})
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader("Yield Delta Strategy Comparison", [][2]string{
		{"Plan", fmt.Sprintf("%s v%s", plan.Meta.Name, plan.Meta.Version)},
		{"Hash", snapshot.PlanHash[:12]},
		{"Runs", fmt.Sprintf("%d", len(plan.Runs))},
		{"Days", fmt.Sprintf("%d", plan.Defaults.Days)},
		{"Asset", plan.Market.AssetID},
	})
	PrintPlanWarnings(runplan.Warn(plan))

	needPool := false
	for _, r := range plan.Runs {
		if r.Strategy.UsesPool() {
			needPool = true
			break
		}
	}
	withPool := needPool && (plan.Market.PoolAddress != "" || plan.Market.Synthetic)

	prices, pools, err := a.series(ctx, plan.Market.AssetID, plan.Market.PoolAddress, plan.Defaults.Days, withPool)
	if err != nil {
		return err
	}

	_, end := window(prices)
	configs := plan.Configs(end)
	jobs := make([]backtest.Job, len(configs))
	labels := make([]string, len(configs))
	for i, cfg := range configs {
		labels[i] = plan.Runs[i].DisplayName()
		jobs[i] = backtest.Job{Name: labels[i], Config: cfg, Prices: prices, Pools: pools}
	}

	workers := compareWorkers
	if workers <= 0 {
		workers = a.cfg.Backtest.Workers
	}

	results, err := backtest.RunAll(ctx, a.engine, jobs, workers)
	if err != nil {
		return err
	}

	console := report.NewConsole()
	if compareDetail {
		for _, r := range results {
			console.PrintResult(r)
		}
	}
	console.PrintComparison(results, labels)

	for i, r := range results {
		for _, w := range r.Warnings {
			PrintWarning(fmt.Sprintf("%s: [%s] %s", labels[i], w.Code, w.Message))
		}
	}

	if compareJSON != "" {
		out := struct {
			Plan    *runplan.Snapshot  `json:"plan"`
			Results []*backtest.Result `json:"results"`
		}{snapshot, results}
		if err := report.ExportFile(compareJSON, func(w io.Writer) error {
			return report.WriteJSON(w, out)
		}); err != nil {
			return err
		}
		PrintSuccess("Results written to " + compareJSON)
	}

	if compareSave {
		return saveResults(ctx, a, results, snapshot.PlanHash)
	}
	return nil
}
