package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yielddelta/backtester/internal/archive"
	"github.com/yielddelta/backtester/internal/report"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived backtest runs",
	Long: `Lists runs saved with --save, newest first.

Example:
  go run ./cmd/backtester history --limit 20
  go run ./cmd/backtester history --run 6f1c2a9e-...`,
	RunE: runHistory,
}

var (
	historyLimit int
	historyRun   string
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to list")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show one run and its archived days")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{Synthetic: true})
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, ok := store.(archive.Nop); ok {
		PrintWarning("ARCHIVE_DRIVER=none; set it to sqlite or postgres to keep runs")
		return nil
	}

	console := report.NewConsole()

	if historyRun == "" {
		runs, err := store.List(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		console.PrintHistory(runs)
		return nil
	}

	run, err := store.Get(ctx, historyRun)
	if errors.Is(err, archive.ErrNotFound) {
		PrintWarning("No run " + historyRun)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	days, err := store.Days(ctx, historyRun)
	if err != nil {
		return fmt.Errorf("get run days: %w", err)
	}

	console.PrintHistory([]archive.RunSummary{*run})
	rebalances := 0
	for _, d := range days {
		if d.Rebalanced {
			rebalances++
		}
	}
	PrintKeyValue("Days", fmt.Sprintf("%d archived, %d rebalances", len(days), rebalances), 10)
	PrintKeyValue("Fees", fmt.Sprintf("$%.2f", run.TotalFeesEarned), 10)
	PrintKeyValue("Gas", fmt.Sprintf("$%.2f", run.TotalGasSpent), 10)
	PrintKeyValue("IL", fmt.Sprintf("$%.2f", run.TotalIL), 10)
	return nil
}
