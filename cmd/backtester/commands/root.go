package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose   bool
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "Yield Delta strategy backtester",
	Long: `Yield Delta strategy backtester.

Replays daily price and pool history through a vault strategy and reports
APY, risk metrics, fees, gas and impermanent loss.

Usage:
  go run ./cmd/backtester [command]

Examples:
  go run ./cmd/backtester run --strategy concentrated-liquidity --days 90
  go run ./cmd/backtester compare --plan config/plans/concentrated_vs_stable.yaml
  go run ./cmd/backtester sweep --strategy arbitrage --runs 200
  go run ./cmd/backtester fetch --asset sei-network --days 30
  go run ./cmd/backtester history --limit 20`,
	SilenceUsage: true,
}

// Execute runs the root command with ctx. It is called by main.main().
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format override (json|console)")
}
