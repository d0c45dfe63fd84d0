package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "EGX daily prediction and strategy optimization",
	Long: `EGX Quant Unified CLI

Daily stock return prediction and voting-strategy optimization for the
Egyptian Exchange. Pipeline: fetch universe, download bars, train one
calibrated model per instrument, store ranked predictions, then sweep
(top_k, voting_days) over a simulated portfolio.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant tickers
  go run ./cmd/quant predict --days 30
  go run ./cmd/quant backtest --top-k 3 --voting-days 5
  go run ./cmd/quant optimize
  go run ./cmd/quant api`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
