package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// tickersCmd represents the tickers command
var tickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "Fetch the instrument universe",
	Long: `Downloads and parses the published instrument list.

Falls back to the built-in core list when the page cannot be fetched
or parsed.

Example:
  go run ./cmd/quant tickers`,
	RunE: runTickers,
}

func init() {
	rootCmd.AddCommand(tickersCmd)
}

func runTickers(cmd *cobra.Command, args []string) error {
	app, err := initApp(false)
	if err != nil {
		return err
	}
	defer app.close()

	tickers, err := app.tickers.Fetch(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch tickers: %w", err)
	}

	PrintSuccess(fmt.Sprintf("Fetched %d instruments", len(tickers)))
	PrintSeparator()
	PrintList(tickers)

	return nil
}
