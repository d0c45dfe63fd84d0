package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/internal/params"
	"github.com/hmoussa/egx-quant/internal/predictor"
)

// predictCmd represents the predict command
var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Generate and store ranked predictions",
	Long: `Trains one calibrated model per instrument and stores a ranked
prediction set for each recent trading day.

Per date, training only sees bars up to and including that date. Dates
whose set is already stored are skipped, so reruns are idempotent.

Flags:
  --days     trailing trading days to generate (default: 30)
  --params   YAML file with per-instrument window overrides

Example:
  go run ./cmd/quant predict
  go run ./cmd/quant predict --days 10 --params params.yaml`,
	RunE: runPredict,
}

var (
	predictDays   int
	predictParams string
)

func init() {
	rootCmd.AddCommand(predictCmd)

	// Flags
	predictCmd.Flags().IntVar(&predictDays, "days", 30, "trailing trading days to generate")
	predictCmd.Flags().StringVar(&predictParams, "params", "", "per-instrument window overrides (YAML)")
}

func runPredict(cmd *cobra.Command, args []string) error {
	app, err := initApp(true)
	if err != nil {
		return err
	}
	defer app.close()

	windows, err := loadWindows(app, predictParams)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	end := time.Now().AddDate(0, 0, -1)

	tickers, err := app.tickers.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch tickers: %w", err)
	}

	dates, err := app.calendar.TradingDays(ctx, end, app.cfg.Trading.LookbackDays+predictDays)
	if err != nil {
		return fmt.Errorf("trading days: %w", err)
	}
	if len(dates) == 0 {
		return fmt.Errorf("no trading days found")
	}
	if len(dates) > predictDays {
		dates = dates[len(dates)-predictDays:]
	}

	start := end.AddDate(0, 0, -app.cfg.Trading.LookbackDays)
	barsByTicker := app.bars.DownloadAll(ctx, tickers, start, end)
	if len(barsByTicker) == 0 {
		return fmt.Errorf("no bar data downloaded")
	}

	fmt.Printf("Generating predictions for %d dates (%s ~ %s), %d instruments\n\n",
		len(dates), contracts.DateKey(dates[0]), contracts.DateKey(dates[len(dates)-1]), len(barsByTicker))

	runner := app.newRunner(windows)
	report, err := runner.GeneratePredictions(ctx, dates, barsByTicker)
	if err != nil {
		return fmt.Errorf("generate predictions: %w", err)
	}

	PrintSuccess("Prediction generation completed")
	PrintSeparator()
	PrintKeyValue("Requested", fmt.Sprintf("%d dates", report.DatesRequested), 12)
	PrintKeyValue("Generated", fmt.Sprintf("%d dates", report.DatesGenerated), 12)
	PrintKeyValue("Skipped", fmt.Sprintf("%d dates (already stored)", report.DatesSkipped), 12)
	PrintKeyValue("Failures", fmt.Sprintf("%d instrument-days", len(report.Failures)), 12)

	// Show the most recent stored set
	set, err := app.store.Load(ctx, dates[len(dates)-1])
	if err != nil {
		return nil
	}

	fmt.Println()
	fmt.Printf("Top predictions for %s:\n", contracts.DateKey(set.Date))
	PrintTableHeader([]string{"Rank", "Ticker", "Estimate"}, []int{5, 12, 10})
	for i, p := range set.TopK(10) {
		PrintTableRow([]string{
			fmt.Sprintf("%d", i+1),
			p.Ticker,
			fmt.Sprintf("%+.2f%%", p.Estimate),
		}, []int{5, 12, 10})
	}

	return nil
}

// loadWindows builds the window provider from the optional params file,
// falling back to config defaults for every instrument.
func loadWindows(app *app, path string) (predictor.WindowProvider, error) {
	if path == "" {
		return params.NewProvider(app.cfg.Trading.VolatilityWindow, app.cfg.Trading.PctWindow), nil
	}

	provider, err := params.Load(path, app.cfg.Trading.VolatilityWindow, app.cfg.Trading.PctWindow)
	if err != nil {
		return nil, fmt.Errorf("load params file: %w", err)
	}
	return provider, nil
}
