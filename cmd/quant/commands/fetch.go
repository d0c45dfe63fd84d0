package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/hmoussa/egx-quant/internal/contracts"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download bar history",
	Long: `Downloads daily OHLCV history for the instrument universe.

Zero-volume sessions are dropped. Downloaded history is cached in
redis for a day, so repeated runs are cheap.

Flags:
  --days      calendar days of history (default: config LOOKBACK_DAYS)
  --tickers   comma-separated subset instead of the full universe

Example:
  go run ./cmd/quant fetch
  go run ./cmd/quant fetch --days 90 --tickers INFI.CA,TMGH.CA`,
	RunE: runFetch,
}

var (
	fetchDays    int
	fetchTickers []string
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	// Flags
	fetchCmd.Flags().IntVar(&fetchDays, "days", 0, "calendar days of history (0 = config default)")
	fetchCmd.Flags().StringSliceVar(&fetchTickers, "tickers", nil, "instrument subset (default: full universe)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	app, err := initApp(false)
	if err != nil {
		return err
	}
	defer app.close()

	days := fetchDays
	if days <= 0 {
		days = app.cfg.Trading.LookbackDays
	}

	tickers := fetchTickers
	if len(tickers) == 0 {
		tickers, err = app.tickers.Fetch(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch tickers: %w", err)
		}
	}

	end := time.Now().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -days)

	fmt.Printf("Downloading %d instruments, %s ~ %s\n\n",
		len(tickers), contracts.DateKey(start), contracts.DateKey(end))

	barsByTicker := app.bars.DownloadAll(cmd.Context(), tickers, start, end)
	if len(barsByTicker) == 0 {
		return fmt.Errorf("no bar data downloaded")
	}

	names := make([]string, 0, len(barsByTicker))
	for ticker := range barsByTicker {
		names = append(names, ticker)
	}
	sort.Strings(names)

	PrintTableHeader([]string{"Ticker", "Bars", "First", "Last"}, []int{12, 6, 12, 12})
	for _, ticker := range names {
		bars := barsByTicker[ticker]
		first, last := barSpan(bars)
		PrintTableRow([]string{
			ticker,
			fmt.Sprintf("%d", len(bars)),
			first,
			last,
		}, []int{12, 6, 12, 12})
	}

	fmt.Println()
	PrintSuccess(fmt.Sprintf("Downloaded %d/%d instruments", len(barsByTicker), len(tickers)))

	return nil
}

// barSpan reports the first and last session date keys of a non-empty
// download. Bars arrive date-ascending from the client.
func barSpan(bars []contracts.Bar) (first, last string) {
	return contracts.DateKey(bars[0].Date), contracts.DateKey(bars[len(bars)-1].Date)
}
