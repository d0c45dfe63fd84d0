package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/internal/marketdata"
	"github.com/hmoussa/egx-quant/internal/simulation"
	"github.com/hmoussa/egx-quant/internal/voting"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Simulate the voting strategy on stored predictions",
	Long: `Replays the voting strategy over every stored prediction date.

Per day: the last voting_days stored sets vote for their top_k
instruments, the winners are held equal-weighted, and each realized
return is clamped to the circuit breaker before compounding.

Flags:
  --top-k        instruments held per day (default: 3)
  --voting-days  trailing sets that vote (default: 3)

Example:
  go run ./cmd/quant backtest
  go run ./cmd/quant backtest --top-k 5 --voting-days 2`,
	RunE: runBacktest,
}

var (
	backtestTopK       int
	backtestVotingDays int
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	// Flags
	backtestCmd.Flags().IntVar(&backtestTopK, "top-k", 3, "instruments held per day")
	backtestCmd.Flags().IntVar(&backtestVotingDays, "voting-days", 3, "trailing prediction sets that vote")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	app, err := initApp(true)
	if err != nil {
		return err
	}
	defer app.close()

	ctx := cmd.Context()

	dates, err := app.store.Dates(ctx)
	if err != nil {
		return fmt.Errorf("list prediction dates: %w", err)
	}
	if len(dates) == 0 {
		return fmt.Errorf("no stored predictions; run predict first")
	}

	fmt.Printf("Backtest over %d dates (%s ~ %s), top_k=%d voting_days=%d\n\n",
		len(dates), contracts.DateKey(dates[0]), contracts.DateKey(dates[len(dates)-1]),
		backtestTopK, backtestVotingDays)

	// Realized returns for the simulated period
	tickers, err := app.tickers.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch tickers: %w", err)
	}
	start := dates[0].AddDate(0, 0, -7)
	end := dates[len(dates)-1].AddDate(0, 0, 1)
	barsByTicker := app.bars.DownloadAll(ctx, tickers, start, end)
	if len(barsByTicker) == 0 {
		return fmt.Errorf("no bar data downloaded")
	}
	returns := marketdata.ComputeDailyReturns(barsByTicker)

	// Daily selections by voting
	aggregator := voting.NewAggregator(app.store, app.log)
	selections := make(map[string][]string, len(dates))
	for i, date := range dates {
		selected, err := aggregator.Aggregate(ctx, dates[:i+1], backtestVotingDays, backtestTopK)
		if err != nil {
			return fmt.Errorf("voting for %s: %w", contracts.DateKey(date), err)
		}
		if len(selected) > 0 {
			selections[contracts.DateKey(date)] = selected
		}
	}

	sim := simulation.NewSimulator(simulation.Config{
		StartEquity: app.cfg.Trading.StartEquity,
		BreakerPct:  app.cfg.Trading.CircuitBreakerPct,
	}, app.log)

	startedAt := time.Now()
	result := sim.Simulate(dates, returns, selections, backtestTopK)
	metrics := simulation.ComputeMetrics(result)

	printBacktestResult(app.cfg.Trading.StartEquity, result, metrics, time.Since(startedAt))

	return nil
}

func printBacktestResult(startEquity float64, result simulation.Result, metrics simulation.Metrics, duration time.Duration) {
	PrintSuccess("Backtest completed")
	PrintDoubleSeparator()
	fmt.Println()

	// Performance
	fmt.Println("Performance")
	PrintKeyValue("Start Equity", fmt.Sprintf("%.2f", startEquity), 14)
	PrintKeyValue("Final Equity", fmt.Sprintf("%.2f", result.FinalEquity), 14)
	PrintKeyValue("Total Return", fmt.Sprintf("%+.2f%%", metrics.TotalReturnPct), 14)
	PrintKeyValue("Duration", fmt.Sprintf("%.2fs", duration.Seconds()), 14)
	fmt.Println()

	// Risk
	fmt.Println("Risk")
	PrintKeyValue("Sharpe Ratio", fmt.Sprintf("%.2f", metrics.SharpeRatio), 14)
	PrintKeyValue("Max Drawdown", fmt.Sprintf("%.2f%%", metrics.MaxDrawdownPct), 14)
	PrintKeyValue("Win Rate", fmt.Sprintf("%.1f%%", metrics.WinRate), 14)
	PrintKeyValue("Days Traded", fmt.Sprintf("%d", metrics.DaysTraded), 14)
	fmt.Println()

	// Equity curve tail
	fmt.Println("Equity Curve (last 10 days)")
	startIdx := len(result.Curve) - 10
	if startIdx < 0 {
		startIdx = 0
	}
	for _, point := range result.Curve[startIdx:] {
		fmt.Printf("  %s: %8.2f (%+.2f%%)\n",
			contracts.DateKey(point.Date), point.Equity, point.Change*100)
	}
	fmt.Println()
}
