package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/internal/marketdata"
	"github.com/hmoussa/egx-quant/internal/optimizer"
	"github.com/hmoussa/egx-quant/pkg/config"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

// predictionDates caps how many trailing dates get freshly generated
// sets per sweep; older dates reuse whatever the store already holds.
const predictionDates = 30

// Sweep is the end-to-end optimization job: fetch the universe,
// download history, generate any missing prediction sets, build the
// returns matrix, and run the parameter sweep. Each stage reports
// partial failure instead of aborting the whole job.
type Sweep struct {
	tickers   *marketdata.TickerSource
	bars      *marketdata.Client
	calendar  contracts.TradingCalendar
	runner    *Runner
	optimizer *optimizer.Optimizer
	trading   config.TradingConfig
	log       *logger.Logger
}

// NewSweep wires the full job.
func NewSweep(
	tickers *marketdata.TickerSource,
	bars *marketdata.Client,
	calendar contracts.TradingCalendar,
	runner *Runner,
	opt *optimizer.Optimizer,
	trading config.TradingConfig,
	log *logger.Logger,
) *Sweep {
	return &Sweep{
		tickers:   tickers,
		bars:      bars,
		calendar:  calendar,
		runner:    runner,
		optimizer: opt,
		trading:   trading,
		log:       log.WithField("module", "sweep"),
	}
}

// Run executes the whole optimization pipeline as of yesterday's
// session and returns the sweep result.
func (s *Sweep) Run(ctx context.Context, progress optimizer.ProgressFunc) (*optimizer.Result, error) {
	end := time.Now().AddDate(0, 0, -1)

	tickers, err := s.tickers.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch tickers: %w", err)
	}

	dates, err := s.calendar.TradingDays(ctx, end, s.trading.LookbackDays+30)
	if err != nil {
		return nil, fmt.Errorf("trading days: %w", err)
	}
	if len(dates) < 10 {
		return nil, fmt.Errorf("only %d trading dates found, need at least 10", len(dates))
	}

	start := end.AddDate(0, 0, -s.trading.LookbackDays)
	barsByTicker := s.bars.DownloadAll(ctx, tickers, start, end)
	if len(barsByTicker) == 0 {
		return nil, fmt.Errorf("no bar data downloaded")
	}

	predDates := dates
	if len(predDates) > predictionDates {
		predDates = predDates[len(predDates)-predictionDates:]
	}

	if _, err := s.runner.GeneratePredictions(ctx, predDates, barsByTicker); err != nil {
		return nil, fmt.Errorf("generate predictions: %w", err)
	}

	returns := marketdata.ComputeDailyReturns(barsByTicker)
	if returns.Dates() == 0 {
		return nil, fmt.Errorf("empty returns matrix")
	}

	return s.optimizer.Run(ctx, optimizer.Config{
		TopK:       optimizer.Range{Min: s.trading.TopKMin, Max: s.trading.TopKMax},
		VotingDays: optimizer.Range{Min: s.trading.VotingMin, Max: s.trading.VotingMax},
		Workers:    s.trading.Workers,
	}, dates, returns, progress)
}
