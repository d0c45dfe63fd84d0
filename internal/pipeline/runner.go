package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/internal/predictor"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

// Runner generates and persists one ranked prediction set per trading
// day: filter each instrument's bars to the target date, train, rank,
// save. Dates whose set already exists are skipped, making reruns
// idempotent by date key.
type Runner struct {
	trainer  *predictor.Trainer
	store    contracts.PredictionStore
	windows  predictor.WindowProvider
	workers  int
	progress *Progress
	log      *logger.Logger
}

// NewRunner creates a pipeline runner.
func NewRunner(trainer *predictor.Trainer, store contracts.PredictionStore, windows predictor.WindowProvider, workers int, log *logger.Logger) *Runner {
	return &Runner{
		trainer:  trainer,
		store:    store,
		windows:  windows,
		workers:  workers,
		progress: NewProgress(),
		log:      log.WithField("module", "pipeline"),
	}
}

// Progress exposes the runner's completion state for polling.
func (r *Runner) Progress() *Progress {
	return r.progress
}

// RunReport summarizes one generation run for the caller. Partial
// failure is the normal case: some instruments always lack history.
type RunReport struct {
	DatesRequested int
	DatesGenerated int
	DatesSkipped   int
	Failures       []contracts.TickerFailure
}

// GeneratePredictions produces prediction sets for each date, training
// on bars up to and including that date. Per-instrument failures are
// collected, never fatal; a date producing zero predictions is skipped
// without a stored set.
func (r *Runner) GeneratePredictions(ctx context.Context, dates []time.Time, barsByTicker map[string][]contracts.Bar) (*RunReport, error) {
	report := &RunReport{DatesRequested: len(dates)}
	r.progress.Start(len(dates))
	defer r.progress.Finish()

	for _, date := range dates {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		if _, err := r.store.Load(ctx, date); err == nil {
			report.DatesSkipped++
			r.progress.Step()
			continue
		} else if !errors.Is(err, contracts.ErrPredictionNotFound) {
			return report, fmt.Errorf("check existing set for %s: %w", contracts.DateKey(date), err)
		}

		truncated := truncateBars(barsByTicker, date)
		batch := r.trainer.ProcessAll(ctx, date, truncated, r.windows, r.workers)
		report.Failures = append(report.Failures, batch.Failures...)

		if len(batch.Predictions) == 0 {
			r.log.WithField("date", contracts.DateKey(date)).Warn("No predictions generated for date")
			r.progress.Step()
			continue
		}

		set := batch.Set()
		if err := r.store.Save(ctx, set); err != nil {
			return report, fmt.Errorf("save predictions for %s: %w", contracts.DateKey(date), err)
		}

		report.DatesGenerated++
		r.progress.Step()
	}

	r.log.WithFields(map[string]interface{}{
		"requested": report.DatesRequested,
		"generated": report.DatesGenerated,
		"skipped":   report.DatesSkipped,
		"failures":  len(report.Failures),
	}).Info("Prediction generation completed")

	return report, nil
}

// truncateBars filters each instrument's history to bars at or before
// the prediction date, dropping instruments left empty.
func truncateBars(barsByTicker map[string][]contracts.Bar, date time.Time) map[string][]contracts.Bar {
	out := make(map[string][]contracts.Bar, len(barsByTicker))
	for ticker, bars := range barsByTicker {
		cut := len(bars)
		for cut > 0 && bars[cut-1].Date.After(date) {
			cut--
		}
		if cut > 0 {
			out[ticker] = bars[:cut]
		}
	}
	return out
}
