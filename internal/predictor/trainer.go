package predictor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/internal/features"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

// minCalibration is the smallest holdout size worth fitting the
// isotonic calibrator on; below it the raw estimate is used as-is.
const minCalibration = 30

// Config holds trainer-level settings; boosting hyperparameters live in
// GBMConfig.
type Config struct {
	MinTrainRows int // feature rows required before a model is fit
	RSIPeriod    int
	ATRPeriod    int
	GBM          GBMConfig
}

// DefaultTrainerConfig returns the standard trainer settings.
func DefaultTrainerConfig() Config {
	return Config{
		MinTrainRows: 60,
		RSIPeriod:    9,
		ATRPeriod:    5,
		GBM:          DefaultGBMConfig(),
	}
}

// Trainer fits one calibrated model per instrument and produces its
// next-session return estimate.
type Trainer struct {
	cfg Config
	log *logger.Logger
}

// NewTrainer creates a trainer.
func NewTrainer(cfg Config, log *logger.Logger) *Trainer {
	return &Trainer{
		cfg: cfg,
		log: log.WithField("module", "predictor"),
	}
}

// TrainAndPredict builds the feature/label history from the bars,
// fits a boosted model with a chronological 75/25 split and holdout
// early stopping, calibrates it isotonically, and returns the
// calibrated estimate (percent) for the most recent feature row.
// Returns contracts.ErrInsufficientData when the history is too short
// for a meaningful fit.
func (t *Trainer) TrainAndPredict(bars []contracts.Bar, volWindow, pctWindow int) (float64, error) {
	engine := features.NewEngine(features.Config{
		VolWindow: volWindow,
		PctWindow: pctWindow,
		RSIPeriod: t.cfg.RSIPeriod,
		ATRPeriod: t.cfg.ATRPeriod,
	})

	rows := engine.Compute(bars)
	if len(rows) == 0 {
		return 0, fmt.Errorf("no complete feature rows: %w", contracts.ErrInsufficientData)
	}

	// Label for date d: realized close-to-close return (percent) from d
	// to the next trading day on record.
	barIndex := make(map[string]int, len(bars))
	for i, b := range bars {
		barIndex[contracts.DateKey(b.Date)] = i
	}

	var (
		trainRows [][]float64
		labels    []float64
	)
	live := rows[len(rows)-1]

	for _, row := range rows[:len(rows)-1] {
		i, ok := barIndex[contracts.DateKey(row.Date)]
		if !ok || i+1 >= len(bars) || bars[i].Close == 0 {
			continue
		}
		label := (bars[i+1].Close - bars[i].Close) / bars[i].Close * 100
		trainRows = append(trainRows, row.Values)
		labels = append(labels, label)
	}

	if len(trainRows) < t.cfg.MinTrainRows {
		return 0, fmt.Errorf("%d labeled rows, need %d: %w",
			len(trainRows), t.cfg.MinTrainRows, contracts.ErrInsufficientData)
	}

	// Chronological 75/25 split. Never shuffled: random splitting would
	// leak future information into the fit.
	splitIdx := len(trainRows) * 3 / 4
	fitX, fitY := trainRows[:splitIdx], labels[:splitIdx]
	holdX, holdY := trainRows[splitIdx:], labels[splitIdx:]

	model := TrainGBM(t.cfg.GBM, fitX, fitY, holdX, holdY)

	var calibrator *Isotonic
	if len(holdX) >= minCalibration {
		holdPred := make([]float64, len(holdX))
		for i, x := range holdX {
			holdPred[i] = model.Predict(x)
		}
		calibrator = FitIsotonic(holdPred, holdY)
	}

	estimate := model.Predict(live.Values)
	if calibrator != nil {
		estimate = calibrator.Predict(estimate)
	}

	return roundTo(estimate, 2), nil
}

// ProcessTicker wraps TrainAndPredict for one instrument, producing a
// prediction dated at the supplied date. A failure here never affects
// other instruments.
func (t *Trainer) ProcessTicker(ticker string, date time.Time, bars []contracts.Bar, volWindow, pctWindow int) (*contracts.Prediction, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: no bars: %w", ticker, contracts.ErrInsufficientData)
	}

	estimate, err := t.TrainAndPredict(bars, volWindow, pctWindow)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ticker, err)
	}

	return &contracts.Prediction{Ticker: ticker, Date: date, Estimate: estimate}, nil
}

// WindowProvider supplies per-instrument feature windows. The params
// package implements it; defaults come from configuration.
type WindowProvider interface {
	Windows(ticker string) (volWindow, pctWindow int)
}

type tickerJob struct {
	ticker string
	bars   []contracts.Bar
}

type tickerOutcome struct {
	prediction *contracts.Prediction
	failure    *contracts.TickerFailure
}

// ProcessAll trains every instrument concurrently with a bounded worker
// pool and collects successes and failures into one batch result.
// Instruments are independent, so nothing is shared between workers;
// a single failing instrument is recorded and the rest continue.
func (t *Trainer) ProcessAll(ctx context.Context, date time.Time, barsByTicker map[string][]contracts.Bar, windows WindowProvider, workers int) contracts.BatchResult {
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan tickerJob, len(barsByTicker))
	outcomes := make(chan tickerOutcome, len(barsByTicker))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					outcomes <- tickerOutcome{failure: &contracts.TickerFailure{
						Ticker: job.ticker, Reason: ctx.Err().Error(),
					}}
					continue
				default:
				}

				vol, pct := windows.Windows(job.ticker)
				pred, err := t.ProcessTicker(job.ticker, date, job.bars, vol, pct)
				if err != nil {
					outcomes <- tickerOutcome{failure: &contracts.TickerFailure{
						Ticker: job.ticker, Reason: err.Error(),
					}}
					continue
				}
				outcomes <- tickerOutcome{prediction: pred}
			}
		}()
	}

	for ticker, bars := range barsByTicker {
		jobs <- tickerJob{ticker: ticker, bars: bars}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	result := contracts.BatchResult{Date: date}
	for out := range outcomes {
		if out.prediction != nil {
			result.Predictions = append(result.Predictions, *out.prediction)
		} else if out.failure != nil {
			result.Failures = append(result.Failures, *out.failure)
		}
	}

	t.log.WithFields(map[string]interface{}{
		"date":      contracts.DateKey(date),
		"tickers":   len(barsByTicker),
		"predicted": len(result.Predictions),
		"failed":    len(result.Failures),
	}).Info("Batch prediction completed")

	return result
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
