package pipeline

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/internal/predictor"
	"github.com/hmoussa/egx-quant/internal/store"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

type defaultWindows struct{}

func (defaultWindows) Windows(string) (int, int) { return 20, 20 }

// walkBars builds a seeded random-walk series of n daily bars.
func walkBars(ticker string, n int, seed int64) []contracts.Bar {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bars := make([]contracts.Bar, n)
	price := 50.0
	for i := range bars {
		price *= 1 + rng.NormFloat64()*0.01
		bars[i] = contracts.Bar{
			Ticker: ticker,
			Date:   start.AddDate(0, 0, i),
			Open:   price * 0.995,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: 1000 + rng.Float64()*200,
		}
	}
	return bars
}

func newTestRunner(s contracts.PredictionStore) *Runner {
	cfg := predictor.DefaultTrainerConfig()
	cfg.GBM.Rounds = 20

	trainer := predictor.NewTrainer(cfg, logger.NewNop())
	return NewRunner(trainer, s, defaultWindows{}, 2, logger.NewNop())
}

func TestRunner_GeneratePredictions(t *testing.T) {
	s := store.NewMemoryStore()
	runner := newTestRunner(s)

	barsByTicker := map[string][]contracts.Bar{
		"AAA.CA": walkBars("AAA.CA", 250, 1),
		"BBB.CA": walkBars("BBB.CA", 250, 2),
	}

	// Predict for the last three bar dates.
	all := barsByTicker["AAA.CA"]
	dates := []time.Time{all[247].Date, all[248].Date, all[249].Date}

	report, err := runner.GeneratePredictions(context.Background(), dates, barsByTicker)
	require.NoError(t, err)

	assert.Equal(t, 3, report.DatesRequested)
	assert.Equal(t, 3, report.DatesGenerated)
	assert.Equal(t, 0, report.DatesSkipped)
	assert.Equal(t, 3, s.Len())

	set, err := s.Load(context.Background(), dates[0])
	require.NoError(t, err)
	assert.Len(t, set.Predictions, 2)
}

func TestRunner_GeneratePredictions_SkipsExistingDates(t *testing.T) {
	s := store.NewMemoryStore()
	runner := newTestRunner(s)

	barsByTicker := map[string][]contracts.Bar{
		"AAA.CA": walkBars("AAA.CA", 250, 3),
	}
	date := barsByTicker["AAA.CA"][249].Date

	_, err := runner.GeneratePredictions(context.Background(), []time.Time{date}, barsByTicker)
	require.NoError(t, err)

	report, err := runner.GeneratePredictions(context.Background(), []time.Time{date}, barsByTicker)
	require.NoError(t, err)

	assert.Equal(t, 0, report.DatesGenerated)
	assert.Equal(t, 1, report.DatesSkipped, "reruns are idempotent by date")
}

func TestRunner_GeneratePredictions_CollectsFailures(t *testing.T) {
	s := store.NewMemoryStore()
	runner := newTestRunner(s)

	barsByTicker := map[string][]contracts.Bar{
		"AAA.CA":   walkBars("AAA.CA", 250, 4),
		"SHORT.CA": walkBars("SHORT.CA", 40, 5),
	}
	date := barsByTicker["AAA.CA"][249].Date

	report, err := runner.GeneratePredictions(context.Background(), []time.Time{date}, barsByTicker)
	require.NoError(t, err)

	assert.Equal(t, 1, report.DatesGenerated)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "SHORT.CA", report.Failures[0].Ticker)

	set, err := s.Load(context.Background(), date)
	require.NoError(t, err)
	assert.Len(t, set.Predictions, 1, "failed instrument never blocks the date")
}

func TestRunner_TrainingNeverSeesFutureBars(t *testing.T) {
	barsByTicker := map[string][]contracts.Bar{
		"AAA.CA": walkBars("AAA.CA", 250, 6),
	}
	cut := barsByTicker["AAA.CA"][100].Date

	truncated := truncateBars(barsByTicker, cut)
	require.Len(t, truncated["AAA.CA"], 101)
	last := truncated["AAA.CA"][100]
	assert.False(t, last.Date.After(cut))
}

func TestProgress_Snapshot(t *testing.T) {
	p := NewProgress()

	done, total, running := p.Snapshot()
	assert.Zero(t, done)
	assert.Zero(t, total)
	assert.False(t, running)

	p.Start(5)
	p.Step()
	p.Step()

	done, total, running = p.Snapshot()
	assert.Equal(t, 2, done)
	assert.Equal(t, 5, total)
	assert.True(t, running)

	p.Finish()
	_, _, running = p.Snapshot()
	assert.False(t, running)
}
