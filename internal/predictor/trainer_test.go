package predictor

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

// testTrainerConfig shrinks the fit so tests stay fast while keeping
// the full pipeline (split, early stop, calibration) intact.
func testTrainerConfig() Config {
	cfg := DefaultTrainerConfig()
	cfg.GBM.Rounds = 30
	return cfg
}

// randomWalkBars builds a seeded random-walk daily series.
func randomWalkBars(ticker string, n int, seed int64) []contracts.Bar {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bars := make([]contracts.Bar, n)
	price := 100.0
	for i := range bars {
		price *= 1 + rng.NormFloat64()*0.01
		bars[i] = contracts.Bar{
			Ticker: ticker,
			Date:   start.AddDate(0, 0, i),
			Open:   price * 0.995,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: 1000 + rng.Float64()*500,
		}
	}
	return bars
}

type fixedWindows struct{ vol, pct int }

func (w fixedWindows) Windows(string) (int, int) { return w.vol, w.pct }

func TestTrainer_TrainAndPredict_InsufficientData(t *testing.T) {
	trainer := NewTrainer(testTrainerConfig(), logger.NewNop())

	tests := []struct {
		name string
		bars []contracts.Bar
	}{
		{name: "no bars", bars: nil},
		{name: "below warmup", bars: randomWalkBars("T", 15, 1)},
		{name: "below min train rows", bars: randomWalkBars("T", 60, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := trainer.TrainAndPredict(tt.bars, 20, 20)
			require.Error(t, err)
			assert.True(t, errors.Is(err, contracts.ErrInsufficientData))
		})
	}
}

func TestTrainer_TrainAndPredict_RoundsToTwoDecimals(t *testing.T) {
	trainer := NewTrainer(testTrainerConfig(), logger.NewNop())

	estimate, err := trainer.TrainAndPredict(randomWalkBars("T", 250, 2), 20, 20)
	require.NoError(t, err)

	scaled := estimate * 100
	assert.InDelta(t, math.Round(scaled), scaled, 1e-9, "estimate must carry at most two decimals")
}

func TestTrainer_TrainAndPredict_Deterministic(t *testing.T) {
	trainer := NewTrainer(testTrainerConfig(), logger.NewNop())
	bars := randomWalkBars("T", 250, 3)

	first, err := trainer.TrainAndPredict(bars, 20, 20)
	require.NoError(t, err)
	second, err := trainer.TrainAndPredict(bars, 20, 20)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestTrainer_ProcessTicker(t *testing.T) {
	trainer := NewTrainer(testTrainerConfig(), logger.NewNop())
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	pred, err := trainer.ProcessTicker("INFI.CA", date, randomWalkBars("INFI.CA", 250, 4), 20, 20)
	require.NoError(t, err)
	assert.Equal(t, "INFI.CA", pred.Ticker)
	assert.Equal(t, date, pred.Date)
}

func TestTrainer_ProcessAll_IsolatesFailures(t *testing.T) {
	trainer := NewTrainer(testTrainerConfig(), logger.NewNop())
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	barsByTicker := map[string][]contracts.Bar{
		"GOOD1.CA": randomWalkBars("GOOD1.CA", 250, 5),
		"GOOD2.CA": randomWalkBars("GOOD2.CA", 250, 6),
		"SHORT.CA": randomWalkBars("SHORT.CA", 30, 7),
		"EMPTY.CA": nil,
	}

	batch := trainer.ProcessAll(context.Background(), date, barsByTicker, fixedWindows{20, 20}, 3)

	assert.Len(t, batch.Predictions, 2)
	assert.Len(t, batch.Failures, 2)

	failed := map[string]bool{}
	for _, f := range batch.Failures {
		failed[f.Ticker] = true
		assert.NotEmpty(t, f.Reason)
	}
	assert.True(t, failed["SHORT.CA"])
	assert.True(t, failed["EMPTY.CA"])

	// Ranked set comes out sorted by estimate descending.
	set := batch.Set()
	require.NoError(t, set.Validate())
	for i := 1; i < len(set.Predictions); i++ {
		assert.GreaterOrEqual(t, set.Predictions[i-1].Estimate, set.Predictions[i].Estimate)
	}
}

func TestTrainer_ProcessAll_CancelledContext(t *testing.T) {
	trainer := NewTrainer(testTrainerConfig(), logger.NewNop())
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := trainer.ProcessAll(ctx, date, map[string][]contracts.Bar{
		"A.CA": randomWalkBars("A.CA", 250, 8),
		"B.CA": randomWalkBars("B.CA", 250, 9),
	}, fixedWindows{20, 20}, 2)

	assert.Empty(t, batch.Predictions)
	assert.Len(t, batch.Failures, 2)
}
