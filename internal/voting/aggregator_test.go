package voting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/internal/store"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

// seedStore stores one set per date from ticker->estimate maps given
// in date order.
func seedStore(t *testing.T, days []map[string]float64) (*store.MemoryStore, []time.Time) {
	t.Helper()
	s := store.NewMemoryStore()
	dates := make([]time.Time, len(days))

	for i, estimates := range days {
		date := day(i + 1)
		dates[i] = date
		if estimates == nil {
			continue
		}

		set := contracts.PredictionSet{Date: date}
		for ticker, est := range estimates {
			set.Predictions = append(set.Predictions, contracts.Prediction{
				Ticker: ticker, Date: date, Estimate: est,
			})
		}
		require.NoError(t, s.Save(context.Background(), set))
	}
	return s, dates
}

func TestAggregator_VoteCountWins(t *testing.T) {
	// AAA tops two days, BBB only one despite a huge estimate.
	s, dates := seedStore(t, []map[string]float64{
		{"AAA.CA": 2.0, "CCC.CA": 1.0},
		{"AAA.CA": 1.5, "CCC.CA": 1.2},
		{"BBB.CA": 9.0, "CCC.CA": 0.5},
	})

	agg := NewAggregator(s, logger.NewNop())
	selected, err := agg.Aggregate(context.Background(), dates, 3, 2)
	require.NoError(t, err)

	require.Len(t, selected, 2)
	assert.Equal(t, "CCC.CA", selected[0], "three votes beat two")
	assert.Equal(t, "AAA.CA", selected[1])
}

func TestAggregator_TieBreaksOnMeanEstimate(t *testing.T) {
	// Equal votes; HIGH has the larger mean estimate.
	s, dates := seedStore(t, []map[string]float64{
		{"HIGH.CA": 3.0, "LOW.CA": 1.0},
		{"HIGH.CA": 3.0, "LOW.CA": 1.0},
	})

	agg := NewAggregator(s, logger.NewNop())
	selected, err := agg.Aggregate(context.Background(), dates, 2, 2)
	require.NoError(t, err)

	require.Len(t, selected, 2)
	assert.Equal(t, "HIGH.CA", selected[0])
	assert.Equal(t, "LOW.CA", selected[1])
}

func TestAggregator_TieBreaksOnTicker(t *testing.T) {
	// Identical votes and estimates resolve alphabetically.
	s, dates := seedStore(t, []map[string]float64{
		{"ZZZ.CA": 2.0, "AAA.CA": 2.0, "MMM.CA": 2.0},
	})

	agg := NewAggregator(s, logger.NewNop())
	selected, err := agg.Aggregate(context.Background(), dates, 1, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA.CA", "MMM.CA", "ZZZ.CA"}, selected)
}

func TestAggregator_MissingDateContributesNothing(t *testing.T) {
	s, dates := seedStore(t, []map[string]float64{
		{"AAA.CA": 1.0},
		nil, // no stored set
		{"AAA.CA": 1.0},
	})

	agg := NewAggregator(s, logger.NewNop())
	selected, err := agg.Aggregate(context.Background(), dates, 3, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA.CA"}, selected)
}

func TestAggregator_WindowOnlyCountsRecentDates(t *testing.T) {
	// OLD tops day 1, but a 2-day window only sees days 2 and 3.
	s, dates := seedStore(t, []map[string]float64{
		{"OLD.CA": 9.0},
		{"NEW.CA": 1.0},
		{"NEW.CA": 1.0},
	})

	agg := NewAggregator(s, logger.NewNop())
	selected, err := agg.Aggregate(context.Background(), dates, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"NEW.CA"}, selected)
}

func TestAggregator_FewerCandidatesThanK(t *testing.T) {
	s, dates := seedStore(t, []map[string]float64{
		{"ONLY.CA": 1.0},
	})

	agg := NewAggregator(s, logger.NewNop())
	selected, err := agg.Aggregate(context.Background(), dates, 5, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"ONLY.CA"}, selected)
}

func TestAggregator_EmptyWindow(t *testing.T) {
	s, dates := seedStore(t, []map[string]float64{nil, nil})

	agg := NewAggregator(s, logger.NewNop())
	selected, err := agg.Aggregate(context.Background(), dates, 2, 3)
	require.NoError(t, err)
	assert.Empty(t, selected)

	// Degenerate parameters select nothing rather than erroring.
	selected, err = agg.Aggregate(context.Background(), dates, 0, 3)
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestAggregator_Deterministic(t *testing.T) {
	s, dates := seedStore(t, []map[string]float64{
		{"A.CA": 1.0, "B.CA": 1.0, "C.CA": 1.0, "D.CA": 1.0},
		{"B.CA": 1.0, "C.CA": 1.0, "D.CA": 1.0, "E.CA": 1.0},
		{"C.CA": 1.0, "D.CA": 1.0, "E.CA": 1.0, "A.CA": 1.0},
	})

	agg := NewAggregator(s, logger.NewNop())

	first, err := agg.Aggregate(context.Background(), dates, 3, 4)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := agg.Aggregate(context.Background(), dates, 3, 4)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
