package voting

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

// Aggregator turns several days of ranked prediction sets into one
// stable selection. A single day's model output is noisy; requiring an
// instrument to keep appearing in the daily top-k filters out one-off
// spikes.
type Aggregator struct {
	store contracts.PredictionStore
	log   *logger.Logger
}

// NewAggregator creates an aggregator over a prediction store.
func NewAggregator(store contracts.PredictionStore, log *logger.Logger) *Aggregator {
	return &Aggregator{
		store: store,
		log:   log.WithField("module", "voting"),
	}
}

// tally is the per-instrument vote state for one aggregation call.
type tally struct {
	ticker string
	votes  int
	sum    float64 // sum of estimates across counted appearances
}

func (t tally) meanEstimate() float64 {
	return t.sum / float64(t.votes)
}

// Aggregate selects up to k instruments by voting across the most
// recent votingDays dates. dates must be ordered oldest to newest.
//
// Each date's top-k predictions cast one vote apiece. Instruments rank
// by vote count descending, then mean estimate across counted
// appearances descending, then ticker ascending -- three deterministic
// levels, so identical inputs always produce identical selections.
// A date with no stored prediction set contributes zero votes and is
// otherwise ignored.
func (a *Aggregator) Aggregate(ctx context.Context, dates []time.Time, votingDays, k int) ([]string, error) {
	if votingDays < 1 || k < 1 {
		return nil, nil
	}

	window := dates
	if len(window) > votingDays {
		window = window[len(window)-votingDays:]
	}

	tallies := make(map[string]*tally)
	for _, date := range window {
		set, err := a.store.Load(ctx, date)
		if err != nil {
			if errors.Is(err, contracts.ErrPredictionNotFound) {
				a.log.WithField("date", contracts.DateKey(date)).Debug("No prediction set for voting date")
				continue
			}
			return nil, err
		}

		for _, p := range set.TopK(k) {
			t, ok := tallies[p.Ticker]
			if !ok {
				t = &tally{ticker: p.Ticker}
				tallies[p.Ticker] = t
			}
			t.votes++
			t.sum += p.Estimate
		}
	}

	if len(tallies) == 0 {
		return nil, nil
	}

	ranked := make([]*tally, 0, len(tallies))
	for _, t := range tallies {
		ranked = append(ranked, t)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].votes != ranked[j].votes {
			return ranked[i].votes > ranked[j].votes
		}
		mi, mj := ranked[i].meanEstimate(), ranked[j].meanEstimate()
		if mi != mj {
			return mi > mj
		}
		return ranked[i].ticker < ranked[j].ticker
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}

	selected := make([]string, len(ranked))
	for i, t := range ranked {
		selected[i] = t.ticker
	}

	return selected, nil
}
