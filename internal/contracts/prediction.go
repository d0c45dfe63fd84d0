package contracts

import (
	"fmt"
	"sort"
	"time"
)

// Prediction is one instrument's estimated forward return for one date.
// Estimate is a signed percentage (2.5 means +2.5% expected over the
// next trading session). Produced once per instrument per date.
type Prediction struct {
	Ticker   string
	Date     time.Time
	Estimate float64
}

// PredictionSet is the ranked prediction list for one calendar date,
// descending by estimate. Ordering is a stored invariant: sets are
// sorted on save and trusted on load, never re-derived.
type PredictionSet struct {
	Date        time.Time
	Predictions []Prediction
}

// Sort orders predictions descending by estimate. Equal estimates fall
// back to ticker order so repeated runs produce identical sets.
func (s *PredictionSet) Sort() {
	sort.SliceStable(s.Predictions, func(i, j int) bool {
		if s.Predictions[i].Estimate != s.Predictions[j].Estimate {
			return s.Predictions[i].Estimate > s.Predictions[j].Estimate
		}
		return s.Predictions[i].Ticker < s.Predictions[j].Ticker
	})
}

// TopK returns the first k predictions (fewer if the set is smaller).
func (s *PredictionSet) TopK(k int) []Prediction {
	if k > len(s.Predictions) {
		k = len(s.Predictions)
	}
	return s.Predictions[:k]
}

// Validate checks the per-set invariant: one prediction per instrument.
func (s *PredictionSet) Validate() error {
	seen := make(map[string]struct{}, len(s.Predictions))
	for _, p := range s.Predictions {
		if _, dup := seen[p.Ticker]; dup {
			return fmt.Errorf("duplicate prediction for %s on %s", p.Ticker, DateKey(s.Date))
		}
		seen[p.Ticker] = struct{}{}
	}
	return nil
}
