package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hmoussa/egx-quant/internal/contracts"
)

// MemoryStore is an in-process prediction store. The optimizer uses it
// for self-contained sweeps and tests use it in place of postgres.
// Sets are copied on save and on load, so callers can never mutate a
// stored set in place.
type MemoryStore struct {
	mu   sync.RWMutex
	sets map[string]contracts.PredictionSet
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string]contracts.PredictionSet)}
}

// Save stores a ranked prediction set, overwriting any set for the
// same date. The swap is atomic under the store lock.
func (s *MemoryStore) Save(_ context.Context, set contracts.PredictionSet) error {
	if err := set.Validate(); err != nil {
		return err
	}

	stored := contracts.PredictionSet{
		Date:        set.Date,
		Predictions: append([]contracts.Prediction(nil), set.Predictions...),
	}
	stored.Sort()

	s.mu.Lock()
	s.sets[contracts.DateKey(set.Date)] = stored
	s.mu.Unlock()

	return nil
}

// Load retrieves the set for a date, or contracts.ErrPredictionNotFound.
func (s *MemoryStore) Load(_ context.Context, date time.Time) (*contracts.PredictionSet, error) {
	s.mu.RLock()
	stored, ok := s.sets[contracts.DateKey(date)]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", contracts.DateKey(date), contracts.ErrPredictionNotFound)
	}

	out := contracts.PredictionSet{
		Date:        stored.Date,
		Predictions: append([]contracts.Prediction(nil), stored.Predictions...),
	}
	return &out, nil
}

// Dates lists every stored date, ascending.
func (s *MemoryStore) Dates(_ context.Context) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dates := make([]time.Time, 0, len(s.sets))
	for _, set := range s.sets {
		dates = append(dates, set.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	return dates, nil
}

// Len returns how many dates have a stored set.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets)
}
