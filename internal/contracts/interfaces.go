package contracts

import (
	"context"
	"time"
)

// PredictionStore persists one ranked prediction set per calendar date.
// Save overwrites any existing set for the same date atomically: a
// concurrent reader sees either the previous set or the new one, never
// a partially written mix. Load returns ErrPredictionNotFound when no
// set exists for the date.
type PredictionStore interface {
	Save(ctx context.Context, set PredictionSet) error
	Load(ctx context.Context, date time.Time) (*PredictionSet, error)
}

// BarsProvider supplies ordered OHLCV history for one instrument.
// Gap-tolerant: missing sessions simply do not appear.
type BarsProvider interface {
	Bars(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error)
}

// TradingCalendar supplies the ordered trading days ending at a date,
// used to drive simulation and voting windows.
type TradingCalendar interface {
	TradingDays(ctx context.Context, end time.Time, nDays int) ([]time.Time, error)
}
