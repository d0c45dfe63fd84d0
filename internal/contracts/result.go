package contracts

import "time"

// TickerFailure records why one instrument dropped out of a batch run.
type TickerFailure struct {
	Ticker string
	Reason string
}

// BatchResult collects the outcome of training every instrument for one
// prediction date. One instrument failing never aborts the others;
// failures ride alongside successes so callers can report partial
// results instead of crashing.
type BatchResult struct {
	Date        time.Time
	Predictions []Prediction
	Failures    []TickerFailure
}

// Set returns the batch's successes as a ranked prediction set.
func (b *BatchResult) Set() PredictionSet {
	set := PredictionSet{Date: b.Date, Predictions: b.Predictions}
	set.Sort()
	return set
}
