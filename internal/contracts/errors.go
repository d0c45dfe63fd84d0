package contracts

import "errors"

// Recoverable error kinds. Callers branch with errors.Is; none of these
// is ever fatal to a batch operation.
var (
	// ErrInsufficientData means too few bars exist to build a complete
	// feature history or train a model. The instrument is skipped.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrPredictionNotFound means no prediction set exists for the
	// requested date. The voting aggregator treats such a date as
	// contributing zero votes.
	ErrPredictionNotFound = errors.New("prediction set not found")
)
