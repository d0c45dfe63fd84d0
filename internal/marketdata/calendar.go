package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/hmoussa/egx-quant/internal/contracts"
)

// ReferenceTicker anchors the trading calendar. Any continuously
// traded instrument works since only its bar dates are read.
const ReferenceTicker = "INFI.CA"

// Calendar derives trading days from a reference instrument's bar
// history: a session happened iff the reference instrument traded.
// Implements contracts.TradingCalendar.
type Calendar struct {
	provider  contracts.BarsProvider
	reference string
}

// NewCalendar creates a calendar over the given reference ticker.
func NewCalendar(provider contracts.BarsProvider, reference string) *Calendar {
	return &Calendar{provider: provider, reference: reference}
}

// TradingDays returns the trading days within nDays calendar days
// ending at end, ordered ascending.
func (c *Calendar) TradingDays(ctx context.Context, end time.Time, nDays int) ([]time.Time, error) {
	start := end.AddDate(0, 0, -nDays)

	bars, err := c.provider.Bars(ctx, c.reference, start, end)
	if err != nil {
		return nil, fmt.Errorf("trading days via %s: %w", c.reference, err)
	}

	days := make([]time.Time, 0, len(bars))
	for _, b := range bars {
		days = append(days, b.Date)
	}

	return days, nil
}
