package marketdata

import (
	"github.com/hmoussa/egx-quant/internal/contracts"
)

// ComputeDailyReturns builds the realized-returns matrix from bar
// history: for each instrument, the fractional close-to-close return
// between consecutive sessions on record. Gaps stay gaps -- a missing
// session produces no return row, and the next session's return spans
// the gap. Values are raw; the simulator applies the circuit breaker.
func ComputeDailyReturns(barsByTicker map[string][]contracts.Bar) *contracts.ReturnsMatrix {
	matrix := contracts.NewReturnsMatrix()

	for ticker, bars := range barsByTicker {
		for i := 1; i < len(bars); i++ {
			prev := bars[i-1].Close
			if prev == 0 {
				continue
			}
			ret := (bars[i].Close - prev) / prev
			matrix.Set(bars[i].Date, ticker, ret)
		}
	}

	return matrix
}
