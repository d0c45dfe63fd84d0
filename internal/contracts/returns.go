package contracts

import "time"

// ReturnsMatrix holds realized daily returns keyed by date then ticker.
// Values are fractional returns (0.05 = +5%). Returns are raw here; the
// portfolio simulator owns the circuit-breaker clamp.
type ReturnsMatrix struct {
	byDate map[string]map[string]float64
}

// NewReturnsMatrix creates an empty matrix.
func NewReturnsMatrix() *ReturnsMatrix {
	return &ReturnsMatrix{byDate: make(map[string]map[string]float64)}
}

// Set records the realized return for one instrument on one date.
func (m *ReturnsMatrix) Set(date time.Time, ticker string, ret float64) {
	key := DateKey(date)
	row, ok := m.byDate[key]
	if !ok {
		row = make(map[string]float64)
		m.byDate[key] = row
	}
	row[ticker] = ret
}

// Get looks up the realized return for one instrument on one date.
// The second result is false when no return is on record -- the caller
// excludes the instrument from that day's mean rather than assuming zero.
func (m *ReturnsMatrix) Get(date time.Time, ticker string) (float64, bool) {
	row, ok := m.byDate[DateKey(date)]
	if !ok {
		return 0, false
	}
	ret, ok := row[ticker]
	return ret, ok
}

// Dates returns the number of dates with at least one recorded return.
func (m *ReturnsMatrix) Dates() int {
	return len(m.byDate)
}
