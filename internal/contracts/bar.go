package contracts

import "time"

// DateLayout is the canonical date format used for persistence keys and logs.
const DateLayout = "2006-01-02"

// Bar is one instrument's OHLCV record for a single trading session.
// Bars are immutable once produced by the market data source and are
// ordered by date. Sessions may be missing (holidays, suspensions);
// nothing in the pipeline forward-fills across gaps.
type Bar struct {
	Ticker string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// DateKey normalizes a timestamp to its calendar-date key.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}
