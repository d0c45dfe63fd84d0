package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hmoussa/egx-quant/internal/contracts"
)

func barAt(ticker string, d time.Time, close float64) contracts.Bar {
	return contracts.Bar{Ticker: ticker, Date: d, Open: close, High: close, Low: close, Close: close, Volume: 100}
}

func TestComputeDailyReturns(t *testing.T) {
	d1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	d3 := d1.AddDate(0, 0, 2)

	matrix := ComputeDailyReturns(map[string][]contracts.Bar{
		"AAA.CA": {barAt("AAA.CA", d1, 100), barAt("AAA.CA", d2, 110), barAt("AAA.CA", d3, 99)},
	})

	// First bar has no prior close, so no return for d1.
	_, ok := matrix.Get(d1, "AAA.CA")
	assert.False(t, ok)

	ret, ok := matrix.Get(d2, "AAA.CA")
	assert.True(t, ok)
	assert.InDelta(t, 0.10, ret, 1e-12)

	ret, ok = matrix.Get(d3, "AAA.CA")
	assert.True(t, ok)
	assert.InDelta(t, -0.10, ret, 1e-12)
}

func TestComputeDailyReturns_GapSpansMissingSession(t *testing.T) {
	d1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	d4 := d1.AddDate(0, 0, 3) // sessions in between never traded

	matrix := ComputeDailyReturns(map[string][]contracts.Bar{
		"AAA.CA": {barAt("AAA.CA", d1, 100), barAt("AAA.CA", d4, 120)},
	})

	ret, ok := matrix.Get(d4, "AAA.CA")
	assert.True(t, ok)
	assert.InDelta(t, 0.20, ret, 1e-12, "return spans the gap, not filled per day")
}

func TestComputeDailyReturns_SkipsZeroPriorClose(t *testing.T) {
	d1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)

	matrix := ComputeDailyReturns(map[string][]contracts.Bar{
		"BAD.CA": {barAt("BAD.CA", d1, 0), barAt("BAD.CA", d2, 10)},
	})

	_, ok := matrix.Get(d2, "BAD.CA")
	assert.False(t, ok)
}

func TestComputeDailyReturns_DoesNotClamp(t *testing.T) {
	d1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)

	matrix := ComputeDailyReturns(map[string][]contracts.Bar{
		"WILD.CA": {barAt("WILD.CA", d1, 100), barAt("WILD.CA", d2, 200)},
	})

	ret, ok := matrix.Get(d2, "WILD.CA")
	assert.True(t, ok)
	assert.InDelta(t, 1.0, ret, 1e-12, "matrix stores raw returns")
}
