package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func key(d int) string {
	return contracts.DateKey(day(d))
}

func newTestSimulator() *Simulator {
	return NewSimulator(DefaultSimConfig(), logger.NewNop())
}

func TestSimulate_CompoundsEquity(t *testing.T) {
	returns := contracts.NewReturnsMatrix()
	returns.Set(day(1), "AAA.CA", 0.05)
	returns.Set(day(2), "AAA.CA", -0.03)
	returns.Set(day(3), "AAA.CA", 0.02)

	sim := newTestSimulator()
	result := sim.Simulate(
		[]time.Time{day(1), day(2), day(3)},
		returns,
		map[string][]string{
			key(1): {"AAA.CA"},
			key(2): {"AAA.CA"},
			key(3): {"AAA.CA"},
		},
		1,
	)

	assert.InDelta(t, 100*1.05*0.97*1.02, result.FinalEquity, 1e-9)
	require.Len(t, result.Curve, 3)
	assert.InDelta(t, 105.0, result.Curve[0].Equity, 1e-9)
	assert.InDelta(t, 0.05, result.Curve[0].Change, 1e-12)
}

func TestSimulate_EqualWeightedMean(t *testing.T) {
	returns := contracts.NewReturnsMatrix()
	returns.Set(day(1), "AAA.CA", 0.10)
	returns.Set(day(1), "BBB.CA", -0.02)

	sim := newTestSimulator()
	result := sim.Simulate(
		[]time.Time{day(1)},
		returns,
		map[string][]string{key(1): {"AAA.CA", "BBB.CA"}},
		2,
	)

	assert.InDelta(t, 100*(1+0.04), result.FinalEquity, 1e-9)
}

func TestSimulate_CircuitBreakerClampsToExactBound(t *testing.T) {
	returns := contracts.NewReturnsMatrix()
	returns.Set(day(1), "UP.CA", 0.80)    // clamps to +0.25
	returns.Set(day(2), "DOWN.CA", -0.60) // clamps to -0.25
	returns.Set(day(3), "EDGE.CA", 0.25)  // exactly at the bound, untouched

	sim := newTestSimulator()
	result := sim.Simulate(
		[]time.Time{day(1), day(2), day(3)},
		returns,
		map[string][]string{
			key(1): {"UP.CA"},
			key(2): {"DOWN.CA"},
			key(3): {"EDGE.CA"},
		},
		1,
	)

	require.Len(t, result.Curve, 3)
	assert.InDelta(t, 0.25, result.Curve[0].Change, 1e-12)
	assert.InDelta(t, -0.25, result.Curve[1].Change, 1e-12)
	assert.InDelta(t, 0.25, result.Curve[2].Change, 1e-12)
	assert.InDelta(t, 100*1.25*0.75*1.25, result.FinalEquity, 1e-9)
}

func TestSimulate_NoSelectionLeavesEquityFlat(t *testing.T) {
	returns := contracts.NewReturnsMatrix()
	returns.Set(day(1), "AAA.CA", 0.05)
	returns.Set(day(3), "AAA.CA", 0.05)

	sim := newTestSimulator()
	result := sim.Simulate(
		[]time.Time{day(1), day(2), day(3)},
		returns,
		map[string][]string{
			key(1): {"AAA.CA"},
			key(3): {"AAA.CA"},
		},
		1,
	)

	require.Len(t, result.Curve, 3)
	assert.InDelta(t, 105.0, result.Curve[1].Equity, 1e-9, "day without selection holds equity")
	assert.Equal(t, 0.0, result.Curve[1].Change)
}

func TestSimulate_MissingReturnExcludedFromMean(t *testing.T) {
	// GONE.CA has no return on record: the mean divides by one, not two.
	returns := contracts.NewReturnsMatrix()
	returns.Set(day(1), "AAA.CA", 0.10)

	sim := newTestSimulator()
	result := sim.Simulate(
		[]time.Time{day(1)},
		returns,
		map[string][]string{key(1): {"AAA.CA", "GONE.CA"}},
		2,
	)

	assert.InDelta(t, 110.0, result.FinalEquity, 1e-9)
}

func TestSimulate_SelectionTruncatedToTopK(t *testing.T) {
	returns := contracts.NewReturnsMatrix()
	returns.Set(day(1), "AAA.CA", 0.10)
	returns.Set(day(1), "BBB.CA", -0.50)

	sim := newTestSimulator()
	result := sim.Simulate(
		[]time.Time{day(1)},
		returns,
		map[string][]string{key(1): {"AAA.CA", "BBB.CA"}},
		1,
	)

	assert.InDelta(t, 110.0, result.FinalEquity, 1e-9, "only the first topK instruments are held")
}

func TestComputeMetrics(t *testing.T) {
	returns := contracts.NewReturnsMatrix()
	returns.Set(day(1), "AAA.CA", 0.10)
	returns.Set(day(2), "AAA.CA", -0.05)
	returns.Set(day(3), "AAA.CA", 0.02)

	sim := newTestSimulator()
	result := sim.Simulate(
		[]time.Time{day(1), day(2), day(3)},
		returns,
		map[string][]string{
			key(1): {"AAA.CA"},
			key(2): {"AAA.CA"},
			key(3): {"AAA.CA"},
		},
		1,
	)

	m := ComputeMetrics(result)
	assert.Equal(t, 3, m.DaysTraded)
	assert.InDelta(t, 100.0*2/3, m.WinRate, 1e-9)

	// 100 -> 110 -> 104.5 -> 106.59; total return measures from the
	// 100 baseline, so the first day's gain is included.
	assert.InDelta(t, 6.59, m.TotalReturnPct, 1e-9)

	// Peak 110 drops to 104.5: drawdown 5%.
	assert.InDelta(t, 5.0, m.MaxDrawdownPct, 1e-9)
	assert.NotZero(t, m.SharpeRatio)
}

func TestComputeMetrics_FirstDayVisible(t *testing.T) {
	// A single losing day must show up in both total return and
	// drawdown even though the curve has no pre-trading point.
	returns := contracts.NewReturnsMatrix()
	returns.Set(day(1), "AAA.CA", -0.10)

	sim := newTestSimulator()
	result := sim.Simulate(
		[]time.Time{day(1)},
		returns,
		map[string][]string{key(1): {"AAA.CA"}},
		1,
	)

	require.InDelta(t, 90.0, result.FinalEquity, 1e-9)
	assert.InDelta(t, 100.0, result.StartEquity, 1e-9)

	m := ComputeMetrics(result)
	assert.InDelta(t, -10.0, m.TotalReturnPct, 1e-9)
	assert.InDelta(t, 10.0, m.MaxDrawdownPct, 1e-9)
}

func TestComputeMetrics_EmptyCurve(t *testing.T) {
	m := ComputeMetrics(Result{})
	assert.Equal(t, Metrics{}, m)
}
