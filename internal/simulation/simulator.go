package simulation

import (
	"time"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

// Config holds simulation constants, injected at construction so tests
// can override per case.
type Config struct {
	StartEquity float64 // initial portfolio equity, must be positive
	BreakerPct  float64 // circuit breaker: |daily return| clamp (0.25 = ±25%)
}

// DefaultSimConfig returns the documented defaults.
func DefaultSimConfig() Config {
	return Config{StartEquity: 100.0, BreakerPct: 0.25}
}

// EquityPoint is one day of the equity curve.
type EquityPoint struct {
	Date   time.Time
	Equity float64
	Change float64 // fractional portfolio return for the day
}

// Result is one finished simulation run. The curve belongs to this run
// alone and is never mutated afterward. StartEquity is the pre-trading
// baseline; Curve[0] is already post-first-day.
type Result struct {
	StartEquity float64
	FinalEquity float64
	Curve       []EquityPoint
}

// Simulator replays trading days against realized returns, compounding
// an equal-weighted portfolio over each day's selection.
type Simulator struct {
	cfg Config
	log *logger.Logger
}

// NewSimulator creates a simulator.
func NewSimulator(cfg Config, log *logger.Logger) *Simulator {
	return &Simulator{
		cfg: cfg,
		log: log.WithField("module", "simulation"),
	}
}

// Simulate walks the dates in order, applying each date's selection
// (keyed by calendar date) and realized returns to the equity curve.
//
// Per day: every held instrument's realized return is clamped to the
// circuit-breaker bound, modeling the exchange's hard daily limit and
// containing data anomalies. The day's portfolio return is the
// equal-weighted mean over instruments that actually have a return on
// record; an instrument missing from the returns table is excluded
// from the mean, not treated as zero. A day with no selection or no
// valid holdings leaves equity flat. Equity never resets mid-run.
func (s *Simulator) Simulate(dates []time.Time, returns *contracts.ReturnsMatrix, selections map[string][]string, topK int) Result {
	equity := s.cfg.StartEquity
	curve := make([]EquityPoint, 0, len(dates))

	for _, date := range dates {
		selection := selections[contracts.DateKey(date)]
		if len(selection) > topK {
			selection = selection[:topK]
		}

		dayReturn := s.portfolioReturn(date, selection, returns)
		equity *= 1 + dayReturn

		curve = append(curve, EquityPoint{Date: date, Equity: equity, Change: dayReturn})
	}

	s.log.WithFields(map[string]interface{}{
		"days":         len(dates),
		"final_equity": equity,
	}).Debug("Simulation completed")

	return Result{StartEquity: s.cfg.StartEquity, FinalEquity: equity, Curve: curve}
}

// portfolioReturn is the equal-weighted mean of clamped realized
// returns over the held instruments with data for the date.
func (s *Simulator) portfolioReturn(date time.Time, selection []string, returns *contracts.ReturnsMatrix) float64 {
	sum := 0.0
	held := 0

	for _, ticker := range selection {
		ret, ok := returns.Get(date, ticker)
		if !ok {
			continue
		}
		sum += s.clamp(ret)
		held++
	}

	if held == 0 {
		return 0
	}
	return sum / float64(held)
}

// clamp bounds a realized return to ±BreakerPct. Anything beyond the
// bound contributes exactly the signed bound value.
func (s *Simulator) clamp(ret float64) float64 {
	if ret > s.cfg.BreakerPct {
		return s.cfg.BreakerPct
	}
	if ret < -s.cfg.BreakerPct {
		return -s.cfg.BreakerPct
	}
	return ret
}
