package features

import (
	"math"
	"time"

	"github.com/hmoussa/egx-quant/internal/contracts"
)

// Names lists the feature columns in their fixed order. The predictor's
// feature matrix follows this ordering exactly.
var Names = []string{
	"log_return",
	"volume_sma",
	"price_sma",
	"rsi_9",
	"vp_change",
	"candle_strength",
	"atr_5",
	"day_of_week",
	"month_end_flag",
}

// Row is one instrument's feature vector for one date, derived purely
// from the trailing bar window ending at that date.
type Row struct {
	Date   time.Time
	Values []float64 // ordered per Names
}

// Config holds the indicator window lengths.
type Config struct {
	VolWindow int // volume SMA window
	PctWindow int // close SMA window
	RSIPeriod int
	ATRPeriod int
}

// DefaultConfig returns the documented default windows.
func DefaultConfig() Config {
	return Config{VolWindow: 20, PctWindow: 20, RSIPeriod: 9, ATRPeriod: 5}
}

// Engine derives technical-indicator feature vectors from OHLCV bars.
type Engine struct {
	cfg Config
}

// NewEngine creates a feature engine with the given windows.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// minIndex is the first bar index with every trailing window complete.
func (e *Engine) minIndex() int {
	m := e.cfg.VolWindow - 1
	if e.cfg.PctWindow-1 > m {
		m = e.cfg.PctWindow - 1
	}
	if e.cfg.RSIPeriod > m {
		m = e.cfg.RSIPeriod
	}
	if e.cfg.ATRPeriod > m {
		m = e.cfg.ATRPeriod
	}
	return m
}

// Compute derives one feature row per bar whose trailing window is
// complete. Bars must be ordered by date ascending. Rows in the warmup
// region are not emitted at all: an incomplete window is undefined,
// never imputed. Rows containing NaN or Inf (e.g. log of a zero close)
// are likewise dropped.
func (e *Engine) Compute(bars []contracts.Bar) []Row {
	start := e.minIndex()
	if len(bars) <= start {
		return nil
	}

	rows := make([]Row, 0, len(bars)-start)
	for i := start; i < len(bars); i++ {
		values := []float64{
			logReturn(bars, i),
			smaVolume(bars, i, e.cfg.VolWindow),
			smaClose(bars, i, e.cfg.PctWindow),
			rsi(bars, i, e.cfg.RSIPeriod),
			vpChange(bars, i),
			candleStrength(bars[i]),
			atr(bars, i, e.cfg.ATRPeriod),
			float64(bars[i].Date.Weekday()),
			monthEndFlag(bars, i),
		}

		if !finite(values) {
			continue
		}

		rows = append(rows, Row{Date: bars[i].Date, Values: values})
	}

	return rows
}

// logReturn is ln(close[i] / close[i-1]).
func logReturn(bars []contracts.Bar, i int) float64 {
	return math.Log(bars[i].Close / bars[i-1].Close)
}

func smaVolume(bars []contracts.Bar, i, window int) float64 {
	sum := 0.0
	for j := i - window + 1; j <= i; j++ {
		sum += bars[j].Volume
	}
	return sum / float64(window)
}

func smaClose(bars []contracts.Bar, i, window int) float64 {
	sum := 0.0
	for j := i - window + 1; j <= i; j++ {
		sum += bars[j].Close
	}
	return sum / float64(window)
}

// rsi computes the relative strength index from simple average gains
// and losses over the trailing period. A window with zero average loss
// saturates at 100.
func rsi(bars []contracts.Bar, i, period int) float64 {
	var gain, loss float64
	for j := i - period + 1; j <= i; j++ {
		delta := bars[j].Close - bars[j-1].Close
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}

	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// vpChange combines the day's volume change and price change into one
// volume-price momentum term.
func vpChange(bars []contracts.Bar, i int) float64 {
	return (bars[i].Volume - bars[i-1].Volume) * (bars[i].Close - bars[i-1].Close)
}

// candleStrength is the close-open body normalized by the high-low
// range. A zero range (no intraday movement) falls back to 0.
func candleStrength(b contracts.Bar) float64 {
	spread := b.High - b.Low
	if spread == 0 {
		return 0
	}
	return (b.Close - b.Open) / spread
}

// atr is the average true range over the trailing period, where true
// range accounts for gaps against the previous close.
func atr(bars []contracts.Bar, i, period int) float64 {
	sum := 0.0
	for j := i - period + 1; j <= i; j++ {
		sum += trueRange(bars[j], bars[j-1])
	}
	return sum / float64(period)
}

func trueRange(cur, prev contracts.Bar) float64 {
	tr := cur.High - cur.Low
	if hc := math.Abs(cur.High - prev.Close); hc > tr {
		tr = hc
	}
	if lc := math.Abs(cur.Low - prev.Close); lc > tr {
		tr = lc
	}
	return tr
}

// monthEndFlag is 1 when the bar is the last trading day on record for
// its calendar month within the supplied series.
func monthEndFlag(bars []contracts.Bar, i int) float64 {
	if i == len(bars)-1 {
		return 1
	}
	cy, cm, _ := bars[i].Date.Date()
	ny, nm, _ := bars[i+1].Date.Date()
	if cy != ny || cm != nm {
		return 1
	}
	return 0
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
