package simulation

import "math"

// Metrics summarizes a finished equity curve.
type Metrics struct {
	TotalReturnPct float64
	MaxDrawdownPct float64
	SharpeRatio    float64 // annualized, 0% risk-free
	WinRate        float64
	DaysTraded     int
}

// ComputeMetrics derives performance metrics from a simulation result.
func ComputeMetrics(result Result) Metrics {
	m := Metrics{DaysTraded: len(result.Curve)}
	if len(result.Curve) == 0 {
		return m
	}

	// Curve[0] is already post-first-day, so the baseline is the run's
	// starting equity, not the first curve point.
	first := result.StartEquity
	last := result.Curve[len(result.Curve)-1].Equity
	if first != 0 {
		m.TotalReturnPct = (last - first) / first * 100
	}

	m.MaxDrawdownPct = maxDrawdown(result.StartEquity, result.Curve) * 100

	returns := make([]float64, 0, len(result.Curve))
	wins := 0
	for _, p := range result.Curve {
		returns = append(returns, p.Change)
		if p.Change > 0 {
			wins++
		}
	}
	m.WinRate = float64(wins) / float64(len(returns)) * 100

	if sd := stddev(returns); sd > 0 {
		m.SharpeRatio = meanOf(returns) / sd * math.Sqrt(252)
	}

	return m
}

func maxDrawdown(start float64, curve []EquityPoint) float64 {
	worst := 0.0
	peak := start
	if curve[0].Equity > peak {
		peak = curve[0].Equity
	}

	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}

	return worst
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := meanOf(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
