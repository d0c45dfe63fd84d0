package predictor

import "sort"

// Isotonic is a non-decreasing mapping from raw model output to
// calibrated output, fitted with pool-adjacent-violators. It satisfies
// the calibration capability: fit a monotonic mapping from (x, y)
// pairs, then evaluate it at a new x. Inputs outside the fitted domain
// clip to the boundary values.
type Isotonic struct {
	xs []float64
	ys []float64
}

// FitIsotonic fits the monotonic regression. At least two pairs are
// required; with fewer the mapping is nil and callers fall back to the
// raw estimate.
func FitIsotonic(x, y []float64) *Isotonic {
	if len(x) < 2 || len(x) != len(y) {
		return nil
	}

	// Sort pairs by x, keeping y alongside.
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return x[idx[i]] < x[idx[j]] })

	type block struct {
		sumY   float64
		weight float64
		minX   float64
		maxX   float64
	}

	blocks := make([]block, 0, len(x))
	for _, i := range idx {
		blocks = append(blocks, block{sumY: y[i], weight: 1, minX: x[i], maxX: x[i]})

		// Pool while the new block violates monotonicity.
		for len(blocks) > 1 {
			n := len(blocks)
			prev, cur := blocks[n-2], blocks[n-1]
			if prev.sumY/prev.weight <= cur.sumY/cur.weight {
				break
			}
			merged := block{
				sumY:   prev.sumY + cur.sumY,
				weight: prev.weight + cur.weight,
				minX:   prev.minX,
				maxX:   cur.maxX,
			}
			blocks = append(blocks[:n-2], merged)
		}
	}

	m := &Isotonic{
		xs: make([]float64, 0, 2*len(blocks)),
		ys: make([]float64, 0, 2*len(blocks)),
	}
	for _, b := range blocks {
		v := b.sumY / b.weight
		m.xs = append(m.xs, b.minX, b.maxX)
		m.ys = append(m.ys, v, v)
	}

	return m
}

// Predict evaluates the calibrated value at x: constant within a
// pooled block, linearly interpolated between blocks, clipped outside
// the fitted domain.
func (m *Isotonic) Predict(x float64) float64 {
	if x <= m.xs[0] {
		return m.ys[0]
	}
	last := len(m.xs) - 1
	if x >= m.xs[last] {
		return m.ys[last]
	}

	hi := sort.SearchFloat64s(m.xs, x)
	lo := hi - 1
	if m.xs[hi] == m.xs[lo] {
		return m.ys[hi]
	}

	t := (x - m.xs[lo]) / (m.xs[hi] - m.xs[lo])
	return m.ys[lo] + t*(m.ys[hi]-m.ys[lo])
}
