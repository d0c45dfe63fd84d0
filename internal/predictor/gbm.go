package predictor

import (
	"math"
	"math/rand"
	"sort"
)

// GBMConfig holds the boosting hyperparameters. Defaults mirror the
// tuned values the pipeline has always run with.
type GBMConfig struct {
	Rounds       int     // maximum boosting rounds
	LearningRate float64 // shrinkage per round
	MaxDepth     int     // tree depth limit
	Subsample    float64 // row sampling fraction per round
	ColSample    float64 // feature sampling fraction per round
	MinLeaf      int     // minimum samples per leaf
	Patience     int     // early-stop rounds without holdout improvement
	Seed         int64   // RNG seed, fixed for reproducible fits
}

// DefaultGBMConfig returns the standard hyperparameters.
func DefaultGBMConfig() GBMConfig {
	return GBMConfig{
		Rounds:       300,
		LearningRate: 0.05,
		MaxDepth:     4,
		Subsample:    0.8,
		ColSample:    0.8,
		MinLeaf:      5,
		Patience:     20,
		Seed:         42,
	}
}

// GBM is a gradient-boosted ensemble of depth-limited regression trees
// fit to squared-error residuals. Fitting is fully deterministic for a
// given config and input: the row/feature sampler runs off a seeded
// source.
type GBM struct {
	cfg   GBMConfig
	base  float64
	trees []*treeNode
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

// TrainGBM fits a boosted ensemble on the training rows, using the
// holdout set to early-stop on MAE. The returned model keeps only the
// trees up to the best holdout round.
func TrainGBM(cfg GBMConfig, trainX [][]float64, trainY []float64, valX [][]float64, valY []float64) *GBM {
	rng := rand.New(rand.NewSource(cfg.Seed))

	model := &GBM{cfg: cfg, base: mean(trainY)}

	pred := make([]float64, len(trainY))
	valPred := make([]float64, len(valY))
	for i := range pred {
		pred[i] = model.base
	}
	for i := range valPred {
		valPred[i] = model.base
	}

	bestMAE := maeOf(valPred, valY)
	bestRound := 0
	sinceBest := 0

	residual := make([]float64, len(trainY))

	for round := 0; round < cfg.Rounds; round++ {
		for i := range trainY {
			residual[i] = trainY[i] - pred[i]
		}

		rows := sampleIndices(rng, len(trainY), cfg.Subsample)
		cols := sampleIndices(rng, len(trainX[0]), cfg.ColSample)

		tree := buildTree(trainX, residual, rows, cols, cfg.MaxDepth, cfg.MinLeaf)
		model.trees = append(model.trees, tree)

		for i := range trainY {
			pred[i] += cfg.LearningRate * evalTree(tree, trainX[i])
		}
		for i := range valY {
			valPred[i] += cfg.LearningRate * evalTree(tree, valX[i])
		}

		if len(valY) > 0 {
			if m := maeOf(valPred, valY); m < bestMAE {
				bestMAE = m
				bestRound = round + 1
				sinceBest = 0
			} else {
				sinceBest++
				if sinceBest >= cfg.Patience {
					break
				}
			}
		} else {
			bestRound = round + 1
		}
	}

	model.trees = model.trees[:bestRound]
	return model
}

// Predict evaluates the ensemble for one feature row.
func (m *GBM) Predict(x []float64) float64 {
	out := m.base
	for _, tree := range m.trees {
		out += m.cfg.LearningRate * evalTree(tree, x)
	}
	return out
}

// Rounds returns how many trees survived early stopping.
func (m *GBM) Rounds() int {
	return len(m.trees)
}

// buildTree grows one regression tree on sampled rows and features,
// greedily minimizing squared error at each split.
func buildTree(x [][]float64, target []float64, rows, cols []int, depth, minLeaf int) *treeNode {
	if depth == 0 || len(rows) < 2*minLeaf {
		return &treeNode{leaf: true, value: meanAt(target, rows)}
	}

	feature, threshold, ok := bestSplit(x, target, rows, cols, minLeaf)
	if !ok {
		return &treeNode{leaf: true, value: meanAt(target, rows)}
	}

	var leftRows, rightRows []int
	for _, r := range rows {
		if x[r][feature] <= threshold {
			leftRows = append(leftRows, r)
		} else {
			rightRows = append(rightRows, r)
		}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      buildTree(x, target, leftRows, cols, depth-1, minLeaf),
		right:     buildTree(x, target, rightRows, cols, depth-1, minLeaf),
	}
}

// bestSplit scans candidate thresholds per feature and returns the one
// with the lowest weighted squared error. ok is false when no split
// leaves minLeaf samples on both sides.
func bestSplit(x [][]float64, target []float64, rows, cols []int, minLeaf int) (int, float64, bool) {
	bestScore := math.Inf(1)
	bestFeature := -1
	bestThreshold := 0.0

	order := make([]int, len(rows))

	for _, f := range cols {
		copy(order, rows)
		sort.Slice(order, func(i, j int) bool { return x[order[i]][f] < x[order[j]][f] })

		// Prefix sums over the sorted order make each threshold O(1).
		var leftSum, leftSq float64
		totalSum, totalSq := 0.0, 0.0
		for _, r := range order {
			totalSum += target[r]
			totalSq += target[r] * target[r]
		}

		for i := 0; i < len(order)-1; i++ {
			r := order[i]
			leftSum += target[r]
			leftSq += target[r] * target[r]

			// No threshold separates identical values.
			if x[order[i]][f] == x[order[i+1]][f] {
				continue
			}

			nLeft := i + 1
			nRight := len(order) - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq

			score := (leftSq - leftSum*leftSum/float64(nLeft)) +
				(rightSq - rightSum*rightSum/float64(nRight))

			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = (x[order[i]][f] + x[order[i+1]][f]) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func evalTree(node *treeNode, x []float64) float64 {
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

// sampleIndices picks a sorted random subset of [0, n). A fraction at
// or above 1 keeps everything.
func sampleIndices(rng *rand.Rand, n int, fraction float64) []int {
	if fraction >= 1 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}

	count := int(math.Ceil(float64(n) * fraction))
	if count < 1 {
		count = 1
	}

	perm := rng.Perm(n)[:count]
	sort.Ints(perm)
	return perm
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func meanAt(values []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += values[i]
	}
	return sum / float64(len(idx))
}

func maeOf(pred, actual []float64) float64 {
	if len(actual) == 0 {
		return math.Inf(1)
	}
	sum := 0.0
	for i := range actual {
		sum += math.Abs(pred[i] - actual[i])
	}
	return sum / float64(len(actual))
}
