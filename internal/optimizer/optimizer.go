package optimizer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/internal/simulation"
	"github.com/hmoussa/egx-quant/internal/voting"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

// Range is an inclusive integer parameter range.
type Range struct {
	Min int
	Max int
}

// Values expands the range into its candidate list.
func (r Range) Values() []int {
	if r.Max < r.Min {
		return nil
	}
	values := make([]int, 0, r.Max-r.Min+1)
	for v := r.Min; v <= r.Max; v++ {
		values = append(values, v)
	}
	return values
}

// Config holds one optimization run's inputs.
type Config struct {
	TopK       Range
	VotingDays Range
	Workers    int // concurrent grid cells; 0 means sequential
}

// CellResult is one (top_k, voting_days) combination's outcome.
type CellResult struct {
	TopK        int     `json:"top_k"`
	VotingDays  int     `json:"voting_days"`
	FinalEquity float64 `json:"final_equity"`
}

// Result is the full sweep outcome: the dense final-equity grid for
// visualization plus the single best combination.
type Result struct {
	TopKValues   []int       `json:"top_k_values"`
	VotingValues []int       `json:"voting_values"`
	Grid         [][]float64 `json:"grid"` // [top_k index][voting_days index]
	Best         CellResult  `json:"best"`
	Cells        int         `json:"cells"`
}

// ProgressFunc receives incremental completion counts while a sweep
// runs. Called from multiple goroutines; implementations synchronize
// themselves.
type ProgressFunc func(done, total int)

// Optimizer sweeps the (top_k, voting_days) grid, driving one
// simulation per combination.
type Optimizer struct {
	aggregator *voting.Aggregator
	simConfig  simulation.Config
	log        *logger.Logger
}

// New creates an optimizer.
func New(aggregator *voting.Aggregator, simConfig simulation.Config, log *logger.Logger) *Optimizer {
	return &Optimizer{
		aggregator: aggregator,
		simConfig:  simConfig,
		log:        log.WithField("module", "optimizer"),
	}
}

// Run evaluates every combination in the Cartesian product of the two
// ranges over the supplied trading days and returns matrix.
//
// Every grid cell is a pure function of its inputs, so cells run
// concurrently. The winner is chosen by a strict-maximum scan in range
// iteration order (smallest top_k, then smallest voting_days), which
// makes ties deterministic no matter which cell finished first.
func (o *Optimizer) Run(ctx context.Context, cfg Config, dates []time.Time, returns *contracts.ReturnsMatrix, progress ProgressFunc) (*Result, error) {
	topKValues := cfg.TopK.Values()
	votingValues := cfg.VotingDays.Values()
	if len(topKValues) == 0 || len(votingValues) == 0 {
		return nil, fmt.Errorf("empty parameter range")
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("no trading days to simulate")
	}

	grid := make([][]float64, len(topKValues))
	for i := range grid {
		grid[i] = make([]float64, len(votingValues))
	}

	total := len(topKValues) * len(votingValues)
	var done int64

	o.log.WithFields(map[string]interface{}{
		"combinations": total,
		"days":         len(dates),
	}).Info("Starting parameter sweep")

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	for i, topK := range topKValues {
		for j, votingDays := range votingValues {
			i, j, topK, votingDays := i, j, topK, votingDays
			g.Go(func() error {
				finalEquity, err := o.evaluate(gctx, topK, votingDays, dates, returns)
				if err != nil {
					return err
				}

				mu.Lock()
				grid[i][j] = finalEquity
				mu.Unlock()

				if progress != nil {
					progress(int(atomic.AddInt64(&done, 1)), total)
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		TopKValues:   topKValues,
		VotingValues: votingValues,
		Grid:         grid,
		Cells:        total,
	}
	result.Best = pickBest(topKValues, votingValues, grid)

	o.log.WithFields(map[string]interface{}{
		"best_top_k":       result.Best.TopK,
		"best_voting_days": result.Best.VotingDays,
		"best_equity":      result.Best.FinalEquity,
	}).Info("Parameter sweep completed")

	return result, nil
}

// evaluate runs one grid cell: build each day's selection by voting,
// then simulate the whole period.
func (o *Optimizer) evaluate(ctx context.Context, topK, votingDays int, dates []time.Time, returns *contracts.ReturnsMatrix) (float64, error) {
	selections := make(map[string][]string, len(dates))
	for i, date := range dates {
		selected, err := o.aggregator.Aggregate(ctx, dates[:i+1], votingDays, topK)
		if err != nil {
			return 0, fmt.Errorf("voting for %s: %w", contracts.DateKey(date), err)
		}
		if len(selected) > 0 {
			selections[contracts.DateKey(date)] = selected
		}
	}

	sim := simulation.NewSimulator(o.simConfig, o.log)
	result := sim.Simulate(dates, returns, selections, topK)
	return result.FinalEquity, nil
}

// pickBest scans in range iteration order and keeps the first strict
// maximum, so equal equities resolve to the smallest top_k, then the
// smallest voting_days.
func pickBest(topKValues, votingValues []int, grid [][]float64) CellResult {
	best := CellResult{TopK: topKValues[0], VotingDays: votingValues[0], FinalEquity: grid[0][0]}
	for i, topK := range topKValues {
		for j, votingDays := range votingValues {
			if grid[i][j] > best.FinalEquity {
				best = CellResult{TopK: topK, VotingDays: votingDays, FinalEquity: grid[i][j]}
			}
		}
	}
	return best
}
