package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hmoussa/egx-quant/internal/optimizer"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

// SweepRunner runs a full optimization sweep, reporting grid progress
// through the callback. pipeline.Sweep is the production implementation.
type SweepRunner interface {
	Run(ctx context.Context, progress optimizer.ProgressFunc) (*optimizer.Result, error)
}

// OptimizeHandler launches optimization sweeps in the background and
// answers status polls while they run. At most one sweep runs at a time.
type OptimizeHandler struct {
	sweep  SweepRunner
	logger *logger.Logger

	mu         sync.Mutex
	running    bool
	done       int
	total      int
	startedAt  time.Time
	finishedAt time.Time
	result     *optimizer.Result
	lastErr    error
}

// NewOptimizeHandler creates an optimize handler.
func NewOptimizeHandler(sweep SweepRunner, log *logger.Logger) *OptimizeHandler {
	return &OptimizeHandler{sweep: sweep, logger: log}
}

// Run starts a sweep in the background.
// POST /api/optimize/run
func (h *OptimizeHandler) Run(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		respondError(w, http.StatusConflict, "an optimization is already running")
		return
	}
	h.running = true
	h.done = 0
	h.total = 0
	h.startedAt = time.Now()
	h.result = nil
	h.lastErr = nil
	h.mu.Unlock()

	go h.runSweep()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
	})
}

func (h *OptimizeHandler) runSweep() {
	result, err := h.sweep.Run(context.Background(), func(done, total int) {
		h.mu.Lock()
		h.done = done
		h.total = total
		h.mu.Unlock()
	})

	h.mu.Lock()
	h.running = false
	h.finishedAt = time.Now()
	h.result = result
	h.lastErr = err
	h.mu.Unlock()

	if err != nil {
		h.logger.WithError(err).Error("Optimization sweep failed")
		return
	}
	h.logger.WithFields(map[string]interface{}{
		"top_k":       result.Best.TopK,
		"voting_days": result.Best.VotingDays,
	}).Info("Optimization sweep completed")
}

// Status reports sweep progress for the polling dashboard.
// GET /api/optimize/status
func (h *OptimizeHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	body := map[string]interface{}{
		"running": h.running,
		"done":    h.done,
		"total":   h.total,
	}
	if !h.startedAt.IsZero() {
		body["started_at"] = h.startedAt.UTC().Format(time.RFC3339)
	}
	if !h.running && !h.finishedAt.IsZero() {
		body["finished_at"] = h.finishedAt.UTC().Format(time.RFC3339)
		if h.lastErr != nil {
			body["error"] = h.lastErr.Error()
		}
	}
	respondJSON(w, http.StatusOK, body)
}

// Result serves the most recent completed sweep's grid and winner.
// GET /api/optimize/result
func (h *OptimizeHandler) Result(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		respondError(w, http.StatusConflict, "optimization still running")
		return
	}
	if h.lastErr != nil {
		respondError(w, http.StatusInternalServerError, h.lastErr.Error())
		return
	}
	if h.result == nil {
		respondError(w, http.StatusNotFound, "no optimization result available")
		return
	}
	respondJSON(w, http.StatusOK, h.result)
}
