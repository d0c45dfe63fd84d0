package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/internal/optimizer"
	"github.com/hmoussa/egx-quant/internal/store"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func seededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()

	for _, d := range []int{1, 2} {
		set := contracts.PredictionSet{
			Date: day(d),
			Predictions: []contracts.Prediction{
				{Ticker: "AAA.CA", Date: day(d), Estimate: 2.5},
				{Ticker: "BBB.CA", Date: day(d), Estimate: 1.0},
			},
		}
		require.NoError(t, s.Save(context.Background(), set))
	}
	return s
}

func TestPredictionHandler_GetByDate(t *testing.T) {
	h := NewPredictionHandler(seededStore(t), logger.NewNop())

	r := mux.NewRouter()
	r.HandleFunc("/api/predictions/{date}", h.GetByDate)

	req := httptest.NewRequest(http.MethodGet, "/api/predictions/2025-06-01", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Date        string `json:"date"`
		Predictions []struct {
			Ticker   string  `json:"ticker"`
			Estimate float64 `json:"estimate_pct"`
		} `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2025-06-01", body.Date)
	require.Len(t, body.Predictions, 2)
	assert.Equal(t, "AAA.CA", body.Predictions[0].Ticker)
	assert.Equal(t, 2.5, body.Predictions[0].Estimate)
}

func TestPredictionHandler_GetByDate_BadAndMissing(t *testing.T) {
	h := NewPredictionHandler(seededStore(t), logger.NewNop())

	r := mux.NewRouter()
	r.HandleFunc("/api/predictions/{date}", h.GetByDate)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predictions/june-first", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predictions/2025-12-25", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredictionHandler_GetLatest(t *testing.T) {
	h := NewPredictionHandler(seededStore(t), logger.NewNop())

	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/predictions/latest", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2025-06-02")
}

func TestPredictionHandler_GetLatest_EmptyStore(t *testing.T) {
	h := NewPredictionHandler(store.NewMemoryStore(), logger.NewNop())

	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/predictions/latest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredictionHandler_ListDates(t *testing.T) {
	h := NewPredictionHandler(seededStore(t), logger.NewNop())

	rec := httptest.NewRecorder()
	h.ListDates(rec, httptest.NewRequest(http.MethodGet, "/api/predictions/dates", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Dates []string `json:"dates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"2025-06-01", "2025-06-02"}, body.Dates)
}

// fakeSweep blocks until released so status can be observed mid-run.
type fakeSweep struct {
	mu      sync.Mutex
	release chan struct{}
	result  *optimizer.Result
	err     error
}

func newFakeSweep() *fakeSweep {
	return &fakeSweep{
		release: make(chan struct{}),
		result: &optimizer.Result{
			TopKValues:   []int{1, 2},
			VotingValues: []int{1},
			Grid:         [][]float64{{105}, {103}},
			Best:         optimizer.CellResult{TopK: 1, VotingDays: 1, FinalEquity: 105},
			Cells:        2,
		},
	}
}

func (f *fakeSweep) Run(ctx context.Context, progress optimizer.ProgressFunc) (*optimizer.Result, error) {
	if progress != nil {
		progress(1, 2)
	}
	<-f.release
	f.mu.Lock()
	defer f.mu.Unlock()
	if progress != nil && f.err == nil {
		progress(2, 2)
	}
	return f.result, f.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func optimizeStatus(h *OptimizeHandler) (running bool, done int) {
	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/optimize/status", nil))

	var body struct {
		Running bool `json:"running"`
		Done    int  `json:"done"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		return false, 0
	}
	return body.Running, body.Done
}

func TestOptimizeHandler_RunStatusResult(t *testing.T) {
	sweep := newFakeSweep()
	h := NewOptimizeHandler(sweep, logger.NewNop())

	// No result before any run.
	rec := httptest.NewRecorder()
	h.Result(rec, httptest.NewRequest(http.MethodGet, "/api/optimize/result", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Launch.
	rec = httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/optimize/run", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	waitFor(t, func() bool { running, done := optimizeStatus(h); return running && done == 1 })

	// A second launch while running conflicts.
	rec = httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/optimize/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Result while running conflicts too.
	rec = httptest.NewRecorder()
	h.Result(rec, httptest.NewRequest(http.MethodGet, "/api/optimize/result", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(sweep.release)
	waitFor(t, func() bool { running, _ := optimizeStatus(h); return !running })

	rec = httptest.NewRecorder()
	h.Result(rec, httptest.NewRequest(http.MethodGet, "/api/optimize/result", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result optimizer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Best.TopK)
	assert.Equal(t, 105.0, result.Best.FinalEquity)
}

func TestOptimizeHandler_SweepFailure(t *testing.T) {
	sweep := newFakeSweep()
	sweep.mu.Lock()
	sweep.result = nil
	sweep.err = fmt.Errorf("no bar data downloaded")
	sweep.mu.Unlock()

	h := NewOptimizeHandler(sweep, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/optimize/run", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	close(sweep.release)
	waitFor(t, func() bool { running, _ := optimizeStatus(h); return !running })

	rec = httptest.NewRecorder()
	h.Result(rec, httptest.NewRequest(http.MethodGet, "/api/optimize/result", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "no bar data downloaded")
}
