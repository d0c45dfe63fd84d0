package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

// DatedStore is a prediction store that can also enumerate its dates.
// Both store implementations satisfy it.
type DatedStore interface {
	contracts.PredictionStore
	Dates(ctx context.Context) ([]time.Time, error)
}

// PredictionHandler serves stored prediction sets to the dashboard.
type PredictionHandler struct {
	store  DatedStore
	logger *logger.Logger
}

// NewPredictionHandler creates a prediction handler.
func NewPredictionHandler(store DatedStore, log *logger.Logger) *PredictionHandler {
	return &PredictionHandler{store: store, logger: log}
}

type predictionJSON struct {
	Ticker   string  `json:"ticker"`
	Estimate float64 `json:"estimate_pct"`
}

type predictionSetJSON struct {
	Date        string           `json:"date"`
	Predictions []predictionJSON `json:"predictions"`
}

// GetByDate serves one date's ranked prediction set.
// GET /api/predictions/{date}
func (h *PredictionHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	dateStr := mux.Vars(r)["date"]
	date, err := time.Parse(contracts.DateLayout, dateStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	h.serveSet(w, r, date)
}

// GetLatest serves the most recent stored prediction set.
// GET /api/predictions/latest
func (h *PredictionHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	dates, err := h.store.Dates(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list prediction dates")
		respondError(w, http.StatusInternalServerError, "failed to list prediction dates")
		return
	}
	if len(dates) == 0 {
		respondError(w, http.StatusNotFound, "no predictions stored")
		return
	}

	h.serveSet(w, r, dates[len(dates)-1])
}

// ListDates serves every date with a stored set.
// GET /api/predictions/dates
func (h *PredictionHandler) ListDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.store.Dates(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list prediction dates")
		respondError(w, http.StatusInternalServerError, "failed to list prediction dates")
		return
	}

	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = contracts.DateKey(d)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"dates": out})
}

func (h *PredictionHandler) serveSet(w http.ResponseWriter, r *http.Request, date time.Time) {
	set, err := h.store.Load(r.Context(), date)
	if err != nil {
		if errors.Is(err, contracts.ErrPredictionNotFound) {
			respondError(w, http.StatusNotFound, "no predictions for "+contracts.DateKey(date))
			return
		}
		h.logger.WithError(err).Error("Failed to load prediction set")
		respondError(w, http.StatusInternalServerError, "failed to load predictions")
		return
	}

	out := predictionSetJSON{Date: contracts.DateKey(set.Date)}
	for _, p := range set.Predictions {
		out.Predictions = append(out.Predictions, predictionJSON{Ticker: p.Ticker, Estimate: p.Estimate})
	}
	respondJSON(w, http.StatusOK, out)
}
