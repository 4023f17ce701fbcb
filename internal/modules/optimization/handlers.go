package optimization

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// PriceSource supplies the price table for a symbol set over a lookback
// window. Implemented by the history repository.
type PriceSource interface {
	GetPriceTable(symbols []string, lookbackDays int) (PriceTable, error)
}

// Handler exposes the optimization service over HTTP.
type Handler struct {
	service *Service
	prices  PriceSource
	log     zerolog.Logger
}

// NewHandler creates HTTP handlers for the optimization module.
func NewHandler(service *Service, prices PriceSource, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		prices:  prices,
		log:     log.With().Str("component", "optimization_handlers").Logger(),
	}
}

// Routes mounts the optimization endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/optimize", h.handleOptimize)
	return r
}

// optimizeRequest is the wire form of an optimization call.
type optimizeRequest struct {
	Symbols      []string `json:"symbols"`
	LookbackDays int      `json:"lookback_days"`
	Request
}

func (h *Handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if len(req.Symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "symbols required")
		return
	}
	if req.LookbackDays <= 0 {
		req.LookbackDays = 252
	}

	prices, err := h.prices.GetPriceTable(req.Symbols, req.LookbackDays)
	if err != nil {
		h.log.Error().Err(err).Strs("symbols", req.Symbols).Msg("Failed to load price history")
		h.writeError(w, http.StatusInternalServerError, "failed to load price history")
		return
	}

	result, err := h.service.Optimize(r.Context(), prices, req.Request)
	if err != nil {
		status := statusForError(err)
		h.log.Warn().Err(err).Str("strategy", req.Strategy).Msg("Optimization failed")
		h.writeError(w, status, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// statusForError maps the failure taxonomy onto HTTP status codes: caller
// misuse is 400, statistically/numerically unusable input is 422.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnsupportedMetric), errors.Is(err, ErrNotRun):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientData),
		errors.Is(err, ErrOptimizationInfeasible),
		errors.Is(err, ErrOptimizationError):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
