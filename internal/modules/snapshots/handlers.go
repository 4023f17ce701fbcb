package snapshots

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/quantfolio/quantfolio/internal/modules/optimization"
)

// Handler exposes stored snapshots over HTTP.
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates HTTP handlers for the snapshots module.
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("component", "snapshot_handlers").Logger(),
	}
}

// Routes mounts the snapshot endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/latest", h.handleLatest)
	r.Get("/", h.handleList)
	return r
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	strategy := r.URL.Query().Get("strategy")
	if strategy == "" {
		strategy = optimization.StrategyHRP
	}

	snapshot, err := h.repo.Latest(strategy)
	if err != nil {
		h.log.Error().Err(err).Str("strategy", strategy).Msg("Failed to load latest snapshot")
		h.writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	if snapshot == nil {
		h.writeError(w, http.StatusNotFound, "no snapshot stored for strategy "+strategy)
		return
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	strategy := r.URL.Query().Get("strategy")
	if strategy == "" {
		strategy = optimization.StrategyHRP
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	snapshots, err := h.repo.List(strategy, limit)
	if err != nil {
		h.log.Error().Err(err).Str("strategy", strategy).Msg("Failed to list snapshots")
		h.writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	if snapshots == nil {
		snapshots = []Snapshot{}
	}

	h.writeJSON(w, http.StatusOK, snapshots)
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
