package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Handler exposes the audit trail over HTTP. Read-only; the worker is the
// only writer.
type Handler struct {
	store  *Store
	logger *zap.Logger
}

// NewHandler creates the audit API handler.
func NewHandler(store *Store, logger *zap.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// Mount registers the audit routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/decisions/sku/{sku}", h.handleDecisionsBySKU)
	r.Get("/failures", h.handleRecentFailures)
	r.Get("/statistics", h.handleStatistics)
}

// handleDecisionsBySKU returns a SKU's decision history, newest first. No
// history at all is a 404.
func (h *Handler) handleDecisionsBySKU(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sku := chi.URLParam(r, "sku")
	limit := queryInt(r, "limit", 0)

	decisions, err := h.store.DecisionsBySKU(r.Context(), sku, limit)
	QueryDurationSeconds.WithLabelValues("decisions_by_sku").Observe(time.Since(start).Seconds())

	if err != nil {
		h.logger.Error("decision-query-failed", zap.String("sku", sku), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to retrieve decisions")
		return
	}

	if len(decisions) == 0 {
		writeError(w, http.StatusNotFound, "no decisions found for "+sku)
		return
	}

	writeJSON(w, http.StatusOK, decisions)
}

// handleRecentFailures returns failures from the requested window. An empty
// window is a valid, empty list.
func (h *Handler) handleRecentFailures(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	hours := queryInt(r, "hours", 0)
	limit := queryInt(r, "limit", 0)

	failures, err := h.store.RecentFailures(r.Context(), hours, limit)
	QueryDurationSeconds.WithLabelValues("recent_failures").Observe(time.Since(start).Seconds())

	if err != nil {
		h.logger.Error("failure-query-failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to retrieve failures")
		return
	}

	if failures == nil {
		failures = []Failure{}
	}

	writeJSON(w, http.StatusOK, failures)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	stats, err := h.store.GetStatistics(r.Context())
	QueryDurationSeconds.WithLabelValues("statistics").Observe(time.Since(start).Seconds())

	if err != nil {
		h.logger.Error("statistics-query-failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to retrieve statistics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"statistics": stats,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
