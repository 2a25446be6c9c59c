package rules

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// Handler exposes the worker's trend statistics. Mounted on the worker's
// health server; the engine itself has no other HTTP surface.
type Handler struct {
	engine *Engine
}

// NewHandler creates the trends handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Mount registers the trends route.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/trends", h.handleTrends)
}

// handleTrends aggregates retained decisions, optionally filtered by the
// sku query parameter. 404 when nothing has been decided yet.
func (h *Handler) handleTrends(w http.ResponseWriter, r *http.Request) {
	sku := r.URL.Query().Get("sku")

	stats, ok := h.engine.Trends(sku)
	w.Header().Set("Content-Type", "application/json")

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "no decisions recorded"})
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(stats)
}
