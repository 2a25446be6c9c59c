package pricing

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Handler exposes the pricing service over HTTP.
type Handler struct {
	service *Service
	cache   Backend
	logger  *zap.Logger
}

// NewHandler creates the pricing API handler.
func NewHandler(service *Service, cache Backend, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		cache:   cache,
		logger:  logger,
	}
}

// Mount registers the pricing routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/price/{sku}", h.handleGetPrice)
	r.Post("/price/{sku}/update", h.handleUpdatePrice)
	r.Post("/prices/batch", h.handleBatch)
	r.Delete("/cache/clear", h.handleClearCache)
	r.Get("/api-metrics", h.handleAPIMetrics)
}

// handleGetPrice is the latency-critical read path: cache, then fallback,
// then 404. Never blocks on the broker, never 5xx on a miss.
func (h *Handler) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sku := chi.URLParam(r, "sku")

	payload := h.service.GetPrice(r.Context(), sku)
	RequestDurationSeconds.WithLabelValues("get_price").Observe(time.Since(start).Seconds())

	if payload == nil {
		writeError(w, http.StatusNotFound, "no price available for SKU "+sku)
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

// batchRequest is the body of POST /prices/batch.
type batchRequest struct {
	SKUs []string `json:"skus"`
}

// batchResponse reports only the SKUs that yielded a result.
type batchResponse struct {
	Prices         map[string]Payload `json:"prices"`
	TotalRequested int                `json:"total_requested"`
	TotalFound     int                `json:"total_found"`
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req batchRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.SKUs) == 0 {
		writeError(w, http.StatusBadRequest, "skus cannot be empty")
		return
	}

	prices := h.service.GetBatch(r.Context(), req.SKUs)
	RequestDurationSeconds.WithLabelValues("batch").Observe(time.Since(start).Seconds())

	h.logger.Info("batch-prices-served",
		zap.Int("requested", len(req.SKUs)),
		zap.Int("found", len(prices)))

	writeJSON(w, http.StatusOK, batchResponse{
		Prices:         prices,
		TotalRequested: len(req.SKUs),
		TotalFound:     len(prices),
	})
}

// handleUpdatePrice writes an arbitrary JSON decision blob into the cache.
// Used by operators; the rules worker writes through its companion writer.
func (h *Handler) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}

	var payload Payload
	err = json.Unmarshal(body, &payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}

	err = h.service.UpdatePrice(r.Context(), sku, payload)
	if err != nil {
		h.logger.Warn("cache-update-failed", zap.String("sku", sku), zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]string{"status": "failed", "sku": sku})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "sku": sku})
}

func (h *Handler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	err := h.service.ClearCache(r.Context())
	if err != nil {
		h.logger.Error("cache-clear-failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cache clear failed")
		return
	}

	h.logger.Warn("cache-cleared-by-operator")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cache_cleared"})
}

func (h *Handler) handleAPIMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cache_metrics": h.service.Snapshot(),
		"cache_healthy": h.cache.Healthy(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
