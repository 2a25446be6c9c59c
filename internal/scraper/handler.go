package scraper

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Handler exposes the scraper over HTTP.
type Handler struct {
	fetcher   *Fetcher
	publisher *Publisher
	logger    *zap.Logger
}

// NewHandler creates the scraper handler. A nil publisher disables broker
// emission, leaving a pure query service.
func NewHandler(fetcher *Fetcher, publisher *Publisher, logger *zap.Logger) *Handler {
	return &Handler{
		fetcher:   fetcher,
		publisher: publisher,
		logger:    logger,
	}
}

// Mount registers the scraper routes.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/scrape/single", h.handleScrapeSingle)
	r.Post("/scrape/batch", h.handleScrapeBatch)
	r.Get("/competitors", h.handleCompetitors)
}

type scrapeSingleRequest struct {
	SKU           string   `json:"sku"`
	CompetitorIDs []string `json:"competitor_ids"`
}

type scrapeBatchRequest struct {
	SKUs          []string `json:"skus"`
	CompetitorIDs []string `json:"competitor_ids"`
}

// scrapeResponse reports one SKU's scrape results.
type scrapeResponse struct {
	SKU         string            `json:"sku"`
	Prices      []CompetitorPrice `json:"prices"`
	ScrapeCount int               `json:"scrape_count"`
}

// handleScrapeSingle scrapes one SKU across the requested competitors and
// feeds the result into the pipeline. A scrape where nothing came back is a
// 404, not an error.
func (h *Handler) handleScrapeSingle(w http.ResponseWriter, r *http.Request) {
	var req scrapeSingleRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SKU == "" {
		writeError(w, http.StatusBadRequest, "sku is required")
		return
	}

	h.logger.Info("scrape-started", zap.String("sku", req.SKU))

	prices := h.fetcher.Scrape(r.Context(), req.SKU, req.CompetitorIDs)
	if len(prices) == 0 {
		writeError(w, http.StatusNotFound, "no prices found for SKU "+req.SKU)
		return
	}

	h.publish(r.Context(), req.SKU, prices)

	h.logger.Info("scrape-completed",
		zap.String("sku", req.SKU),
		zap.Int("prices", len(prices)))

	writeJSON(w, http.StatusOK, scrapeResponse{
		SKU:         req.SKU,
		Prices:      prices,
		ScrapeCount: len(prices),
	})
}

// handleScrapeBatch scrapes many SKUs at once. SKUs that yielded nothing
// are absent from the response rather than failing the batch.
func (h *Handler) handleScrapeBatch(w http.ResponseWriter, r *http.Request) {
	var req scrapeBatchRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.SKUs) == 0 {
		writeError(w, http.StatusBadRequest, "skus cannot be empty")
		return
	}

	h.logger.Info("batch-scrape-started", zap.Int("skus", len(req.SKUs)))

	results := h.fetcher.ScrapeBatch(r.Context(), req.SKUs, req.CompetitorIDs)

	response := make(map[string]scrapeResponse, len(results))
	for sku, prices := range results {
		h.publish(r.Context(), sku, prices)
		response[sku] = scrapeResponse{
			SKU:         sku,
			Prices:      prices,
			ScrapeCount: len(prices),
		}
	}

	h.logger.Info("batch-scrape-completed",
		zap.Int("requested", len(req.SKUs)),
		zap.Int("scraped", len(response)))

	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleCompetitors(w http.ResponseWriter, r *http.Request) {
	ids := h.fetcher.Competitors()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"competitors": ids,
		"total":       len(ids),
	})
}

// publish forwards scrape results to the broker. Publish failures do not
// fail the HTTP request; the producer already retried, the caller still got
// its prices, and the next scrape re-observes the market.
func (h *Handler) publish(ctx context.Context, sku string, prices []CompetitorPrice) {
	if h.publisher == nil {
		return
	}

	err := h.publisher.PublishRawPrices(ctx, sku, prices)
	if err != nil {
		h.logger.Error("raw-price-publish-failed", zap.String("sku", sku), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
