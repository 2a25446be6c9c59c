package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/skuwise/pricing-pipeline/pkg/event"
	"go.uber.org/zap"
)

type fakeProducer struct {
	keys   [][]byte
	values [][]byte
	err    error
}

func (f *fakeProducer) Publish(ctx context.Context, key []byte, value []byte) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
	return nil
}

func newTestHandler(fetch FetchFunc, producer *fakeProducer) (*chi.Mux, *fakeProducer) {
	fetcher := NewFetcher(&FetcherConfig{
		Registry:      testRegistry(),
		Fetch:         fetch,
		MaxConcurrent: 10,
		FetchTimeout:  time.Second,
		Logger:        zap.NewNop(),
	})

	handler := NewHandler(fetcher, NewPublisher(producer, zap.NewNop()), zap.NewNop())

	r := chi.NewRouter()
	handler.Mount(r)
	return r, producer
}

func TestHandleScrapeSingle(t *testing.T) {
	r, producer := newTestHandler(fixedFetch(88.80), &fakeProducer{})

	req := httptest.NewRequest(http.MethodPost, "/scrape/single",
		strings.NewReader(`{"sku":"SKU001"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body scrapeResponse
	err := json.Unmarshal(rec.Body.Bytes(), &body)
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.SKU != "SKU001" {
		t.Errorf("sku = %q", body.SKU)
	}
	if body.ScrapeCount != 2 {
		t.Errorf("scrape_count = %d, want 2", body.ScrapeCount)
	}

	// The scrape must have fed the pipeline.
	if len(producer.values) != 1 {
		t.Fatalf("published = %d, want 1", len(producer.values))
	}
	if string(producer.keys[0]) != "SKU001" {
		t.Errorf("message key = %q", producer.keys[0])
	}

	env, err := event.Parse(producer.values[0])
	if err != nil {
		t.Fatalf("parse published envelope: %v", err)
	}
	if env.EventType != event.TypeRawPrices {
		t.Errorf("event type = %q", env.EventType)
	}
	if env.Metadata["request_id"] == "" {
		t.Error("expected request_id in metadata")
	}

	rawPrice, err := event.ParseRawPrice(env.Data)
	if err != nil {
		t.Fatalf("parse raw price: %v", err)
	}
	if len(rawPrice.CompetitorPrices) != 2 {
		t.Errorf("competitor prices = %v", rawPrice.CompetitorPrices)
	}
}

func TestHandleScrapeSingleNotFound(t *testing.T) {
	fetch := func(ctx context.Context, sku string, competitor Competitor) (*CompetitorPrice, error) {
		return nil, errors.New("all upstreams down")
	}
	r, producer := newTestHandler(fetch, &fakeProducer{})

	req := httptest.NewRequest(http.MethodPost, "/scrape/single",
		strings.NewReader(`{"sku":"SKU001"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if len(producer.values) != 0 {
		t.Error("nothing must be published on an empty scrape")
	}
}

func TestHandleScrapeSingleRejectsMissingSKU(t *testing.T) {
	r, _ := newTestHandler(fixedFetch(1), &fakeProducer{})

	for _, payload := range []string{`{}`, `{"sku":""}`, `garbage`} {
		req := httptest.NewRequest(http.MethodPost, "/scrape/single", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("payload %q: status = %d, want 400", payload, rec.Code)
		}
	}
}

func TestHandleScrapeBatch(t *testing.T) {
	fetch := func(ctx context.Context, sku string, competitor Competitor) (*CompetitorPrice, error) {
		if sku == "SKU404" {
			return nil, errors.New("not listed")
		}
		return fixedFetch(70)(ctx, sku, competitor)
	}
	r, producer := newTestHandler(fetch, &fakeProducer{})

	req := httptest.NewRequest(http.MethodPost, "/scrape/batch",
		strings.NewReader(`{"skus":["SKU001","SKU404"]}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]scrapeResponse
	err := json.Unmarshal(rec.Body.Bytes(), &body)
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("skus in response = %d, want 1", len(body))
	}
	if _, ok := body["SKU404"]; ok {
		t.Error("SKU404 must be absent")
	}

	if len(producer.values) != 1 {
		t.Errorf("published = %d, want 1", len(producer.values))
	}
}

func TestHandleScrapeBatchRejectsEmpty(t *testing.T) {
	r, _ := newTestHandler(fixedFetch(1), &fakeProducer{})

	req := httptest.NewRequest(http.MethodPost, "/scrape/batch", strings.NewReader(`{"skus":[]}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleScrapePublishFailureStillServes(t *testing.T) {
	r, _ := newTestHandler(fixedFetch(1), &fakeProducer{err: errors.New("broker down")})

	req := httptest.NewRequest(http.MethodPost, "/scrape/single",
		strings.NewReader(`{"sku":"SKU001"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite publish failure", rec.Code)
	}
}

func TestHandleCompetitors(t *testing.T) {
	r, _ := newTestHandler(fixedFetch(1), &fakeProducer{})

	req := httptest.NewRequest(http.MethodGet, "/competitors", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Competitors []string `json:"competitors"`
		Total       int      `json:"total"`
	}
	err := json.Unmarshal(rec.Body.Bytes(), &body)
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Total != 2 {
		t.Errorf("total = %d, want 2", body.Total)
	}
	if len(body.Competitors) != 2 || body.Competitors[0] != "amazon" {
		t.Errorf("competitors = %v", body.Competitors)
	}
}

func TestPublisherSkipsOutOfStockPrices(t *testing.T) {
	producer := &fakeProducer{}
	p := NewPublisher(producer, zap.NewNop())

	observed := []CompetitorPrice{
		{ProductSKU: "SKU001", CompetitorID: "amazon", Price: 95, Availability: true},
		{ProductSKU: "SKU001", CompetitorID: "ebay", Price: 80, Availability: false},
	}

	err := p.PublishRawPrices(context.Background(), "SKU001", observed)
	if err != nil {
		t.Fatalf("PublishRawPrices: %v", err)
	}

	env, err := event.Parse(producer.values[0])
	if err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	rawPrice, err := event.ParseRawPrice(env.Data)
	if err != nil {
		t.Fatalf("parse raw price: %v", err)
	}

	if len(rawPrice.CompetitorPrices) != 1 || rawPrice.CompetitorPrices[0] != 95 {
		t.Errorf("competitor prices = %v, want [95]", rawPrice.CompetitorPrices)
	}
}
