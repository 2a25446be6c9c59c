package scraper

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// DefaultRegistry returns the monitored competitor set.
func DefaultRegistry() []Competitor {
	return []Competitor{
		{ID: "amazon", URL: "https://api.amazon.com/prices", AuthToken: "test_key_amazon"},
		{ID: "ebay", URL: "https://api.ebay.com/prices", AuthToken: "test_key_ebay"},
		{ID: "mercado_livre", URL: "https://api.mercadolivre.com/prices", AuthToken: "test_key_ml"},
		{ID: "shopee", URL: "https://api.shopee.com/prices", AuthToken: "test_key_shopee"},
	}
}

// variationBand is the multiplicative price spread a competitor shows
// around the catalog base price.
type variationBand struct {
	low  float64
	high float64
}

// Simulator stands in for real competitor APIs: per-request latency, a
// fixed out-of-stock rate and a per-competitor price spread around known
// base prices. Real integrations replace this with an HTTP FetchFunc.
type Simulator struct {
	latencyMin   time.Duration
	latencyMax   time.Duration
	availability float64
	basePrices   map[string]float64
	bands        map[string]variationBand
}

// NewSimulator creates a simulator with production-like behavior.
func NewSimulator() *Simulator {
	return &Simulator{
		latencyMin:   100 * time.Millisecond,
		latencyMax:   300 * time.Millisecond,
		availability: 0.75,
		basePrices: map[string]float64{
			"SKU001": 100.00,
			"SKU002": 250.00,
			"SKU003": 50.00,
			"SKU004": 1000.00,
		},
		bands: map[string]variationBand{
			"amazon":        {low: 0.95, high: 1.05},
			"ebay":          {low: 0.90, high: 1.10},
			"mercado_livre": {low: 0.85, high: 1.15},
			"shopee":        {low: 0.92, high: 1.08},
		},
	}
}

// NewDeterministicSimulator removes latency and stock-outs. Test helper.
func NewDeterministicSimulator() *Simulator {
	s := NewSimulator()
	s.latencyMin = 0
	s.latencyMax = 0
	s.availability = 1.0
	return s
}

// Fetch simulates one competitor price lookup.
func (s *Simulator) Fetch(ctx context.Context, sku string, competitor Competitor) (*CompetitorPrice, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}

	return &CompetitorPrice{
		ProductSKU:   sku,
		CompetitorID: competitor.ID,
		Price:        s.simulatePrice(sku, competitor.ID),
		Timestamp:    time.Now().UTC(),
		Availability: rand.Float64() < s.availability,
		SourceURL:    competitor.URL + "?sku=" + sku,
	}, nil
}

func (s *Simulator) sleep(ctx context.Context) error {
	if s.latencyMax <= 0 {
		return nil
	}

	latency := s.latencyMin + rand.N(s.latencyMax-s.latencyMin+1)
	select {
	case <-time.After(latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulator) simulatePrice(sku, competitorID string) float64 {
	base, ok := s.basePrices[sku]
	if !ok {
		base = 100.00
	}

	price := base
	if band, ok := s.bands[competitorID]; ok {
		price = base * (band.low + rand.Float64()*(band.high-band.low))
	}

	return math.RoundToEven(price*100) / 100
}
