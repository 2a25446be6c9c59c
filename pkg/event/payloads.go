package event

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Defaults substituted for optional RawPrice fields that are absent from the
// payload. A missing sku has no default and is fatal for the message.
const (
	DefaultCurrentPrice   = 100.0
	DefaultCost           = 50.0
	DefaultInventoryLevel = 100
	DefaultDaysInStock    = 30
	DefaultDemandForecast = 0.5
)

// RawPrice is the payload of a "raw_prices" event: one competitor-price
// observation for a SKU.
type RawPrice struct {
	SKU              string    `json:"sku"`
	CurrentPrice     float64   `json:"current_price"`
	Cost             float64   `json:"cost"`
	CompetitorPrices []float64 `json:"competitor_prices"`
	InventoryLevel   int       `json:"inventory_level"`
	DaysInStock      int       `json:"days_in_stock"`
	DemandForecast   float64   `json:"demand_forecast"`
}

// rawPriceWire distinguishes absent fields from explicit zeros.
type rawPriceWire struct {
	SKU              *string   `json:"sku"`
	CurrentPrice     *float64  `json:"current_price"`
	Cost             *float64  `json:"cost"`
	CompetitorPrices []float64 `json:"competitor_prices"`
	InventoryLevel   *int      `json:"inventory_level"`
	DaysInStock      *int      `json:"days_in_stock"`
	DemandForecast   *float64  `json:"demand_forecast"`
}

// ParseRawPrice decodes a RawPrice payload leniently: optional fields fall
// back to documented defaults, demand_forecast is clamped to [0, 1], and
// only a missing sku or a negative monetary/count field is an error.
func ParseRawPrice(data json.RawMessage) (*RawPrice, error) {
	var w rawPriceWire
	err := json.Unmarshal(data, &w)
	if err != nil {
		return nil, fmt.Errorf("decode raw_prices payload: %w", err)
	}

	if w.SKU == nil || *w.SKU == "" {
		return nil, fmt.Errorf("missing required field: sku")
	}

	rp := &RawPrice{
		SKU:              *w.SKU,
		CurrentPrice:     DefaultCurrentPrice,
		Cost:             DefaultCost,
		CompetitorPrices: []float64{},
		InventoryLevel:   DefaultInventoryLevel,
		DaysInStock:      DefaultDaysInStock,
		DemandForecast:   DefaultDemandForecast,
	}

	if w.CurrentPrice != nil {
		rp.CurrentPrice = *w.CurrentPrice
	}
	if w.Cost != nil {
		rp.Cost = *w.Cost
	}
	if w.CompetitorPrices != nil {
		rp.CompetitorPrices = w.CompetitorPrices
	}
	if w.InventoryLevel != nil {
		rp.InventoryLevel = *w.InventoryLevel
	}
	if w.DaysInStock != nil {
		rp.DaysInStock = *w.DaysInStock
	}
	if w.DemandForecast != nil {
		rp.DemandForecast = clamp01(*w.DemandForecast)
	}

	if rp.CurrentPrice < 0 {
		return nil, fmt.Errorf("current_price must be non-negative, got %f", rp.CurrentPrice)
	}
	if rp.Cost < 0 {
		return nil, fmt.Errorf("cost must be non-negative, got %f", rp.Cost)
	}
	for i, p := range rp.CompetitorPrices {
		if p < 0 {
			return nil, fmt.Errorf("competitor_prices[%d] must be non-negative, got %f", i, p)
		}
	}
	if rp.InventoryLevel < 0 {
		return nil, fmt.Errorf("inventory_level must be non-negative, got %d", rp.InventoryLevel)
	}
	if rp.DaysInStock < 0 {
		return nil, fmt.Errorf("days_in_stock must be non-negative, got %d", rp.DaysInStock)
	}

	return rp, nil
}

// RecommendedPrice is the payload of a "recommended_price" event.
type RecommendedPrice struct {
	SKU              string    `json:"sku"`
	CurrentPrice     float64   `json:"current_price"`
	RecommendedPrice float64   `json:"recommended_price"`
	MarginPct        float64   `json:"margin_pct"`
	Confidence       float64   `json:"confidence"`
	Reason           string    `json:"reason"`
	CompetitorPrices []float64 `json:"competitor_prices"`
	CreatedAt        time.Time `json:"created_at"`
}

// ParseRecommendedPrice decodes a RecommendedPrice payload.
func ParseRecommendedPrice(data json.RawMessage) (*RecommendedPrice, error) {
	var rp RecommendedPrice
	err := json.Unmarshal(data, &rp)
	if err != nil {
		return nil, fmt.Errorf("decode recommended_price payload: %w", err)
	}

	if rp.SKU == "" {
		return nil, fmt.Errorf("missing required field: sku")
	}

	return &rp, nil
}

// DLQRecord is the record published to the dead letter queue when a message
// cannot be processed. OriginalMessage carries the raw consumed bytes so the
// failure can be reconstructed exactly.
type DLQRecord struct {
	OriginalMessage   string    `json:"original_message"`
	Error             string    `json:"error"`
	Timestamp         time.Time `json:"timestamp"`
	ProcessingService string    `json:"processing_service"`
}

// NewDLQRecord builds a DLQ record stamped with UTC now.
func NewDLQRecord(original []byte, processingErr error, service string) *DLQRecord {
	return &DLQRecord{
		OriginalMessage:   string(original),
		Error:             processingErr.Error(),
		Timestamp:         time.Now().UTC(),
		ProcessingService: service,
	}
}

// ParseDLQRecord decodes a DLQ record. DLQ messages travel as bare JSON,
// without the standard envelope.
func ParseDLQRecord(raw []byte) (*DLQRecord, error) {
	var r DLQRecord
	err := json.Unmarshal(raw, &r)
	if err != nil {
		return nil, fmt.Errorf("decode dlq record: %w", err)
	}

	if r.Error == "" {
		r.Error = "Unknown error"
	}
	if r.ProcessingService == "" {
		r.ProcessingService = "unknown"
	}

	return &r, nil
}

// Marshal serializes the DLQ record.
func (r *DLQRecord) Marshal() ([]byte, error) {
	out, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal dlq record: %w", err)
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
