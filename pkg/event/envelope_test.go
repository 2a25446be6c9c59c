package event

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := New(TypeRawPrices, map[string]interface{}{
		"sku":               "SKU001",
		"competitor_prices": []float64{95, 102},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env.Metadata["request_id"] = "req-1"

	raw, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if parsed.EventType != TypeRawPrices {
		t.Errorf("event type = %q, want %q", parsed.EventType, TypeRawPrices)
	}
	if parsed.Metadata["request_id"] != "req-1" {
		t.Errorf("metadata request_id = %q", parsed.Metadata["request_id"])
	}
	if parsed.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp not UTC: %v", parsed.Timestamp)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not-json", `{{{`},
		{"missing-event-type", `{"timestamp":"2026-01-02T10:00:00Z","data":{}}`},
		{"empty-event-type", `{"event_type":"","timestamp":"2026-01-02T10:00:00Z","data":{}}`},
		{"missing-timestamp", `{"event_type":"raw_prices","data":{}}`},
		{"bad-timestamp", `{"event_type":"raw_prices","timestamp":"yesterday","data":{}}`},
		{"missing-data", `{"event_type":"raw_prices","timestamp":"2026-01-02T10:00:00Z"}`},
		{"null-data", `{"event_type":"raw_prices","timestamp":"2026-01-02T10:00:00Z","data":null}`},
		{"data-not-object", `{"event_type":"raw_prices","timestamp":"2026-01-02T10:00:00Z","data":[1,2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrMalformedEnvelope) {
				t.Errorf("error %v is not ErrMalformedEnvelope", err)
			}
		})
	}
}

func TestParseZonelessTimestamp(t *testing.T) {
	raw := `{"event_type":"raw_prices","timestamp":"2026-01-02T10:30:00.123456","data":{"sku":"SKU001"}}`

	env, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := time.Date(2026, 1, 2, 10, 30, 0, 123456000, time.UTC)
	if !env.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", env.Timestamp, want)
	}
}

func TestParseRawPriceDefaults(t *testing.T) {
	rp, err := ParseRawPrice([]byte(`{"sku":"SKU001"}`))
	if err != nil {
		t.Fatalf("ParseRawPrice: %v", err)
	}

	if rp.CurrentPrice != DefaultCurrentPrice {
		t.Errorf("current_price = %v, want %v", rp.CurrentPrice, DefaultCurrentPrice)
	}
	if rp.Cost != DefaultCost {
		t.Errorf("cost = %v, want %v", rp.Cost, DefaultCost)
	}
	if rp.InventoryLevel != DefaultInventoryLevel {
		t.Errorf("inventory_level = %v, want %v", rp.InventoryLevel, DefaultInventoryLevel)
	}
	if rp.DaysInStock != DefaultDaysInStock {
		t.Errorf("days_in_stock = %v, want %v", rp.DaysInStock, DefaultDaysInStock)
	}
	if rp.DemandForecast != DefaultDemandForecast {
		t.Errorf("demand_forecast = %v, want %v", rp.DemandForecast, DefaultDemandForecast)
	}
	if len(rp.CompetitorPrices) != 0 {
		t.Errorf("competitor_prices = %v, want empty", rp.CompetitorPrices)
	}
}

func TestParseRawPriceExplicitZeroKept(t *testing.T) {
	rp, err := ParseRawPrice([]byte(`{"sku":"SKU001","inventory_level":0,"current_price":0}`))
	if err != nil {
		t.Fatalf("ParseRawPrice: %v", err)
	}

	if rp.InventoryLevel != 0 {
		t.Errorf("explicit zero inventory replaced with %d", rp.InventoryLevel)
	}
	if rp.CurrentPrice != 0 {
		t.Errorf("explicit zero current_price replaced with %v", rp.CurrentPrice)
	}
}

func TestParseRawPriceDemandClamped(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{`{"sku":"S","demand_forecast":1.7}`, 1.0},
		{`{"sku":"S","demand_forecast":-0.3}`, 0.0},
		{`{"sku":"S","demand_forecast":0.42}`, 0.42},
	}

	for _, tt := range tests {
		rp, err := ParseRawPrice([]byte(tt.raw))
		if err != nil {
			t.Fatalf("ParseRawPrice(%s): %v", tt.raw, err)
		}
		if rp.DemandForecast != tt.want {
			t.Errorf("demand = %v, want %v", rp.DemandForecast, tt.want)
		}
	}
}

func TestParseRawPriceRejected(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing-sku", `{"current_price":100}`},
		{"empty-sku", `{"sku":""}`},
		{"negative-price", `{"sku":"S","current_price":-1}`},
		{"negative-cost", `{"sku":"S","cost":-5}`},
		{"negative-competitor-price", `{"sku":"S","competitor_prices":[95,-2]}`},
		{"negative-inventory", `{"sku":"S","inventory_level":-10}`},
		{"negative-days", `{"sku":"S","days_in_stock":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRawPrice([]byte(tt.raw))
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDLQRecordRoundTrip(t *testing.T) {
	original := []byte(`{"event_type":"raw_prices","data":{"current_price":100}}`)
	record := NewDLQRecord(original, errors.New("missing required field: sku"), "rules_engine")

	raw, err := record.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	parsed, err := ParseDLQRecord(raw)
	if err != nil {
		t.Fatalf("ParseDLQRecord: %v", err)
	}

	if parsed.OriginalMessage != string(original) {
		t.Errorf("original message = %q", parsed.OriginalMessage)
	}
	if !strings.Contains(parsed.Error, "sku") {
		t.Errorf("error = %q", parsed.Error)
	}
	if parsed.ProcessingService != "rules_engine" {
		t.Errorf("service = %q", parsed.ProcessingService)
	}
}

func TestParseDLQRecordDefaults(t *testing.T) {
	parsed, err := ParseDLQRecord([]byte(`{}`))
	if err != nil {
		t.Fatalf("ParseDLQRecord: %v", err)
	}

	if parsed.Error != "Unknown error" {
		t.Errorf("error = %q", parsed.Error)
	}
	if parsed.ProcessingService != "unknown" {
		t.Errorf("service = %q", parsed.ProcessingService)
	}
}
