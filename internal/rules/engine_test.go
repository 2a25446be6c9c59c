package rules

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func testEngine() *Engine {
	return New(DefaultConfig(0.10, 0.50, 1.5))
}

func baselineContext() PriceContext {
	return PriceContext{
		SKU:              "SKU001",
		CurrentPrice:     100,
		Cost:             50,
		CompetitorPrices: []float64{95, 98, 100, 102},
		InventoryLevel:   1000,
		DaysInStock:      30,
		DemandForecast:   0.6,
		MarginMin:        0.10,
		MarginMax:        0.50,
	}
}

func TestCalculateBaseline(t *testing.T) {
	e := testEngine()
	ctx := baselineContext()

	rec := e.Calculate(ctx)

	margin := MarginPct(rec.Price, ctx.Cost)
	if margin < 0.10-1e-9 || margin > 0.50+1e-9 {
		t.Errorf("margin = %v, want within [0.10, 0.50]", margin)
	}

	// Median 99, minus the competitive discount, times demand uplift, comes
	// to ~99.93; the max-margin clamp at cost*1.5 binds first.
	if rec.Price != 75.00 {
		t.Errorf("price = %v, want 75.00", rec.Price)
	}

	if rec.Confidence < 0.7 {
		t.Errorf("confidence = %v, want >= 0.7", rec.Confidence)
	}
}

// With a cost that leaves the margin clamp slack, the competitive anchor
// drives the price and the market reads as stable.
func TestCalculateCompetitiveAnchor(t *testing.T) {
	e := testEngine()
	ctx := baselineContext()
	ctx.Cost = 70

	rec := e.Calculate(ctx)

	// 99 * 0.98 * 1.03, rounded to cents.
	if rec.Price != 99.93 {
		t.Errorf("price = %v, want 99.93", rec.Price)
	}

	if math.Abs(rec.Price-99)/99 > 0.15 {
		t.Errorf("price %v more than 15%% from median 99", rec.Price)
	}

	if !strings.Contains(rec.Reason, "STABLE") {
		t.Errorf("reason = %q, want STABLE", rec.Reason)
	}
}

func TestCalculateNoCompetitorsUsesDefaultAnchor(t *testing.T) {
	e := testEngine()

	rec := e.Calculate(PriceContext{
		SKU:            "SKU009",
		CurrentPrice:   100,
		Cost:           70,
		InventoryLevel: 100,
		DaysInStock:    30,
		DemandForecast: 0.5,
	})

	// Anchor 100, neutral demand, no discounts.
	if rec.Price != 100.00 {
		t.Errorf("price = %v, want 100.00", rec.Price)
	}
}

func TestCalculateInventoryMonotone(t *testing.T) {
	e := testEngine()

	base := baselineContext()
	base.Cost = 70 // keep the margin clamp slack

	high := base
	high.InventoryLevel = 10000

	low := base
	low.InventoryLevel = 100

	priceHigh := e.Calculate(high).Price
	priceLow := e.Calculate(low).Price

	if priceHigh >= priceLow {
		t.Errorf("price(inventory=10000) = %v, want < price(inventory=100) = %v",
			priceHigh, priceLow)
	}
}

func TestCalculateDemandMonotone(t *testing.T) {
	e := testEngine()

	base := baselineContext()
	base.Cost = 70

	hot := base
	hot.DemandForecast = 0.9

	cold := base
	cold.DemandForecast = 0.1

	priceHot := e.Calculate(hot).Price
	priceCold := e.Calculate(cold).Price

	if priceHot <= priceCold {
		t.Errorf("price(demand=0.9) = %v, want > price(demand=0.1) = %v",
			priceHot, priceCold)
	}
}

func TestCalculateStockAgeDiscounts(t *testing.T) {
	e := testEngine()

	base := baselineContext()
	base.Cost = 70

	old := base
	old.DaysInStock = 200

	critical := base
	critical.DaysInStock = 400

	priceFresh := e.Calculate(base).Price
	priceOld := e.Calculate(old).Price
	priceCritical := e.Calculate(critical).Price

	if !(priceCritical < priceOld && priceOld < priceFresh) {
		t.Errorf("stock-age ordering broken: fresh=%v old=%v critical=%v",
			priceFresh, priceOld, priceCritical)
	}
}

func TestCalculateMinimumPriceFloor(t *testing.T) {
	e := testEngine()

	rec := e.Calculate(PriceContext{
		SKU:              "SKU003",
		CurrentPrice:     50,
		Cost:             48,
		CompetitorPrices: []float64{20, 22, 21},
		InventoryLevel:   100,
		DaysInStock:      30,
		DemandForecast:   0.5,
	})

	floor := 48 * 1.10
	if rec.Price < floor-1e-9 {
		t.Errorf("price = %v, below floor %v", rec.Price, floor)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	e := testEngine()
	ctx := baselineContext()

	first := e.Calculate(ctx)
	for i := 0; i < 10; i++ {
		got := e.Calculate(ctx)
		if got != first {
			t.Fatalf("call %d: %+v != %+v", i, got, first)
		}
	}
}

func TestCalculateConfidenceBounds(t *testing.T) {
	e := testEngine()

	tests := []struct {
		name string
		ctx  PriceContext
		want float64
	}{
		{
			name: "bare-context",
			ctx:  PriceContext{SKU: "S", Cost: 50},
			want: 0.5,
		},
		{
			name: "one-competitor",
			ctx:  PriceContext{SKU: "S", Cost: 50, CompetitorPrices: []float64{90}},
			want: 0.6,
		},
		{
			name: "fully-supported",
			ctx: PriceContext{
				SKU: "S", Cost: 50,
				CompetitorPrices: []float64{90, 95, 100},
				InventoryLevel:   10,
				DemandForecast:   0.5,
			},
			want: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Calculate(tt.ctx).Confidence
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("confidence = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("confidence %v out of [0, 1]", got)
			}
		})
	}
}

func TestGenerateReasonTokens(t *testing.T) {
	e := testEngine()

	discount := e.Calculate(baselineContext())
	wantToken := fmt.Sprintf("DISCOUNT: High inventory (%d) or low demand", 1000)
	if !strings.Contains(discount.Reason, wantToken) {
		t.Errorf("reason = %q, want %q", discount.Reason, wantToken)
	}
	if !strings.Contains(discount.Reason, "Aggressive positioning") {
		t.Errorf("reason = %q, want aggressive positioning tag", discount.Reason)
	}

	// Zero current price cannot express a delta; the market reads stable.
	zeroCurrent := baselineContext()
	zeroCurrent.CurrentPrice = 0
	zeroCurrent.Cost = 70
	rec := e.Calculate(zeroCurrent)
	if !strings.Contains(rec.Reason, "STABLE") {
		t.Errorf("reason = %q, want STABLE", rec.Reason)
	}
}

func TestMarginPct(t *testing.T) {
	if got := MarginPct(75, 50); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("MarginPct(75, 50) = %v, want 0.5", got)
	}
	if got := MarginPct(75, 0); got != 0 {
		t.Errorf("MarginPct(75, 0) = %v, want 0", got)
	}
	if got := MarginPct(75, -10); got != 0 {
		t.Errorf("MarginPct(75, -10) = %v, want 0", got)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		values []float64
		want   float64
	}{
		{[]float64{3, 1, 2}, 2},
		{[]float64{95, 98, 100, 102}, 99},
		{[]float64{10}, 10},
		{[]float64{4, 2}, 3},
	}

	for _, tt := range tests {
		if got := median(tt.values); got != tt.want {
			t.Errorf("median(%v) = %v, want %v", tt.values, got, tt.want)
		}
	}
}

func TestRoundCentsHalfToEven(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{99.9306, 99.93},
		{0.125, 0.12},
		{0.375, 0.38},
	}

	for _, tt := range tests {
		if got := roundCents(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("roundCents(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
