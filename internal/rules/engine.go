// Package rules implements the pricing rules engine and the worker that
// feeds it from the raw_prices topic.
//
// The engine itself is a pure function: identical PriceContext inputs
// produce identical outputs. No wall clock, no randomness.
package rules

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// PriceContext is the complete input tuple for one pricing decision.
type PriceContext struct {
	SKU              string
	CurrentPrice     float64
	Cost             float64
	CompetitorPrices []float64
	InventoryLevel   int
	DaysInStock      int
	DemandForecast   float64 // [0, 1]
	MarginMin        float64
	MarginMax        float64
}

// Recommendation is the engine's output for one context.
type Recommendation struct {
	Price      float64
	Reason     string
	Confidence float64
}

// Config holds the engine's business constants. DefaultConfig supplies the
// values used in production; only the margins and elasticity are normally
// overridden from the environment.
type Config struct {
	MinMargin        float64
	MaxMargin        float64
	ElasticityFactor float64

	CompetitiveDiscount float64
	DefaultPrice        float64

	HighInventoryThreshold     int
	HighInventoryDiscount      float64
	CriticalInventoryThreshold int
	CriticalInventoryDiscount  float64

	OldStockDaysThreshold      int
	OldStockDiscount           float64
	CriticalStockDaysThreshold int
	CriticalStockDiscount      float64

	BaseConfidence float64
}

// Reason and confidence thresholds. These are part of the decision contract
// rather than tunables, so they stay constants.
const (
	priceIncreaseThresholdPct = 5.0
	priceDecreaseThresholdPct = 5.0
	positioningThreshold      = 0.05

	confidenceBoostManyCompetitors = 0.2
	confidenceBoostFewCompetitors  = 0.1
	confidenceBoostInventory       = 0.15
	confidenceBoostDemand          = 0.15
	minDemandConfidence            = 0.3
	maxDemandConfidence            = 0.7
)

// DefaultConfig returns the production rule constants with the given margin
// band and elasticity factor.
func DefaultConfig(minMargin, maxMargin, elasticityFactor float64) Config {
	return Config{
		MinMargin:        minMargin,
		MaxMargin:        maxMargin,
		ElasticityFactor: elasticityFactor,

		CompetitiveDiscount: 0.02,
		DefaultPrice:        100.0,

		HighInventoryThreshold:     1000,
		HighInventoryDiscount:      0.05,
		CriticalInventoryThreshold: 5000,
		CriticalInventoryDiscount:  0.10,

		OldStockDaysThreshold:      180,
		OldStockDiscount:           0.08,
		CriticalStockDaysThreshold: 365,
		CriticalStockDiscount:      0.15,

		BaseConfidence: 0.5,
	}
}

// Engine evaluates pricing rules. Calculate is stateless; callers record
// decisions into the bounded history separately.
type Engine struct {
	cfg     Config
	history *History
}

// New creates an engine with a bounded decision history.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg,
		history: NewHistory(defaultHistoryCapacity),
	}
}

// Calculate runs the ordered transformation pipeline:
// minimum price floor, competitive anchor, demand elasticity, inventory
// adjustment, margin clamp. The result is rounded half-to-even to cents.
func (e *Engine) Calculate(ctx PriceContext) Recommendation {
	minPrice := e.minimumPrice(ctx.Cost)
	competitive := e.competitiveAnchor(ctx.CompetitorPrices)
	demandAdjusted := e.applyDemandElasticity(competitive, ctx.DemandForecast)
	inventoryAdjusted := e.adjustForInventory(demandAdjusted, ctx.InventoryLevel, ctx.DaysInStock)
	finalPrice := roundCents(e.enforceMarginConstraints(inventoryAdjusted, ctx.Cost, minPrice))

	return Recommendation{
		Price:      finalPrice,
		Reason:     e.generateReason(ctx, finalPrice),
		Confidence: e.calculateConfidence(ctx),
	}
}

// minimumPrice is the hard floor: cost plus the minimum margin.
func (e *Engine) minimumPrice(cost float64) float64 {
	return cost * (1 + e.cfg.MinMargin)
}

// competitiveAnchor undercuts the competitor median by the configured
// discount. With no observations the configured default price anchors.
func (e *Engine) competitiveAnchor(competitorPrices []float64) float64 {
	if len(competitorPrices) == 0 {
		return e.cfg.DefaultPrice
	}
	return median(competitorPrices) * (1 - e.cfg.CompetitiveDiscount)
}

// applyDemandElasticity scales the price by demand deviation from neutral
// (0.5). The 0.1 factor bounds the swing per unit of elasticity.
func (e *Engine) applyDemandElasticity(basePrice, demand float64) float64 {
	deviation := (demand - 0.5) * 2
	return basePrice * (1 + deviation*e.cfg.ElasticityFactor*0.1)
}

// adjustForInventory applies the inventory-level and stock-age discounts.
// The two compose multiplicatively.
func (e *Engine) adjustForInventory(basePrice float64, inventoryLevel, daysInStock int) float64 {
	discount := 1.0

	if inventoryLevel > e.cfg.CriticalInventoryThreshold {
		discount *= 1 - e.cfg.CriticalInventoryDiscount
	} else if inventoryLevel > e.cfg.HighInventoryThreshold {
		discount *= 1 - e.cfg.HighInventoryDiscount
	}

	if daysInStock > e.cfg.CriticalStockDaysThreshold {
		discount *= 1 - e.cfg.CriticalStockDiscount
	} else if daysInStock > e.cfg.OldStockDaysThreshold {
		discount *= 1 - e.cfg.OldStockDiscount
	}

	return basePrice * discount
}

// enforceMarginConstraints clamps the suggested price into the margin band.
func (e *Engine) enforceMarginConstraints(suggested, cost, minPrice float64) float64 {
	price := math.Max(suggested, minPrice)
	maxPrice := cost * (1 + e.cfg.MaxMargin)
	return math.Min(price, maxPrice)
}

// calculateConfidence scores how well-supported the decision is, in [0, 1].
func (e *Engine) calculateConfidence(ctx PriceContext) float64 {
	confidence := e.cfg.BaseConfidence

	switch n := len(ctx.CompetitorPrices); {
	case n >= 3:
		confidence += confidenceBoostManyCompetitors
	case n >= 1:
		confidence += confidenceBoostFewCompetitors
	}

	if ctx.InventoryLevel > 0 {
		confidence += confidenceBoostInventory
	}

	if ctx.DemandForecast > minDemandConfidence && ctx.DemandForecast < maxDemandConfidence {
		confidence += confidenceBoostDemand
	}

	return math.Min(confidence, 1.0)
}

// generateReason summarizes the decision as pipe-separated English tokens.
func (e *Engine) generateReason(ctx PriceContext, finalPrice float64) string {
	var deltaPct float64
	if ctx.CurrentPrice > 0 {
		deltaPct = (finalPrice - ctx.CurrentPrice) / ctx.CurrentPrice * 100
	}

	var reasons []string

	switch {
	case deltaPct > priceIncreaseThresholdPct:
		reasons = append(reasons, "INCREASE: High demand or favorable competition")
	case deltaPct < -priceDecreaseThresholdPct:
		reasons = append(reasons,
			fmt.Sprintf("DISCOUNT: High inventory (%d) or low demand", ctx.InventoryLevel))
	default:
		reasons = append(reasons, "STABLE: Market aligned")
	}

	if len(ctx.CompetitorPrices) > 0 {
		avg := mean(ctx.CompetitorPrices)
		if finalPrice < avg*(1-positioningThreshold) {
			reasons = append(reasons, "Aggressive positioning")
		} else if finalPrice > avg*(1+positioningThreshold) {
			reasons = append(reasons, "Premium positioning")
		}
	}

	return strings.Join(reasons, " | ")
}

// MarginPct computes (price-cost)/cost. A non-positive cost yields 0.
func MarginPct(price, cost float64) float64 {
	if cost <= 0 {
		return 0
	}
	return (price - cost) / cost
}

// roundCents rounds half-to-even to two decimal places.
func roundCents(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// median of an even-length slice is the mean of the two middle values.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
