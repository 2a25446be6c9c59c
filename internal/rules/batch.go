package rules

import "time"

// BatchResult is one row of a batch evaluation.
type BatchResult struct {
	SKU              string    `json:"sku"`
	CurrentPrice     float64   `json:"current_price"`
	RecommendedPrice float64   `json:"recommended_price"`
	MarginPct        float64   `json:"margin_pct"`
	Confidence       float64   `json:"confidence"`
	Reason           string    `json:"reason"`
	Cost             float64   `json:"cost"`
	DemandForecast   float64   `json:"demand_forecast"`
	InventoryLevel   int       `json:"inventory_level"`
	Timestamp        time.Time `json:"timestamp"`
}

// CalculateBatch evaluates many contexts and records the decisions in the
// history ring. Single Calculate calls never touch the history, so the hot
// path takes no lock.
func (e *Engine) CalculateBatch(contexts []PriceContext) []BatchResult {
	now := time.Now().UTC()
	results := make([]BatchResult, 0, len(contexts))

	for _, ctx := range contexts {
		rec := e.Calculate(ctx)
		margin := MarginPct(rec.Price, ctx.Cost)

		results = append(results, BatchResult{
			SKU:              ctx.SKU,
			CurrentPrice:     ctx.CurrentPrice,
			RecommendedPrice: rec.Price,
			MarginPct:        margin,
			Confidence:       rec.Confidence,
			Reason:           rec.Reason,
			Cost:             ctx.Cost,
			DemandForecast:   ctx.DemandForecast,
			InventoryLevel:   ctx.InventoryLevel,
			Timestamp:        now,
		})

		e.history.Append(HistoryEntry{
			SKU:              ctx.SKU,
			CurrentPrice:     ctx.CurrentPrice,
			RecommendedPrice: rec.Price,
			MarginPct:        margin,
			Confidence:       rec.Confidence,
			CreatedAt:        now,
		})
	}

	return results
}

// RecordDecision adds one decision to the trend history. The worker calls
// this after publishing, keeping the append off the evaluation path.
func (e *Engine) RecordDecision(entry HistoryEntry) {
	e.history.Append(entry)
}

// Trends aggregates retained decisions for the given SKU (empty for all
// SKUs).
func (e *Engine) Trends(sku string) (TrendStats, bool) {
	return e.history.Trends(sku)
}
