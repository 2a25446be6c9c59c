package rules

import (
	"math"
	"sync"
	"time"
)

const defaultHistoryCapacity = 10000

// HistoryEntry is one recorded decision.
type HistoryEntry struct {
	SKU              string
	CurrentPrice     float64
	RecommendedPrice float64
	MarginPct        float64
	Confidence       float64
	CreatedAt        time.Time
}

// History is a bounded ring of past decisions kept for operator trend
// analysis. Appends happen after a decision is made, off the evaluation
// path.
type History struct {
	mu      sync.Mutex
	entries []HistoryEntry
	next    int
	full    bool
}

// NewHistory creates a history ring with the given capacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &History{
		entries: make([]HistoryEntry, capacity),
	}
}

// Append records a decision, overwriting the oldest entry when full.
func (h *History) Append(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.next] = entry
	h.next++
	if h.next == len(h.entries) {
		h.next = 0
		h.full = true
	}
}

// Len reports how many decisions are currently retained.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size()
}

func (h *History) size() int {
	if h.full {
		return len(h.entries)
	}
	return h.next
}

// TrendStats aggregates retained decisions.
type TrendStats struct {
	MeanRecommendedPrice float64 `json:"mean_recommended_price"`
	MeanMargin           float64 `json:"mean_margin"`
	PriceVolatility      float64 `json:"price_volatility"`
	TotalDecisions       int     `json:"total_decisions"`
	AvgConfidence        float64 `json:"avg_confidence"`
}

// Trends aggregates retained decisions, optionally filtered to one SKU
// (empty sku means all). Returns false when nothing matches.
func (h *History) Trends(sku string) (TrendStats, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var (
		prices        []float64
		sumPrice      float64
		sumMargin     float64
		sumConfidence float64
	)

	for i := 0; i < h.size(); i++ {
		e := h.entries[i]
		if sku != "" && e.SKU != sku {
			continue
		}
		prices = append(prices, e.RecommendedPrice)
		sumPrice += e.RecommendedPrice
		sumMargin += e.MarginPct
		sumConfidence += e.Confidence
	}

	n := len(prices)
	if n == 0 {
		return TrendStats{}, false
	}

	meanPrice := sumPrice / float64(n)

	return TrendStats{
		MeanRecommendedPrice: meanPrice,
		MeanMargin:           sumMargin / float64(n),
		PriceVolatility:      stdDev(prices, meanPrice),
		TotalDecisions:       n,
		AvgConfidence:        sumConfidence / float64(n),
	}, true
}

// stdDev is the sample standard deviation (n-1 denominator); 0 for n < 2.
func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}

	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}

	return math.Sqrt(sumSq / float64(len(values)-1))
}
