// Package metrics tracks traffic savings and exposes them for
// dashboards (via the in-process deque) and scraping (via Prometheus
// exposition).
package metrics

import (
	"sync"

	"github.com/roelfdiedericks/ctxproxy/internal/tokens"
	"github.com/roelfdiedericks/ctxproxy/internal/types"
)

// maxHistorySize bounds the traffic deque, per spec.md §4.13.
const maxHistorySize = 1000

// Analyzer holds a bounded history of per-request savings metrics and
// derives aggregate statistics from it.
type Analyzer struct {
	mu                  sync.RWMutex
	history             []types.RequestMetrics
	next                int
	filled              bool
	optimizationEnabled bool
}

// NewAnalyzer returns an empty analyzer. optimizationEnabled gates
// whether AnalyzeRequest can ever report optimization_applied=true.
func NewAnalyzer(optimizationEnabled bool) *Analyzer {
	return &Analyzer{
		history:             make([]types.RequestMetrics, maxHistorySize),
		optimizationEnabled: optimizationEnabled,
	}
}

// AnalyzeRequest counts tokens in the original and optimized message
// lists, computes savings, and appends a RequestMetrics record,
// evicting the oldest entry once the deque is full.
func (a *Analyzer) AnalyzeRequest(requestID, model string, original, optimized []types.Message, intent types.Intent, responseTimeMs float64) types.RequestMetrics {
	originalTokens := tokens.EstimateMessages(original)
	optimizedTokens := tokens.EstimateMessages(optimized)

	tokensSaved := originalTokens - optimizedTokens
	if tokensSaved < 0 {
		tokensSaved = 0
	}

	m := types.RequestMetrics{
		RequestID:           requestID,
		Model:               model,
		OriginalTokens:      originalTokens,
		OptimizedTokens:     optimizedTokens,
		TokensSaved:         tokensSaved,
		Intent:              intent,
		OptimizationApplied: a.optimizationEnabled && tokensSaved > 0,
		ResponseTimeMs:      responseTimeMs,
	}

	a.mu.Lock()
	a.history[a.next] = m
	a.next = (a.next + 1) % maxHistorySize
	if a.next == 0 {
		a.filled = true
	}
	a.mu.Unlock()

	return m
}

// Recent returns up to n of the most recently recorded metrics, newest
// first.
func (a *Analyzer) Recent(n int) []types.RequestMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	total := a.next
	if a.filled {
		total = maxHistorySize
	}
	if n > total {
		n = total
	}

	out := make([]types.RequestMetrics, 0, n)
	idx := a.next
	for i := 0; i < n; i++ {
		idx--
		if idx < 0 {
			idx = maxHistorySize - 1
		}
		out = append(out, a.history[idx])
	}
	return out
}

// Stats is the aggregate view returned by GetStats.
type Stats struct {
	TotalRequests    int                  `json:"total_requests"`
	AvgSavingsPct    float64              `json:"avg_savings_pct"`
	OptimizationRate float64              `json:"optimization_rate"`
	IntentHistogram  map[types.Intent]int `json:"intent_histogram"`
	TotalTokensSaved int                  `json:"total_tokens_saved"`
}

// GetStats reports totals over the current history window plus
// avg_savings_pct, optimization_rate, and an intent histogram.
func (a *Analyzer) GetStats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	n := a.next
	if a.filled {
		n = maxHistorySize
	}

	stats := Stats{IntentHistogram: make(map[types.Intent]int)}
	if n == 0 {
		return stats
	}

	var savingsPctSum float64
	optimizedCount := 0
	totalSaved := 0

	for i := 0; i < n; i++ {
		m := a.history[i]
		denom := m.OriginalTokens
		if denom < 1 {
			denom = 1
		}
		savingsPctSum += float64(m.TokensSaved) / float64(denom) * 100
		if m.OptimizationApplied {
			optimizedCount++
		}
		totalSaved += m.TokensSaved
		stats.IntentHistogram[m.Intent]++
	}

	stats.TotalRequests = n
	stats.AvgSavingsPct = savingsPctSum / float64(n)
	stats.OptimizationRate = float64(optimizedCount) / float64(n)
	stats.TotalTokensSaved = totalSaved
	return stats
}
