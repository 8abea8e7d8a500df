package metrics

import (
	"testing"

	"github.com/roelfdiedericks/ctxproxy/internal/types"
)

func msg(content string) types.Message {
	c := content
	return types.Message{Role: types.RoleUser, Content: &c}
}

func TestAnalyzeRequestComputesSavings(t *testing.T) {
	a := NewAnalyzer(true)
	original := []types.Message{msg("a long original message with lots of content here"), msg("another one")}
	optimized := []types.Message{msg("short")}

	m := a.AnalyzeRequest("req1", "gpt-4", original, optimized, types.IntentCasual, 120)

	if m.TokensSaved <= 0 {
		t.Fatalf("expected positive tokens saved, got %d", m.TokensSaved)
	}
	if !m.OptimizationApplied {
		t.Errorf("expected optimization_applied when enabled and savings > 0")
	}
}

func TestAnalyzeRequestNoSavingsWhenEqual(t *testing.T) {
	a := NewAnalyzer(true)
	same := []types.Message{msg("identical content")}

	m := a.AnalyzeRequest("req2", "gpt-4", same, same, types.IntentCasual, 50)
	if m.TokensSaved != 0 {
		t.Errorf("expected 0 tokens saved for identical lists, got %d", m.TokensSaved)
	}
	if m.OptimizationApplied {
		t.Errorf("expected optimization_applied=false when there's no savings")
	}
}

func TestAnalyzeRequestRespectsOptimizationDisabled(t *testing.T) {
	a := NewAnalyzer(false)
	original := []types.Message{msg("a very long message with plenty of words to trim down")}
	optimized := []types.Message{msg("short")}

	m := a.AnalyzeRequest("req3", "gpt-4", original, optimized, types.IntentCasual, 10)
	if m.OptimizationApplied {
		t.Errorf("expected optimization_applied=false when optimization is globally disabled")
	}
	if m.TokensSaved <= 0 {
		t.Errorf("tokens_saved should still be reported even when disabled")
	}
}

func TestGetStatsAggregatesHistory(t *testing.T) {
	a := NewAnalyzer(true)
	for i := 0; i < 5; i++ {
		a.AnalyzeRequest("req", "gpt-4", []types.Message{msg("a longer original message here")}, []types.Message{msg("short")}, types.IntentCoding, 100)
	}

	stats := a.GetStats()
	if stats.TotalRequests != 5 {
		t.Errorf("TotalRequests = %d, want 5", stats.TotalRequests)
	}
	if stats.IntentHistogram[types.IntentCoding] != 5 {
		t.Errorf("expected 5 coding-intent entries, got %d", stats.IntentHistogram[types.IntentCoding])
	}
	if stats.OptimizationRate != 1.0 {
		t.Errorf("OptimizationRate = %v, want 1.0", stats.OptimizationRate)
	}
}

func TestGetStatsEmptyHistory(t *testing.T) {
	a := NewAnalyzer(true)
	stats := a.GetStats()
	if stats.TotalRequests != 0 {
		t.Errorf("expected 0 requests for empty analyzer")
	}
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	a := NewAnalyzer(true)
	a.AnalyzeRequest("req-a", "gpt-4", []types.Message{msg("a")}, []types.Message{msg("a")}, types.IntentCasual, 1)
	a.AnalyzeRequest("req-b", "gpt-4", []types.Message{msg("b")}, []types.Message{msg("b")}, types.IntentCasual, 2)
	a.AnalyzeRequest("req-c", "gpt-4", []types.Message{msg("c")}, []types.Message{msg("c")}, types.IntentCasual, 3)

	recent := a.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].RequestID != "req-c" || recent[1].RequestID != "req-b" {
		t.Errorf("expected newest-first order, got %q then %q", recent[0].RequestID, recent[1].RequestID)
	}
}

func TestAnalyzerEvictsOldestBeyondCapacity(t *testing.T) {
	a := NewAnalyzer(true)
	for i := 0; i < maxHistorySize+10; i++ {
		a.AnalyzeRequest("req", "gpt-4", []types.Message{msg("x")}, []types.Message{msg("x")}, types.IntentCasual, 1)
	}
	stats := a.GetStats()
	if stats.TotalRequests != maxHistorySize {
		t.Errorf("TotalRequests = %d, want bounded at %d", stats.TotalRequests, maxHistorySize)
	}
}
