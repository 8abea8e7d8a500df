package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roelfdiedericks/ctxproxy/internal/types"
)

func TestObserveIncrementsRequestsTotal(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.Observe(types.RequestMetrics{
		Model:               "gpt-4",
		Intent:              types.IntentCoding,
		OriginalTokens:      100,
		OptimizedTokens:     40,
		TokensSaved:         60,
		OptimizationApplied: true,
		ResponseTimeMs:      250,
	})

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "llm_adapter_requests_total" {
			found = true
			if len(mf.Metric) != 1 {
				t.Fatalf("expected 1 series, got %d", len(mf.Metric))
			}
			if mf.Metric[0].GetCounter().GetValue() != 1 {
				t.Errorf("expected counter value 1, got %v", mf.Metric[0].GetCounter().GetValue())
			}
		}
	}
	if !found {
		t.Fatalf("llm_adapter_requests_total not registered")
	}
}

func TestObserveRecordsTokensSaved(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.Observe(types.RequestMetrics{Model: "gpt-4", Intent: types.IntentCasual, OriginalTokens: 100, TokensSaved: 30})
	m.Observe(types.RequestMetrics{Model: "gpt-4", Intent: types.IntentCasual, OriginalTokens: 100, TokensSaved: 20})

	metricFamilies, _ := reg.Gather()
	var total float64
	for _, mf := range metricFamilies {
		if mf.GetName() == "llm_adapter_tokens_saved_total" {
			for _, metric := range mf.Metric {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	if total != 50 {
		t.Errorf("expected total tokens saved 50, got %v", total)
	}
}
