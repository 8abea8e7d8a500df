package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roelfdiedericks/ctxproxy/internal/types"
)

// PrometheusMetrics holds the exposition-format collectors registered
// against a prometheus.Registerer. Names are taken verbatim from the
// original Python implementation's prometheus_client usage.
type PrometheusMetrics struct {
	RequestsTotal    *prometheus.CounterVec
	TokensSavedTotal *prometheus.CounterVec
	OriginalTokens   prometheus.Histogram
	OptimizedTokens  prometheus.Histogram
	ResponseTime     prometheus.Histogram
	SavingsRatio     prometheus.Histogram
}

// NewPrometheusMetrics creates and registers collectors against reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_adapter_requests_total",
			Help: "Total chat completion requests processed.",
		}, []string{"model", "intent", "optimization_applied"}),
		TokensSavedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_adapter_tokens_saved_total",
			Help: "Total tokens saved by context optimization.",
		}, []string{"model", "intent"}),
		OriginalTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "llm_adapter_original_tokens",
			Help:    "Distribution of original (pre-optimization) token counts.",
			Buckets: prometheus.ExponentialBuckets(64, 2, 12),
		}),
		OptimizedTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "llm_adapter_optimized_tokens",
			Help:    "Distribution of optimized token counts.",
			Buckets: prometheus.ExponentialBuckets(64, 2, 12),
		}),
		ResponseTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "llm_adapter_response_time_seconds",
			Help:    "End-to-end request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		SavingsRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "llm_adapter_savings_ratio",
			Help:    "Fraction of tokens saved per request.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 10),
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.TokensSavedTotal,
		m.OriginalTokens,
		m.OptimizedTokens,
		m.ResponseTime,
		m.SavingsRatio,
	)
	return m
}

// Observe records a single request's metrics into the Prometheus
// collectors, mirroring what Analyzer.AnalyzeRequest records into the
// in-process deque.
func (m *PrometheusMetrics) Observe(metric types.RequestMetrics) {
	applied := "false"
	if metric.OptimizationApplied {
		applied = "true"
	}

	m.RequestsTotal.WithLabelValues(metric.Model, string(metric.Intent), applied).Inc()
	m.TokensSavedTotal.WithLabelValues(metric.Model, string(metric.Intent)).Add(float64(metric.TokensSaved))
	m.OriginalTokens.Observe(float64(metric.OriginalTokens))
	m.OptimizedTokens.Observe(float64(metric.OptimizedTokens))
	m.ResponseTime.Observe(metric.ResponseTimeMs / 1000)

	if metric.OriginalTokens > 0 {
		m.SavingsRatio.Observe(float64(metric.TokensSaved) / float64(metric.OriginalTokens))
	}
}
