package degradation

import (
	"errors"
	"testing"
	"time"

	"github.com/roelfdiedericks/ctxproxy/internal/breaker"
)

func openBreaker(b *breaker.Breaker, n int) {
	for i := 0; i < n; i++ {
		b.RecordFailure()
	}
}

func TestExecuteRunsOperationWhenClosed(t *testing.T) {
	b := breaker.New("test", breaker.DefaultConfig(), nil)
	s := NewCircuitBreakerStrategy(b, true)

	result, err := Execute(s, "op", func() (int, error) { return 42, nil }, nil)

	if err != nil || result != 42 {
		t.Errorf("Execute = %d, %v; want 42, nil", result, err)
	}
	if b.State() != breaker.Closed {
		t.Errorf("expected breaker to remain closed on success")
	}
}

func TestExecuteFallbackWhenOpen(t *testing.T) {
	cfg := breaker.Config{FailureThreshold: 1, RecoveryTimeout: time.Hour, HalfOpenMaxCalls: 1, SuccessThreshold: 1}
	b := breaker.New("test", cfg, nil)
	openBreaker(b, 1)

	s := NewCircuitBreakerStrategy(b, true)
	called := false
	result, err := Execute(s, "op",
		func() (string, error) { t.Fatal("primary should not run when breaker is open"); return "", nil },
		func() (string, error) { called = true; return "fallback", nil })

	if err != nil || result != "fallback" || !called {
		t.Errorf("Execute = %q, %v, called=%v; want fallback", result, err, called)
	}
}

func TestExecuteNoFallbackWhenOpenReturnsZero(t *testing.T) {
	cfg := breaker.Config{FailureThreshold: 1, RecoveryTimeout: time.Hour, HalfOpenMaxCalls: 1, SuccessThreshold: 1}
	b := breaker.New("test", cfg, nil)
	openBreaker(b, 1)

	s := NewCircuitBreakerStrategy(b, true)
	result, err := Execute[int](s, "op", func() (int, error) {
		t.Fatal("should not run")
		return 0, nil
	}, nil)

	if err != nil || result != 0 {
		t.Errorf("Execute = %d, %v; want 0, nil", result, err)
	}
}

func TestExecuteRecordsFailureAndPropagatesWithoutFallback(t *testing.T) {
	b := breaker.New("test", breaker.DefaultConfig(), nil)
	s := NewCircuitBreakerStrategy(b, true)
	wantErr := errors.New("boom")

	_, err := Execute[int](s, "op", func() (int, error) { return 0, wantErr }, nil)

	if err != wantErr {
		t.Errorf("Execute error = %v, want %v", err, wantErr)
	}
	if b.StatsSnapshot().FailureCount != 1 {
		t.Errorf("expected breaker to record the failure")
	}
}

func TestManagerDisableBlocksFeature(t *testing.T) {
	m := NewManager()
	m.Register("memory", "memory retrieval")

	if !m.Enabled("memory") {
		t.Fatalf("expected feature enabled by default")
	}
	m.Disable("memory")
	if m.Enabled("memory") {
		t.Errorf("expected feature disabled")
	}
}

func TestManagerRecordFailureMarksDegraded(t *testing.T) {
	m := NewManager()
	m.Register("memory", "memory retrieval")

	m.RecordFailure("memory", errors.New("store unavailable"))

	if !m.IsDegraded("memory") {
		t.Errorf("expected feature marked degraded after failure")
	}

	m.RecordSuccess("memory")
	if m.IsDegraded("memory") {
		t.Errorf("expected feature recovered after success")
	}
}

func TestManagerUnknownFeatureIsDegraded(t *testing.T) {
	m := NewManager()
	if !m.IsDegraded("nonexistent") {
		t.Errorf("expected unknown feature to report degraded")
	}
}
