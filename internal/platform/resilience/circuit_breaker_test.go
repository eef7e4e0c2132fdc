package resilience

import (
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("call %d should be allowed while closed", i)
		}
		b.ReportFailure()
	}

	if b.Allow() {
		t.Fatal("breaker should be open after reaching failure threshold")
	}
}

func TestCircuitBreaker_HalfOpenProbeRecovers(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Minute})

	now := time.Now()
	b.now = func() time.Time { return now }

	b.ReportFailure()
	if b.Allow() {
		t.Fatal("breaker should be open")
	}

	now = now.Add(2 * time.Minute)
	if !b.Allow() {
		t.Fatal("breaker should admit a probe after the open timeout")
	}
	if b.Allow() {
		t.Fatal("only one probe may run while half-open")
	}

	b.ReportSuccess()
	if !b.Allow() {
		t.Fatal("breaker should close after a successful probe")
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Minute})

	now := time.Now()
	b.now = func() time.Time { return now }

	b.ReportFailure()
	now = now.Add(2 * time.Minute)
	if !b.Allow() {
		t.Fatal("probe should be admitted")
	}

	b.ReportFailure()
	if b.Allow() {
		t.Fatal("failed probe must reopen the breaker")
	}
}
