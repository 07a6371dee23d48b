package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
)

// TestBreakerRegistryGet verifies one breaker per worker class.
func TestBreakerRegistryGet(t *testing.T) {
	r := NewBreakerRegistry(discardLogger())

	backend := r.Get("backend")
	if backend == nil {
		t.Fatal("expected a breaker")
	}
	if r.Get("backend") != backend {
		t.Error("expected the same breaker on repeated Get")
	}
	if r.Get("frontend") == backend {
		t.Error("expected distinct breakers per class")
	}
	if backend.Name() != "backend" {
		t.Errorf("expected breaker named backend, got %q", backend.Name())
	}
}

// TestBreakerTripsAfterConsecutiveFailures verifies the breaker opens after
// repeated executor failures and short-circuits further calls.
func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	r := NewBreakerRegistry(discardLogger())
	cb := r.Get("backend")

	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		if _, err := cb.Execute(func() (interface{}, error) { return nil, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected boom, got %v", i+1, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open state after 5 failures, got %v", cb.State())
	}

	called := false
	_, err := cb.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if called {
		t.Error("open breaker must not invoke the executor")
	}
}

// TestBreakerIgnoresCancellation verifies caller cancellation does not count
// as a worker failure.
func TestBreakerIgnoresCancellation(t *testing.T) {
	r := NewBreakerRegistry(discardLogger())
	cb := r.Get("backend")

	for i := 0; i < 10; i++ {
		cb.Execute(func() (interface{}, error) { return nil, context.Canceled })
	}

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected closed state after cancellations, got %v", cb.State())
	}
}
