package circuit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New(3, time.Minute)
	if !b.Allow() {
		t.Fatalf("expected breaker closed and allowing calls initially")
	}
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Fatalf("expected breaker still closed after 2 failures")
	}
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected breaker open after 3 consecutive failures")
	}
	if b.Allow() {
		t.Fatalf("expected breaker to refuse calls while open and cooling down")
	}
}

func TestBreakerRecoversOnSuccess(t *testing.T) {
	b := New(2, time.Minute)
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Fatalf("expected single failure after a success to keep breaker closed")
	}
}

func TestBackoffCapped(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		if d := Backoff(attempt); d > 3*time.Second {
			t.Fatalf("Backoff(%d) = %v, expected <= 3s", attempt, d)
		}
	}
}

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryExhausts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, func() error {
		calls++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}
