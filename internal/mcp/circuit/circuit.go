// Package circuit implements a simple circuit breaker and the
// capped-exponential-backoff retry helper used when refreshing MCP tool
// listings.
//
// Grounded on vtcode-core/src/tools/registry/mcp_facade.rs::refresh_mcp_tools.
package circuit

import (
	"context"
	"math"
	"sync"
	"time"
)

// State is the circuit breaker's current mode.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker trips open after a run of consecutive failures, refuses calls
// while open, and probes again (half-open) once a cooldown elapses.
type Breaker struct {
	mu               sync.Mutex
	state            State
	consecutiveFails int
	failThreshold    int
	cooldown         time.Duration
	openedAt         time.Time
}

// New creates a Breaker that opens after failThreshold consecutive
// failures and attempts a half-open probe after cooldown elapses.
func New(failThreshold int, cooldown time.Duration) *Breaker {
	if failThreshold <= 0 {
		failThreshold = 3
	}
	return &Breaker{failThreshold: failThreshold, cooldown: cooldown}
}

// Allow reports whether a call may proceed right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) >= b.cooldown {
			b.state = StateHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess closes the breaker and resets the failure streak.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails = 0
	b.state = StateClosed
}

// RecordFailure increments the failure streak, opening the breaker once
// failThreshold consecutive failures have been recorded.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails++
	if b.state == StateHalfOpen || b.consecutiveFails >= b.failThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Backoff computes the capped-exponential-backoff-with-jitter delay for
// retry attempt (0-based), matching mcp_facade.rs::refresh_mcp_tools:
// 200ms * 2^min(attempt,4) + jitter(attempt), capped at 3s.
func Backoff(attempt int) time.Duration {
	jitter := time.Duration((attempt*37)%80) * time.Millisecond
	exp := attempt
	if exp > 4 {
		exp = 4
	}
	pow := math.Pow(2, float64(exp))
	backoff := time.Duration(200*pow)*time.Millisecond + jitter
	if cap := 3 * time.Second; backoff > cap {
		backoff = cap
	}
	return backoff
}

// Retry runs fn up to attempts times, sleeping Backoff(attempt) between
// failures. On success it returns nil immediately. On exhaustion it
// returns the last error without retrying further.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(Backoff(attempt)):
		}
	}
	return lastErr
}
