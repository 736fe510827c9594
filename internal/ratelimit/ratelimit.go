// Package ratelimit enforces per-source token budgets for outbound requests.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when a caller-supplied deadline expires before a
// token becomes available. Blocking, not erroring, is the normal
// backpressure mechanism.
var ErrTimeout = errors.New("rate limit wait timed out")

// DefaultFloor is the conservative budget applied to sources with no
// configured budget (typically those without elevated-access credentials).
const DefaultFloor = 1.0

// Limiter is a token bucket that blocks callers until a token is available.
//
// Acquire hands out reservations under a single mutex: each caller claims
// the next token time in arrival order, so waiters complete FIFO and a slow
// consumer cannot be starved by later arrivals.
type Limiter struct {
	mu     sync.Mutex
	rate   float64 // tokens per second
	burst  float64
	tokens float64
	last   time.Time
}

// NewLimiter creates a limiter for the given requests-per-second budget.
// Non-positive rates clamp to DefaultFloor; non-positive bursts clamp to 1.
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		rps = DefaultFloor
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		rate:   rps,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Acquire blocks until a token is available or ctx is done. A context
// deadline expiring while waiting yields ErrTimeout; other context errors
// pass through unchanged.
func (l *Limiter) Acquire(ctx context.Context) error {
	wait := l.reserve(time.Now())
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

// reserve claims the next token and returns how long the caller must wait
// for it. Claims are made in call order, which gives FIFO completion.
func (l *Limiter) reserve(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := now.Sub(l.last).Seconds()
	l.tokens += elapsed * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now

	l.tokens--
	if l.tokens >= 0 {
		return 0
	}
	// Deficit: wait until the bucket refills to cover this claim.
	return time.Duration(-l.tokens / l.rate * float64(time.Second))
}

// Registry hands out one shared limiter per source name.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	budgets  func(source string) (rps float64, burst int)
}

// NewRegistry creates a registry. budgets maps a source name to its
// configured budget; a zero rps means "no budget configured" and gets the
// conservative floor.
func NewRegistry(budgets func(source string) (rps float64, burst int)) *Registry {
	return &Registry{
		limiters: make(map[string]*Limiter),
		budgets:  budgets,
	}
}

// For returns the limiter for a source, creating it on first use.
func (r *Registry) For(source string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[source]; ok {
		return l
	}
	rps, burst := r.budgets(source)
	l := NewLimiter(rps, burst)
	r.limiters[source] = l
	return l
}
