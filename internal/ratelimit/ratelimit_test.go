package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAcquireWithinBurst(t *testing.T) {
	l := NewLimiter(1, 3)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("burst acquires should not block, took %v", elapsed)
	}
}

func TestAcquireBeyondBudgetWaits(t *testing.T) {
	// B requests/second: the (B+1)th request completes only after >= 1s.
	const b = 4
	l := NewLimiter(b, 1)

	start := time.Now()
	for i := 0; i < b+1; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("request %d completed after %v, expected >= 1s", b+1, elapsed)
	}
}

func TestAcquireTimeout(t *testing.T) {
	l := NewLimiter(0.1, 1) // one token, then 10s refill
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestAcquireCancelled(t *testing.T) {
	l := NewLimiter(0.1, 1)
	l.Acquire(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFIFOOrdering(t *testing.T) {
	l := NewLimiter(20, 1)
	l.Acquire(context.Background()) // drain the burst

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("acquire %d: %v", n, err)
				return
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}(i)
		// Stagger arrivals so each goroutine reserves in launch order.
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			t.Fatalf("waiters completed out of order: %v", order)
		}
	}
}

func TestRegistrySharesLimiters(t *testing.T) {
	r := NewRegistry(func(source string) (float64, int) {
		if source == "muckrock" {
			return 5, 10
		}
		return 0, 0
	})

	a := r.For("muckrock")
	b := r.For("muckrock")
	if a != b {
		t.Error("expected the same limiter instance per source")
	}

	floor := r.For("unknown")
	if floor.rate != DefaultFloor {
		t.Errorf("expected floor rate %v for unbudgeted source, got %v", DefaultFloor, floor.rate)
	}
}
