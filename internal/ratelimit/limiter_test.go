package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestNewRateLimiterStartsFull(t *testing.T) {
	rl := newRateLimiter(1, 5, newFakeClock().Now)
	if got := rl.Tokens(); got != 5 {
		t.Errorf("Tokens() = %v, want 5", got)
	}
}

func TestBurstThenRefill(t *testing.T) {
	clock := newFakeClock()
	rl := newRateLimiter(2, 3, clock.Now)

	for i := 0; i < 3; i++ {
		if !rl.TryAcquire() {
			t.Fatalf("acquire %d failed inside burst", i)
		}
	}
	if rl.TryAcquire() {
		t.Fatal("acquired past the burst")
	}
	if got := rl.RetryAfter(); got != 500*time.Millisecond {
		t.Errorf("RetryAfter() = %v, want 500ms", got)
	}

	clock.Advance(500 * time.Millisecond)
	if !rl.TryAcquire() {
		t.Error("no token after refill")
	}

	clock.Advance(time.Hour)
	if got := rl.Tokens(); got != 3 {
		t.Errorf("Tokens() after long idle = %v, want cap 3", got)
	}
}

func TestWaitRespectsContext(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := rl.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Wait ignored the context")
	}
}

func TestWaitGetsRefilledToken(t *testing.T) {
	rl := NewRateLimiter(100, 1)
	rl.TryAcquire()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rl.Wait(ctx); err != nil {
		t.Errorf("Wait() = %v", err)
	}
}

func TestStoreKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	s := newStore(1, 2, time.Minute, clock.Now)

	for i := 0; i < 2; i++ {
		if ok, _ := s.Allow("10.0.0.1"); !ok {
			t.Fatalf("attempt %d refused", i)
		}
	}
	ok, wait := s.Allow("10.0.0.1")
	if ok || wait != time.Second {
		t.Errorf("third attempt: ok=%v wait=%v, want refused with 1s", ok, wait)
	}
	if ok, _ := s.Allow("10.0.0.2"); !ok {
		t.Error("second client was throttled by the first")
	}
	if s.Get("10.0.0.1") != s.Get("10.0.0.1") {
		t.Error("Get returned different limiters for one key")
	}
}

func TestStorePrune(t *testing.T) {
	clock := newFakeClock()
	s := newStore(1, 1, time.Minute, clock.Now)

	s.Get("a")
	clock.Advance(30 * time.Second)
	s.Get("b")
	clock.Advance(30 * time.Second)

	if n := s.Prune(); n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}

	// Get prunes on its own once the TTL has passed.
	clock.Advance(2 * time.Minute)
	s.Get("c")
	if s.Len() != 1 {
		t.Errorf("Len() after Get = %d, want 1", s.Len())
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore(1000, 50, time.Minute)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if ok, _ := s.Allow("shared"); ok {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	if allowed < 50 {
		t.Errorf("allowed %d, want at least the burst of 50", allowed)
	}
}
