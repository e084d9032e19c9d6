package ratelimit

import (
	"sync"
	"time"
)

// Store hands out one limiter per key, e.g. per client address. Entries
// idle for longer than the idle TTL are dropped by Prune, and Get prunes
// opportunistically.
type Store struct {
	rate    float64
	burst   float64
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	limiters  map[string]*entry
	lastPrune time.Time
}

type entry struct {
	rl       *RateLimiter
	lastSeen time.Time
}

// NewStore creates a store whose limiters refill at tokensPerSecond with
// the given burst.
func NewStore(tokensPerSecond, burst float64, idleTTL time.Duration) *Store {
	return newStore(tokensPerSecond, burst, idleTTL, time.Now)
}

func newStore(tokensPerSecond, burst float64, idleTTL time.Duration, now func() time.Time) *Store {
	return &Store{
		rate:      tokensPerSecond,
		burst:     burst,
		idleTTL:   idleTTL,
		now:       now,
		limiters:  make(map[string]*entry),
		lastPrune: now(),
	}
}

// Get returns the limiter for key, creating it with a full bucket.
func (s *Store) Get(key string) *RateLimiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.idleTTL > 0 && now.Sub(s.lastPrune) >= s.idleTTL {
		s.pruneLocked(now)
	}
	e, ok := s.limiters[key]
	if !ok {
		e = &entry{rl: newRateLimiter(s.rate, s.burst, s.now)}
		s.limiters[key] = e
	}
	e.lastSeen = now
	return e.rl
}

// Allow takes a token for key. When none is left it reports how long the
// caller should wait.
func (s *Store) Allow(key string) (bool, time.Duration) {
	rl := s.Get(key)
	if rl.TryAcquire() {
		return true, 0
	}
	return false, rl.RetryAfter()
}

// Prune drops idle limiters and returns how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.now())
}

func (s *Store) pruneLocked(now time.Time) int {
	n := 0
	for k, e := range s.limiters {
		if now.Sub(e.lastSeen) >= s.idleTTL {
			delete(s.limiters, k)
			n++
		}
	}
	s.lastPrune = now
	return n
}

// Len returns the number of tracked keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
