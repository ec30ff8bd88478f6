package store

import (
	"context"
	"sync"
	"time"

	"mindlink/internal/ratelimit/models"
)

// sweepInterval bounds how often Allow scans for idle buckets.
const sweepInterval = time.Minute

// InMemory implements a sliding window per key. It is not shared between
// replicas; use Redis when more than one instance serves traffic.
// Buckets whose window has emptied are dropped by a periodic sweep.
type InMemory struct {
	mu        sync.Mutex
	buckets   map[string]*slidingWindow
	now       func() time.Time
	lastSweep time.Time
}

type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func NewInMemory() *InMemory {
	return &InMemory{buckets: make(map[string]*slidingWindow), now: time.Now}
}

// Allow records one request against key if the window has room.
func (s *InMemory) Allow(_ context.Context, key string, policy models.Policy) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)
	sw := s.bucket(key, policy.Window)
	sw.cleanup(now)

	if len(sw.timestamps) >= policy.Limit {
		resetAt := sw.timestamps[0].Add(policy.Window)
		return &models.Result{
			Allowed:    false,
			Limit:      policy.Limit,
			ResetAt:    resetAt,
			RetryAfter: models.RetryAfterSeconds(now, resetAt),
		}, nil
	}

	sw.timestamps = append(sw.timestamps, now)
	return &models.Result{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(policy.Window),
	}, nil
}

// cleanup drops timestamps that fell out of the window.
func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// Len reports how many client buckets are held.
func (s *InMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// sweep must be called while holding s.mu.
func (s *InMemory) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now
	for key, sw := range s.buckets {
		sw.cleanup(now)
		if len(sw.timestamps) == 0 {
			delete(s.buckets, key)
		}
	}
}

// Must be called while holding s.mu.
func (s *InMemory) bucket(key string, window time.Duration) *slidingWindow {
	if sw := s.buckets[key]; sw != nil {
		return sw
	}
	sw := &slidingWindow{window: window}
	s.buckets[key] = sw
	return sw
}
