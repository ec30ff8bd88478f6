// Package idempotency stores Idempotency-Key reservations for donation submission.
package idempotency

import (
	"context"
	"strings"
	"sync"
	"time"

	"mindlink/internal/ledger/ports"
)

// sweepInterval bounds how often Reserve scans for expired keys.
const sweepInterval = time.Minute

type entry struct {
	reservation ports.Reservation
	expiresAt   time.Time
}

// InMemory is a process-local IdempotencyStore for single-instance deployments and tests.
// Expired keys are dropped on access and by a sweep that runs at most once per minute.
type InMemory struct {
	mu        sync.Mutex
	entries   map[string]entry
	now       func() time.Time
	lastSweep time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]entry), now: time.Now}
}

func (s *InMemory) Reserve(_ context.Context, key, fingerprint string, ttl time.Duration) (bool, ports.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)
	if e, ok := s.entries[key]; ok {
		if now.Before(e.expiresAt) {
			return false, e.reservation, nil
		}
		delete(s.entries, key)
	}
	s.entries[key] = entry{reservation: ports.Reservation{Fingerprint: fingerprint}, expiresAt: now.Add(ttl)}
	return true, ports.Reservation{}, nil
}

func (s *InMemory) Complete(_ context.Context, key string, r ports.Reservation, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{reservation: r, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemory) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len reports how many keys are held, expired or not.
func (s *InMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweep must be called with s.mu held.
func (s *InMemory) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// encode and decode give both stores one value format: "<fingerprint>|<donation id>".
func encode(r ports.Reservation) string {
	return r.Fingerprint + "|" + r.DonationID
}

func decode(v string) ports.Reservation {
	fingerprint, donationID, ok := strings.Cut(v, "|")
	if !ok {
		return ports.Reservation{DonationID: v}
	}
	return ports.Reservation{Fingerprint: fingerprint, DonationID: donationID}
}
