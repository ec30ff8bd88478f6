// Package ports declares what the engagement ledger needs from the outside world.
package ports

import (
	"context"
	"time"

	id "mindlink/pkg/domain"
)

// ApprovalChecker is the registry's approval gate. The ledger asks it on every write
// and never caches the answer.
//
// IsApproved returns a not_found domain error when the provider does not exist.
type ApprovalChecker interface {
	IsApproved(ctx context.Context, providerID id.ProviderID) (bool, error)
}

// Reservation is what an idempotency key currently holds.
type Reservation struct {
	// Fingerprint identifies the request body that claimed the key.
	Fingerprint string
	// DonationID is empty while the first request is still in flight.
	DonationID string
}

// IdempotencyStore remembers which donation a client-supplied key produced.
type IdempotencyStore interface {
	// Reserve claims key for ttl on behalf of the request with the given fingerprint.
	// When the key is already claimed it returns reserved=false and the existing
	// reservation.
	Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (reserved bool, existing Reservation, err error)
	// Complete binds key to the donation it produced.
	Complete(ctx context.Context, key string, r Reservation, ttl time.Duration) error
	// Release drops a reservation whose request failed so the client can retry.
	Release(ctx context.Context, key string) error
}
