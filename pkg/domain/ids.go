// Package domain holds typed identifiers shared across modules.
//
// Each identifier wraps a UUID so that a ProviderID can never be passed where a
// DonationID is expected. Construct identifiers from external input only through the
// Parse functions, which enforce the invariant "non-empty, well-formed, non-nil UUID".
package domain

import (
	"github.com/google/uuid"

	dErrors "mindlink/pkg/domain-errors"
)

type (
	ProviderID    uuid.UUID
	DonationID    uuid.UUID
	TestimonialID uuid.UUID
	StoryID       uuid.UUID
)

func NewProviderID() ProviderID       { return ProviderID(uuid.New()) }
func NewDonationID() DonationID       { return DonationID(uuid.New()) }
func NewTestimonialID() TestimonialID { return TestimonialID(uuid.New()) }
func NewStoryID() StoryID             { return StoryID(uuid.New()) }

func (id ProviderID) String() string    { return uuid.UUID(id).String() }
func (id DonationID) String() string    { return uuid.UUID(id).String() }
func (id TestimonialID) String() string { return uuid.UUID(id).String() }
func (id StoryID) String() string       { return uuid.UUID(id).String() }

func (id ProviderID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DonationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TestimonialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id StoryID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed ids serialize as plain UUID strings in JSON.
func (id ProviderID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id DonationID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id TestimonialID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id StoryID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }

func (id *ProviderID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DonationID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TestimonialID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *StoryID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseProviderID parses a provider identifier from a path segment or request body.
func ParseProviderID(s string) (ProviderID, error) {
	u, err := parseUUID(s, "provider id")
	return ProviderID(u), err
}

func ParseDonationID(s string) (DonationID, error) {
	u, err := parseUUID(s, "donation id")
	return DonationID(u), err
}

func ParseTestimonialID(s string) (TestimonialID, error) {
	u, err := parseUUID(s, "testimonial id")
	return TestimonialID(u), err
}

func ParseStoryID(s string) (StoryID, error) {
	u, err := parseUUID(s, "story id")
	return StoryID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}
