package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers decisions an operator may have to justify later:
	// provider approvals, rejections and deletions.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine writes: submissions, donations, testimonials.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	// Subject is the entity acted upon: a provider id, or a campaign title for donations.
	Subject   string `json:"subject"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// ActorID is the authenticated admin for approval workflow events.
	ActorID string `json:"actor_id,omitempty"`
}

type AuditEvent string

const (
	// Provider registry events
	EventProviderSubmitted AuditEvent = "provider_submitted"
	EventProviderApproved  AuditEvent = "provider_approved"
	EventProviderRejected  AuditEvent = "provider_rejected"
	EventProviderDeleted   AuditEvent = "provider_deleted"

	// Engagement ledger events
	EventDonationRecorded  AuditEvent = "donation_recorded"
	EventDonationReplayed  AuditEvent = "donation_replayed"
	EventTestimonialAdded  AuditEvent = "testimonial_added"
	EventSuccessStoryAdded AuditEvent = "success_story_added"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventProviderApproved: CategoryCompliance,
	EventProviderRejected: CategoryCompliance,
	EventProviderDeleted:  CategoryCompliance,

	EventProviderSubmitted: CategoryOperations,
	EventDonationRecorded:  CategoryOperations,
	EventDonationReplayed:  CategoryOperations,
	EventTestimonialAdded:  CategoryOperations,
	EventSuccessStoryAdded: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events in emission order.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Sink receives a copy of every persisted event (e.g. a Kafka topic).
type Sink interface {
	Publish(ctx context.Context, event Event) error
}
