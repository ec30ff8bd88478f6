package models

import (
	"time"

	id "mindlink/pkg/domain"
	dErrors "mindlink/pkg/domain-errors"
)

// Status is the lifecycle state of a provider application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Only pending applications move; approved and rejected are terminal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusRejected)
}

// ParseStatus accepts the wire form of a status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "status must be one of pending, approved, rejected")
	}
	return s, nil
}

// Application is the aggregate root for a provider's submission.
//
// Invariants:
//   - Name, Description and Experience are non-empty
//   - Status starts pending and only leaves pending once
//   - SubmittedAt is immutable after construction
//
// An approved application is the ApprovedProvider of the registry; stores keep it
// in the approved collection and never in the applications collection.
type Application struct {
	ID          id.ProviderID `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Experience  string        `json:"experience"`
	Status      Status        `json:"status"`
	SubmittedAt time.Time     `json:"submitted_at"`
	DecidedAt   *time.Time    `json:"decided_at,omitempty"`
}

func NewApplication(providerID id.ProviderID, name, description, experience string, now time.Time) (*Application, error) {
	if name == "" || description == "" || experience == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "name, description and experience are required")
	}
	return &Application{
		ID:          providerID,
		Name:        name,
		Description: description,
		Experience:  experience,
		Status:      StatusPending,
		SubmittedAt: now,
	}, nil
}

func (a *Application) IsApproved() bool {
	return a.Status == StatusApproved
}

func (a *Application) IsPending() bool {
	return a.Status == StatusPending
}

// CanApprove checks if the application can transition to approved.
// Use with ApplyApproval in Execute callbacks.
func (a *Application) CanApprove() error {
	if !a.Status.CanTransitionTo(StatusApproved) {
		return dErrors.New(dErrors.CodeInvariantViolation, "only pending applications can be approved")
	}
	return nil
}

// ApplyApproval marks the application approved. Call CanApprove first.
func (a *Application) ApplyApproval(now time.Time) {
	a.Status = StatusApproved
	a.DecidedAt = &now
}

// CanReject checks if the application can transition to rejected.
func (a *Application) CanReject() error {
	if !a.Status.CanTransitionTo(StatusRejected) {
		return dErrors.New(dErrors.CodeInvariantViolation, "only pending applications can be rejected")
	}
	return nil
}

// ApplyRejection marks the application rejected. Call CanReject first.
func (a *Application) ApplyRejection(now time.Time) {
	a.Status = StatusRejected
	a.DecidedAt = &now
}

// Clone returns a copy safe to hand out of a store.
func (a *Application) Clone() *Application {
	c := *a
	if a.DecidedAt != nil {
		t := *a.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}

// StatusCounts is the per-status projection over both registry collections.
type StatusCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

func (c StatusCounts) Total() int {
	return c.Pending + c.Approved + c.Rejected
}

// Tally adds one application to the counts.
func (c *StatusCounts) Tally(s Status) {
	switch s {
	case StatusPending:
		c.Pending++
	case StatusApproved:
		c.Approved++
	case StatusRejected:
		c.Rejected++
	}
}
