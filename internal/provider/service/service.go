// Package service orchestrates the provider application lifecycle.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	providermetrics "mindlink/internal/provider/metrics"
	"mindlink/internal/provider/models"
	id "mindlink/pkg/domain"
	dErrors "mindlink/pkg/domain-errors"
	audit "mindlink/pkg/platform/audit"
	"mindlink/pkg/platform/sentinel"
	"mindlink/pkg/requestcontext"
)

// Store persists the applications and approved collections.
// Execute must hold its lock across validate and mutate.
type Store interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, providerID id.ProviderID) (*models.Application, error)
	Execute(ctx context.Context, providerID id.ProviderID, validate func(*models.Application) error, mutate func(*models.Application)) (*models.Application, error)
	Delete(ctx context.Context, providerID id.ProviderID) (*models.Application, error)
	ListApplications(ctx context.Context) ([]*models.Application, error)
	ListApproved(ctx context.Context) ([]*models.Application, error)
	// CountByStatus tallies both collections in one consistent read.
	CountByStatus(ctx context.Context) (models.StatusCounts, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the provider registry. It is the single source of truth for approval state.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *providermetrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *providermetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tracer: otel.Tracer("mindlink/internal/provider"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates a pending application.
func (s *Service) Submit(ctx context.Context, req *models.SubmitApplicationRequest) (app *models.Application, err error) {
	ctx, span := s.tracer.Start(ctx, "provider.Submit")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	app, err = models.NewApplication(id.NewProviderID(), req.Name, req.Description, req.Experience, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.store.Create(ctx, app); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store application")
	}

	span.SetAttributes(attribute.String("provider.id", app.ID.String()))
	s.logAudit(ctx, audit.EventProviderSubmitted, app.ID, "")
	if s.metrics != nil {
		s.metrics.IncrementSubmitted()
	}
	return app, nil
}

// Approve moves a pending application into the approved collection.
// Approving an application that is no longer pending returns it unchanged.
func (s *Service) Approve(ctx context.Context, providerID id.ProviderID) (app *models.Application, err error) {
	ctx, span := s.tracer.Start(ctx, "provider.Approve",
		trace.WithAttributes(attribute.String("provider.id", providerID.String())))
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	var transitioned bool
	app, err = s.store.Execute(ctx, providerID,
		func(a *models.Application) error {
			transitioned = a.CanApprove() == nil
			return nil
		},
		func(a *models.Application) {
			if transitioned {
				a.ApplyApproval(now)
			}
		},
	)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to approve provider")
	}

	if !transitioned {
		s.logNoop(ctx, "approve", app)
		return app, nil
	}
	s.logAudit(ctx, audit.EventProviderApproved, app.ID, "")
	if s.metrics != nil {
		s.metrics.IncrementDecided(string(models.StatusApproved))
	}
	return app, nil
}

// Reject marks a pending application rejected. It stays in the applications collection.
// Rejecting an application that is no longer pending returns it unchanged.
func (s *Service) Reject(ctx context.Context, providerID id.ProviderID) (app *models.Application, err error) {
	ctx, span := s.tracer.Start(ctx, "provider.Reject",
		trace.WithAttributes(attribute.String("provider.id", providerID.String())))
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	var transitioned bool
	app, err = s.store.Execute(ctx, providerID,
		func(a *models.Application) error {
			transitioned = a.CanReject() == nil
			return nil
		},
		func(a *models.Application) {
			if transitioned {
				a.ApplyRejection(now)
			}
		},
	)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to reject provider")
	}

	if !transitioned {
		s.logNoop(ctx, "reject", app)
		return app, nil
	}
	s.logAudit(ctx, audit.EventProviderRejected, app.ID, "")
	if s.metrics != nil {
		s.metrics.IncrementDecided(string(models.StatusRejected))
	}
	return app, nil
}

// Delete removes a provider from whichever collection holds it. Irreversible.
func (s *Service) Delete(ctx context.Context, providerID id.ProviderID) (err error) {
	ctx, span := s.tracer.Start(ctx, "provider.Delete",
		trace.WithAttributes(attribute.String("provider.id", providerID.String())))
	defer func() { endSpan(span, err) }()

	app, err := s.store.Delete(ctx, providerID)
	if err != nil {
		return wrapStoreErr(err, "failed to delete provider")
	}

	s.logAudit(ctx, audit.EventProviderDeleted, app.ID, "status was "+string(app.Status))
	if s.metrics != nil {
		s.metrics.IncrementDeleted()
	}
	return nil
}

func (s *Service) GetApplication(ctx context.Context, providerID id.ProviderID) (*models.Application, error) {
	ctx, span := s.tracer.Start(ctx, "provider.GetApplication")
	defer span.End()

	app, err := s.store.FindByID(ctx, providerID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load provider")
	}
	return app, nil
}

// ListApplications returns pending and rejected applications in submission order.
func (s *Service) ListApplications(ctx context.Context) ([]*models.Application, error) {
	ctx, span := s.tracer.Start(ctx, "provider.ListApplications")
	defer span.End()

	apps, err := s.store.ListApplications(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return apps, nil
}

// ListApproved returns approved providers in approval order.
func (s *Service) ListApproved(ctx context.Context) ([]*models.Application, error) {
	ctx, span := s.tracer.Start(ctx, "provider.ListApproved")
	defer span.End()

	apps, err := s.store.ListApproved(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list approved providers")
	}
	return apps, nil
}

// ListByStatus filters the collection that can hold status.
func (s *Service) ListByStatus(ctx context.Context, status models.Status) ([]*models.Application, error) {
	if status == models.StatusApproved {
		return s.ListApproved(ctx)
	}
	apps, err := s.ListApplications(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]*models.Application, 0, len(apps))
	for _, app := range apps {
		if app.Status == status {
			filtered = append(filtered, app)
		}
	}
	return filtered, nil
}

// IsApproved is the approval gate used by the engagement ledger.
// Returns a not_found error when the provider does not exist.
func (s *Service) IsApproved(ctx context.Context, providerID id.ProviderID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "provider.IsApproved",
		trace.WithAttributes(attribute.String("provider.id", providerID.String())))
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveApprovalCheck(time.Now())
	}

	app, err := s.store.FindByID(ctx, providerID)
	if err != nil {
		return false, wrapStoreErr(err, "failed to check provider approval")
	}
	return app.IsApproved(), nil
}

// StatusCounts tallies both collections on every call, in one consistent read.
func (s *Service) StatusCounts(ctx context.Context) (models.StatusCounts, error) {
	ctx, span := s.tracer.Start(ctx, "provider.StatusCounts")
	defer span.End()

	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return counts, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count applications")
	}
	return counts, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, providerID id.ProviderID, reason string) {
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.Actor(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"provider_id", providerID.String(),
			"actor", actor,
			"request_id", requestID,
			"event", string(event),
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Subject:   providerID.String(),
		Action:    string(event),
		Reason:    reason,
		RequestID: requestID,
		ActorID:   actor,
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(event),
			"error", err,
			"request_id", requestID,
		)
	}
}

func (s *Service) logNoop(ctx context.Context, op string, app *models.Application) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, "provider transition ignored",
		"operation", op,
		"provider_id", app.ID.String(),
		"status", string(app.Status),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func wrapStoreErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "provider not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
