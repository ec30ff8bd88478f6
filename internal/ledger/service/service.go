// Package service implements the engagement ledger: donations, testimonials and
// success stories. Writes against a provider are gated on the registry's approval
// state, read fresh on every call.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledgermetrics "mindlink/internal/ledger/metrics"
	"mindlink/internal/ledger/models"
	"mindlink/internal/ledger/ports"
	id "mindlink/pkg/domain"
	dErrors "mindlink/pkg/domain-errors"
	audit "mindlink/pkg/platform/audit"
	"mindlink/pkg/platform/sentinel"
	"mindlink/pkg/requestcontext"
)

// Store persists ledger records in insertion order.
type Store interface {
	AppendDonation(ctx context.Context, d *models.Donation) error
	FindDonation(ctx context.Context, donationID id.DonationID) (*models.Donation, error)
	ListDonations(ctx context.Context) ([]*models.Donation, error)
	ListDonationsByCampaign(ctx context.Context, campaignTitle string) ([]*models.Donation, error)
	AppendTestimonial(ctx context.Context, t *models.Testimonial) error
	ListTestimonials(ctx context.Context) ([]*models.Testimonial, error)
	AppendStory(ctx context.Context, story *models.SuccessStory) error
	ListStoriesByProvider(ctx context.Context, providerID id.ProviderID) ([]*models.SuccessStory, error)
	// Totals reads the dashboard figures in one consistent pass.
	Totals(ctx context.Context) (models.Totals, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the engagement ledger.
type Service struct {
	store            Store
	approvals        ports.ApprovalChecker
	idempotency      ports.IdempotencyStore
	idempotencyTTL   time.Duration
	maxDonationCents int64
	logger           *slog.Logger
	auditPublisher   AuditPublisher
	metrics          *ledgermetrics.Metrics
	tracer           trace.Tracer
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

func WithMetrics(m *ledgermetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithIdempotency enables Idempotency-Key handling for donation submission.
// A non-positive ttl keeps the 24h default.
func WithIdempotency(store ports.IdempotencyStore, ttl time.Duration) Option {
	return func(s *Service) {
		s.idempotency = store
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithMaxDonationCents caps a single donation. Zero disables the cap.
func WithMaxDonationCents(limit int64) Option {
	return func(s *Service) {
		s.maxDonationCents = limit
	}
}

func New(store Store, approvals ports.ApprovalChecker, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	if approvals == nil {
		return nil, errors.New("approval checker is required")
	}
	s := &Service{
		store:          store,
		approvals:      approvals,
		idempotencyTTL: 24 * time.Hour,
		tracer:         otel.Tracer("mindlink/internal/ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RecordDonation appends a donation to the global history and its campaign bucket.
func (s *Service) RecordDonation(ctx context.Context, req *models.RecordDonationRequest) (d *models.Donation, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.RecordDonation")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(s.maxDonationCents); err != nil {
		return nil, err
	}

	d = &models.Donation{
		ID:            id.NewDonationID(),
		AmountCents:   req.AmountCents,
		CampaignTitle: req.CampaignTitle,
		UserName:      req.UserName,
		IsAnonymous:   req.IsAnonymous,
		Date:          requestcontext.Now(ctx),
	}
	if err := s.store.AppendDonation(ctx, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record donation")
	}

	span.SetAttributes(
		attribute.String("donation.id", d.ID.String()),
		attribute.String("donation.campaign", d.CampaignTitle),
	)
	s.logAudit(ctx, audit.EventDonationRecorded, d.CampaignTitle, "donation "+d.ID.String())
	if s.metrics != nil {
		s.metrics.ObserveDonation(d.AmountCents)
	}
	return d, nil
}

// RecordDonationOnce records a donation at most once per idempotency key.
// A repeated key returns the donation the first request produced with replayed=true;
// a repeated key carrying a different body is a conflict.
// An empty key, or a service without an idempotency store, records unconditionally.
func (s *Service) RecordDonationOnce(ctx context.Context, key string, req *models.RecordDonationRequest) (d *models.Donation, replayed bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" || s.idempotency == nil || req == nil {
		d, err = s.RecordDonation(ctx, req)
		return d, false, err
	}

	req.Normalize()
	fingerprint := req.Fingerprint()
	reserved, existing, err := s.idempotency.Reserve(ctx, key, fingerprint, s.idempotencyTTL)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check idempotency key")
	}
	if !reserved {
		if existing.Fingerprint != "" && existing.Fingerprint != fingerprint {
			return nil, false, dErrors.New(dErrors.CodeConflict, "idempotency key was already used with a different request")
		}
		d, err = s.replay(ctx, existing.DonationID)
		return d, err == nil, err
	}

	d, err = s.RecordDonation(ctx, req)
	if err != nil {
		if releaseErr := s.idempotency.Release(ctx, key); releaseErr != nil {
			s.warn(ctx, "failed to release idempotency key", releaseErr)
		}
		return nil, false, err
	}
	done := ports.Reservation{Fingerprint: fingerprint, DonationID: d.ID.String()}
	if err := s.idempotency.Complete(ctx, key, done, s.idempotencyTTL); err != nil {
		s.warn(ctx, "failed to complete idempotency key", err)
	}
	return d, false, nil
}

func (s *Service) replay(ctx context.Context, donationID string) (*models.Donation, error) {
	if donationID == "" {
		return nil, dErrors.New(dErrors.CodeConflict, "a request with this idempotency key is still in progress")
	}
	parsed, err := id.ParseDonationID(donationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "corrupt idempotency record")
	}
	d, err := s.store.FindDonation(ctx, parsed)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeConflict, "idempotency key refers to an unknown donation")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donation")
	}
	s.logAudit(ctx, audit.EventDonationReplayed, d.CampaignTitle, "donation "+d.ID.String())
	if s.metrics != nil {
		s.metrics.IncrementReplayed()
	}
	return d, nil
}

// AddTestimonial appends a testimonial for an approved provider.
func (s *Service) AddTestimonial(ctx context.Context, req *models.AddTestimonialRequest) (t *models.Testimonial, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.AddTestimonial")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("provider.id", req.ProviderID.String()))
	if err := s.requireApproved(ctx, req.ProviderID); err != nil {
		return nil, err
	}

	t = &models.Testimonial{
		ID:          id.NewTestimonialID(),
		ProviderID:  req.ProviderID,
		PatientName: req.PatientName,
		PatientAge:  req.PatientAge,
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.store.AppendTestimonial(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add testimonial")
	}

	s.logAudit(ctx, audit.EventTestimonialAdded, t.ProviderID.String(), "")
	if s.metrics != nil {
		s.metrics.IncrementTestimonials()
	}
	return t, nil
}

// AddSuccessStory appends to the provider's story sequence.
func (s *Service) AddSuccessStory(ctx context.Context, req *models.AddSuccessStoryRequest) (story *models.SuccessStory, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.AddSuccessStory")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("provider.id", req.ProviderID.String()))
	if err := s.requireApproved(ctx, req.ProviderID); err != nil {
		return nil, err
	}

	story = &models.SuccessStory{
		ID:         id.NewStoryID(),
		ProviderID: req.ProviderID,
		Title:      req.Title,
		Content:    req.Content,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.store.AppendStory(ctx, story); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add success story")
	}

	s.logAudit(ctx, audit.EventSuccessStoryAdded, story.ProviderID.String(), "")
	if s.metrics != nil {
		s.metrics.IncrementStories()
	}
	return story, nil
}

// requireApproved asks the registry, never a cached answer.
func (s *Service) requireApproved(ctx context.Context, providerID id.ProviderID) error {
	approved, err := s.approvals.IsApproved(ctx, providerID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.gateRejected(string(dErrors.CodeNotFound))
			return dErrors.New(dErrors.CodeNotFound, "provider not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check provider approval")
	}
	if !approved {
		s.gateRejected(string(dErrors.CodeNotApproved))
		return dErrors.New(dErrors.CodeNotApproved, "provider is not approved")
	}
	return nil
}

// TotalDonations sums every recorded amount.
func (s *Service) TotalDonations(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.TotalDonations")
	defer span.End()

	donations, err := s.store.ListDonations(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donations")
	}
	var total int64
	for _, d := range donations {
		total += d.AmountCents
	}
	return total, nil
}

// ListDonations returns the global history in chronological order.
func (s *Service) ListDonations(ctx context.Context) ([]*models.Donation, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.ListDonations")
	defer span.End()

	donations, err := s.store.ListDonations(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donations")
	}
	return donations, nil
}

// DonationsForCampaign returns the campaign bucket, empty for an unknown campaign.
func (s *Service) DonationsForCampaign(ctx context.Context, campaignTitle string) ([]*models.Donation, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.DonationsForCampaign")
	defer span.End()

	donations, err := s.store.ListDonationsByCampaign(ctx, strings.TrimSpace(campaignTitle))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load campaign donations")
	}
	return donations, nil
}

// CampaignSummary aggregates one campaign. An unknown campaign has a zero summary.
func (s *Service) CampaignSummary(ctx context.Context, campaignTitle string) (models.CampaignSummary, error) {
	campaignTitle = strings.TrimSpace(campaignTitle)
	summary := models.CampaignSummary{CampaignTitle: campaignTitle}

	donations, err := s.DonationsForCampaign(ctx, campaignTitle)
	if err != nil {
		return summary, err
	}
	for _, d := range donations {
		summary.Add(d)
	}
	return summary, nil
}

// CampaignSummaries aggregates every campaign, ordered by first donation.
func (s *Service) CampaignSummaries(ctx context.Context) ([]models.CampaignSummary, error) {
	donations, err := s.ListDonations(ctx)
	if err != nil {
		return nil, err
	}
	return summarize(donations), nil
}

func summarize(donations []*models.Donation) []models.CampaignSummary {
	index := map[string]int{}
	summaries := []models.CampaignSummary{}
	for _, d := range donations {
		i, ok := index[d.CampaignTitle]
		if !ok {
			i = len(summaries)
			index[d.CampaignTitle] = i
			summaries = append(summaries, models.CampaignSummary{CampaignTitle: d.CampaignTitle})
		}
		summaries[i].Add(d)
	}
	return summaries
}

func (s *Service) ListTestimonials(ctx context.Context) ([]*models.Testimonial, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.ListTestimonials")
	defer span.End()

	testimonials, err := s.store.ListTestimonials(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load testimonials")
	}
	return testimonials, nil
}

// StoriesForProvider returns the provider's stories in insertion order, empty if none.
func (s *Service) StoriesForProvider(ctx context.Context, providerID id.ProviderID) ([]*models.SuccessStory, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.StoriesForProvider",
		trace.WithAttributes(attribute.String("provider.id", providerID.String())))
	defer span.End()

	stories, err := s.store.ListStoriesByProvider(ctx, providerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load success stories")
	}
	return stories, nil
}

// ProviderEngagement counts testimonials and stories recorded against a provider.
func (s *Service) ProviderEngagement(ctx context.Context, providerID id.ProviderID) (models.ProviderEngagement, error) {
	engagement := models.ProviderEngagement{ProviderID: providerID}

	testimonials, err := s.ListTestimonials(ctx)
	if err != nil {
		return engagement, err
	}
	for _, t := range testimonials {
		if t.ProviderID == providerID {
			engagement.Testimonials++
		}
	}
	stories, err := s.StoriesForProvider(ctx, providerID)
	if err != nil {
		return engagement, err
	}
	engagement.Stories = len(stories)
	return engagement, nil
}

// Totals is the ledger half of the dashboard, recomputed on every call.
func (s *Service) Totals(ctx context.Context) (models.Totals, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Totals")
	defer span.End()

	totals, err := s.store.Totals(ctx)
	if err != nil {
		return totals, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute ledger totals")
	}
	return totals, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, subject, reason string) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"subject", subject,
			"request_id", requestID,
			"event", string(event),
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Subject:   subject,
		Action:    string(event),
		Reason:    reason,
		RequestID: requestID,
		ActorID:   requestcontext.Actor(ctx),
	})
	if err != nil {
		s.warn(ctx, "failed to emit audit event", err)
	}
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) gateRejected(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementGateRejection(reason)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
