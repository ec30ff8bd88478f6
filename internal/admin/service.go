// Package admin serves the operator views that span both the provider registry
// and the engagement ledger: the dashboard and the audit trail.
package admin

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	ledgermodels "mindlink/internal/ledger/models"
	providermodels "mindlink/internal/provider/models"
	dErrors "mindlink/pkg/domain-errors"
	audit "mindlink/pkg/platform/audit"
	"mindlink/pkg/requestcontext"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// RegistryStats is the registry half of the dashboard.
type RegistryStats interface {
	StatusCounts(ctx context.Context) (providermodels.StatusCounts, error)
}

// LedgerStats is the ledger half of the dashboard.
type LedgerStats interface {
	Totals(ctx context.Context) (ledgermodels.Totals, error)
}

// AuditReader reads back emitted audit events.
type AuditReader interface {
	List(ctx context.Context, subject string) ([]audit.Event, error)
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

type Service struct {
	registry RegistryStats
	ledger   LedgerStats
	audit    AuditReader
}

func NewService(registry RegistryStats, ledger LedgerStats, auditReader AuditReader) (*Service, error) {
	if registry == nil || ledger == nil {
		return nil, errors.New("registry and ledger stats are required")
	}
	if auditReader == nil {
		return nil, errors.New("audit reader is required")
	}
	return &Service{registry: registry, ledger: ledger, audit: auditReader}, nil
}

// Dashboard reads registry counts and ledger totals in parallel. Both are recomputed
// by their owners on every call; the first failure cancels the other read.
func (s *Service) Dashboard(ctx context.Context) (*DashboardResponse, error) {
	g, gctx := errgroup.WithContext(ctx)
	resp := &DashboardResponse{GeneratedAt: requestcontext.Now(ctx)}

	g.Go(func() error {
		counts, err := s.registry.StatusCounts(gctx)
		if err != nil {
			return err
		}
		resp.Providers = counts
		return nil
	})
	g.Go(func() error {
		totals, err := s.ledger.Totals(gctx)
		if err != nil {
			return err
		}
		resp.Ledger = totals
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	resp.TotalDonated = ledgermodels.FormatCents(resp.Ledger.DonationsCents)
	return resp, nil
}

// AuditTrail returns the events for subject, or the most recent limit events when
// subject is empty. A non-positive limit means the default.
func (s *Service) AuditTrail(ctx context.Context, subject string, limit int) (*AuditListResponse, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		return nil, dErrors.New(dErrors.CodeValidation, "limit must not exceed 1000")
	}

	var (
		events []audit.Event
		err    error
	)
	if subject != "" {
		events, err = s.audit.List(ctx, subject)
		if len(events) > limit {
			events = events[len(events)-limit:]
		}
	} else {
		events, err = s.audit.Recent(ctx, limit)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail")
	}
	if events == nil {
		events = []audit.Event{}
	}
	return &AuditListResponse{Events: events, Total: len(events)}, nil
}
