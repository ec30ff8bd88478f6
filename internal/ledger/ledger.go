package ledger

import (
	"log/slog"

	"mindlink/internal/ledger/handler"
	"mindlink/internal/ledger/ports"
	"mindlink/internal/ledger/service"
)

// Service exposes the engagement ledger.
type Service = service.Service

// Handler wires HTTP endpoints to the ledger service.
type Handler = handler.Handler

// NewService constructs the ledger over store, gated by the registry's approval checker.
func NewService(store service.Store, approvals ports.ApprovalChecker, opts ...service.Option) (*Service, error) {
	return service.New(store, approvals, opts...)
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
