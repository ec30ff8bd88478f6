package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "mindlink/pkg/domain-errors"
	"mindlink/pkg/platform/httputil"
	"mindlink/pkg/requestcontext"
)

// Handler serves the dashboard and the admin audit trail.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the public dashboard route.
func (h *Handler) Register(r chi.Router) {
	r.Get("/dashboard", h.handleDashboard)
}

// RegisterAdmin registers routes that must sit behind admin authentication.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/audit", h.handleAudit)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, err := h.service.Dashboard(ctx)
	if err != nil {
		h.writeError(ctx, w, err, "failed to build dashboard")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	resp, err := h.service.AuditTrail(ctx, r.URL.Query().Get("subject"), limit)
	if err != nil {
		h.writeError(ctx, w, err, "failed to read audit trail")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"actor", requestcontext.Actor(ctx),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}
