package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mindlink/internal/provider/models"
	id "mindlink/pkg/domain"
	dErrors "mindlink/pkg/domain-errors"
	"mindlink/pkg/platform/httputil"
	"mindlink/pkg/requestcontext"
)

// Service defines the registry operations the HTTP layer needs.
type Service interface {
	Submit(ctx context.Context, req *models.SubmitApplicationRequest) (*models.Application, error)
	Approve(ctx context.Context, providerID id.ProviderID) (*models.Application, error)
	Reject(ctx context.Context, providerID id.ProviderID) (*models.Application, error)
	Delete(ctx context.Context, providerID id.ProviderID) error
	GetApplication(ctx context.Context, providerID id.ProviderID) (*models.Application, error)
	ListApplications(ctx context.Context) ([]*models.Application, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Application, error)
	StatusCounts(ctx context.Context) (models.StatusCounts, error)
}

// Handler handles provider registry endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type providerListResponse struct {
	Providers []*models.Application `json:"providers"`
	Count     int                   `json:"count"`
}

type applicationListResponse struct {
	Applications []*models.Application `json:"applications"`
	Counts       models.StatusCounts   `json:"counts"`
}

// Register registers the public registry routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/providers", h.handleSubmit)
	r.Get("/providers", h.handleList)
	r.Get("/providers/{id}", h.handleGet)
}

// RegisterAdmin registers the approval workflow routes. The caller applies admin auth.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/applications", h.handleListApplications)
	r.Get("/admin/applications/{id}", h.handleGetApplication)
	r.Post("/providers/{id}/approve", h.handleApprove)
	r.Post("/providers/{id}/reject", h.handleReject)
	r.Delete("/providers/{id}", h.handleDelete)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SubmitApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid submit application request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	app, err := h.service.Submit(ctx, &req)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to submit application")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, app)
}

// handleList serves the public directory: approved providers only.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	apps, err := h.service.ListByStatus(ctx, models.StatusApproved)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list providers")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, providerListResponse{Providers: apps, Count: len(apps)})
}

// handleGet serves one approved provider. Pending and rejected applications are
// reported as not found; admins read them through /admin/applications/{id}.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}

	app, err := h.service.GetApplication(ctx, providerID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to load provider")
		return
	}
	if !app.IsApproved() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "provider not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}

	app, err := h.service.GetApplication(ctx, providerID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to load application")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

// handleListApplications lists the applications collection, or one status across both
// collections when ?status= is set. Counts always cover every status.
func (h *Handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		apps []*models.Application
		err  error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, parseErr := models.ParseStatus(raw)
		if parseErr != nil {
			httputil.WriteError(w, parseErr)
			return
		}
		apps, err = h.service.ListByStatus(ctx, status)
	} else {
		apps, err = h.service.ListApplications(ctx)
	}
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list applications")
		return
	}
	counts, err := h.service.StatusCounts(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to count applications")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, applicationListResponse{Applications: apps, Counts: counts})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Approve, "failed to approve provider")
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reject, "failed to reject provider")
}

func (h *Handler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, id.ProviderID) (*models.Application, error),
	failure string,
) {
	ctx := r.Context()
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}

	app, err := apply(ctx, providerID)
	if err != nil {
		h.writeServiceError(ctx, w, err, failure)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, providerID); err != nil {
		h.writeServiceError(ctx, w, err, "failed to delete provider")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) providerID(w http.ResponseWriter, r *http.Request) (id.ProviderID, bool) {
	providerID, err := id.ParseProviderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ProviderID{}, false
	}
	return providerID, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	requestID := requestcontext.RequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
