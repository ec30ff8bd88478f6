package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"mindlink/internal/ledger/models"
	id "mindlink/pkg/domain"
	dErrors "mindlink/pkg/domain-errors"
	"mindlink/pkg/platform/httputil"
	"mindlink/pkg/requestcontext"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

// Service defines the ledger operations the HTTP layer needs.
type Service interface {
	RecordDonationOnce(ctx context.Context, key string, req *models.RecordDonationRequest) (*models.Donation, bool, error)
	AddTestimonial(ctx context.Context, req *models.AddTestimonialRequest) (*models.Testimonial, error)
	AddSuccessStory(ctx context.Context, req *models.AddSuccessStoryRequest) (*models.SuccessStory, error)
	TotalDonations(ctx context.Context) (int64, error)
	ListDonations(ctx context.Context) ([]*models.Donation, error)
	DonationsForCampaign(ctx context.Context, campaignTitle string) ([]*models.Donation, error)
	CampaignSummary(ctx context.Context, campaignTitle string) (models.CampaignSummary, error)
	CampaignSummaries(ctx context.Context) ([]models.CampaignSummary, error)
	ListTestimonials(ctx context.Context) ([]*models.Testimonial, error)
	StoriesForProvider(ctx context.Context, providerID id.ProviderID) ([]*models.SuccessStory, error)
	ProviderEngagement(ctx context.Context, providerID id.ProviderID) (models.ProviderEngagement, error)
}

// Handler handles engagement ledger endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// donationResponse hides the donor name of anonymous donations.
type donationResponse struct {
	ID            id.DonationID `json:"id"`
	AmountCents   int64         `json:"amount_cents"`
	Amount        string        `json:"amount"`
	CampaignTitle string        `json:"campaign_title"`
	Donor         string        `json:"donor"`
	IsAnonymous   bool          `json:"is_anonymous"`
	Date          time.Time     `json:"date"`
}

type donationListResponse struct {
	Donations []donationResponse `json:"donations"`
	Count     int                `json:"count"`
}

type totalResponse struct {
	TotalCents int64  `json:"total_cents"`
	Total      string `json:"total"`
}

type campaignListResponse struct {
	Campaigns []models.CampaignSummary `json:"campaigns"`
}

type testimonialListResponse struct {
	Testimonials []*models.Testimonial `json:"testimonials"`
}

type storyListResponse struct {
	Stories []*models.SuccessStory `json:"stories"`
}

func toDonationResponse(d *models.Donation) donationResponse {
	return donationResponse{
		ID:            d.ID,
		AmountCents:   d.AmountCents,
		Amount:        models.FormatCents(d.AmountCents),
		CampaignTitle: d.CampaignTitle,
		Donor:         d.DisplayName(),
		IsAnonymous:   d.IsAnonymous,
		Date:          d.Date,
	}
}

func toDonationList(donations []*models.Donation) donationListResponse {
	out := make([]donationResponse, 0, len(donations))
	for _, d := range donations {
		out = append(out, toDonationResponse(d))
	}
	return donationListResponse{Donations: out, Count: len(out)}
}

// Register registers the public ledger routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/donations", h.handleRecordDonation)
	r.Get("/donations", h.handleListDonations)
	r.Get("/donations/total", h.handleTotal)
	r.Get("/campaigns", h.handleListCampaigns)
	r.Get("/campaigns/{title}/donations", h.handleCampaignDonations)
	r.Get("/campaigns/{title}/summary", h.handleCampaignSummary)
	r.Post("/providers/{id}/testimonials", h.handleAddTestimonial)
	r.Get("/testimonials", h.handleListTestimonials)
	r.Post("/providers/{id}/stories", h.handleAddStory)
	r.Get("/providers/{id}/stories", h.handleListStories)
	r.Get("/providers/{id}/engagement", h.handleEngagement)
}

func (h *Handler) handleRecordDonation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RecordDonationRequest
	if !h.decode(w, r, &req) {
		return
	}

	d, replayed, err := h.service.RecordDonationOnce(ctx, r.Header.Get(headerIdempotencyKey), &req)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to record donation")
		return
	}
	if replayed {
		w.Header().Set(headerReplayed, "true")
		httputil.WriteJSON(w, http.StatusOK, toDonationResponse(d))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDonationResponse(d))
}

func (h *Handler) handleListDonations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donations, err := h.service.ListDonations(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list donations")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDonationList(donations))
}

func (h *Handler) handleTotal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	total, err := h.service.TotalDonations(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to total donations")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, totalResponse{TotalCents: total, Total: models.FormatCents(total)})
}

func (h *Handler) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summaries, err := h.service.CampaignSummaries(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list campaigns")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, campaignListResponse{Campaigns: summaries})
}

func (h *Handler) handleCampaignDonations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	title, ok := h.campaignTitle(w, r)
	if !ok {
		return
	}
	donations, err := h.service.DonationsForCampaign(ctx, title)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list campaign donations")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDonationList(donations))
}

func (h *Handler) handleCampaignSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	title, ok := h.campaignTitle(w, r)
	if !ok {
		return
	}
	summary, err := h.service.CampaignSummary(ctx, title)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to summarize campaign")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAddTestimonial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}

	var req models.AddTestimonialRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ProviderID = providerID

	t, err := h.service.AddTestimonial(ctx, &req)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to add testimonial")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleListTestimonials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	testimonials, err := h.service.ListTestimonials(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list testimonials")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, testimonialListResponse{Testimonials: testimonials})
}

func (h *Handler) handleAddStory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}

	var req models.AddSuccessStoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ProviderID = providerID

	story, err := h.service.AddSuccessStory(ctx, &req)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to add success story")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, story)
}

func (h *Handler) handleListStories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}
	stories, err := h.service.StoriesForProvider(ctx, providerID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list success stories")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, storyListResponse{Stories: stories})
}

func (h *Handler) handleEngagement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}
	engagement, err := h.service.ProviderEngagement(ctx, providerID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to load provider engagement")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, engagement)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", requestcontext.RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

func (h *Handler) providerID(w http.ResponseWriter, r *http.Request) (id.ProviderID, bool) {
	providerID, err := id.ParseProviderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ProviderID{}, false
	}
	return providerID, true
}

// campaignTitle reads the {title} segment. chi matches on RawPath when the request
// carries one (e.g. an escaped "/"), and then the segment is still escaped.
func (h *Handler) campaignTitle(w http.ResponseWriter, r *http.Request) (string, bool) {
	title := chi.URLParam(r, "title")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(title)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "campaign title is malformed"))
			return "", false
		}
		title = unescaped
	}
	if title == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "campaign title is malformed"))
		return "", false
	}
	return title, true
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
