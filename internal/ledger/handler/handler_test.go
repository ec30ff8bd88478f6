package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindlink/internal/ledger/idempotency"
	"mindlink/internal/ledger/models"
	"mindlink/internal/ledger/service"
	"mindlink/internal/ledger/store"
	id "mindlink/pkg/domain"
	dErrors "mindlink/pkg/domain-errors"
	"mindlink/pkg/testutil"
)

// stubRegistry answers approval checks from a fixed map.
type stubRegistry struct {
	mu       sync.Mutex
	approved map[id.ProviderID]bool
}

func (r *stubRegistry) IsApproved(_ context.Context, providerID id.ProviderID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	approved, ok := r.approved[providerID]
	if !ok {
		return false, dErrors.New(dErrors.CodeNotFound, "provider not found")
	}
	return approved, nil
}

func (r *stubRegistry) set(providerID id.ProviderID, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approved[providerID] = approved
}

func newLedgerRouter(t *testing.T) (http.Handler, *stubRegistry) {
	t.Helper()
	registry := &stubRegistry{approved: map[id.ProviderID]bool{}}
	svc, err := service.New(store.NewInMemory(), registry,
		service.WithIdempotency(idempotency.NewInMemory(), time.Hour),
		service.WithMaxDonationCents(100_000_000),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r, registry
}

func donate(t *testing.T, router http.Handler, amount int64, campaign, user string, anonymous bool) *donationResponse {
	t.Helper()
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/donations", map[string]any{
		"amount_cents":   amount,
		"campaign_title": campaign,
		"user_name":      user,
		"is_anonymous":   anonymous,
	}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[donationResponse](t, rr)
}

func TestRecordDonationAndTotals(t *testing.T) {
	router, _ := newLedgerRouter(t)

	first := donate(t, router, 5000, "A", "alice", false)
	assert.Equal(t, "50.00", first.Amount)
	assert.Equal(t, "alice", first.Donor)
	donate(t, router, 2500, "A", "bob", true)
	donate(t, router, 1000, "Winter Drive", "carol", false)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/donations/total", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	total := testutil.UnmarshalResponse[totalResponse](t, rr)
	assert.Equal(t, int64(8500), total.TotalCents)
	assert.Equal(t, "85.00", total.Total)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/donations", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	list := testutil.UnmarshalResponse[donationListResponse](t, rr)
	require.Equal(t, 3, list.Count)
	assert.Equal(t, models.AnonymousDonor, list.Donations[1].Donor)
	assert.NotContains(t, rr.Body.String(), "bob")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/campaigns/A/donations", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, testutil.UnmarshalResponse[donationListResponse](t, rr).Count)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/campaigns/Winter%20Drive/summary", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	summary := testutil.UnmarshalResponse[models.CampaignSummary](t, rr)
	assert.Equal(t, models.CampaignSummary{CampaignTitle: "Winter Drive", TotalCents: 1000, Count: 1, AverageCents: 1000}, *summary)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/campaigns", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	campaigns := testutil.UnmarshalResponse[campaignListResponse](t, rr)
	require.Len(t, campaigns.Campaigns, 2)
	assert.Equal(t, "A", campaigns.Campaigns[0].CampaignTitle)
}

func TestUnknownCampaignIsEmpty(t *testing.T) {
	router, _ := newLedgerRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/campaigns/nobody/donations", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	list := testutil.UnmarshalResponse[donationListResponse](t, rr)
	assert.Equal(t, 0, list.Count)
	assert.NotNil(t, list.Donations)
}

func TestCampaignTitlesWithEscapes(t *testing.T) {
	router, _ := newLedgerRouter(t)
	donate(t, router, 1000, "100% Recovery", "alice", false)
	donate(t, router, 2000, "Fund %41", "bob", false)
	donate(t, router, 4000, "Fund A", "carol", false)
	donate(t, router, 3000, "Mind/Body", "dana", false)

	tests := []struct {
		path  string
		title string
		total int64
	}{
		{"/campaigns/100%25%20Recovery/summary", "100% Recovery", 1000},
		{"/campaigns/Fund%20%2541/summary", "Fund %41", 2000},
		{"/campaigns/Fund%20A/summary", "Fund A", 4000},
		{"/campaigns/Mind%2FBody/summary", "Mind/Body", 3000},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, tt.path, nil))
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			summary := testutil.UnmarshalResponse[models.CampaignSummary](t, rr)
			assert.Equal(t, tt.title, summary.CampaignTitle)
			assert.Equal(t, tt.total, summary.TotalCents)
			assert.Equal(t, 1, summary.Count)
		})
	}

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/campaigns/100%25%20Recovery/donations", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, testutil.UnmarshalResponse[donationListResponse](t, rr).Count)
}

func TestRecordDonationValidation(t *testing.T) {
	router, _ := newLedgerRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/donations", map[string]any{
		"amount_cents":   0,
		"campaign_title": "A",
		"user_name":      "alice",
	}))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")

	rr = testutil.DoRequest(router, testutil.NewRequestWithBody(t, http.MethodPost, "/donations", "{"))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/donations/total", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(0), testutil.UnmarshalResponse[totalResponse](t, rr).TotalCents)
}

func TestIdempotentDonation(t *testing.T) {
	router, _ := newLedgerRouter(t)
	body := map[string]any{"amount_cents": 1500, "campaign_title": "A", "user_name": "alice"}

	req := testutil.NewJSONRequest(t, http.MethodPost, "/donations", body)
	req.Header.Set("Idempotency-Key", "form-42")
	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusCreated, rr.Code)
	first := testutil.UnmarshalResponse[donationResponse](t, rr)

	req = testutil.NewJSONRequest(t, http.MethodPost, "/donations", body)
	req.Header.Set("Idempotency-Key", "form-42")
	rr = testutil.DoRequest(router, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", rr.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first.ID, testutil.UnmarshalResponse[donationResponse](t, rr).ID)

	// same key, different amount
	req = testutil.NewJSONRequest(t, http.MethodPost, "/donations",
		map[string]any{"amount_cents": 9900, "campaign_title": "A", "user_name": "alice"})
	req.Header.Set("Idempotency-Key", "form-42")
	rr = testutil.DoRequest(router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/donations/total", nil))
	assert.Equal(t, int64(1500), testutil.UnmarshalResponse[totalResponse](t, rr).TotalCents)
}

func TestTestimonialGate(t *testing.T) {
	router, registry := newLedgerRouter(t)
	approved := id.NewProviderID()
	pending := id.NewProviderID()
	registry.set(approved, true)
	registry.set(pending, false)
	body := map[string]any{"patient_name": "Sam", "patient_age": 30}

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/providers/"+approved.String()+"/testimonials", body))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := testutil.UnmarshalResponse[models.Testimonial](t, rr)
	assert.Equal(t, approved, created.ProviderID)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/providers/"+pending.String()+"/testimonials", body))
	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "not_approved")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/providers/"+id.NewProviderID().String()+"/testimonials", body))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/providers/not-a-uuid/testimonials", body))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/testimonials", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, testutil.UnmarshalResponse[testimonialListResponse](t, rr).Testimonials, 1)
}

func TestStoriesAndEngagement(t *testing.T) {
	router, registry := newLedgerRouter(t)
	providerID := id.NewProviderID()
	registry.set(providerID, true)
	base := "/providers/" + providerID.String()

	for _, title := range []string{"First", "Second"} {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, base+"/stories",
			map[string]string{"title": title, "content": "It helped."}))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, base+"/stories",
		map[string]string{"title": "", "content": "It helped."}))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, base+"/stories", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	stories := testutil.UnmarshalResponse[storyListResponse](t, rr).Stories
	require.Len(t, stories, 2)
	assert.Equal(t, "First", stories[0].Title)
	assert.Equal(t, "Second", stories[1].Title)

	// a provider that lost approval keeps its history readable
	registry.set(providerID, false)
	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, base+"/engagement", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	engagement := testutil.UnmarshalResponse[models.ProviderEngagement](t, rr)
	assert.Equal(t, 2, engagement.Stories)
	assert.Equal(t, 0, engagement.Testimonials)
}
