package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"mindlink/internal/admin"
	"mindlink/internal/platform/config"
	"mindlink/internal/platform/jwt"
	"mindlink/internal/provider/models"
	"mindlink/pkg/testutil"
)

const (
	signingKey = "test-signing-key"
	issuer     = "mindlink-test"
	audience   = "mindlink-admin"
)

// ServerSuite drives the assembled router over in-memory backends. Metrics register
// on the default Prometheus registry, so the stack is assembled once per process.
type ServerSuite struct {
	suite.Suite
	router  http.Handler
	cleanup func()
	backend *backends
	token   string
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupSuite() {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Server{
		RequestTimeout: 5 * time.Second,
		Audit:          config.AuditConfig{BufferSize: 64},
		Auth: config.AuthConfig{
			JWTSigningKey: signingKey,
			Issuer:        issuer,
			Audience:      audience,
			TokenTTL:      time.Hour,
		},
		Ledger: config.LedgerConfig{
			MaxDonationCents: 100_000_000,
			IdempotencyTTL:   time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			SubmissionsLimit: 3,
			EngagementLimit:  50,
			Window:           time.Minute,
		},
	}

	b, err := openBackends(ctx, cfg, log)
	s.Require().NoError(err)
	s.backend = b

	router, cleanup, err := assemble(ctx, cfg, log, b)
	s.Require().NoError(err)
	s.router = router
	s.cleanup = cleanup

	token, err := jwt.NewService(signingKey, issuer, audience).GenerateAdminToken("ops@mindlink", time.Hour)
	s.Require().NoError(err)
	s.token = token
}

func (s *ServerSuite) TearDownSuite() {
	s.cleanup()
	s.backend.close()
}

func (s *ServerSuite) do(req *http.Request, ip string) *http.Response {
	req.Header.Set("X-Real-IP", ip)
	return testutil.DoRequest(s.router, req).Result()
}

func (s *ServerSuite) submit(ip, name string) *models.Application {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/providers", map[string]string{
		"name": name, "description": "CBT and trauma", "experience": "8 years",
	})
	rr := testutil.DoRequest(s.router, withIP(req, ip))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[models.Application](s.T(), rr)
}

func withIP(req *http.Request, ip string) *http.Request {
	req.Header.Set("X-Real-IP", ip)
	return req
}

func (s *ServerSuite) TestHealth() {
	req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/health", nil)
	rr := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusOK, rr.Code)
	s.NotEmpty(rr.Header().Get("X-Request-ID"))
}

func (s *ServerSuite) TestProviderLifecycleGatesEngagement() {
	t := s.T()
	app := s.submit("10.0.0.1", "Dr. Rivera")
	s.Equal(models.StatusPending, app.Status)

	// Pending providers cannot collect testimonials.
	req := testutil.NewJSONRequest(t, http.MethodPost, "/providers/"+app.ID.String()+"/testimonials",
		map[string]any{"patient_name": "Sam", "patient_age": 31})
	rr := testutil.DoRequest(s.router, withIP(req, "10.0.0.1"))
	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "not_approved")

	// Approval requires an admin token.
	req = testutil.NewJSONRequest(t, http.MethodPost, "/providers/"+app.ID.String()+"/approve", nil)
	rr = testutil.DoRequest(s.router, withIP(req, "10.0.0.1"))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")

	req = testutil.NewJSONRequest(t, http.MethodPost, "/providers/"+app.ID.String()+"/approve", nil)
	rr = testutil.DoRequest(s.router, withIP(testutil.WithBearer(req, s.token), "10.0.0.1"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	approved := testutil.UnmarshalResponse[models.Application](t, rr)
	s.Equal(models.StatusApproved, approved.Status)

	req = testutil.NewJSONRequest(t, http.MethodPost, "/providers/"+app.ID.String()+"/testimonials",
		map[string]any{"patient_name": "Sam", "patient_age": 31})
	rr = testutil.DoRequest(s.router, withIP(req, "10.0.0.1"))
	s.Equal(http.StatusCreated, rr.Code, rr.Body.String())

	req = testutil.NewJSONRequest(t, http.MethodPost, "/providers/"+app.ID.String()+"/stories",
		map[string]string{"title": "Back to work", "content": "Six months later..."})
	rr = testutil.DoRequest(s.router, withIP(req, "10.0.0.1"))
	s.Equal(http.StatusCreated, rr.Code, rr.Body.String())

	// Deleting the provider closes the gate again.
	req = testutil.NewJSONRequest(t, http.MethodDelete, "/providers/"+app.ID.String(), nil)
	rr = testutil.DoRequest(s.router, withIP(testutil.WithBearer(req, s.token), "10.0.0.1"))
	s.Equal(http.StatusNoContent, rr.Code, rr.Body.String())

	req = testutil.NewJSONRequest(t, http.MethodPost, "/providers/"+app.ID.String()+"/stories",
		map[string]string{"title": "Again", "content": "..."})
	rr = testutil.DoRequest(s.router, withIP(req, "10.0.0.1"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	// Every transition reaches the audit trail through the async buffer.
	assert.Eventually(t, func() bool {
		req := testutil.NewJSONRequest(t, http.MethodGet, "/admin/audit?subject="+app.ID.String(), nil)
		rr := testutil.DoRequest(s.router, testutil.WithBearer(req, s.token))
		if rr.Code != http.StatusOK {
			return false
		}
		resp := testutil.UnmarshalResponse[admin.AuditListResponse](t, rr)
		return resp.Total >= 3
	}, 2*time.Second, 20*time.Millisecond)
}

func (s *ServerSuite) TestIdempotentDonationAndDashboard() {
	t := s.T()
	body := map[string]any{
		"amount_cents": 2500, "campaign_title": "Winter Appeal", "user_name": "Ana", "is_anonymous": false,
	}

	req := testutil.NewJSONRequest(t, http.MethodPost, "/donations", body)
	req.Header.Set("Idempotency-Key", "checkout-123")
	first := testutil.DoRequest(s.router, withIP(req, "10.0.0.2"))
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	req = testutil.NewJSONRequest(t, http.MethodPost, "/donations", body)
	req.Header.Set("Idempotency-Key", "checkout-123")
	replay := testutil.DoRequest(s.router, withIP(req, "10.0.0.2"))
	s.Equal(http.StatusOK, replay.Code, replay.Body.String())
	s.Equal("true", replay.Header().Get("Idempotent-Replayed"))

	req = testutil.NewJSONRequest(t, http.MethodGet, "/campaigns/Winter%20Appeal/donations", nil)
	rr := testutil.DoRequest(s.router, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	list := testutil.UnmarshalResponse[struct {
		Count int `json:"count"`
	}](t, rr)
	s.Equal(1, list.Count)

	req = testutil.NewJSONRequest(t, http.MethodGet, "/dashboard", nil)
	rr = testutil.DoRequest(s.router, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	dash := testutil.UnmarshalResponse[admin.DashboardResponse](t, rr)
	s.GreaterOrEqual(dash.Ledger.DonationsCents, int64(2500))
	s.GreaterOrEqual(dash.Ledger.Campaigns, 1)
}

func (s *ServerSuite) TestSubmissionsAreRateLimitedPerClient() {
	t := s.T()
	for i := 0; i < 3; i++ {
		s.submit("10.0.0.9", "Dr. Okafor")
	}

	req := testutil.NewJSONRequest(t, http.MethodPost, "/providers", map[string]string{
		"name": "Dr. Okafor", "description": "Family therapy", "experience": "4 years",
	})
	resp := s.do(req, "10.0.0.9")
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.NotEmpty(resp.Header.Get("Retry-After"))
	s.Equal("0", resp.Header.Get("X-RateLimit-Remaining"))

	// Reads and other clients are unaffected.
	resp = s.do(testutil.NewJSONRequest(t, http.MethodGet, "/providers", nil), "10.0.0.9")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.submit("10.0.0.10", "Dr. Okafor")
}
