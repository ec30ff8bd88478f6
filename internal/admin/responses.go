package admin

import (
	"time"

	ledgermodels "mindlink/internal/ledger/models"
	providermodels "mindlink/internal/provider/models"
	audit "mindlink/pkg/platform/audit"
)

// DashboardResponse is the HTTP response DTO for the operator dashboard.
type DashboardResponse struct {
	Providers    providermodels.StatusCounts `json:"providers"`
	Ledger       ledgermodels.Totals         `json:"ledger"`
	TotalDonated string                      `json:"total_donated"`
	GeneratedAt  time.Time                   `json:"generated_at"`
}

// AuditListResponse wraps audit events for HTTP response.
type AuditListResponse struct {
	Events []audit.Event `json:"events"`
	Total  int           `json:"total"`
}
