package models

import (
	"fmt"
	"time"

	id "mindlink/pkg/domain"
)

// AnonymousDonor is shown in place of the donor name for anonymous donations.
const AnonymousDonor = "Anonymous"

// Donation is an immutable record of money given to a campaign.
// AmountCents is always positive.
type Donation struct {
	ID            id.DonationID `json:"id"`
	AmountCents   int64         `json:"amount_cents"`
	CampaignTitle string        `json:"campaign_title"`
	UserName      string        `json:"user_name"`
	IsAnonymous   bool          `json:"is_anonymous"`
	Date          time.Time     `json:"date"`
}

// DisplayName is the donor name safe to render publicly.
func (d *Donation) DisplayName() string {
	if d.IsAnonymous || d.UserName == "" {
		return AnonymousDonor
	}
	return d.UserName
}

// Testimonial is a patient's endorsement of an approved provider.
type Testimonial struct {
	ID          id.TestimonialID `json:"id"`
	ProviderID  id.ProviderID    `json:"provider_id"`
	PatientName string           `json:"patient_name"`
	PatientAge  int              `json:"patient_age"`
	CreatedAt   time.Time        `json:"created_at"`
}

// SuccessStory belongs to the ordered story sequence of one provider.
type SuccessStory struct {
	ID         id.StoryID    `json:"id"`
	ProviderID id.ProviderID `json:"provider_id"`
	Title      string        `json:"title"`
	Content    string        `json:"content"`
	CreatedAt  time.Time     `json:"created_at"`
}

// CampaignSummary aggregates the donations of one campaign.
type CampaignSummary struct {
	CampaignTitle string `json:"campaign_title"`
	TotalCents    int64  `json:"total_cents"`
	Count         int    `json:"count"`
	AverageCents  int64  `json:"average_cents"`
}

// Add folds one donation into the summary.
func (c *CampaignSummary) Add(d *Donation) {
	c.TotalCents += d.AmountCents
	c.Count++
	c.AverageCents = c.TotalCents / int64(c.Count)
}

// ProviderEngagement counts the ledger entries written against one provider.
type ProviderEngagement struct {
	ProviderID   id.ProviderID `json:"provider_id"`
	Testimonials int           `json:"testimonials"`
	Stories      int           `json:"stories"`
}

// Totals is the ledger side of the dashboard.
type Totals struct {
	DonationsCents int64 `json:"donations_cents"`
	Donations      int   `json:"donations"`
	Campaigns      int   `json:"campaigns"`
	Testimonials   int   `json:"testimonials"`
}

// FormatCents renders minor units as a decimal amount, e.g. 7550 -> "75.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
