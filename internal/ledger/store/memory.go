// Package store persists ledger records: the donation history with its per-campaign
// buckets, the testimonial sequence, and per-provider story sequences.
package store

import (
	"context"
	"sync"

	"mindlink/internal/ledger/models"
	id "mindlink/pkg/domain"
	"mindlink/pkg/platform/sentinel"
)

// InMemory guards every ledger collection with one lock.
type InMemory struct {
	mu           sync.RWMutex
	donations    []*models.Donation
	campaigns    map[string][]*models.Donation
	testimonials []*models.Testimonial
	stories      map[id.ProviderID][]*models.SuccessStory
}

func NewInMemory() *InMemory {
	return &InMemory{
		campaigns: make(map[string][]*models.Donation),
		stories:   make(map[id.ProviderID][]*models.SuccessStory),
	}
}

// AppendDonation adds to the global history and to the campaign bucket, creating the
// bucket on the campaign's first donation.
func (s *InMemory) AppendDonation(_ context.Context, d *models.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *d
	s.donations = append(s.donations, &stored)
	s.campaigns[d.CampaignTitle] = append(s.campaigns[d.CampaignTitle], &stored)
	return nil
}

func (s *InMemory) FindDonation(_ context.Context, donationID id.DonationID) (*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.donations {
		if d.ID == donationID {
			c := *d
			return &c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListDonations(_ context.Context) ([]*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyAll(s.donations), nil
}

func (s *InMemory) ListDonationsByCampaign(_ context.Context, campaignTitle string) ([]*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyAll(s.campaigns[campaignTitle]), nil
}

func (s *InMemory) AppendTestimonial(_ context.Context, t *models.Testimonial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *t
	s.testimonials = append(s.testimonials, &stored)
	return nil
}

func (s *InMemory) ListTestimonials(_ context.Context) ([]*models.Testimonial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyAll(s.testimonials), nil
}

func (s *InMemory) AppendStory(_ context.Context, story *models.SuccessStory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *story
	s.stories[story.ProviderID] = append(s.stories[story.ProviderID], &stored)
	return nil
}

func (s *InMemory) ListStoriesByProvider(_ context.Context, providerID id.ProviderID) ([]*models.SuccessStory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyAll(s.stories[providerID]), nil
}

// copyAll returns a non-nil slice of copies so callers cannot reach stored records.
// Totals reads every collection under one read lock.
func (s *InMemory) Totals(_ context.Context) (models.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := models.Totals{
		Donations:    len(s.donations),
		Campaigns:    len(s.campaigns),
		Testimonials: len(s.testimonials),
	}
	for _, d := range s.donations {
		totals.DonationsCents += d.AmountCents
	}
	return totals, nil
}

func copyAll[T any](src []*T) []*T {
	out := make([]*T, 0, len(src))
	for _, v := range src {
		c := *v
		out = append(out, &c)
	}
	return out
}
