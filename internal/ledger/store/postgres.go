package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mindlink/internal/ledger/models"
	id "mindlink/pkg/domain"
	"mindlink/pkg/platform/sentinel"
)

// PostgresStore keeps ledger records in the donations, testimonials and
// success_stories tables. The seq column preserves insertion order.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const donationColumns = `id, amount_cents, campaign_title, user_name, is_anonymous, created_at`

func (s *PostgresStore) AppendDonation(ctx context.Context, d *models.Donation) error {
	query := `
		INSERT INTO donations (id, amount_cents, campaign_title, user_name, is_anonymous, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID.String(),
		d.AmountCents,
		d.CampaignTitle,
		d.UserName,
		d.IsAnonymous,
		d.Date,
	)
	if err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindDonation(ctx context.Context, donationID id.DonationID) (*models.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE id = $1`
	d, err := scanDonation(s.db.QueryRowContext(ctx, query, donationID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find donation: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListDonations(ctx context.Context) ([]*models.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query donations: %w", err)
	}
	return collect(rows, scanDonation)
}

func (s *PostgresStore) ListDonationsByCampaign(ctx context.Context, campaignTitle string) ([]*models.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE campaign_title = $1 ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, query, campaignTitle)
	if err != nil {
		return nil, fmt.Errorf("query campaign donations: %w", err)
	}
	return collect(rows, scanDonation)
}

func (s *PostgresStore) AppendTestimonial(ctx context.Context, t *models.Testimonial) error {
	query := `
		INSERT INTO testimonials (id, provider_id, patient_name, patient_age, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID.String(),
		t.ProviderID.String(),
		t.PatientName,
		t.PatientAge,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert testimonial: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTestimonials(ctx context.Context) ([]*models.Testimonial, error) {
	query := `
		SELECT id, provider_id, patient_name, patient_age, created_at
		FROM testimonials
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query testimonials: %w", err)
	}
	return collect(rows, scanTestimonial)
}

func (s *PostgresStore) AppendStory(ctx context.Context, story *models.SuccessStory) error {
	query := `
		INSERT INTO success_stories (id, provider_id, title, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		story.ID.String(),
		story.ProviderID.String(),
		story.Title,
		story.Content,
		story.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert success story: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListStoriesByProvider(ctx context.Context, providerID id.ProviderID) ([]*models.SuccessStory, error) {
	query := `
		SELECT id, provider_id, title, content, created_at
		FROM success_stories
		WHERE provider_id = $1
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, providerID.String())
	if err != nil {
		return nil, fmt.Errorf("query success stories: %w", err)
	}
	return collect(rows, scanStory)
}

// Totals computes the dashboard figures in one statement, so they share a snapshot.
func (s *PostgresStore) Totals(ctx context.Context) (models.Totals, error) {
	query := `
		SELECT
			COALESCE((SELECT SUM(amount_cents) FROM donations), 0),
			(SELECT COUNT(*) FROM donations),
			(SELECT COUNT(DISTINCT campaign_title) FROM donations),
			(SELECT COUNT(*) FROM testimonials)
	`
	var totals models.Totals
	err := s.db.QueryRowContext(ctx, query).Scan(
		&totals.DonationsCents,
		&totals.Donations,
		&totals.Campaigns,
		&totals.Testimonials,
	)
	if err != nil {
		return models.Totals{}, fmt.Errorf("query ledger totals: %w", err)
	}
	return totals, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collect[T any](rows *sql.Rows, scan func(rowScanner) (*T, error)) ([]*T, error) {
	defer rows.Close()

	out := []*T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return out, nil
}

func scanDonation(row rowScanner) (*models.Donation, error) {
	var (
		d     models.Donation
		rawID string
	)
	if err := row.Scan(&rawID, &d.AmountCents, &d.CampaignTitle, &d.UserName, &d.IsAnonymous, &d.Date); err != nil {
		return nil, err
	}
	donationID, err := id.ParseDonationID(rawID)
	if err != nil {
		return nil, err
	}
	d.ID = donationID
	return &d, nil
}

func scanTestimonial(row rowScanner) (*models.Testimonial, error) {
	var (
		t          models.Testimonial
		rawID      string
		providerID string
	)
	if err := row.Scan(&rawID, &providerID, &t.PatientName, &t.PatientAge, &t.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if t.ID, err = id.ParseTestimonialID(rawID); err != nil {
		return nil, err
	}
	if t.ProviderID, err = id.ParseProviderID(providerID); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanStory(row rowScanner) (*models.SuccessStory, error) {
	var (
		story      models.SuccessStory
		rawID      string
		providerID string
	)
	if err := row.Scan(&rawID, &providerID, &story.Title, &story.Content, &story.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if story.ID, err = id.ParseStoryID(rawID); err != nil {
		return nil, err
	}
	if story.ProviderID, err = id.ParseProviderID(providerID); err != nil {
		return nil, err
	}
	return &story, nil
}
