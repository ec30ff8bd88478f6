package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindlink/internal/ledger/models"
	id "mindlink/pkg/domain"
	"mindlink/pkg/platform/sentinel"
)

func newMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

var donationCols = []string{"id", "amount_cents", "campaign_title", "user_name", "is_anonymous", "created_at"}

func TestPostgresAppendDonation(t *testing.T) {
	store, mock := newMock(t)
	d := &models.Donation{
		ID:            id.NewDonationID(),
		AmountCents:   5000,
		CampaignTitle: "Campaign A",
		UserName:      "Alice",
		Date:          time.Now().UTC(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO donations")).
		WithArgs(d.ID.String(), int64(5000), "Campaign A", "Alice", false, d.Date).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.AppendDonation(context.Background(), d))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO donations")).
		WillReturnError(errors.New("connection reset"))
	err := store.AppendDonation(context.Background(), d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert donation")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListDonationsByCampaign(t *testing.T) {
	store, mock := newMock(t)
	first, second := id.NewDonationID(), id.NewDonationID()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE campaign_title = $1 ORDER BY seq ASC")).
		WithArgs("Campaign A").
		WillReturnRows(sqlmock.NewRows(donationCols).
			AddRow(first.String(), int64(5000), "Campaign A", "Alice", false, now).
			AddRow(second.String(), int64(2500), "Campaign A", "Bob", true, now))

	list, err := store.ListDonationsByCampaign(context.Background(), "Campaign A")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.True(t, list[1].IsAnonymous)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindDonationNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM donations WHERE id = $1")).WillReturnError(sql.ErrNoRows)

	_, err := store.FindDonation(context.Background(), id.NewDonationID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStories(t *testing.T) {
	store, mock := newMock(t)
	pid := id.NewProviderID()
	story := &models.SuccessStory{ID: id.NewStoryID(), ProviderID: pid, Title: "T", Content: "C", CreatedAt: time.Now().UTC()}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO success_stories")).
		WithArgs(story.ID.String(), pid.String(), "T", "C", story.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.AppendStory(context.Background(), story))

	mock.ExpectQuery(regexp.QuoteMeta("FROM success_stories")).
		WithArgs(pid.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider_id", "title", "content", "created_at"}).
			AddRow(story.ID.String(), pid.String(), "T", "C", story.CreatedAt))
	stories, err := store.ListStoriesByProvider(context.Background(), pid)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, story.ID, stories[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTestimonials(t *testing.T) {
	store, mock := newMock(t)
	pid := id.NewProviderID()
	tm := &models.Testimonial{ID: id.NewTestimonialID(), ProviderID: pid, PatientName: "Sam", PatientAge: 30, CreatedAt: time.Now().UTC()}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO testimonials")).
		WithArgs(tm.ID.String(), pid.String(), "Sam", 30, tm.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.AppendTestimonial(context.Background(), tm))

	mock.ExpectQuery(regexp.QuoteMeta("FROM testimonials")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider_id", "patient_name", "patient_age", "created_at"}).
			AddRow(tm.ID.String(), pid.String(), "Sam", 30, tm.CreatedAt).
			AddRow("garbage", pid.String(), "Sam", 30, tm.CreatedAt))
	_, err := store.ListTestimonials(context.Background())
	require.Error(t, err, "malformed ids surface as scan errors")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTotals(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT campaign_title) FROM donations")).
		WillReturnRows(sqlmock.NewRows([]string{"sum", "donations", "campaigns", "testimonials"}).
			AddRow(int64(12500), 4, 2, 3))
	totals, err := store.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Totals{DonationsCents: 12500, Donations: 4, Campaigns: 2, Testimonials: 3}, totals)

	mock.ExpectQuery(regexp.QuoteMeta("FROM testimonials")).WillReturnError(sql.ErrConnDone)
	_, err = store.Totals(context.Background())
	assert.ErrorIs(t, err, sql.ErrConnDone)

	assert.NoError(t, mock.ExpectationsWereMet())
}
