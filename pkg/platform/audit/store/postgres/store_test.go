package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "mindlink/pkg/platform/audit"
)

var eventColumns = []string{"category", "timestamp", "subject", "action", "reason", "request_id", "actor_id"}

func TestStoreAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_events")).
		WithArgs("compliance", now, "provider-1", "provider_approved", "", "req-1", "admin").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = New(db).Append(context.Background(), audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: now,
		Subject:   "provider-1",
		Action:    "provider_approved",
		RequestID: "req-1",
		ActorID:   "admin",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(eventColumns).
		AddRow("operations", now, "provider-1", "provider_submitted", "", "", "").
		AddRow("compliance", now, "provider-1", "provider_approved", "", "", "admin")
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_events")).WithArgs(2).WillReturnRows(rows)

	events, err := New(db).ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.CategoryCompliance, events[1].Category)
	assert.Equal(t, "admin", events[1].ActorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListBySubject(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE subject = $1")).
		WithArgs("Campaign A").
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow("operations", time.Now(), "Campaign A", "donation_recorded", "", "", ""))

	events, err := New(db).ListBySubject(context.Background(), "Campaign A")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "donation_recorded", events[0].Action)
}
