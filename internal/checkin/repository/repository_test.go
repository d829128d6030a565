package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayflow/stayflow-backend/internal/checkin/domain"
	"github.com/stayflow/stayflow-backend/internal/checkin/repository"
	"github.com/stayflow/stayflow-backend/pkg/database"
	"github.com/stayflow/stayflow-backend/pkg/logger"
	"github.com/stayflow/stayflow-backend/pkg/testutil"
)

func newTestDB(t *testing.T) (*database.DB, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })
	db := database.NewFromSqlx(mockDB.DB, logger.New("test", "development"))
	return db, mockDB
}

func TestSessionRepository_Create(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewSessionRepository(db)

	reservationID := "12345"
	record := &domain.SessionRecord{
		UserID:                 "host-1",
		State:                  "done",
		IdentityCount:          2,
		ConfirmedReservationID: &reservationID,
		StartedAt:              time.Now().UTC().Add(-10 * time.Minute),
		EndedAt:                time.Now().UTC(),
	}

	mockDB.ExpectExec("INSERT INTO checkin_sessions").
		WithArgs(
			testutil.AnyUUID{},
			"host-1",
			"done",
			2,
			"12345",
			false,
			testutil.AnyTime{},
			testutil.AnyTime{},
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), record)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID, "an ID is assigned when missing")

	mockDB.ExpectationsWereMet(t)
}

func TestSessionRepository_ListRecent(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewSessionRepository(db)

	now := time.Now().UTC()
	rows := testutil.MockRows(
		"id", "user_id", "state", "identity_count", "confirmed_reservation_id",
		"expired", "started_at", "ended_at",
	).
		AddRow("s1", "host-1", "done", 2, "12345", false, now.Add(-time.Hour), now).
		AddRow("s2", "host-1", "cancelled", 0, nil, true, now.Add(-2*time.Hour), now.Add(-time.Hour))

	mockDB.ExpectQuery("SELECT id, user_id, state, identity_count, confirmed_reservation_id").
		WithArgs(20).
		WillReturnRows(rows)

	records, err := repo.ListRecent(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "done", records[0].State)
	require.NotNil(t, records[0].ConfirmedReservationID)
	assert.Equal(t, "12345", *records[0].ConfirmedReservationID)

	assert.Equal(t, "cancelled", records[1].State)
	assert.Nil(t, records[1].ConfirmedReservationID)
	assert.True(t, records[1].Expired)

	mockDB.ExpectationsWereMet(t)
}

func TestRegistrationRepository_CreateBatch(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewRegistrationRepository(db)

	now := time.Now().UTC()
	registrations := []*domain.GuestRegistration{
		{
			SessionID:     "s1",
			ReservationID: "12345",
			GuestName:     "Anna Maria Eriksson",
			Nationality:   "UTO",
			SourceFormat:  "mrz-td3",
			Confidence:    0.96,
			CheckedInAt:   now,
		},
		{
			SessionID:     "s1",
			ReservationID: "12345",
			GuestName:     "Sven Eriksson",
			Nationality:   "UTO",
			SourceFormat:  "free-text",
			Confidence:    0.55,
			CheckedInAt:   now,
		},
	}

	mockDB.ExpectBegin()
	for _, reg := range registrations {
		mockDB.ExpectExec("INSERT INTO guest_registrations").
			WithArgs(
				testutil.AnyUUID{},
				reg.SessionID,
				reg.ReservationID,
				reg.GuestName,
				reg.Nationality,
				reg.SourceFormat,
				reg.Confidence,
				reg.NeedsManualReview,
				testutil.AnyTime{},
			).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mockDB.ExpectCommit()

	err := repo.CreateBatch(context.Background(), registrations)
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestRegistrationRepository_CreateBatch_Empty(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewRegistrationRepository(db)

	// No SQL expected for an empty batch
	err := repo.CreateBatch(context.Background(), nil)
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestActivityRepository_Create(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewActivityRepository(db)

	entry := &domain.ActivityEntry{
		EventID:    "ev-1",
		EventType:  "checkin.guest.checked_in",
		SessionID:  "s1",
		Payload:    []byte(`{"reservation_id":"12345"}`),
		OccurredAt: time.Now().UTC(),
	}

	mockDB.ExpectExec("INSERT INTO checkin_activity").
		WithArgs(
			testutil.AnyUUID{},
			"ev-1",
			"checkin.guest.checked_in",
			"s1",
			[]byte(`{"reservation_id":"12345"}`),
			testutil.AnyTime{},
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), entry)
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestActivityRepository_Create_DuplicateEventIgnored(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewActivityRepository(db)

	entry := &domain.ActivityEntry{
		EventID:    "ev-1",
		EventType:  "checkin.session.started",
		SessionID:  "s1",
		OccurredAt: time.Now().UTC(),
	}

	// ON CONFLICT DO NOTHING reports zero rows affected, which is not an error
	mockDB.ExpectExec("INSERT INTO checkin_activity").
		WithArgs(
			testutil.AnyUUID{},
			"ev-1",
			"checkin.session.started",
			"s1",
			[]byte(nil),
			testutil.AnyTime{},
		).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), entry)
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestActivityRepository_ListRecent(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewActivityRepository(db)

	now := time.Now().UTC()
	rows := testutil.MockRows(
		"id", "event_id", "event_type", "session_id", "payload", "occurred_at",
	).
		AddRow("a1", "ev-2", "checkin.invoice.created", "s1", []byte(`{"invoice_ref":"R-7"}`), now).
		AddRow("a2", "ev-1", "checkin.guest.checked_in", "s1", []byte(`{}`), now.Add(-time.Minute))

	mockDB.ExpectQuery("SELECT id, event_id, event_type, session_id, payload").
		WithArgs(10).
		WillReturnRows(rows)

	entries, err := repo.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "checkin.invoice.created", entries[0].EventType)
	assert.JSONEq(t, `{"invoice_ref":"R-7"}`, string(entries[0].Payload))

	mockDB.ExpectationsWereMet(t)
}

func TestRegistrationRepository_ListByReservation(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := repository.NewRegistrationRepository(db)

	now := time.Now().UTC()
	rows := testutil.MockRows(
		"id", "session_id", "reservation_id", "guest_name", "nationality",
		"source_format", "confidence", "needs_manual_review", "checked_in_at",
	).
		AddRow("g1", "s1", "12345", "Anna Maria Eriksson", "UTO", "mrz-td3", 0.96, false, now)

	mockDB.ExpectQuery("SELECT id, session_id, reservation_id, guest_name, nationality").
		WithArgs("12345").
		WillReturnRows(rows)

	registrations, err := repo.ListByReservation(context.Background(), "12345")
	require.NoError(t, err)
	require.Len(t, registrations, 1)
	assert.Equal(t, "Anna Maria Eriksson", registrations[0].GuestName)

	mockDB.ExpectationsWereMet(t)
}
