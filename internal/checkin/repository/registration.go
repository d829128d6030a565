package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stayflow/stayflow-backend/internal/checkin/domain"
	"github.com/stayflow/stayflow-backend/pkg/database"
)

// RegistrationRepository persists guest registration records
type RegistrationRepository struct {
	db *database.DB
}

// NewRegistrationRepository creates a new registration repository
func NewRegistrationRepository(db *database.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// CreateBatch inserts the registrations of one check-in atomically
func (r *RegistrationRepository) CreateBatch(ctx context.Context, registrations []*domain.GuestRegistration) error {
	if len(registrations) == 0 {
		return nil
	}

	query := `
		INSERT INTO guest_registrations (id, session_id, reservation_id, guest_name,
		                                 nationality, source_format, confidence,
		                                 needs_manual_review, checked_in_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, reg := range registrations {
			if reg.ID == "" {
				reg.ID = uuid.New().String()
			}
			if _, err := tx.ExecContext(ctx, query,
				reg.ID,
				reg.SessionID,
				reg.ReservationID,
				reg.GuestName,
				reg.Nationality,
				reg.SourceFormat,
				reg.Confidence,
				reg.NeedsManualReview,
				reg.CheckedInAt,
			); err != nil {
				return database.WrapError(err)
			}
		}
		return nil
	})
}

// ListByReservation returns the registered guests of one reservation
func (r *RegistrationRepository) ListByReservation(ctx context.Context, reservationID string) ([]*domain.GuestRegistration, error) {
	query := `
		SELECT id, session_id, reservation_id, guest_name, nationality,
		       source_format, confidence, needs_manual_review, checked_in_at
		FROM guest_registrations
		WHERE reservation_id = $1
		ORDER BY checked_in_at ASC
	`

	var registrations []*domain.GuestRegistration
	if err := r.db.SelectContext(ctx, &registrations, query, reservationID); err != nil {
		return nil, database.WrapError(err)
	}
	return registrations, nil
}
