package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/stayflow/stayflow-backend/internal/checkin/domain"
	"github.com/stayflow/stayflow-backend/pkg/database"
)

// SessionRepository persists finished check-in session records
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts one session record
func (r *SessionRepository) Create(ctx context.Context, record *domain.SessionRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	query := `
		INSERT INTO checkin_sessions (id, user_id, state, identity_count,
		                              confirmed_reservation_id, expired, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.State,
		record.IdentityCount,
		record.ConfirmedReservationID,
		record.Expired,
		record.StartedAt,
		record.EndedAt,
	)
	return database.WrapError(err)
}

// ListRecent returns the most recently ended sessions
func (r *SessionRepository) ListRecent(ctx context.Context, limit int) ([]*domain.SessionRecord, error) {
	query := `
		SELECT id, user_id, state, identity_count, confirmed_reservation_id,
		       expired, started_at, ended_at
		FROM checkin_sessions
		ORDER BY ended_at DESC
		LIMIT $1
	`

	var records []*domain.SessionRecord
	if err := r.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, database.WrapError(err)
	}
	return records, nil
}
