package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/stayflow/stayflow-backend/internal/checkin/domain"
	"github.com/stayflow/stayflow-backend/pkg/database"
)

// ActivityRepository persists the consumed event activity feed
type ActivityRepository struct {
	db *database.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create inserts one activity entry. Duplicate event IDs are ignored so a
// redelivered message never produces a second row.
func (r *ActivityRepository) Create(ctx context.Context, entry *domain.ActivityEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO checkin_activity (id, event_id, event_type, session_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.EventID,
		entry.EventType,
		entry.SessionID,
		[]byte(entry.Payload),
		entry.OccurredAt,
	)
	return database.WrapError(err)
}

// ListRecent returns the newest activity entries
func (r *ActivityRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ActivityEntry, error) {
	query := `
		SELECT id, event_id, event_type, session_id, payload, occurred_at
		FROM checkin_activity
		ORDER BY occurred_at DESC
		LIMIT $1
	`

	var entries []*domain.ActivityEntry
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, database.WrapError(err)
	}
	return entries, nil
}
