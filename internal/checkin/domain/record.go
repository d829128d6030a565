package domain

import (
	"encoding/json"
	"time"
)

// SessionRecord is the audit row persisted when a check-in conversation
// ends. It carries the outcome, never the document photos or numbers.
type SessionRecord struct {
	ID                     string    `db:"id" json:"id"`
	UserID                 string    `db:"user_id" json:"user_id"`
	State                  string    `db:"state" json:"state"`
	IdentityCount          int       `db:"identity_count" json:"identity_count"`
	ConfirmedReservationID *string   `db:"confirmed_reservation_id" json:"confirmed_reservation_id,omitempty"`
	Expired                bool      `db:"expired" json:"expired"`
	StartedAt              time.Time `db:"started_at" json:"started_at"`
	EndedAt                time.Time `db:"ended_at" json:"ended_at"`
}

// GuestRegistration records one guest registered on a reservation. Document
// numbers stay in the PMS; locally only the extraction outcome survives.
type GuestRegistration struct {
	ID                string    `db:"id" json:"id"`
	SessionID         string    `db:"session_id" json:"session_id"`
	ReservationID     string    `db:"reservation_id" json:"reservation_id"`
	GuestName         string    `db:"guest_name" json:"guest_name"`
	Nationality       string    `db:"nationality" json:"nationality,omitempty"`
	SourceFormat      string    `db:"source_format" json:"source_format"`
	Confidence        float64   `db:"confidence" json:"confidence"`
	NeedsManualReview bool      `db:"needs_manual_review" json:"needs_manual_review"`
	CheckedInAt       time.Time `db:"checked_in_at" json:"checked_in_at"`
}

// ActivityEntry is one consumed check-in event, kept as an operational
// activity feed. SessionID comes from the event's correlation ID.
type ActivityEntry struct {
	ID         string          `db:"id" json:"id"`
	EventID    string          `db:"event_id" json:"event_id"`
	EventType  string          `db:"event_type" json:"event_type"`
	SessionID  string          `db:"session_id" json:"session_id,omitempty"`
	Payload    json.RawMessage `db:"payload" json:"payload,omitempty"`
	OccurredAt time.Time       `db:"occurred_at" json:"occurred_at"`
}
