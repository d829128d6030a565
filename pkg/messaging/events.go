package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Session events
	EventSessionStarted   = "checkin.session.started"
	EventSessionCancelled = "checkin.session.cancelled"
	EventSessionExpired   = "checkin.session.expired"
	EventSessionFailed    = "checkin.session.failed"

	// Identity events
	EventIdentityExtracted = "checkin.identity.extracted"

	// Reservation events
	EventReservationMatched   = "checkin.reservation.matched"
	EventReservationAmbiguous = "checkin.reservation.ambiguous"

	// Check-in events
	EventGuestCheckedIn = "checkin.guest.checked_in"

	// Invoice events
	EventInvoiceCreated  = "checkin.invoice.created"
	EventInvoiceDeclined = "checkin.invoice.declined"
)

// Exchange names
const (
	ExchangeCheckinEvents = "checkin.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Session Events

// SessionStartedEvent is published when a user begins a check-in session
type SessionStartedEvent struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// SessionCancelledEvent is published when a session is cancelled by the user
type SessionCancelledEvent struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	State     string `json:"state"` // state the session was in when cancelled
}

// SessionExpiredEvent is published when a session is cancelled for inactivity
type SessionExpiredEvent struct {
	SessionID string        `json:"session_id"`
	UserID    string        `json:"user_id"`
	State     string        `json:"state"`
	IdleFor   time.Duration `json:"idle_for"`
}

// SessionFailedEvent is published when an external action exhausts its retries
type SessionFailedEvent struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Action    string `json:"action"`
	Reason    string `json:"reason"`
}

// Identity Events

// IdentityExtractedEvent is published when a document photo yields an identity.
// Document numbers are never included, only the extraction outcome.
type IdentityExtractedEvent struct {
	SessionID         string  `json:"session_id"`
	UserID            string  `json:"user_id"`
	SourceFormat      string  `json:"source_format"`
	Confidence        float64 `json:"confidence"`
	NeedsManualReview bool    `json:"needs_manual_review"`
	Nationality       string  `json:"nationality,omitempty"`
}

// Reservation Events

// ReservationMatchedEvent is published when a single best candidate is found
type ReservationMatchedEvent struct {
	SessionID     string  `json:"session_id"`
	ReservationID string  `json:"reservation_id"`
	Score         float64 `json:"score"`
	Auto          bool    `json:"auto"` // true when no tie-break prompt was needed
}

// ReservationAmbiguousEvent is published when matching produces a tie at rank 1
type ReservationAmbiguousEvent struct {
	SessionID      string   `json:"session_id"`
	ReservationIDs []string `json:"reservation_ids"`
	Score          float64  `json:"score"`
}

// Check-in Events

// GuestCheckedInEvent is published after the PMS confirms the check-in
type GuestCheckedInEvent struct {
	SessionID     string    `json:"session_id"`
	ReservationID string    `json:"reservation_id"`
	GuestName     string    `json:"guest_name"`
	Nationality   string    `json:"nationality"`
	ArrivalDate   time.Time `json:"arrival_date"`
	UnitName      string    `json:"unit_name,omitempty"`
}

// Invoice Events

// InvoiceCreatedEvent is published when a non-fiscalized invoice draft is created
type InvoiceCreatedEvent struct {
	SessionID     string  `json:"session_id"`
	ReservationID string  `json:"reservation_id"`
	InvoiceID     string  `json:"invoice_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	PaymentType   string  `json:"payment_type"`
}

// InvoiceDeclinedEvent is published when the host declines invoice creation
type InvoiceDeclinedEvent struct {
	SessionID     string `json:"session_id"`
	ReservationID string `json:"reservation_id"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
