package session

import (
	"time"

	"github.com/stayflow/stayflow-backend/internal/identity/domain"
	"github.com/stayflow/stayflow-backend/internal/matching"
)

// Session is one user's check-in conversation. Owned exclusively by that
// user's actor goroutine; never shared across users.
type Session struct {
	ID                     string
	UserID                 string
	State                  State
	PendingIdentities      []*domain.ExtractedIdentity
	Matches                *matching.MatchResult
	ConfirmedReservationID string
	CreatedAt              time.Time
	LastActivityAt         time.Time

	// Expired marks a session cancelled by the inactivity timer rather
	// than by an explicit user action.
	Expired bool

	// images buffers the raw photo bytes until the session ends. Purged,
	// not just dropped, on terminal entry: the data-minimization rule is
	// that document photos never outlive the conversation.
	images [][]byte
}

func (s *Session) addImage(img []byte) {
	s.images = append(s.images, img)
}

// purgeImages zeroes and releases every buffered photo
func (s *Session) purgeImages() {
	for _, img := range s.images {
		zeroBytes(img)
	}
	s.images = nil
}

func (s *Session) imageCount() int {
	return len(s.images)
}

// zeroBytes overwrites a buffer so document images do not linger on the
// heap until the garbage collector gets to them.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Snapshot is a read-only copy of session state for handlers and tests
type Snapshot struct {
	ID                     string
	UserID                 string
	State                  State
	IdentityCount          int
	IdentityNames          []string
	ImageCount             int
	ConfirmedReservationID string
	CreatedAt              time.Time
	LastActivityAt         time.Time
	Expired                bool
}

func (s *Session) snapshot() Snapshot {
	names := make([]string, 0, len(s.PendingIdentities))
	for _, id := range s.PendingIdentities {
		names = append(names, id.FullName())
	}
	return Snapshot{
		ID:                     s.ID,
		UserID:                 s.UserID,
		State:                  s.State,
		IdentityCount:          len(s.PendingIdentities),
		IdentityNames:          names,
		ImageCount:             s.imageCount(),
		ConfirmedReservationID: s.ConfirmedReservationID,
		CreatedAt:              s.CreatedAt,
		LastActivityAt:         s.LastActivityAt,
		Expired:                s.Expired,
	}
}
