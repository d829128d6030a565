package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stayflow/stayflow-backend/internal/identity/domain"
	"github.com/stayflow/stayflow-backend/internal/matching"
	"github.com/stayflow/stayflow-backend/internal/pms"
	"github.com/stayflow/stayflow-backend/pkg/logger"
)

// Actions is the collaborator surface the state machine drives. The
// orchestrator implements it; retry policy for external calls lives
// there, so an error returned here means retries are already exhausted.
type Actions interface {
	// SessionStarted records that a fresh session began
	SessionStarted(ctx context.Context, snapshot Snapshot)

	// ExtractIdentity turns one photo into an identity
	ExtractIdentity(ctx context.Context, image []byte) (*domain.ExtractedIdentity, error)

	// FindMatches fetches eligible reservations and ranks them against
	// the identity
	FindMatches(ctx context.Context, identity *domain.ExtractedIdentity) (*matching.MatchResult, error)

	// PerformCheckin submits every pending identity as a guest on the
	// confirmed reservation and flips its check-in status
	PerformCheckin(ctx context.Context, candidate pms.ReservationCandidate, identities []*domain.ExtractedIdentity) error

	// CreateInvoice drafts the non-fiscalized invoice for the stay
	CreateInvoice(ctx context.Context, candidate pms.ReservationCandidate) (*pms.DocumentRef, error)

	// SessionEnded records the finished session (audit row, lifecycle event)
	SessionEnded(ctx context.Context, snapshot Snapshot)
}

// Notifier delivers outbound prompts to the user through the chat
// transport. Implementations must be session-agnostic; all state lives
// here.
type Notifier interface {
	PromptResend(ctx context.Context, userID string)
	IdentityAdded(ctx context.Context, userID string, identity *domain.ExtractedIdentity, total int)
	PresentMatches(ctx context.Context, userID string, result *matching.MatchResult)
	TransientError(ctx context.Context, userID string, err error)
	CheckinCompleted(ctx context.Context, userID, reservationID string)
	InvoiceCreated(ctx context.Context, userID string, ref *pms.DocumentRef)
	SessionClosed(ctx context.Context, userID string, state State)
}

const eventBufferSize = 16

// actor owns exactly one session and applies its events in order
type actor struct {
	session *Session
	events  chan Event
	timer   *time.Timer
	closed  chan struct{}
}

// Manager runs one actor goroutine per active user. Events for the same
// user are serialized through the actor's channel; distinct users
// progress concurrently, blocking only inside their own external calls.
type Manager struct {
	actions           Actions
	notifier          Notifier
	inactivityTimeout time.Duration
	logger            *logger.Logger

	mu     sync.Mutex
	actors map[string]*actor

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a session manager
func NewManager(actions Actions, notifier Notifier, inactivityTimeout time.Duration, log *logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		actions:           actions,
		notifier:          notifier,
		inactivityTimeout: inactivityTimeout,
		logger:            log.WithComponent("session-manager"),
		actors:            make(map[string]*actor),
		baseCtx:           ctx,
		cancel:            cancel,
	}
}

// Dispatch queues an event for the user's session. A photo for a user
// with no live session starts a fresh one; other events without a live
// session are dropped with a debug log.
func (m *Manager) Dispatch(userID string, ev Event) {
	m.mu.Lock()
	a, ok := m.actors[userID]
	if !ok {
		if _, isPhoto := ev.(PhotoReceived); !isPhoto {
			m.mu.Unlock()
			m.logger.Debug().
				Str("user_id", userID).
				Msg("event for user without live session dropped")
			return
		}
		a = m.spawn(userID)
	}
	m.mu.Unlock()

	select {
	case a.events <- ev:
	case <-a.closed:
		// Session ended between lookup and send; a photo retried by the
		// user will start a fresh session
	case <-m.baseCtx.Done():
	}
}

// Snapshot returns a copy of the user's live session state
func (m *Manager) Snapshot(userID string) (Snapshot, bool) {
	reply := make(chan Snapshot, 1)

	m.mu.Lock()
	a, ok := m.actors[userID]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}

	select {
	case a.events <- snapshotRequest{reply: reply}:
	case <-a.closed:
		return Snapshot{}, false
	case <-m.baseCtx.Done():
		return Snapshot{}, false
	}

	select {
	case snap := <-reply:
		return snap, true
	case <-a.closed:
		return Snapshot{}, false
	case <-m.baseCtx.Done():
		return Snapshot{}, false
	}
}

// ActiveSessions returns the number of live sessions
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actors)
}

// Close cancels all actors and waits for them to finish
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// snapshotRequest is an internal event so reads go through the actor's
// queue and never race a transition
type snapshotRequest struct {
	reply chan Snapshot
}

func (snapshotRequest) isEvent() {}

// spawn creates the actor for a user; caller holds m.mu
func (m *Manager) spawn(userID string) *actor {
	now := time.Now().UTC()
	a := &actor{
		session: &Session{
			ID:             uuid.New().String(),
			UserID:         userID,
			State:          StateCollecting,
			CreatedAt:      now,
			LastActivityAt: now,
		},
		events: make(chan Event, eventBufferSize),
		timer:  time.NewTimer(m.inactivityTimeout),
		closed: make(chan struct{}),
	}
	m.actors[userID] = a

	m.wg.Add(1)
	go m.run(a)

	m.logger.Info().
		Str("user_id", userID).
		Str("session_id", a.session.ID).
		Msg("session started")

	return a
}

// run is the actor loop: one goroutine, one session, events in order
func (m *Manager) run(a *actor) {
	defer m.wg.Done()
	defer a.timer.Stop()

	m.actions.SessionStarted(m.sessionCtx(a.session), a.session.snapshot())

	for {
		select {
		case <-m.baseCtx.Done():
			m.finish(a, StateCancelled)
			return

		case <-a.timer.C:
			m.logger.Info().
				Str("user_id", a.session.UserID).
				Str("session_id", a.session.ID).
				Dur("timeout", m.inactivityTimeout).
				Msg("session expired for inactivity")
			a.session.Expired = true
			m.finish(a, StateCancelled)
			return

		case ev := <-a.events:
			if req, ok := ev.(snapshotRequest); ok {
				req.reply <- a.session.snapshot()
				continue
			}

			a.session.LastActivityAt = time.Now().UTC()
			a.timer.Reset(m.inactivityTimeout)

			if done := m.apply(a, ev); done {
				return
			}
		}
	}
}

// apply handles one event; returns true when the session reached a
// terminal state and the actor must exit
func (m *Manager) apply(a *actor, ev Event) bool {
	s := a.session
	ctx := m.sessionCtx(s)
	log := m.logger.WithUserID(s.UserID).WithSessionID(s.ID)

	if _, ok := ev.(Cancel); ok {
		m.finish(a, StateCancelled)
		return true
	}

	switch s.State {
	case StateCollecting:
		switch e := ev.(type) {
		case PhotoReceived:
			identity, err := m.actions.ExtractIdentity(ctx, e.Image)
			if err != nil {
				// State unchanged; the user resends a sharper photo
				log.Warn().Err(err).Msg("extraction failed")
				m.notifier.PromptResend(ctx, s.UserID)
				return false
			}
			s.PendingIdentities = append(s.PendingIdentities, identity)
			s.addImage(e.Image)
			m.notifier.IdentityAdded(ctx, s.UserID, identity, len(s.PendingIdentities))

		case ContinuePressed:
			if len(s.PendingIdentities) == 0 {
				m.notifier.PromptResend(ctx, s.UserID)
				return false
			}
			// The first photographed guest is the primary one and drives
			// the reservation match
			result, err := m.actions.FindMatches(ctx, s.PendingIdentities[0])
			if err != nil {
				log.Error().Err(err).Msg("match lookup failed")
				m.notifier.TransientError(ctx, s.UserID, err)
				return false
			}
			s.Matches = result
			s.State = StateConfirmingMatch
			m.notifier.PresentMatches(ctx, s.UserID, result)

		default:
			log.Debug().Msgf("ignoring %T in state %s", ev, s.State)
		}

	case StateConfirmingMatch:
		switch e := ev.(type) {
		case CandidateChosen:
			candidate, ok := m.chosenCandidate(s, e.ReservationID)
			if !ok {
				log.Warn().
					Str("reservation_id", e.ReservationID).
					Msg("chosen reservation not among presented candidates")
				m.notifier.PresentMatches(ctx, s.UserID, s.Matches)
				return false
			}
			s.ConfirmedReservationID = e.ReservationID
			s.State = StateCheckingIn

			if err := m.actions.PerformCheckin(ctx, candidate, s.PendingIdentities); err != nil {
				log.Error().Err(err).Msg("check-in failed after retries")
				m.notifier.TransientError(ctx, s.UserID, err)
				m.finish(a, StateFailed)
				return true
			}
			s.State = StateInvoiceOffered
			m.notifier.CheckinCompleted(ctx, s.UserID, e.ReservationID)

		case CandidatesRejected:
			// Re-collect; the user can add photos or widen the search by
			// continuing again
			s.Matches = nil
			s.State = StateCollecting
			m.notifier.PromptResend(ctx, s.UserID)

		default:
			log.Debug().Msgf("ignoring %T in state %s", ev, s.State)
		}

	case StateInvoiceOffered:
		switch ev.(type) {
		case InvoiceAccepted:
			candidate, ok := m.chosenCandidate(s, s.ConfirmedReservationID)
			if !ok {
				m.finish(a, StateFailed)
				return true
			}
			ref, err := m.actions.CreateInvoice(ctx, candidate)
			if err != nil {
				log.Error().Err(err).Msg("invoice creation failed after retries")
				m.notifier.TransientError(ctx, s.UserID, err)
				m.finish(a, StateFailed)
				return true
			}
			m.notifier.InvoiceCreated(ctx, s.UserID, ref)
			m.finish(a, StateDone)
			return true

		case InvoiceDeclined:
			m.finish(a, StateDone)
			return true

		default:
			log.Debug().Msgf("ignoring %T in state %s", ev, s.State)
		}

	default:
		log.Debug().Msgf("ignoring %T in state %s", ev, s.State)
	}

	return false
}

func (m *Manager) sessionCtx(s *Session) context.Context {
	return ContextWithSession(m.baseCtx, s.ID, s.UserID)
}

// chosenCandidate finds a presented candidate by reservation ID
func (m *Manager) chosenCandidate(s *Session, reservationID string) (pms.ReservationCandidate, bool) {
	if s.Matches == nil {
		return pms.ReservationCandidate{}, false
	}
	for _, rc := range s.Matches.Ranked {
		if rc.Candidate.ReservationID == reservationID {
			return rc.Candidate, true
		}
	}
	return pms.ReservationCandidate{}, false
}

// finish moves the session to a terminal state, purges buffered photos,
// records the outcome and removes the actor. The next photo from this
// user starts a fresh session.
func (m *Manager) finish(a *actor, state State) {
	s := a.session
	s.State = state
	s.purgeImages()

	m.mu.Lock()
	delete(m.actors, s.UserID)
	m.mu.Unlock()
	close(a.closed)

	// Detached from baseCtx so the closing bookkeeping survives shutdown
	ctx := ContextWithSession(context.Background(), s.ID, s.UserID)
	m.actions.SessionEnded(ctx, s.snapshot())
	m.notifier.SessionClosed(ctx, s.UserID, state)

	m.logger.Info().
		Str("user_id", s.UserID).
		Str("session_id", s.ID).
		Str("state", string(state)).
		Msg("session closed")
}
