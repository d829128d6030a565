package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayflow/stayflow-backend/internal/identity/domain"
	"github.com/stayflow/stayflow-backend/internal/matching"
	"github.com/stayflow/stayflow-backend/internal/pms"
	"github.com/stayflow/stayflow-backend/internal/session"
	"github.com/stayflow/stayflow-backend/pkg/logger"
)

// fakeActions scripts the orchestrator side of the state machine
type fakeActions struct {
	mu          sync.Mutex
	extractErr  error
	matchResult *matching.MatchResult
	matchErr    error
	checkinErr  error
	invoiceErr  error

	started  int
	checkins []checkinCall
	invoices []string
	ended    []session.Snapshot
}

type checkinCall struct {
	reservationID string
	names         []string
}

func (f *fakeActions) SessionStarted(ctx context.Context, snapshot session.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *fakeActions) ExtractIdentity(ctx context.Context, image []byte) (*domain.ExtractedIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	// Derive the name from the image so tests can trace which photo
	// produced which identity
	return &domain.ExtractedIdentity{
		FirstName:    string(image),
		LastName:     "Guest",
		SourceFormat: domain.SourceMRZTD3,
		Confidence:   0.96,
	}, nil
}

func (f *fakeActions) FindMatches(ctx context.Context, identity *domain.ExtractedIdentity) (*matching.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.matchErr != nil {
		return nil, f.matchErr
	}
	result := *f.matchResult
	result.Identity = identity
	return &result, nil
}

func (f *fakeActions) PerformCheckin(ctx context.Context, candidate pms.ReservationCandidate, identities []*domain.ExtractedIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkinErr != nil {
		return f.checkinErr
	}
	call := checkinCall{reservationID: candidate.ReservationID}
	for _, id := range identities {
		call.names = append(call.names, id.FullName())
	}
	f.checkins = append(f.checkins, call)
	return nil
}

func (f *fakeActions) CreateInvoice(ctx context.Context, candidate pms.ReservationCandidate) (*pms.DocumentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invoiceErr != nil {
		return nil, f.invoiceErr
	}
	f.invoices = append(f.invoices, candidate.ReservationID)
	return &pms.DocumentRef{InvoiceID: "inv-1"}, nil
}

func (f *fakeActions) SessionEnded(ctx context.Context, snapshot session.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, snapshot)
}

func (f *fakeActions) endedSessions() []session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Snapshot(nil), f.ended...)
}

// fakeNotifier records outbound prompts
type fakeNotifier struct {
	mu     sync.Mutex
	calls  []string
	closed []session.State
}

func (f *fakeNotifier) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeNotifier) PromptResend(ctx context.Context, userID string) { f.record("resend") }
func (f *fakeNotifier) IdentityAdded(ctx context.Context, userID string, identity *domain.ExtractedIdentity, total int) {
	f.record(fmt.Sprintf("added:%d", total))
}
func (f *fakeNotifier) PresentMatches(ctx context.Context, userID string, result *matching.MatchResult) {
	f.record(fmt.Sprintf("matches:%d", len(result.Ranked)))
}
func (f *fakeNotifier) TransientError(ctx context.Context, userID string, err error) {
	f.record("error")
}
func (f *fakeNotifier) CheckinCompleted(ctx context.Context, userID, reservationID string) {
	f.record("checked_in:" + reservationID)
}
func (f *fakeNotifier) InvoiceCreated(ctx context.Context, userID string, ref *pms.DocumentRef) {
	f.record("invoice:" + ref.InvoiceID)
}
func (f *fakeNotifier) SessionClosed(ctx context.Context, userID string, state session.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, state)
}

func (f *fakeNotifier) has(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func singleMatch(reservationID string) *matching.MatchResult {
	return &matching.MatchResult{
		Ranked: []matching.RankedCandidate{{
			Candidate: pms.ReservationCandidate{
				ReservationID:    reservationID,
				GuestDisplayName: "John Guest",
				ArrivalDate:      time.Now().UTC(),
			},
			Score: 0.95,
			Rank:  1,
		}},
	}
}

func newTestManager(t *testing.T, actions *fakeActions, notifier *fakeNotifier, timeout time.Duration) *session.Manager {
	t.Helper()
	m := session.NewManager(actions, notifier, timeout, logger.New("test", "development"))
	t.Cleanup(m.Close)
	return m
}

func TestManager_EndToEndCheckinFlow(t *testing.T) {
	actions := &fakeActions{matchResult: singleMatch("r1")}
	notifier := &fakeNotifier{}
	m := newTestManager(t, actions, notifier, time.Minute)

	m.Dispatch("alice", session.PhotoReceived{Image: []byte("John")})
	m.Dispatch("alice", session.PhotoReceived{Image: []byte("Jane")})
	m.Dispatch("alice", session.ContinuePressed{})
	m.Dispatch("alice", session.CandidateChosen{ReservationID: "r1"})
	m.Dispatch("alice", session.InvoiceDeclined{})

	require.Eventually(t, func() bool {
		return len(actions.endedSessions()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ended := actions.endedSessions()[0]
	assert.Equal(t, session.StateDone, ended.State)
	assert.Equal(t, "r1", ended.ConfirmedReservationID)
	assert.Equal(t, 2, ended.IdentityCount)
	assert.Zero(t, ended.ImageCount, "terminal state must purge buffered images")

	require.Len(t, actions.checkins, 1)
	assert.Equal(t, "r1", actions.checkins[0].reservationID)
	assert.Equal(t, []string{"John Guest", "Jane Guest"}, actions.checkins[0].names)
	assert.Empty(t, actions.invoices, "declined invoice must not be created")
	assert.True(t, notifier.has("checked_in:r1"))
	assert.Equal(t, 0, m.ActiveSessions())
}

func TestManager_InvoiceAccepted(t *testing.T) {
	actions := &fakeActions{matchResult: singleMatch("r9")}
	notifier := &fakeNotifier{}
	m := newTestManager(t, actions, notifier, time.Minute)

	m.Dispatch("bob", session.PhotoReceived{Image: []byte("Ivan")})
	m.Dispatch("bob", session.ContinuePressed{})
	m.Dispatch("bob", session.CandidateChosen{ReservationID: "r9"})
	m.Dispatch("bob", session.InvoiceAccepted{})

	require.Eventually(t, func() bool {
		return len(actions.endedSessions()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, session.StateDone, actions.endedSessions()[0].State)
	assert.Equal(t, []string{"r9"}, actions.invoices)
	assert.True(t, notifier.has("invoice:inv-1"))
}

func TestManager_ExtractionFailureLeavesStateUnchanged(t *testing.T) {
	actions := &fakeActions{matchResult: singleMatch("r1"), extractErr: fmt.Errorf("blurry")}
	notifier := &fakeNotifier{}
	m := newTestManager(t, actions, notifier, time.Minute)

	m.Dispatch("carol", session.PhotoReceived{Image: []byte("x")})

	require.Eventually(t, func() bool {
		return notifier.has("resend")
	}, 2*time.Second, 10*time.Millisecond)

	snap, ok := m.Snapshot("carol")
	require.True(t, ok)
	assert.Equal(t, session.StateCollecting, snap.State)
	assert.Zero(t, snap.IdentityCount)
}

func TestManager_RejectAllReturnsToCollecting(t *testing.T) {
	actions := &fakeActions{matchResult: singleMatch("r1")}
	notifier := &fakeNotifier{}
	m := newTestManager(t, actions, notifier, time.Minute)

	m.Dispatch("dave", session.PhotoReceived{Image: []byte("Pero")})
	m.Dispatch("dave", session.ContinuePressed{})
	m.Dispatch("dave", session.CandidatesRejected{})

	require.Eventually(t, func() bool {
		snap, ok := m.Snapshot("dave")
		return ok && snap.State == session.StateCollecting
	}, 2*time.Second, 10*time.Millisecond)

	// Identities survive a reject; only the match is discarded
	snap, _ := m.Snapshot("dave")
	assert.Equal(t, 1, snap.IdentityCount)
}

func TestManager_CheckinFailureEndsFailed(t *testing.T) {
	actions := &fakeActions{matchResult: singleMatch("r1"), checkinErr: fmt.Errorf("PMS down")}
	notifier := &fakeNotifier{}
	m := newTestManager(t, actions, notifier, time.Minute)

	m.Dispatch("erin", session.PhotoReceived{Image: []byte("Ana")})
	m.Dispatch("erin", session.ContinuePressed{})
	m.Dispatch("erin", session.CandidateChosen{ReservationID: "r1"})

	require.Eventually(t, func() bool {
		return len(actions.endedSessions()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ended := actions.endedSessions()[0]
	assert.Equal(t, session.StateFailed, ended.State)
	assert.Zero(t, ended.ImageCount)
	assert.True(t, notifier.has("error"))
}

func TestManager_ExplicitCancel(t *testing.T) {
	actions := &fakeActions{matchResult: singleMatch("r1")}
	notifier := &fakeNotifier{}
	m := newTestManager(t, actions, notifier, time.Minute)

	m.Dispatch("frank", session.PhotoReceived{Image: []byte("Luka")})
	m.Dispatch("frank", session.Cancel{})

	require.Eventually(t, func() bool {
		return len(actions.endedSessions()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, session.StateCancelled, actions.endedSessions()[0].State)
	assert.False(t, actions.endedSessions()[0].Expired)
}

func TestManager_InactivityTimeout(t *testing.T) {
	actions := &fakeActions{matchResult: singleMatch("r1")}
	notifier := &fakeNotifier{}
	m := newTestManager(t, actions, notifier, 50*time.Millisecond)

	m.Dispatch("gina", session.PhotoReceived{Image: []byte("Iva")})

	require.Eventually(t, func() bool {
		return len(actions.endedSessions()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, session.StateCancelled, actions.endedSessions()[0].State)
	assert.True(t, actions.endedSessions()[0].Expired, "timer cancellation must be marked expired")
	assert.Equal(t, 0, m.ActiveSessions())
}

func TestManager_CrossUserIsolation(t *testing.T) {
	actions := &fakeActions{matchResult: singleMatch("r1")}
	notifier := &fakeNotifier{}
	m := newTestManager(t, actions, notifier, time.Minute)

	const photosPerUser = 20
	var wg sync.WaitGroup
	for _, user := range []string{"userA", "userB"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			for i := 0; i < photosPerUser; i++ {
				m.Dispatch(user, session.PhotoReceived{
					Image: []byte(fmt.Sprintf("%s-%d", user, i)),
				})
			}
		}(user)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		a, okA := m.Snapshot("userA")
		b, okB := m.Snapshot("userB")
		return okA && okB &&
			a.IdentityCount == photosPerUser &&
			b.IdentityCount == photosPerUser
	}, 2*time.Second, 10*time.Millisecond)

	for _, user := range []string{"userA", "userB"} {
		snap, ok := m.Snapshot(user)
		require.True(t, ok)

		// Every identity belongs to this user, appended in receipt order
		for i, name := range snap.IdentityNames {
			assert.Equal(t, fmt.Sprintf("%s-%d Guest", user, i), name)
		}
	}
}

func TestManager_FreshSessionAfterTerminal(t *testing.T) {
	actions := &fakeActions{matchResult: singleMatch("r1")}
	notifier := &fakeNotifier{}
	m := newTestManager(t, actions, notifier, time.Minute)

	m.Dispatch("henry", session.PhotoReceived{Image: []byte("Marko")})
	first, ok := waitForSnapshot(t, m, "henry", 1)
	require.True(t, ok)

	m.Dispatch("henry", session.Cancel{})
	require.Eventually(t, func() bool {
		return m.ActiveSessions() == 0
	}, 2*time.Second, 10*time.Millisecond)

	m.Dispatch("henry", session.PhotoReceived{Image: []byte("Marko")})
	second, ok := waitForSnapshot(t, m, "henry", 1)
	require.True(t, ok)

	assert.NotEqual(t, first.ID, second.ID, "terminal session must not be reused")
	assert.Equal(t, 1, second.IdentityCount, "fresh session starts with empty pending identities")
	assert.Equal(t, session.StateCollecting, second.State)

	actions.mu.Lock()
	defer actions.mu.Unlock()
	assert.Equal(t, 2, actions.started)
}

func TestManager_NonPhotoEventWithoutSessionIsDropped(t *testing.T) {
	actions := &fakeActions{matchResult: singleMatch("r1")}
	notifier := &fakeNotifier{}
	m := newTestManager(t, actions, notifier, time.Minute)

	m.Dispatch("ivy", session.ContinuePressed{})

	assert.Equal(t, 0, m.ActiveSessions())
}

func waitForSnapshot(t *testing.T, m *session.Manager, userID string, wantIdentities int) (session.Snapshot, bool) {
	t.Helper()
	var snap session.Snapshot
	var ok bool
	require.Eventually(t, func() bool {
		snap, ok = m.Snapshot(userID)
		return ok && snap.IdentityCount == wantIdentities
	}, 2*time.Second, 10*time.Millisecond)
	return snap, ok
}
