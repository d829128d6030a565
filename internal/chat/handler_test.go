package chat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkindomain "github.com/stayflow/stayflow-backend/internal/checkin/domain"
	"github.com/stayflow/stayflow-backend/internal/session"
	"github.com/stayflow/stayflow-backend/pkg/httputil"
	"github.com/stayflow/stayflow-backend/pkg/logger"
)

type fakeDispatcher struct {
	events   []session.Event
	userIDs  []string
	snapshot session.Snapshot
	live     bool
}

func (f *fakeDispatcher) Dispatch(userID string, ev session.Event) {
	f.userIDs = append(f.userIDs, userID)
	f.events = append(f.events, ev)
}

func (f *fakeDispatcher) Snapshot(userID string) (session.Snapshot, bool) {
	return f.snapshot, f.live
}

func (f *fakeDispatcher) ActiveSessions() int { return 1 }

type fakeLister struct {
	records []*checkindomain.SessionRecord
	err     error
	limit   int
}

func (f *fakeLister) ListRecent(ctx context.Context, limit int) ([]*checkindomain.SessionRecord, error) {
	f.limit = limit
	return f.records, f.err
}

type fakeActivityLister struct {
	entries []*checkindomain.ActivityEntry
	limit   int
}

func (f *fakeActivityLister) ListRecent(ctx context.Context, limit int) ([]*checkindomain.ActivityEntry, error) {
	f.limit = limit
	return f.entries, nil
}

func newTestHandler(allowed []string) (*Handler, *fakeDispatcher, *fakeLister) {
	dispatcher := &fakeDispatcher{}
	lister := &fakeLister{}
	h := NewHandler(dispatcher, lister, &fakeActivityLister{}, allowed, logger.New("test", "development"))
	return h, dispatcher, lister
}

func postWebhook(t *testing.T, h *Handler, senderID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewReader(payload))
	if senderID != "" {
		ctx := context.WithValue(req.Context(), httputil.SenderIDKey, senderID)
		req = req.WithContext(ctx)
	}

	rec := httptest.NewRecorder()
	h.Webhook(rec, req)
	return rec
}

func TestWebhook_Photo(t *testing.T) {
	h, dispatcher, _ := newTestHandler(nil)

	image := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	rec := postWebhook(t, h, "host-1", map[string]string{
		"type":         "photo",
		"photo_base64": base64.StdEncoding.EncodeToString(image),
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, dispatcher.events, 1)
	photo, ok := dispatcher.events[0].(session.PhotoReceived)
	require.True(t, ok)
	assert.Equal(t, image, photo.Image)
	assert.Equal(t, []string{"host-1"}, dispatcher.userIDs)
}

func TestWebhook_Buttons(t *testing.T) {
	cases := []struct {
		data string
		want session.Event
	}{
		{"continue", session.ContinuePressed{}},
		{"reject", session.CandidatesRejected{}},
		{"invoice_yes", session.InvoiceAccepted{}},
		{"invoice_no", session.InvoiceDeclined{}},
		{"choose:r-100", session.CandidateChosen{ReservationID: "r-100"}},
	}

	for _, tc := range cases {
		t.Run(tc.data, func(t *testing.T) {
			h, dispatcher, _ := newTestHandler(nil)

			rec := postWebhook(t, h, "host-1", map[string]string{
				"type": "button",
				"data": tc.data,
			})

			assert.Equal(t, http.StatusAccepted, rec.Code)
			require.Len(t, dispatcher.events, 1)
			assert.Equal(t, tc.want, dispatcher.events[0])
		})
	}
}

func TestWebhook_CancelCommand(t *testing.T) {
	h, dispatcher, _ := newTestHandler(nil)

	rec := postWebhook(t, h, "host-1", map[string]string{
		"type":    "command",
		"command": "/cancel",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, dispatcher.events, 1)
	assert.IsType(t, session.Cancel{}, dispatcher.events[0])
}

func TestWebhook_InvalidPhoto(t *testing.T) {
	h, dispatcher, _ := newTestHandler(nil)

	rec := postWebhook(t, h, "host-1", map[string]string{
		"type":         "photo",
		"photo_base64": "not!!base64",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, dispatcher.events)
}

func TestWebhook_UnknownButton(t *testing.T) {
	h, dispatcher, _ := newTestHandler(nil)

	rec := postWebhook(t, h, "host-1", map[string]string{
		"type": "button",
		"data": "mystery",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, dispatcher.events)
}

func TestWebhook_UnknownSenderForbidden(t *testing.T) {
	h, dispatcher, _ := newTestHandler([]string{"host-1"})

	rec := postWebhook(t, h, "stranger", map[string]string{
		"type": "button",
		"data": "continue",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, dispatcher.events)
}

func TestWebhook_MissingSender(t *testing.T) {
	h, dispatcher, _ := newTestHandler(nil)

	rec := postWebhook(t, h, "", map[string]string{
		"type": "button",
		"data": "continue",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, dispatcher.events)
}

func TestLiveSession(t *testing.T) {
	h, dispatcher, _ := newTestHandler(nil)
	dispatcher.live = true
	dispatcher.snapshot = session.Snapshot{ID: "sess-1", UserID: "host-1", State: session.StateCollecting}

	r := chi.NewRouter()
	r.Get("/sessions/live/{userID}", h.LiveSession)

	req := httptest.NewRequest(http.MethodGet, "/sessions/live/host-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sess-1")
}

func TestLiveSession_NotFound(t *testing.T) {
	h, _, _ := newTestHandler(nil)

	r := chi.NewRouter()
	r.Get("/sessions/live/{userID}", h.LiveSession)

	req := httptest.NewRequest(http.MethodGet, "/sessions/live/host-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSessions(t *testing.T) {
	h, _, lister := newTestHandler(nil)
	lister.records = []*checkindomain.SessionRecord{
		{ID: "s1", UserID: "host-1", State: "done", EndedAt: time.Now().UTC()},
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions?limit=50", nil)
	rec := httptest.NewRecorder()
	h.ListSessions(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, lister.limit)
	assert.Contains(t, rec.Body.String(), `"active":1`)
}

func TestListActivity(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	activity := &fakeActivityLister{entries: []*checkindomain.ActivityEntry{
		{ID: "a1", EventID: "ev-1", EventType: "checkin.guest.checked_in", SessionID: "sess-1", OccurredAt: time.Now().UTC()},
	}}
	h := NewHandler(dispatcher, &fakeLister{}, activity, nil, logger.New("test", "development"))

	req := httptest.NewRequest(http.MethodGet, "/activity?limit=5", nil)
	rec := httptest.NewRecorder()
	h.ListActivity(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, activity.limit)
	assert.Contains(t, rec.Body.String(), "checkin.guest.checked_in")
}

func TestListSessions_BadLimit(t *testing.T) {
	h, _, _ := newTestHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/sessions?limit=0", nil)
	rec := httptest.NewRecorder()
	h.ListSessions(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
