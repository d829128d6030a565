package chat

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	checkindomain "github.com/stayflow/stayflow-backend/internal/checkin/domain"
	"github.com/stayflow/stayflow-backend/internal/session"
	"github.com/stayflow/stayflow-backend/pkg/errors"
	"github.com/stayflow/stayflow-backend/pkg/httputil"
	"github.com/stayflow/stayflow-backend/pkg/logger"
)

// Dispatcher is the session manager surface the webhook drives
type Dispatcher interface {
	Dispatch(userID string, ev session.Event)
	Snapshot(userID string) (session.Snapshot, bool)
	ActiveSessions() int
}

// SessionLister reads finished session records for the ops endpoints
type SessionLister interface {
	ListRecent(ctx context.Context, limit int) ([]*checkindomain.SessionRecord, error)
}

// ActivityLister reads the consumed event activity feed
type ActivityLister interface {
	ListRecent(ctx context.Context, limit int) ([]*checkindomain.ActivityEntry, error)
}

// Handler translates chat webhook deliveries into session events
type Handler struct {
	dispatcher Dispatcher
	sessions   SessionLister
	activity   ActivityLister
	allowed    map[string]bool
	logger     *logger.Logger
}

// NewHandler creates a chat webhook handler. allowedUserIDs empty means
// any authenticated sender may drive the bot.
func NewHandler(dispatcher Dispatcher, sessions SessionLister, activity ActivityLister, allowedUserIDs []string, log *logger.Logger) *Handler {
	allowed := make(map[string]bool, len(allowedUserIDs))
	for _, id := range allowedUserIDs {
		allowed[id] = true
	}
	return &Handler{
		dispatcher: dispatcher,
		sessions:   sessions,
		activity:   activity,
		allowed:    allowed,
		logger:     log.WithComponent("chat-handler"),
	}
}

type webhookRequest struct {
	Type        string `json:"type" validate:"required,oneof=photo button command"`
	PhotoBase64 string `json:"photo_base64,omitempty"`
	Data        string `json:"data,omitempty"`
	Command     string `json:"command,omitempty"`
}

// Webhook receives one inbound chat update. The sender is already
// authenticated by the webhook middleware; the update is queued for the
// sender's session and acknowledged immediately.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	senderID := httputil.GetSenderID(r.Context())
	if senderID == "" {
		httputil.Error(w, errors.Unauthorized("missing sender"))
		return
	}
	if len(h.allowed) > 0 && !h.allowed[senderID] {
		h.logger.Warn().Str("user_id", senderID).Msg("webhook from unknown user rejected")
		httputil.Error(w, errors.New("FORBIDDEN", "user is not allowed to use this bot", http.StatusForbidden))
		return
	}

	var req webhookRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	ev, err := h.toEvent(&req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.dispatcher.Dispatch(senderID, ev)
	httputil.Accepted(w, map[string]string{"status": "queued"})
}

func (h *Handler) toEvent(req *webhookRequest) (session.Event, error) {
	switch req.Type {
	case "photo":
		image, err := base64.StdEncoding.DecodeString(req.PhotoBase64)
		if err != nil || len(image) == 0 {
			return nil, errors.BadRequest("photo_base64 must be non-empty base64")
		}
		return session.PhotoReceived{Image: image}, nil

	case "button":
		switch {
		case req.Data == dataContinue:
			return session.ContinuePressed{}, nil
		case req.Data == dataReject:
			return session.CandidatesRejected{}, nil
		case req.Data == dataInvoiceYes:
			return session.InvoiceAccepted{}, nil
		case req.Data == dataInvoiceNo:
			return session.InvoiceDeclined{}, nil
		case strings.HasPrefix(req.Data, dataChoosePrefix):
			id := strings.TrimPrefix(req.Data, dataChoosePrefix)
			if id == "" {
				return nil, errors.BadRequest("empty reservation choice")
			}
			return session.CandidateChosen{ReservationID: id}, nil
		default:
			return nil, errors.BadRequest("unknown button payload")
		}

	case "command":
		if strings.EqualFold(strings.TrimPrefix(req.Command, "/"), "cancel") {
			return session.Cancel{}, nil
		}
		return nil, errors.BadRequest("unknown command")
	}

	return nil, errors.BadRequest("unknown update type")
}

// LiveSession returns the snapshot of a user's in-flight session
func (h *Handler) LiveSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	snap, ok := h.dispatcher.Snapshot(userID)
	if !ok {
		httputil.Error(w, errors.NotFound("session"))
		return
	}
	httputil.JSON(w, http.StatusOK, snap)
}

// ListSessions returns recently finished sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	records, err := h.sessions.ListRecent(r.Context(), limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"sessions": records,
		"active":   h.dispatcher.ActiveSessions(),
	})
}

// ListActivity returns the newest consumed check-in events
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	entries, err := h.activity.ListRecent(r.Context(), limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"activity": entries,
	})
}

func limitParam(r *http.Request) (int, error) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 200 {
			return 0, errors.BadRequest("limit must be between 1 and 200")
		}
		limit = parsed
	}
	return limit, nil
}
