package session

import "context"

type contextKey string

const (
	sessionIDKey contextKey = "checkin_session_id"
	userIDKey    contextKey = "checkin_user_id"
)

// ContextWithSession annotates a context with the session and user IDs so
// collaborators can tag their logs and events without threading the
// identifiers through every call.
func ContextWithSession(ctx context.Context, sessionID, userID string) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return context.WithValue(ctx, userIDKey, userID)
}

// SessionIDFromContext returns the session ID set by ContextWithSession
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok
}

// UserIDFromContext returns the user ID set by ContextWithSession
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}
