package utils

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	SessionIDKey contextKey = "session_id"

	// SessionHeader carries the opaque seat-selection session of a client.
	SessionHeader = "X-Session-ID"
)

// GetSessionIDFromContext returns the session id stored by the Session middleware
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(SessionIDKey)
	if val == nil {
		return "", false
	}

	sessionID, ok := val.(string)
	return sessionID, ok && sessionID != ""
}

func SetSessionContext(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// SessionIDFromRequest reads the session from the header first, then the
// session_id query parameter
func SessionIDFromRequest(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(SessionHeader)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("session_id"))
}
