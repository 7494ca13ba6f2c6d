package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"cinema-reservation/pkg/utils"

	"go.uber.org/zap"
)

// Session stores the client's seat-selection session, taken from the
// X-Session-ID header or the session_id query parameter. Requests without
// one pass through untouched.
func Session() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessionID := utils.SessionIDFromRequest(r); sessionID != "" {
				r = r.WithContext(utils.SetSessionContext(r.Context(), sessionID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminToken requires "Authorization: Bearer <token>". An empty token
// disables every admin route.
func AdminToken(token string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				utils.ResponseForbidden(w, "Admin access disabled")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			given, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || given == "" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				logger.Warn("Admin check: invalid token",
					zap.String("path", r.URL.Path),
					zap.String("ip", r.RemoteAddr))
				utils.ResponseForbidden(w, "Admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
