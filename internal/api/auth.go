package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/power-analytics/internal/auth"
)

// Bearer challenges sent with 401 responses.
const (
	challengeBearer       = `Bearer`
	challengeInvalidToken = `Bearer error="invalid_token"`
)

// authMiddleware verifies the bearer token on protected routes when
// authentication is enabled, and attaches the identity to the context.
// It is a pass-through when authentication is disabled.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return s.requireToken(next, false)
}

// wsAuthMiddleware is authMiddleware that also accepts ?token=, since
// browsers cannot set headers on a WebSocket handshake.
func (s *Server) wsAuthMiddleware(next http.Handler) http.Handler {
	return s.requireToken(next, true)
}

func (s *Server) requireToken(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authOn {
			next.ServeHTTP(w, r)
			return
		}

		token, err := tokenFromRequest(r, allowQuery)
		if err != nil {
			writeUnauthorized(w, challengeBearer, "bearer token required")
			return
		}

		claims, err := auth.ParseToken(token, s.tokenOpts)
		if err != nil {
			s.logger.Debug("token rejected",
				"error", err,
				"request_id", requestIDFrom(r.Context()),
			)
			writeUnauthorized(w, challengeInvalidToken, "invalid or expired token")
			return
		}

		id := claims.Identity()
		if info := requestInfoFrom(r.Context()); info != nil {
			info.subject = id.Subject
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// tokenFromRequest extracts the bearer token from the Authorization header,
// falling back to the token query parameter when allowQuery is set.
func tokenFromRequest(r *http.Request, allowQuery bool) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", errors.New("malformed authorization header")
		}
		return strings.TrimSpace(token), nil
	}
	if allowQuery {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
	}
	return "", auth.ErrTokenMissing
}
