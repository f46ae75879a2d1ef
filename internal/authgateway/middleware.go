package authgateway

import (
	"context"
	"net/http"
	"time"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/observability"
)

// slideFraction: a session is touched to extend its expiry only once it is
// within this fraction of its TTL from expiring, so every authenticated
// request doesn't issue a write.
const slideFraction = 0.5

// RequireAuth resolves the session cookie into an authenticated principal in
// the request context, or responds 401 if absent, forged, or expired (spec.md
// §4.8: "every non-auth endpoint requires a resolved userId; absence -> 401").
func (g *Gateway) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(g.sessionConfig.CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		sessionID, err := g.signer.verify(cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}

		session, err := g.sessions.Get(r.Context(), sessionID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "session expired or unknown")
			return
		}

		g.maybeSlideExpiry(session)

		ctx := observability.WithUserID(r.Context(), session.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Principal extracts the resolved domain.Principal from a request already
// processed by RequireAuth.
func Principal(r *http.Request) domain.Principal {
	return domain.Principal{UserID: observability.UserIDFromContext(r.Context())}
}

func (g *Gateway) maybeSlideExpiry(session *domain.Session) {
	ttl := g.sessionConfig.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	now := time.Now().UTC()
	remaining := session.ExpiresAt.Sub(now)
	if remaining > time.Duration(float64(ttl)*slideFraction) {
		return
	}
	newExpiry := now.Add(ttl)
	go func() {
		_ = g.sessions.Touch(context.Background(), session.SessionID, newExpiry)
	}()
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
