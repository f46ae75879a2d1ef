package authgateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-review-service/internal/config"
	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/feedservice"
	"github.com/helixir/literature-review-service/internal/observability"
	"github.com/helixir/literature-review-service/internal/repository/memstore"
)

func newTestGateway(t *testing.T) (*Gateway, *memstore.SessionStore) {
	t.Helper()
	users := memstore.NewUserStore()
	papers := memstore.NewPaperStore()
	logger := observability.NewLogger(observability.DefaultLoggingConfig())
	svc := feedservice.New(users, papers, logger, nil)
	sessions := memstore.NewSessionStore()

	gw := New(
		config.OAuthConfig{Provider: "google"},
		config.SessionConfig{CookieName: "paperfeed_session", TTL: 30 * 24 * time.Hour},
		"http://localhost:8080", "http://localhost:3000",
		sessions, svc, logger,
	)
	return gw, sessions
}

func TestRequireAuthRejectsMissingCookie(t *testing.T) {
	gw, _ := newTestGateway(t)

	handler := gw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthAcceptsValidSession(t *testing.T) {
	gw, sessions := newTestGateway(t)

	const userID = "u1"
	now := time.Now().UTC()
	session := domain.Session{SessionID: "sess-1", UserID: userID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, sessions.Create(context.Background(), session))

	var gotUserID string
	handler := gw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = Principal(r).UserID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: "paperfeed_session", Value: gw.signer.sign("sess-1")})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, gotUserID)
}

func TestRequireAuthRejectsExpiredSession(t *testing.T) {
	gw, sessions := newTestGateway(t)

	past := time.Now().UTC().Add(-time.Hour)
	session := domain.Session{SessionID: "sess-2", UserID: "u2", CreatedAt: past.Add(-time.Hour), ExpiresAt: past}
	require.NoError(t, sessions.Create(context.Background(), session))

	handler := gw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: "paperfeed_session", Value: gw.signer.sign("sess-2")})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthRejectsForgedCookie(t *testing.T) {
	gw, _ := newTestGateway(t)

	handler := gw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: "paperfeed_session", Value: "forged.deadbeef"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
