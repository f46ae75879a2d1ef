package authgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/helixir/literature-review-service/internal/config"
	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/observability"
	"github.com/helixir/literature-review-service/internal/repository"
)

// stateCookieName carries the OAuth state value across the redirect to the
// provider and back, independent of the (not-yet-issued) session cookie.
const stateCookieName = "paperfeed_oauth_state"

// stateTTL bounds how long a login attempt may stay "pending" (spec.md §4.8
// state machine) before its state cookie is considered stale.
const stateTTL = 10 * time.Minute

// UserService is the subset of feedservice.Service the gateway needs to
// materialize a user on login.
type UserService interface {
	EnsureUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// Gateway implements C8's OAuth authorization-code flow and session
// issuance/verification.
type Gateway struct {
	sessionConfig config.SessionConfig
	baseURL       string
	spaRedirect   string

	sessions repository.SessionRepository
	users    UserService
	signer   *signer
	oauth2   *oauth2.Config
	userInfo string
	logger   zerolog.Logger
}

// New creates an auth gateway. The authorization-code exchange and
// bearer-token userinfo fetch are handled by golang.org/x/oauth2 rather than
// hand-rolled form-encoding and header-setting.
func New(oauthConfig config.OAuthConfig, sessionConfig config.SessionConfig, baseURL, spaRedirect string, sessions repository.SessionRepository, users UserService, logger zerolog.Logger) *Gateway {
	baseURL = strings.TrimRight(baseURL, "/")

	scopes := strings.Fields(oauthConfig.Scopes)
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}

	return &Gateway{
		sessionConfig: sessionConfig,
		baseURL:       baseURL,
		spaRedirect:   spaRedirect,
		sessions:      sessions,
		users:         users,
		signer:        newSigner(sessionConfig.Secret),
		oauth2: &oauth2.Config{
			ClientID:     oauthConfig.ClientID,
			ClientSecret: oauthConfig.ClientSecret,
			RedirectURL:  baseURL + "/api/auth/callback",
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  oauthConfig.AuthURL,
				TokenURL: oauthConfig.TokenURL,
			},
		},
		userInfo: oauthConfig.UserInfoURL,
		logger:   logger.With().Str("component", "authgateway").Logger(),
	}
}

// HandleLogin builds the provider's authorization URL with a random state
// bound to a short-lived cookie, and redirects the browser there.
func (g *Gateway) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken(24)
	if err != nil {
		http.Error(w, "failed to start login", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.sessionConfig.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(stateTTL),
	})

	http.Redirect(w, r, g.oauth2.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback exchanges the authorization code for tokens, fetches the
// userinfo endpoint, upserts the user, issues a session, and redirects to
// the configured SPA URL.
func (g *Gateway) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "invalid or expired login state", http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	token, err := g.exchangeCode(ctx, code)
	if err != nil {
		g.logger.Error().Err(err).Msg("oauth token exchange failed")
		http.Error(w, "login failed", http.StatusBadGateway)
		return
	}

	info, err := g.fetchUserInfo(ctx, token)
	if err != nil {
		g.logger.Error().Err(err).Msg("oauth userinfo fetch failed")
		http.Error(w, "login failed", http.StatusBadGateway)
		return
	}

	now := time.Now().UTC()
	user, err := g.users.EnsureUser(ctx, &domain.User{
		UserID:      info.Subject,
		Email:       info.Email,
		DisplayName: info.Name,
		PictureURL:  info.Picture,
		CreatedAt:   now,
		LastLoginAt: now,
	})
	if err != nil {
		g.logger.Error().Err(err).Msg("failed to upsert user on login")
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	if err := g.issueSession(w, user.UserID); err != nil {
		g.logger.Error().Err(err).Msg("failed to issue session")
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, g.spaRedirect, http.StatusFound)
}

// HandleLogout clears the session, both server-side and the cookie.
func (g *Gateway) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(g.sessionConfig.CookieName); err == nil {
		if sessionID, err := g.signer.verify(cookie.Value); err == nil {
			_ = g.sessions.Delete(r.Context(), sessionID)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name: g.sessionConfig.CookieName, Value: "", Path: "/", MaxAge: -1,
		Secure: g.sessionConfig.Secure, HttpOnly: true, SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, g.spaRedirect, http.StatusFound)
}

// HandleStatus returns {authenticated, user?}.
func (g *Gateway) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID := observability.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}
	user, err := g.users.GetUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": true, "user": user})
}

// HandleMe returns the current user or null.
func (g *Gateway) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID := observability.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	user, err := g.users.GetUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// issueSession creates a server-side session and sets its signed cookie.
func (g *Gateway) issueSession(w http.ResponseWriter, userID string) error {
	sessionID, err := randomToken(32)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	ttl := g.sessionConfig.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	session := domain.Session{SessionID: sessionID, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}

	if err := g.sessions.Create(context.Background(), session); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     g.sessionConfig.CookieName,
		Value:    g.signer.sign(sessionID),
		Path:     "/",
		HttpOnly: true,
		Secure:   g.sessionConfig.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
	})
	return nil
}

func (g *Gateway) exchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := g.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return token, nil
}

type userInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// fetchUserInfo calls the provider's userinfo endpoint through an
// oauth2-managed client, which attaches the bearer token and refreshes it if
// the provider handed back a refresh token.
func (g *Gateway) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*userInfo, error) {
	client := g.oauth2.Client(ctx, token)

	resp, err := client.Get(g.userInfo)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	if info.Subject == "" {
		return nil, fmt.Errorf("userinfo response missing subject")
	}
	return &info, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
