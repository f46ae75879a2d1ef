package domain

import "time"

// Session is a server-side record backing a signed session cookie. The
// cookie carries only the opaque SessionID; every other field lives here so
// a compromised cookie value reveals nothing about the user it belongs to.
type Session struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is no longer valid at instant now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
