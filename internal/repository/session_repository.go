package repository

import (
	"context"
	"time"

	"github.com/helixir/literature-review-service/internal/domain"
)

// SessionRepository stores the server-side half of the OAuth session (C8):
// the opaque session id, the user it belongs to, and its sliding expiry.
// The HMAC-signed cookie never carries the user id directly.
type SessionRepository interface {
	// Create inserts a new session. SessionID must be unique; colliding ids
	// return a *domain.AlreadyExistsError (practically unreachable given the
	// id's entropy, but kept explicit rather than silently overwritten).
	Create(ctx context.Context, session domain.Session) error

	// Get returns a session by id, or a *domain.NotFoundError if absent or
	// already expired.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// Touch extends a session's ExpiresAt to implement sliding expiry.
	Touch(ctx context.Context, sessionID string, newExpiresAt time.Time) error

	// Delete removes a session. A no-op if it does not exist, so logout is
	// idempotent.
	Delete(ctx context.Context, sessionID string) error

	// DeleteExpired removes every session whose ExpiresAt has passed as of
	// now, returning the count removed. Intended for a periodic sweeper.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
