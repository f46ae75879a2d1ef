package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/literature-review-service/internal/domain"
)

// Compile-time interface verification.
var _ SessionRepository = (*PgSessionRepository)(nil)

// PgSessionRepository is a PostgreSQL implementation of SessionRepository.
type PgSessionRepository struct {
	db DBTX
}

// NewPgSessionRepository creates a new PostgreSQL session repository.
func NewPgSessionRepository(db DBTX) *PgSessionRepository {
	return &PgSessionRepository{db: db}
}

// Create implements SessionRepository.
func (r *PgSessionRepository) Create(ctx context.Context, session domain.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (session_id, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`,
		session.SessionID, session.UserID, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.NewAlreadyExistsError("session", session.SessionID)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get implements SessionRepository.
func (r *PgSessionRepository) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	var sess domain.Session
	err := r.db.QueryRow(ctx, `
		SELECT session_id, user_id, created_at, expires_at FROM sessions
		WHERE session_id = $1 AND expires_at > $2`,
		sessionID, time.Now().UTC(),
	).Scan(&sess.SessionID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("session", sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

// Touch implements SessionRepository.
func (r *PgSessionRepository) Touch(ctx context.Context, sessionID string, newExpiresAt time.Time) error {
	result, err := r.db.Exec(ctx, `UPDATE sessions SET expires_at = $1 WHERE session_id = $2`, newExpiresAt, sessionID)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("session", sessionID)
	}
	return nil
}

// Delete implements SessionRepository.
func (r *PgSessionRepository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired implements SessionRepository.
func (r *PgSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}
