package repository

import (
	"context"
	"time"

	"github.com/helixir/literature-review-service/internal/domain"
)

// PaperRepository is the durable key/value paper cache described in spec §4.2.
// PutMany is idempotent and upsert; there is no delete on the hot path.
type PaperRepository interface {
	// Put upserts a single paper by PaperID.
	Put(ctx context.Context, paper *domain.Paper) error

	// PutMany upserts a batch of papers by PaperID in one round trip.
	PutMany(ctx context.Context, papers []*domain.Paper) error

	// Get returns a paper by id, or a *domain.NotFoundError if absent.
	Get(ctx context.Context, paperID string) (*domain.Paper, error)

	// GetMany returns every paper found among ids; missing ids are silently
	// omitted from the result (never an error).
	GetMany(ctx context.Context, paperIDs []string) ([]*domain.Paper, error)

	// Touch bumps a paper's UpdatedAt without changing any other field.
	Touch(ctx context.Context, paperID string) error

	// ListStale returns the ids of every cached paper whose UpdatedAt
	// predates olderThan. Intended for an external freshness sweeper; it
	// reads ids only so the caller can decide how to refresh each one.
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}
