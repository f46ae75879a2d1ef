// Package queryparser defines the contract C5's search engine uses to turn a
// free-text query into structured search signal before building an upstream
// filter.
package queryparser

import (
	"context"

	"github.com/helixir/literature-review-service/internal/domain"
)

// Parser converts free text into a ParsedQuery. Implementations are advisory:
// an empty ParsedQuery tells the caller to treat the whole text as keywords,
// and a Parser MUST NOT be the only path to a usable search -- callers always
// have a deterministic fallback available.
type Parser interface {
	Parse(ctx context.Context, text string) (domain.ParsedQuery, error)
}
