// Package papersources provides the client contract and shared HTTP/rate-limit
// plumbing for talking to the external bibliographic index that backs every
// feed in the paper discovery service.
//
// There is a single upstream today (OpenAlex, see the openalex subpackage),
// but callers depend on the Source interface defined here rather than the
// concrete client so the search, follow, and recommendation engines never
// import openalex directly.
package papersources

import (
	"context"

	"github.com/helixir/literature-review-service/internal/domain"
)

// Sort is the upstream ordering requested for a search or entity-works call.
type Sort string

const (
	// SortRecency orders by publication date descending.
	SortRecency Sort = "recency"
	// SortRelevance orders by the upstream's own relevance score.
	SortRelevance Sort = "relevance"
)

// Filter is a structured expression of conjunctions over an upstream works
// search, built by the search and follow-fan-out engines from a user's
// topics, authors, years, and institutions (spec.md §4.1).
type Filter struct {
	// TopicGroups is AND-ed across groups; within a group, tokens are OR-ed.
	// Each entry in TopicGroups is one user-supplied topic, possibly a
	// multi-word phrase; the source searches title/abstract for it.
	TopicGroups [][]string

	// AuthorIDs are resolved upstream author ids, OR-ed together.
	AuthorIDs []string

	// UnresolvedAuthorTerms holds author display names that could not be
	// resolved to an id; they degrade to keyword search (spec.md §4.1, §4.5).
	UnresolvedAuthorTerms []string

	// YearMin/YearMax bound publication year (either may be nil).
	YearMin *int
	YearMax *int

	// Years, when non-empty, overrides YearMin/YearMax with the raw parsed
	// year expressions (a mix of literal years, "YYYY-YYYY" ranges) exactly
	// as OpenAlex understands them; used by the natural-language query path.
	Years []string

	// InstitutionIDs are resolved upstream institution ids, OR-ed together.
	InstitutionIDs []string

	// SourceIDs are OR-ed venue/source ids.
	SourceIDs []string
}

// IsEmpty reports whether the filter carries no constraints at all.
func (f Filter) IsEmpty() bool {
	return len(f.TopicGroups) == 0 && len(f.AuthorIDs) == 0 && len(f.UnresolvedAuthorTerms) == 0 &&
		f.YearMin == nil && f.YearMax == nil && len(f.Years) == 0 &&
		len(f.InstitutionIDs) == 0 && len(f.SourceIDs) == 0
}

// SearchResult is the page of papers returned by SearchWorks or WorksByEntity.
type SearchResult struct {
	Papers  []*domain.Paper
	HasMore bool
}

// BulkResult is the outcome of FetchWorksByIDs. Missing carries the subset of
// requested ids the upstream silently dropped (spec.md §4.1's "partial
// failures are surfaced per sub-request" rule) so callers can proceed with
// what they have instead of failing the whole operation.
type BulkResult struct {
	Papers  []*domain.Paper
	Missing []string
}

// Source is the stateless adapter contract over the external bibliographic
// index (spec.md §4.1, component C1). Implementations MUST be safe for
// concurrent use by many callers.
type Source interface {
	// SearchWorks executes one upstream search for filter, returning up to
	// perPage papers starting at page (1-indexed).
	SearchWorks(ctx context.Context, filter Filter, sort Sort, page, perPage int) (*SearchResult, error)

	// FetchWorkByID retrieves a single paper by its opaque upstream id.
	// Returns domain.ErrNotFound if the paper does not exist.
	FetchWorkByID(ctx context.Context, paperID string) (*domain.Paper, error)

	// FetchWorksByIDs retrieves many papers in bulk. The order of ids is not
	// preserved; ids the upstream has no record of are reported in
	// BulkResult.Missing rather than failing the call.
	FetchWorksByIDs(ctx context.Context, paperIDs []string) (*BulkResult, error)

	// SearchEntities resolves free text to up to limit candidate upstream
	// entities of the given type (author, institution, topic, or source).
	SearchEntities(ctx context.Context, entityType domain.EntityType, q string, limit int) ([]domain.Entity, error)

	// WorksByEntity returns up to limit of an entity's works, most recent
	// first by default.
	WorksByEntity(ctx context.Context, entityType domain.EntityType, upstreamID string, sort Sort, limit int) (*SearchResult, error)

	// RelatedWorks returns up to limit works related to paperID, sourced from
	// the record's own related-works list.
	RelatedWorks(ctx context.Context, paperID string, limit int) (*SearchResult, error)
}
