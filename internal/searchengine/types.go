// Package searchengine implements C5: it turns a structured or natural
// language search request into an upstream papersources.Filter, issues one
// coalesced upstream call, and bulk-upserts the results into the paper
// cache before returning them.
package searchengine

import (
	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/papersources"
)

// AuthorResolveTopK is how many candidate author ids each resolved author
// display name contributes to the filter (spec.md §4.5 step 1).
const AuthorResolveTopK = 3

// Request is the structured search entry point. Authors carries raw display
// names as typed by the user; the engine resolves what it can and keeps the
// rest as keyword tokens.
type Request struct {
	Topics  []string
	Authors []string
	SortBy  papersources.Sort
	Page    int
	PerPage int
}

// NaturalLanguageRequest is the free-text search entry point; it is parsed
// via C4 into a domain.ParsedQuery before planning proceeds.
type NaturalLanguageRequest struct {
	Query   string
	SortBy  papersources.Sort
	Page    int
	PerPage int
}

// Page is the response envelope returned to the HTTP surface.
type Page struct {
	Papers  []*domain.Paper
	HasMore bool
}
