package searchengine_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/observability"
	"github.com/helixir/literature-review-service/internal/papersources"
	"github.com/helixir/literature-review-service/internal/repository/memstore"
	"github.com/helixir/literature-review-service/internal/searchengine"
)

type fakeSource struct {
	mu        sync.Mutex
	calls     int
	papers    []*domain.Paper
	entities  map[string][]domain.Entity
	lastFilter papersources.Filter
}

func (f *fakeSource) SearchWorks(ctx context.Context, filter papersources.Filter, sort papersources.Sort, page, perPage int) (*papersources.SearchResult, error) {
	f.mu.Lock()
	f.calls++
	f.lastFilter = filter
	f.mu.Unlock()
	return &papersources.SearchResult{Papers: f.papers}, nil
}

func (f *fakeSource) FetchWorkByID(ctx context.Context, paperID string) (*domain.Paper, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeSource) FetchWorksByIDs(ctx context.Context, paperIDs []string) (*papersources.BulkResult, error) {
	return &papersources.BulkResult{}, nil
}

func (f *fakeSource) SearchEntities(ctx context.Context, entityType domain.EntityType, q string, limit int) ([]domain.Entity, error) {
	return f.entities[q], nil
}

func (f *fakeSource) WorksByEntity(ctx context.Context, entityType domain.EntityType, upstreamID string, sort papersources.Sort, limit int) (*papersources.SearchResult, error) {
	return &papersources.SearchResult{}, nil
}

func (f *fakeSource) RelatedWorks(ctx context.Context, paperID string, limit int) (*papersources.SearchResult, error) {
	return &papersources.SearchResult{}, nil
}

func year(y int) *int { return &y }

func TestSearchDedupesRepeatedIDs(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{papers: []*domain.Paper{
		{PaperID: "W1", Title: "one", Year: year(2020)},
		{PaperID: "W1", Title: "one-dup", Year: year(2020)},
		{PaperID: "W2", Title: "two", Year: year(2020)},
	}}
	papers := memstore.NewPaperStore()
	logger := observability.NewLogger(observability.DefaultLoggingConfig())
	eng := searchengine.New(src, nil, papers, logger, nil)

	page, err := eng.Search(ctx, domain.Principal{UserID: "u1"}, searchengine.Request{
		Topics: []string{"ml"}, SortBy: papersources.SortRecency, Page: 1, PerPage: 50,
	})
	require.NoError(t, err)
	assert.Len(t, page.Papers, 2)
	assert.Equal(t, "W1", page.Papers[0].PaperID)
	assert.Equal(t, "one", page.Papers[0].Title)
}

func TestSearchCoalescesIdenticalConcurrentRequests(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{papers: []*domain.Paper{{PaperID: "W1", Title: "one"}}}
	papers := memstore.NewPaperStore()
	logger := observability.NewLogger(observability.DefaultLoggingConfig())
	eng := searchengine.New(src, nil, papers, logger, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Search(ctx, domain.Principal{UserID: "u1"}, searchengine.Request{
				Topics: []string{"ml"}, SortBy: papersources.SortRecency, Page: 1, PerPage: 50,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, src.calls)
}

func citations(c int) *int { return &c }

// A regression for a gap where execute never applied the sort tie-break
// spec.md documents, leaving same-year or same-citation-count papers in
// whatever arbitrary order the upstream source (or dedupe) happened to
// produce.
func TestSearchAppliesSortTieBreak(t *testing.T) {
	ctx := context.Background()
	papers := memstore.NewPaperStore()
	logger := observability.NewLogger(observability.DefaultLoggingConfig())

	t.Run("recency ties broken by id ascending", func(t *testing.T) {
		src := &fakeSource{papers: []*domain.Paper{
			{PaperID: "W2", Title: "two", Year: year(2022)},
			{PaperID: "W1", Title: "one", Year: year(2022)},
			{PaperID: "W3", Title: "three", Year: year(2020)},
		}}
		eng := searchengine.New(src, nil, papers, logger, nil)

		page, err := eng.Search(ctx, domain.Principal{UserID: "u1"}, searchengine.Request{
			Topics: []string{"ml"}, SortBy: papersources.SortRecency, Page: 1, PerPage: 50,
		})
		require.NoError(t, err)
		require.Len(t, page.Papers, 3)
		assert.Equal(t, []string{"W1", "W2", "W3"}, []string{page.Papers[0].PaperID, page.Papers[1].PaperID, page.Papers[2].PaperID})
	})

	t.Run("relevance ties broken by citation count descending then id", func(t *testing.T) {
		src := &fakeSource{papers: []*domain.Paper{
			{PaperID: "W2", Title: "two", CitationCount: citations(5)},
			{PaperID: "W1", Title: "one", CitationCount: citations(5)},
			{PaperID: "W3", Title: "three", CitationCount: citations(50)},
		}}
		eng := searchengine.New(src, nil, papers, logger, nil)

		page, err := eng.Search(ctx, domain.Principal{UserID: "u1"}, searchengine.Request{
			Topics: []string{"ml"}, SortBy: papersources.SortRelevance, Page: 1, PerPage: 50,
		})
		require.NoError(t, err)
		require.Len(t, page.Papers, 3)
		assert.Equal(t, []string{"W3", "W1", "W2"}, []string{page.Papers[0].PaperID, page.Papers[1].PaperID, page.Papers[2].PaperID})
	})
}

func TestAuthorResolutionDegradesUnresolvedNamesToKeywords(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{
		papers: []*domain.Paper{{PaperID: "W1", Title: "one"}},
		entities: map[string][]domain.Entity{
			"a": {{ID: "A1", UpstreamID: "https://openalex.org/A1", Name: "a"}},
			"c": {{ID: "A3", UpstreamID: "https://openalex.org/A3", Name: "c"}},
		},
	}
	papers := memstore.NewPaperStore()
	logger := observability.NewLogger(observability.DefaultLoggingConfig())
	eng := searchengine.New(src, nil, papers, logger, nil)

	_, err := eng.Search(ctx, domain.Principal{UserID: "u1"}, searchengine.Request{
		Authors: []string{"a", "b", "c"}, SortBy: papersources.SortRecency, Page: 1, PerPage: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://openalex.org/A1", "https://openalex.org/A3"}, src.lastFilter.AuthorIDs)
	assert.Equal(t, []string{"b"}, src.lastFilter.UnresolvedAuthorTerms)
}
