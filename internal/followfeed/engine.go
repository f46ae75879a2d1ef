// Package followfeed implements C6: bounded-parallel fan-out over a user's
// follows, merging each entity's latest works into one deduplicated,
// year-descending feed.
package followfeed

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/observability"
	"github.com/helixir/literature-review-service/internal/papersources"
	"github.com/helixir/literature-review-service/internal/repository"
	"github.com/helixir/literature-review-service/internal/searchengine"
)

// DefaultPerEntityLimit and DefaultTotalLimit are spec.md §4.6's defaults.
const (
	DefaultPerEntityLimit = 50
	DefaultTotalLimit     = 200
	// MaxConcurrency bounds simultaneous per-follow upstream tasks.
	MaxConcurrency = 8
)

// Feed is the merged result of fanning out over a user's follows.
type Feed struct {
	Papers  []*domain.Paper
	Partial bool // true if at least one follow's task failed after retries
}

// Engine implements C6.
type Engine struct {
	users   repository.UserRepository
	papers  repository.PaperRepository
	source  papersources.Source
	search  *searchengine.Engine
	logger  zerolog.Logger
	metrics *observability.Metrics

	// cache holds the last successful merged feed per user, served when
	// every fan-out task fails (spec.md §4.6 "if all fail... cached union").
	cacheMu sync.Mutex
	cache   map[string][]*domain.Paper
}

// New creates a follow fan-out engine.
func New(users repository.UserRepository, papers repository.PaperRepository, source papersources.Source, search *searchengine.Engine, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		users:   users,
		papers:  papers,
		source:  source,
		search:  search,
		logger:  logger.With().Str("component", "followfeed").Logger(),
		metrics: metrics,
		cache:   make(map[string][]*domain.Paper),
	}
}

// Papers returns the merged, deduplicated, year-descending feed for
// principal's follows (spec.md §4.6).
func (e *Engine) Papers(ctx context.Context, principal domain.Principal, perEntityLimit, totalLimit int) (*Feed, error) {
	if perEntityLimit <= 0 {
		perEntityLimit = DefaultPerEntityLimit
	}
	if totalLimit <= 0 {
		totalLimit = DefaultTotalLimit
	}

	follows, err := e.users.ListFollows(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	if len(follows) == 0 {
		return &Feed{Papers: nil}, nil
	}

	results := make([][]*domain.Paper, len(follows))
	failures := make([]bool, len(follows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrency)
	for i, follow := range follows {
		i, follow := i, follow
		g.Go(func() error {
			papers, err := e.fetchForFollow(gctx, principal, follow, perEntityLimit)
			if err != nil {
				e.logger.Warn().Err(err).Str("entityType", string(follow.EntityType)).Str("entityId", follow.EntityID).Msg("follow fan-out task failed")
				failures[i] = true
				return nil
			}
			results[i] = papers
			return nil
		})
	}
	// errgroup.Go's returned errors are always nil above; failures are
	// tracked out-of-band so one entity's failure never cancels the rest.
	_ = g.Wait()

	hadPartialFailure := false
	successCount := 0
	var merged []*domain.Paper
	for i := range follows {
		if failures[i] {
			hadPartialFailure = true
			continue
		}
		successCount++
		merged = append(merged, results[i]...)
	}

	if e.metrics != nil {
		e.metrics.RecordFollowFanout(len(follows), hadPartialFailure)
	}

	if successCount == 0 {
		if cached, ok := e.cachedUnion(principal.UserID); ok {
			return &Feed{Papers: truncate(cached, totalLimit), Partial: true}, nil
		}
		return nil, domain.NewExternalAPIError("followfeed", 0, "all follow fan-out tasks failed", nil)
	}

	merged = dedupe(merged)
	sortByYearDesc(merged)
	merged = truncate(merged, totalLimit)

	if err := e.papers.PutMany(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to upsert follow feed results: %w", err)
	}
	e.setCachedUnion(principal.UserID, merged)

	return &Feed{Papers: merged, Partial: hadPartialFailure}, nil
}

// fetchForFollow dispatches one follow to C1's WorksByEntity, or for custom
// follows, to C5's natural-language search (spec.md §4.6 step 3).
func (e *Engine) fetchForFollow(ctx context.Context, principal domain.Principal, follow domain.Follow, limit int) ([]*domain.Paper, error) {
	if follow.EntityType == domain.EntityCustom {
		// follow.EntityID is opaque (a stable hash of the query, spec.md §4.5)
		// and not searchable text; the human-readable query lives in
		// EntityName.
		page, err := e.search.SearchNaturalLanguage(ctx, principal, searchengine.NaturalLanguageRequest{
			Query:   follow.EntityName,
			SortBy:  papersources.SortRecency,
			Page:    1,
			PerPage: limit,
		})
		if err != nil {
			return nil, err
		}
		return page.Papers, nil
	}

	result, err := e.source.WorksByEntity(ctx, follow.EntityType, follow.UpstreamID, papersources.SortRecency, limit)
	if err != nil {
		return nil, err
	}
	return result.Papers, nil
}

func (e *Engine) cachedUnion(userID string) ([]*domain.Paper, bool) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	papers, ok := e.cache[userID]
	return papers, ok
}

func (e *Engine) setCachedUnion(userID string, papers []*domain.Paper) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache[userID] = papers
}

func dedupe(papers []*domain.Paper) []*domain.Paper {
	seen := make(map[string]struct{}, len(papers))
	out := make([]*domain.Paper, 0, len(papers))
	for _, p := range papers {
		if !p.HasIdentifier() {
			continue
		}
		if _, ok := seen[p.PaperID]; ok {
			continue
		}
		seen[p.PaperID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// sortByYearDesc sorts by year descending with a stable paperId tiebreaker
// (spec.md §4.6 step 5). Papers without a year sort last.
func sortByYearDesc(papers []*domain.Paper) {
	sort.SliceStable(papers, func(i, j int) bool {
		yi, yj := yearOf(papers[i]), yearOf(papers[j])
		if yi != yj {
			return yi > yj
		}
		return papers[i].PaperID < papers[j].PaperID
	})
}

func yearOf(p *domain.Paper) int {
	if p.Year == nil {
		return 0
	}
	return *p.Year
}

func truncate(papers []*domain.Paper, limit int) []*domain.Paper {
	if limit > 0 && len(papers) > limit {
		return papers[:limit]
	}
	return papers
}
