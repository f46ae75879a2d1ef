// Package recommendengine implements C7: a composable, profile- and
// likes-driven recommendation strategy over the search engine and the
// upstream related-works endpoint.
package recommendengine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/observability"
	"github.com/helixir/literature-review-service/internal/papersources"
	"github.com/helixir/literature-review-service/internal/repository"
	"github.com/helixir/literature-review-service/internal/searchengine"
)

// Weights are the fixed scoring coefficients of spec.md §4.7 step 5. The
// spec permits exposing these as configuration; this implementation keeps
// them as named constants, matching the rest of the pack's preference for
// explicit defaults over a speculative config surface nobody asked for yet.
type Weights struct {
	Topic  float64
	Author float64
	Year   float64
}

// DefaultWeights are the constants fixed by spec.md §4.7.
var DefaultWeights = Weights{Topic: 0.5, Author: 0.3, Year: 0.2}

const (
	// MaxRecentLikes is M in spec.md §4.7 step 2.
	MaxRecentLikes = 10
	// RelatedPerLike is R in spec.md §4.7 step 2.
	RelatedPerLike = 5

	DefaultLimit = 20
	MaxLimit     = 100
)

// Engine implements C7.
type Engine struct {
	users   repository.UserRepository
	papers  repository.PaperRepository
	source  papersources.Source
	search  *searchengine.Engine
	weights Weights
	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// New creates a recommendation engine using the fixed default weights.
func New(users repository.UserRepository, papers repository.PaperRepository, source papersources.Source, search *searchengine.Engine, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		users:   users,
		papers:  papers,
		source:  source,
		search:  search,
		weights: DefaultWeights,
		logger:  logger.With().Str("component", "recommendengine").Logger(),
		metrics: metrics,
		now:     time.Now,
	}
}

// Recommend builds a ranked recommendation feed for principal (spec.md §4.7).
func (e *Engine) Recommend(ctx context.Context, principal domain.Principal, limit int) (*searchengine.Page, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	profile, err := e.users.GetProfile(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	feedback, err := e.users.GetFeedback(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	if len(profile.Topics) == 0 && len(profile.Authors) == 0 && len(feedback.Liked) == 0 {
		if e.metrics != nil {
			e.metrics.RecordRecommendationServed(true)
		}
		return &searchengine.Page{Papers: nil}, nil
	}

	var candidates []*domain.Paper

	if len(profile.Topics) > 0 || len(profile.Authors) > 0 {
		page, err := e.search.Search(ctx, principal, searchengine.Request{
			Topics:  profile.Topics,
			Authors: profile.Authors,
			SortBy:  papersources.SortRecency,
			Page:    1,
			PerPage: limit,
		})
		if err != nil {
			e.logger.Warn().Err(err).Msg("profile-based search failed, continuing with related-works only")
		} else {
			candidates = append(candidates, page.Papers...)
		}
	}

	recentLikes, err := e.recentLikedPaperIDs(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	for _, paperID := range recentLikes {
		related, err := e.source.RelatedWorks(ctx, paperID, RelatedPerLike)
		if err != nil {
			e.logger.Warn().Err(err).Str("paperId", paperID).Msg("related-works fetch failed")
			continue
		}
		candidates = append(candidates, related.Papers...)
	}

	candidates = dedupe(candidates)
	candidates = excludeSeen(candidates, feedback)

	if len(candidates) == 0 {
		if e.metrics != nil {
			e.metrics.RecordRecommendationServed(true)
		}
		return &searchengine.Page{Papers: nil}, nil
	}

	e.score(candidates, profile)

	if err := e.papers.PutMany(ctx, candidates); err != nil {
		return nil, fmt.Errorf("failed to upsert recommendation candidates: %w", err)
	}

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	if e.metrics != nil {
		e.metrics.RecordRecommendationServed(false)
	}
	return &searchengine.Page{Papers: candidates}, nil
}

// recentLikedPaperIDs returns up to MaxRecentLikes of the user's most
// recently liked paper ids, most recent first. feedback.Liked itself carries
// no ordering (it's a plain set), so this sources order from the "likes"
// folder instead, whose head is always the most recently liked paper
// (repository.UserRepository.PrependPaperToFolder, spec.md §4.3 rule 3). A
// user who has never liked anything has no "likes" folder yet, which is not
// an error.
func (e *Engine) recentLikedPaperIDs(ctx context.Context, userID string) ([]string, error) {
	folder, err := e.users.GetFolder(ctx, userID, domain.LikesFolderID)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(folder.PaperIDs) > MaxRecentLikes {
		return folder.PaperIDs[:MaxRecentLikes], nil
	}
	return folder.PaperIDs, nil
}

// excludeSeen removes any candidate whose paperId is in liked ∪ disliked
// (spec.md §4.7 step 4, §8 property 9).
func excludeSeen(candidates []*domain.Paper, feedback domain.FeedbackSet) []*domain.Paper {
	out := make([]*domain.Paper, 0, len(candidates))
	for _, p := range candidates {
		if feedback.Contains(p.PaperID) {
			continue
		}
		out = append(out, p)
	}
	return out
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

// score ranks candidates by w_topic*topicMatch + w_author*authorMatch +
// w_year*recencyWeight, ties broken by citation count descending then id
// (spec.md §4.7 step 5).
func (e *Engine) score(candidates []*domain.Paper, profile domain.Profile) {
	topics := toSet(profile.Topics)
	authors := toSet(profile.Authors)
	currentYear := e.now().UTC().Year()

	type scored struct {
		paper *domain.Paper
		score float64
	}
	rows := make([]scored, len(candidates))
	for i, p := range candidates {
		rows[i] = scored{paper: p, score: e.scoreOne(p, topics, authors, currentYear)}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		ci, cj := citationCount(rows[i].paper), citationCount(rows[j].paper)
		if ci != cj {
			return ci > cj
		}
		return rows[i].paper.PaperID < rows[j].paper.PaperID
	})
	for i, row := range rows {
		candidates[i] = row.paper
	}
}

func (e *Engine) scoreOne(p *domain.Paper, topics, authors map[string]struct{}, currentYear int) float64 {
	topicMatch := 0.0
	if matchesText(p, topics) {
		topicMatch = 1.0
	}
	authorMatch := 0.0
	for _, a := range p.Authors {
		if _, ok := authors[a.DisplayName]; ok {
			authorMatch = 1.0
			break
		}
	}
	recency := 0.0
	if p.Year != nil {
		recency = recencyWeight(currentYear, *p.Year)
	}
	return e.weights.Topic*topicMatch + e.weights.Author*authorMatch + e.weights.Year*recency
}

// recencyWeight is max(0, 1 - (currentYear-paperYear)/10) per spec.md §4.7.
func recencyWeight(currentYear, paperYear int) float64 {
	age := float64(currentYear - paperYear)
	w := 1 - age/10
	if w < 0 {
		return 0
	}
	return w
}

func matchesText(p *domain.Paper, topics map[string]struct{}) bool {
	title, abstract := strings.ToLower(p.Title), strings.ToLower(p.Abstract)
	for t := range topics {
		if t == "" {
			continue
		}
		needle := strings.ToLower(t)
		if strings.Contains(title, needle) || strings.Contains(abstract, needle) {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func citationCount(p *domain.Paper) int {
	if p.CitationCount == nil {
		return 0
	}
	return *p.CitationCount
}
