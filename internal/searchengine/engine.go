package searchengine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/observability"
	"github.com/helixir/literature-review-service/internal/papersources"
	"github.com/helixir/literature-review-service/internal/queryparser"
	"github.com/helixir/literature-review-service/internal/repository"
)

// Engine implements C5: structured and natural-language search, converging
// on the same upstream plan, coalesced via a fingerprint-keyed singleflight
// group so concurrent identical requests share one upstream call.
type Engine struct {
	source  papersources.Source
	parser  queryparser.Parser
	papers  repository.PaperRepository
	logger  zerolog.Logger
	metrics *observability.Metrics

	group singleflight.Group
}

// New creates a search engine. parser may be nil; the engine then treats
// every natural-language query as raw keywords (spec.md §4.4).
func New(source papersources.Source, parser queryparser.Parser, papers repository.PaperRepository, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		source:  source,
		parser:  parser,
		papers:  papers,
		logger:  logger.With().Str("component", "searchengine").Logger(),
		metrics: metrics,
	}
}

// Search executes a structured search request for principal.
func (e *Engine) Search(ctx context.Context, principal domain.Principal, req Request) (*Page, error) {
	req = clampRequest(req)
	filter, err := e.buildFilter(ctx, req.Topics, req.Authors, nil)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, principal, filter, req.SortBy, req.Page, req.PerPage)
}

// SearchNaturalLanguage parses q via C4 into a structured Request, retaining
// the raw query as a fallback keyword set if the parser extracts nothing and
// also tolerating a nil parser entirely (spec.md §4.4, §4.5).
func (e *Engine) SearchNaturalLanguage(ctx context.Context, principal domain.Principal, req NaturalLanguageRequest) (*Page, error) {
	req.SortBy, req.Page, req.PerPage = clampSort(req.SortBy), clampPage(req.Page), clampPerPage(req.PerPage)

	var parsed domain.ParsedQuery
	if e.parser != nil {
		var err error
		parsed, err = e.parser.Parse(ctx, req.Query)
		if err != nil {
			e.logger.Warn().Err(err).Msg("query parse failed, falling back to raw keywords")
			parsed = domain.ParsedQuery{}
		}
	}
	if parsed.IsEmpty() {
		parsed.Keywords = []string{req.Query}
	}

	filter, err := e.buildFilter(ctx, parsed.Keywords, parsed.Authors, parsed)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, principal, filter, req.SortBy, req.Page, req.PerPage)
}

// buildFilter resolves author display names to upstream ids via C1's entity
// search (top K=3 ids per name; unresolved names degrade to keyword tokens),
// resolves parsed institution names to their top upstream id the same way
// (unresolved institution names are dropped), and assembles the remaining
// constraints into a papersources.Filter (spec.md §4.5 steps 1-2).
func (e *Engine) buildFilter(ctx context.Context, topics, authors []string, parsed domain.ParsedQuery) (papersources.Filter, error) {
	filter := papersources.Filter{}
	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		filter.TopicGroups = append(filter.TopicGroups, []string{topic})
	}

	for _, author := range authors {
		author = strings.TrimSpace(author)
		if author == "" {
			continue
		}
		entities, err := e.source.SearchEntities(ctx, domain.EntityAuthor, author, AuthorResolveTopK)
		if err != nil || len(entities) == 0 {
			filter.UnresolvedAuthorTerms = append(filter.UnresolvedAuthorTerms, author)
			continue
		}
		for _, ent := range entities {
			filter.AuthorIDs = append(filter.AuthorIDs, ent.UpstreamID)
		}
	}

	if !parsed.IsEmpty() {
		filter.Years = parsed.Years
		for _, institution := range parsed.Institutions {
			institution = strings.TrimSpace(institution)
			if institution == "" {
				continue
			}
			entities, err := e.source.SearchEntities(ctx, domain.EntityInstitution, institution, 1)
			if err != nil || len(entities) == 0 {
				continue
			}
			filter.InstitutionIDs = append(filter.InstitutionIDs, entities[0].UpstreamID)
		}
	}

	return filter, nil
}

// execute issues (or joins) the single-flight-coalesced upstream call for
// the given plan, bulk-upserts the results, and returns the deduplicated page.
func (e *Engine) execute(ctx context.Context, principal domain.Principal, filter papersources.Filter, sortBy papersources.Sort, page, perPage int) (*Page, error) {
	key := fingerprint(principal, filter, sortBy, page, perPage)

	v, err, shared := e.group.Do(key, func() (interface{}, error) {
		result, err := e.source.SearchWorks(ctx, filter, sortBy, page, perPage)
		if err != nil {
			return nil, err
		}
		papers := dedupe(result.Papers)
		sortResults(papers, sortBy)
		if err := e.papers.PutMany(ctx, papers); err != nil {
			return nil, fmt.Errorf("failed to upsert search results: %w", err)
		}
		return &Page{Papers: papers, HasMore: result.HasMore}, nil
	})
	if err != nil {
		return nil, err
	}
	if shared && e.metrics != nil {
		e.metrics.RecordSingleflightCoalesced()
	}
	return v.(*Page), nil
}

// dedupe removes repeated paperIds, keeping the first occurrence (spec.md
// §4.5's dedup rule).
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

// sortResults imposes the deterministic tie-break spec.md §4.5's "Sort
// semantics" documents: recency by year descending then id; relevance by
// citation count descending then id. OpenAlex's sort parameter
// (openalex/client.go's sortParam) carries only one field, so two papers
// tied on the requested primary key can otherwise come back in
// upstream-arbitrary order; mirrors followfeed's sortByYearDesc and
// recommendengine's score/citation-count tie-break in shape.
func sortResults(papers []*domain.Paper, sortBy papersources.Sort) {
	if sortBy == papersources.SortRelevance {
		sort.SliceStable(papers, func(i, j int) bool {
			ci, cj := citationCountOf(papers[i]), citationCountOf(papers[j])
			if ci != cj {
				return ci > cj
			}
			return papers[i].PaperID < papers[j].PaperID
		})
		return
	}
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

func citationCountOf(p *domain.Paper) int {
	if p.CitationCount == nil {
		return 0
	}
	return *p.CitationCount
}

// fingerprint is a deterministic SHA-256 hash over everything that defines a
// request's response, used as the single-flight coalescing key (spec.md
// §4.5, Glossary "Fingerprint").
func fingerprint(principal domain.Principal, filter papersources.Filter, sortBy papersources.Sort, page, perPage int) string {
	sortedFilter := filter
	sort.Strings(sortedFilter.AuthorIDs)
	sort.Strings(sortedFilter.UnresolvedAuthorTerms)
	sort.Strings(sortedFilter.InstitutionIDs)
	sort.Strings(sortedFilter.SourceIDs)
	sort.Strings(sortedFilter.Years)

	payload, _ := json.Marshal(struct {
		UserID  string
		Filter  papersources.Filter
		SortBy  papersources.Sort
		Page    int
		PerPage int
	}{principal.UserID, sortedFilter, sortBy, page, perPage})

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func clampRequest(req Request) Request {
	req.SortBy = clampSort(req.SortBy)
	req.Page = clampPage(req.Page)
	req.PerPage = clampPerPage(req.PerPage)
	return req
}

func clampSort(s papersources.Sort) papersources.Sort {
	if s == papersources.SortRelevance {
		return papersources.SortRelevance
	}
	return papersources.SortRecency
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func clampPerPage(perPage int) int {
	switch {
	case perPage <= 0:
		return 25
	case perPage > 200:
		return 200
	default:
		return perPage
	}
}
