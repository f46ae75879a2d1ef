package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex's polite pool (with a contact email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPerPage is the default page size for search requests.
	DefaultPerPage = 25

	// maxPerPage is the largest page size OpenAlex accepts.
	maxPerPage = 200

	// idChunkSize is the most ids OpenAlex accepts in one pipe-separated
	// id filter clause.
	idChunkSize = 100

	// bulkFetchConcurrency bounds how many id-chunk requests run at once.
	bulkFetchConcurrency = 4

	doiPrefix        = "https://doi.org/"
	openAlexIDPrefix = "https://openalex.org/"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Email is the contact email sent as mailto for the polite pool.
	Email string

	// Timeout is the request timeout. Defaults to DefaultTimeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Defaults to DefaultRateLimit.
	RateLimit float64

	// BurstSize is the maximum request burst. Defaults to DefaultBurstSize.
	BurstSize int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// Client implements papersources.Source against the OpenAlex API.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.Source = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "PaperFeed/1.0 (mailto:" + cfg.Email + ")",
	})

	return &Client{config: cfg, httpClient: httpClient}
}

// NewWithHTTPClient creates a new OpenAlex client with a caller-supplied HTTP
// client, used by tests to point at a mock server.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// SearchWorks implements papersources.Source.
func (c *Client) SearchWorks(ctx context.Context, filter papersources.Filter, sortOrder papersources.Sort, page, perPage int) (*papersources.SearchResult, error) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}

	reqURL, err := c.worksSearchURL(filter, sortOrder, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("building search url: %w", err)
	}

	var resp WorksResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}

	papers := worksToPapers(resp.Results)
	nextOffset := (page-1)*perPage + len(resp.Results)
	return &papersources.SearchResult{
		Papers:  papers,
		HasMore: nextOffset < resp.Meta.Count,
	}, nil
}

// FetchWorkByID implements papersources.Source.
func (c *Client) FetchWorkByID(ctx context.Context, paperID string) (*domain.Paper, error) {
	reqURL, err := c.workByIDURL(paperID)
	if err != nil {
		return nil, fmt.Errorf("building fetch url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("paper", paperID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, externalError(resp)
	}

	var work Work
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&work); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	paper := workToPaper(&work)
	if paper == nil {
		return nil, domain.NewNotFoundError("paper", paperID)
	}
	return paper, nil
}

// FetchWorksByIDs implements papersources.Source. Requests are chunked to
// idChunkSize ids per call and fanned out with bounded concurrency; ids the
// upstream silently drops are reported back in BulkResult.Missing instead of
// failing the whole bulk fetch.
func (c *Client) FetchWorksByIDs(ctx context.Context, paperIDs []string) (*papersources.BulkResult, error) {
	if len(paperIDs) == 0 {
		return &papersources.BulkResult{}, nil
	}

	chunks := chunkStrings(paperIDs, idChunkSize)
	results := make([][]*domain.Paper, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkFetchConcurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			reqURL, err := c.worksByIDFilterURL(chunk)
			if err != nil {
				return fmt.Errorf("building bulk fetch url: %w", err)
			}
			var resp WorksResponse
			if err := c.getJSON(gctx, reqURL, &resp); err != nil {
				return err
			}
			results[i] = worksToPapers(resp.Results)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	found := make(map[string]struct{})
	out := &papersources.BulkResult{}
	for _, chunk := range results {
		for _, p := range chunk {
			out.Papers = append(out.Papers, p)
			found[p.PaperID] = struct{}{}
		}
	}
	for _, id := range paperIDs {
		if _, ok := found[normalizeOpenAlexID(id)]; !ok {
			out.Missing = append(out.Missing, id)
		}
	}
	return out, nil
}

// SearchEntities implements papersources.Source.
func (c *Client) SearchEntities(ctx context.Context, entityType domain.EntityType, q string, limit int) ([]domain.Entity, error) {
	if limit <= 0 {
		limit = 10
	}

	path, err := entityEndpoint(entityType)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	u.Path = path
	query := url.Values{}
	query.Set("search", q)
	query.Set("per_page", strconv.Itoa(limit))
	c.addMailto(query)
	u.RawQuery = query.Encode()

	switch entityType {
	case domain.EntityAuthor:
		var resp AuthorsResponse
		if err := c.getJSON(ctx, u.String(), &resp); err != nil {
			return nil, err
		}
		entities := make([]domain.Entity, 0, len(resp.Results))
		for _, r := range resp.Results {
			entities = append(entities, domain.Entity{
				ID:         normalizeOpenAlexID(r.ID),
				UpstreamID: r.ID,
				Name:       r.DisplayName,
				WorksCount: r.WorksCount,
			})
		}
		return entities, nil
	case domain.EntityInstitution:
		var resp InstitutionsResponse
		if err := c.getJSON(ctx, u.String(), &resp); err != nil {
			return nil, err
		}
		entities := make([]domain.Entity, 0, len(resp.Results))
		for _, r := range resp.Results {
			entities = append(entities, domain.Entity{
				ID:          normalizeOpenAlexID(r.ID),
				UpstreamID:  r.ID,
				Name:        r.DisplayName,
				WorksCount:  r.WorksCount,
				CountryCode: r.CountryCode,
			})
		}
		return entities, nil
	case domain.EntityTopic:
		var resp TopicsResponse
		if err := c.getJSON(ctx, u.String(), &resp); err != nil {
			return nil, err
		}
		entities := make([]domain.Entity, 0, len(resp.Results))
		for _, r := range resp.Results {
			entities = append(entities, domain.Entity{
				ID:         normalizeOpenAlexID(r.ID),
				UpstreamID: r.ID,
				Name:       r.DisplayName,
				WorksCount: r.WorksCount,
			})
		}
		return entities, nil
	case domain.EntitySource:
		var resp SourcesResponse
		if err := c.getJSON(ctx, u.String(), &resp); err != nil {
			return nil, err
		}
		entities := make([]domain.Entity, 0, len(resp.Results))
		for _, r := range resp.Results {
			entities = append(entities, domain.Entity{
				ID:         normalizeOpenAlexID(r.ID),
				UpstreamID: r.ID,
				Name:       r.DisplayName,
				WorksCount: r.WorksCount,
			})
		}
		return entities, nil
	default:
		return nil, domain.NewValidationError("entityType", "entity search is not supported for this entity type")
	}
}

// WorksByEntity implements papersources.Source.
func (c *Client) WorksByEntity(ctx context.Context, entityType domain.EntityType, upstreamID string, sortOrder papersources.Sort, limit int) (*papersources.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultPerPage
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}

	filterKey, err := entityWorksFilterKey(entityType)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	u.Path = "/works"
	query := url.Values{}
	query.Set("filter", fmt.Sprintf("%s:%s", filterKey, upstreamID))
	query.Set("per_page", strconv.Itoa(limit))
	query.Set("sort", sortParam(sortOrder, false))
	c.addMailto(query)
	u.RawQuery = query.Encode()

	var resp WorksResponse
	if err := c.getJSON(ctx, u.String(), &resp); err != nil {
		return nil, err
	}
	return &papersources.SearchResult{
		Papers:  worksToPapers(resp.Results),
		HasMore: len(resp.Results) < resp.Meta.Count,
	}, nil
}

// RelatedWorks implements papersources.Source. OpenAlex computes related
// works per work record rather than exposing a standalone endpoint, so this
// fetches the source work and resolves the ids it names.
func (c *Client) RelatedWorks(ctx context.Context, paperID string, limit int) (*papersources.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultPerPage
	}

	reqURL, err := c.workByIDURL(paperID)
	if err != nil {
		return nil, fmt.Errorf("building fetch url: %w", err)
	}
	var work Work
	if err := c.getJSON(ctx, reqURL, &work); err != nil {
		return nil, err
	}

	relatedIDs := work.RelatedWorks
	if len(relatedIDs) > limit {
		relatedIDs = relatedIDs[:limit]
	}
	if len(relatedIDs) == 0 {
		return &papersources.SearchResult{}, nil
	}

	bulk, err := c.FetchWorksByIDs(ctx, relatedIDs)
	if err != nil {
		return nil, err
	}
	return &papersources.SearchResult{Papers: bulk.Papers}, nil
}

// getJSON performs a GET and decodes a successful JSON response, mapping
// non-2xx responses to domain errors.
func (c *Client) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return externalError(resp)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func externalError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.NewRateLimitError("OpenAlex", 0)
	}
	return domain.NewExternalAPIError("OpenAlex", resp.StatusCode, string(body), nil)
}

func (c *Client) addMailto(query url.Values) {
	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}
}

// worksSearchURL builds the /works search URL for a structured filter.
func (c *Client) worksSearchURL(filter papersources.Filter, sortOrder papersources.Sort, page, perPage int) (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	u.Path = "/works"

	query := url.Values{}
	clauses := buildFilterClauses(filter)
	if len(clauses) > 0 {
		query.Set("filter", strings.Join(clauses, ","))
	}
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("page", strconv.Itoa(page))

	hasSearchTerm := len(filter.UnresolvedAuthorTerms) > 0
	query.Set("sort", sortParam(sortOrder, hasSearchTerm))
	c.addMailto(query)

	u.RawQuery = query.Encode()
	return u.String(), nil
}

func (c *Client) worksByIDFilterURL(ids []string) (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	u.Path = "/works"

	query := url.Values{}
	query.Set("filter", "ids.openalex:"+strings.Join(ids, "|"))
	query.Set("per_page", strconv.Itoa(len(ids)))
	c.addMailto(query)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// workByIDURL constructs the URL for fetching a single work by OpenAlex ID,
// DOI, PubMed ID, or PMC ID (OpenAlex accepts all of these interchangeably).
func (c *Client) workByIDURL(id string) (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}

	var workID string
	switch {
	case strings.HasPrefix(id, openAlexIDPrefix):
		workID = strings.TrimPrefix(id, openAlexIDPrefix)
	case strings.HasPrefix(id, doiPrefix):
		workID = id
	case strings.HasPrefix(id, "10."):
		workID = doiPrefix + id
	case strings.HasPrefix(id, "doi:"):
		workID = doiPrefix + strings.TrimPrefix(id, "doi:")
	default:
		workID = id
	}

	u.Path = "/works/" + workID
	if c.config.Email != "" {
		query := url.Values{}
		query.Set("mailto", c.config.Email)
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// buildFilterClauses translates a papersources.Filter into OpenAlex filter
// clauses. Clauses are AND-ed together (comma-joined by the caller); tokens
// within a clause are OR-ed with a pipe, matching OpenAlex's own filter
// grammar (docs.openalex.org/how-to-use-the-api/get-lists-of-entities/filter-entity-lists).
func buildFilterClauses(filter papersources.Filter) []string {
	var clauses []string

	for _, group := range filter.TopicGroups {
		if len(group) == 0 {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("title_and_abstract.search:%s", strings.Join(quoteAll(group), "|")))
	}

	if len(filter.UnresolvedAuthorTerms) > 0 {
		clauses = append(clauses, fmt.Sprintf("title_and_abstract.search:%s", strings.Join(quoteAll(filter.UnresolvedAuthorTerms), "|")))
	}

	if len(filter.AuthorIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf("authorships.author.id:%s", strings.Join(filter.AuthorIDs, "|")))
	}

	if len(filter.InstitutionIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf("authorships.institutions.id:%s", strings.Join(filter.InstitutionIDs, "|")))
	}

	if len(filter.SourceIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf("primary_location.source.id:%s", strings.Join(filter.SourceIDs, "|")))
	}

	if len(filter.Years) > 0 {
		clauses = append(clauses, fmt.Sprintf("publication_year:%s", strings.Join(filter.Years, "|")))
	} else if filter.YearMin != nil && filter.YearMax != nil {
		clauses = append(clauses, fmt.Sprintf("publication_year:%d-%d", *filter.YearMin, *filter.YearMax))
	} else if filter.YearMin != nil {
		clauses = append(clauses, fmt.Sprintf("publication_year:>%d", *filter.YearMin-1))
	} else if filter.YearMax != nil {
		clauses = append(clauses, fmt.Sprintf("publication_year:<%d", *filter.YearMax+1))
	}

	return clauses
}

func quoteAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		if strings.ContainsAny(t, " \t") {
			out[i] = `"` + t + `"`
		} else {
			out[i] = t
		}
	}
	return out
}

func sortParam(sortOrder papersources.Sort, hasSearchTerm bool) string {
	switch sortOrder {
	case papersources.SortRecency:
		return "publication_date:desc"
	case papersources.SortRelevance:
		if hasSearchTerm {
			return "relevance_score:desc"
		}
		return "cited_by_count:desc"
	default:
		return "publication_date:desc"
	}
}

func entityEndpoint(entityType domain.EntityType) (string, error) {
	switch entityType {
	case domain.EntityAuthor:
		return "/authors", nil
	case domain.EntityInstitution:
		return "/institutions", nil
	case domain.EntityTopic:
		return "/topics", nil
	case domain.EntitySource:
		return "/sources", nil
	default:
		return "", domain.NewValidationError("entityType", "entity search is not supported for this entity type")
	}
}

func entityWorksFilterKey(entityType domain.EntityType) (string, error) {
	switch entityType {
	case domain.EntityAuthor:
		return "authorships.author.id", nil
	case domain.EntityInstitution:
		return "authorships.institutions.id", nil
	case domain.EntityTopic:
		return "topics.id", nil
	case domain.EntitySource:
		return "primary_location.source.id", nil
	default:
		return "", domain.NewValidationError("entityType", "works-by-entity is not supported for this entity type")
	}
}

func chunkStrings(items []string, size int) [][]string {
	var chunks [][]string
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[0:size:size])
	}
	return append(chunks, items)
}

// worksToPapers converts a page of OpenAlex works to domain papers, dropping
// any work that carries no usable identifier.
func worksToPapers(works []Work) []*domain.Paper {
	papers := make([]*domain.Paper, 0, len(works))
	for i := range works {
		if p := workToPaper(&works[i]); p != nil {
			papers = append(papers, p)
		}
	}
	return papers
}

// workToPaper converts an OpenAlex Work to a domain Paper.
func workToPaper(work *Work) *domain.Paper {
	if work == nil {
		return nil
	}

	paperID := normalizeOpenAlexID(work.ID)
	if paperID == "" {
		return nil
	}

	title := work.DisplayName
	if title == "" {
		title = work.Title
	}
	if title == "" {
		return nil
	}

	authors := make([]domain.Author, 0, len(work.Authorships))
	for _, a := range work.Authorships {
		authors = append(authors, domain.Author{
			DisplayName: a.Author.DisplayName,
			AuthorID:    normalizeOpenAlexID(a.Author.ID),
		})
	}

	var venue string
	if work.PrimaryLocation != nil && work.PrimaryLocation.Source != nil {
		venue = work.PrimaryLocation.Source.DisplayName
	}

	var year *int
	if work.PublicationYear > 0 {
		y := work.PublicationYear
		year = &y
	}

	var citationCount *int
	cc := work.CitedByCount
	citationCount = &cc

	var url string
	if work.PrimaryLocation != nil {
		url = work.PrimaryLocation.LandingPageURL
	}

	now := time.Now()
	return &domain.Paper{
		PaperID:       paperID,
		Title:         title,
		Abstract:      reconstructAbstract(work.AbstractInvertedIndex),
		Authors:       authors,
		Year:          year,
		Venue:         venue,
		DOI:           normalizeDOI(work.DOI),
		URL:           url,
		CitationCount: citationCount,
		CachedAt:      now,
		UpdatedAt:     now,
	}
}

func normalizeDOI(doi string) string {
	if doi == "" {
		return ""
	}
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, doiPrefix)
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(strings.TrimSpace(doi))
}

func normalizeOpenAlexID(id string) string {
	if id == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(id, openAlexIDPrefix))
}

// reconstructAbstract rebuilds abstract text from OpenAlex's inverted index
// format, which maps each word to the list of positions it occupies.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	const maxAbstractWords = 100_000

	totalPairs := 0
	for _, positions := range invertedIndex {
		totalPairs += len(positions)
	}
	if totalPairs > maxAbstractWords {
		return ""
	}

	pairs := make([]posWord, 0, totalPairs)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	var builder strings.Builder
	builder.Grow(totalPairs * 7)
	for i, pair := range pairs {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(pair.word)
	}
	return builder.String()
}
