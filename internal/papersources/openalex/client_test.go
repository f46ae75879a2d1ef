package openalex

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/papersources"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:   serverURL,
		Email:     "test@example.com",
		Timeout:   5 * time.Second,
		RateLimit: 1000,
		BurstSize: 1000,
	}
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "TestClient/1.0",
	})
	return NewWithHTTPClient(cfg, httpClient)
}

func sampleWork() Work {
	return Work{
		ID:              "https://openalex.org/W2741809807",
		DOI:             "https://doi.org/10.1038/nature12373",
		Title:           "CRISPR-Cas Systems",
		DisplayName:     "CRISPR-Cas Systems for Editing, Regulating and Targeting Genomes",
		PublicationYear: 2014,
		PublicationDate: "2014-06-05",
		Type:            "article",
		CitedByCount:    5000,
		Authorships: []Authorship{
			{Author: AuthorRef{ID: "https://openalex.org/A1234567890", DisplayName: "Jane Doe"}},
		},
		PrimaryLocation: &Location{
			Source:         &SourceRef{ID: "https://openalex.org/S100", DisplayName: "Nature"},
			LandingPageURL: "https://example.org/paper",
		},
		RelatedWorks: []string{"https://openalex.org/W222", "https://openalex.org/W333"},
		AbstractInvertedIndex: map[string][]int{
			"CRISPR": {0},
			"edits":  {1},
			"genes":  {2},
		},
	}
}

func TestSearchWorks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("filter"), "title_and_abstract.search:CRISPR")
		assert.Equal(t, "publication_date:desc", r.URL.Query().Get("sort"))

		resp := WorksResponse{
			Meta:    Meta{Count: 1, Page: 1, PerPage: 25},
			Results: []Work{sampleWork()},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.SearchWorks(t.Context(), papersources.Filter{
		TopicGroups: [][]string{{"CRISPR"}},
	}, papersources.SortRecency, 1, 25)
	require.NoError(t, err)
	require.Len(t, result.Papers, 1)
	assert.Equal(t, "W2741809807", result.Papers[0].PaperID)
	assert.Equal(t, "CRISPR-Cas Systems for Editing, Regulating and Targeting Genomes", result.Papers[0].Title)
	assert.Equal(t, "CRISPR edits genes", result.Papers[0].Abstract)
	assert.Equal(t, "10.1038/nature12373", result.Papers[0].DOI)
	assert.False(t, result.HasMore)
}

func TestSearchWorksYearRangeFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("filter")
		assert.Contains(t, filter, "publication_year:2020-2023")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(WorksResponse{Meta: Meta{Count: 0}})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	yearMin, yearMax := 2020, 2023
	_, err := client.SearchWorks(t.Context(), papersources.Filter{
		YearMin: &yearMin,
		YearMax: &yearMax,
	}, papersources.SortRelevance, 1, 25)
	require.NoError(t, err)
}

func TestFetchWorkByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works/W2741809807", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sampleWork())
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	paper, err := client.FetchWorkByID(t.Context(), "W2741809807")
	require.NoError(t, err)
	assert.Equal(t, "W2741809807", paper.PaperID)
	require.Len(t, paper.Authors, 1)
	assert.Equal(t, "Jane Doe", paper.Authors[0].DisplayName)
}

func TestFetchWorkByIDNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.FetchWorkByID(t.Context(), "W000")
	require.Error(t, err)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestFetchWorksByIDsReportsMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := WorksResponse{
			Meta:    Meta{Count: 1},
			Results: []Work{sampleWork()},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.FetchWorksByIDs(t.Context(), []string{"W2741809807", "W9999999999"})
	require.NoError(t, err)
	require.Len(t, result.Papers, 1)
	assert.Equal(t, []string{"W9999999999"}, result.Missing)
}

func TestSearchEntitiesAuthors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/authors", r.URL.Path)
		assert.Equal(t, "Jane Doe", r.URL.Query().Get("search"))
		resp := AuthorsResponse{
			Results: []AuthorRecord{
				{ID: "https://openalex.org/A123", DisplayName: "Jane Doe", WorksCount: 42},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	entities, err := client.SearchEntities(t.Context(), domain.EntityAuthor, "Jane Doe", 5)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "A123", entities[0].ID)
	assert.Equal(t, 42, entities[0].WorksCount)
}

func TestSearchEntitiesUnsupportedType(t *testing.T) {
	client := newTestClient(t, "http://example.invalid")
	_, err := client.SearchEntities(t.Context(), domain.EntityCustom, "whatever", 5)
	require.Error(t, err)
}

func TestWorksByEntity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "authorships.author.id:A123", r.URL.Query().Get("filter"))
		resp := WorksResponse{Meta: Meta{Count: 1}, Results: []Work{sampleWork()}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.WorksByEntity(t.Context(), domain.EntityAuthor, "A123", papersources.SortRecency, 10)
	require.NoError(t, err)
	require.Len(t, result.Papers, 1)
}

func TestRelatedWorks(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/works/W2741809807") {
			_ = json.NewEncoder(w).Encode(sampleWork())
			return
		}
		_ = json.NewEncoder(w).Encode(WorksResponse{
			Meta:    Meta{Count: 1},
			Results: []Work{sampleWork()},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.RelatedWorks(t.Context(), "W2741809807", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Papers)
	assert.Equal(t, 2, calls)
}

func TestReconstructAbstract(t *testing.T) {
	text := reconstructAbstract(map[string][]int{
		"Hello": {0},
		"world": {1},
	})
	assert.Equal(t, "Hello world", text)
}

func TestReconstructAbstractEmpty(t *testing.T) {
	assert.Empty(t, reconstructAbstract(nil))
}

func TestNormalizeDOI(t *testing.T) {
	assert.Equal(t, "10.1038/nature12373", normalizeDOI("https://doi.org/10.1038/NATURE12373"))
	assert.Empty(t, normalizeDOI(""))
}

func TestNormalizeOpenAlexID(t *testing.T) {
	assert.Equal(t, "W123", normalizeOpenAlexID("https://openalex.org/W123"))
	assert.Equal(t, "W123", normalizeOpenAlexID("W123"))
}
