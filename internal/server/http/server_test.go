package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/feedservice"
	"github.com/helixir/literature-review-service/internal/followfeed"
	"github.com/helixir/literature-review-service/internal/observability"
	"github.com/helixir/literature-review-service/internal/papersources"
	"github.com/helixir/literature-review-service/internal/recommendengine"
	"github.com/helixir/literature-review-service/internal/repository/memstore"
	"github.com/helixir/literature-review-service/internal/searchengine"
)

// fakeSource is a papersources.Source stub for handler tests. Only the
// methods a given test exercises need real behavior; everything else
// returns an empty, error-free result.
type fakeSource struct {
	entities      map[string][]domain.Entity
	workByID      map[string]*domain.Paper
	relatedWorks  []*domain.Paper
	searchResults []*domain.Paper
}

func (f *fakeSource) SearchWorks(_ context.Context, _ papersources.Filter, _ papersources.Sort, _, _ int) (*papersources.SearchResult, error) {
	return &papersources.SearchResult{Papers: f.searchResults}, nil
}

func (f *fakeSource) FetchWorkByID(_ context.Context, paperID string) (*domain.Paper, error) {
	if p, ok := f.workByID[paperID]; ok {
		return p, nil
	}
	return nil, domain.NewNotFoundError("paper", paperID)
}

func (f *fakeSource) FetchWorksByIDs(_ context.Context, paperIDs []string) (*papersources.BulkResult, error) {
	return &papersources.BulkResult{Missing: paperIDs}, nil
}

func (f *fakeSource) SearchEntities(_ context.Context, _ domain.EntityType, q string, _ int) ([]domain.Entity, error) {
	return f.entities[q], nil
}

func (f *fakeSource) WorksByEntity(_ context.Context, _ domain.EntityType, _ string, _ papersources.Sort, _ int) (*papersources.SearchResult, error) {
	return &papersources.SearchResult{}, nil
}

func (f *fakeSource) RelatedWorks(_ context.Context, _ string, _ int) (*papersources.SearchResult, error) {
	return &papersources.SearchResult{Papers: f.relatedWorks}, nil
}

// harness bundles a Server wired to fresh in-memory stores and real engines,
// letting handler tests exercise the actual C2/C3/C5 wiring instead of mocks.
type harness struct {
	srv    *Server
	users  *memstore.UserStore
	papers *memstore.PaperStore
	source *fakeSource
}

func newHarness() *harness {
	logger := observability.NewLogger(observability.DefaultLoggingConfig())
	users := memstore.NewUserStore()
	papers := memstore.NewPaperStore()
	source := &fakeSource{entities: map[string][]domain.Entity{}, workByID: map[string]*domain.Paper{}}

	search := searchengine.New(source, nil, papers, logger, nil)
	feed := feedservice.New(users, papers, logger, nil)
	follow := followfeed.New(users, papers, source, search, logger, nil)
	recommend := recommendengine.New(users, papers, source, search, logger, nil)

	s := &Server{
		papers:    papers,
		source:    source,
		feed:      feed,
		search:    search,
		follow:    follow,
		recommend: recommend,
		logger:    logger,
		paging: pagingDefaults{
			defaultPerPage: 25, maxPerPage: 200,
			defaultLimit: 20, maxLimit: 100,
		},
	}
	return &harness{srv: s, users: users, papers: papers, source: source}
}

// withUser attaches an authenticated userID to the request context, standing
// in for what authgateway.RequireAuth would have resolved from the session
// cookie (see authgateway.Principal).
func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(observability.WithUserID(r.Context(), userID))
}

// serveRoute dispatches r through a scratch chi router with only the single
// pattern/handler under test mounted, so chi.URLParam resolves inside the
// handler exactly as it would in the full route table.
func serveRoute(method, pattern string, handler http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Method(method, pattern, handler)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, r)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rr.Body.String(), err)
	}
}

func jsonBody(body string) io.Reader { return bytes.NewBufferString(body) }
