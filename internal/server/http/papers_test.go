package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/helixir/literature-review-service/internal/domain"
)

func TestGetPaper_ServesFromCacheWithoutTouchingUpstream(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if err := h.papers.Put(ctx, &domain.Paper{PaperID: "W1", Title: "cached"}); err != nil {
		t.Fatalf("seed paper: %v", err)
	}
	// If the handler fell through to upstream it would 404, since workByID is empty.

	req := httptest.NewRequest(http.MethodGet, "/api/papers/W1", nil)
	rr := serveRoute(http.MethodGet, "/api/papers/{paperID}", h.srv.getPaper, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var paper domain.Paper
	decodeBody(t, rr, &paper)
	if paper.Title != "cached" {
		t.Errorf("expected cached title, got %q", paper.Title)
	}
}

func TestGetPaper_FallsBackToUpstreamAndCaches(t *testing.T) {
	h := newHarness()
	h.source.workByID["W2"] = &domain.Paper{PaperID: "W2", Title: "fetched"}

	req := httptest.NewRequest(http.MethodGet, "/api/papers/W2", nil)
	rr := serveRoute(http.MethodGet, "/api/papers/{paperID}", h.srv.getPaper, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var paper domain.Paper
	decodeBody(t, rr, &paper)
	if paper.Title != "fetched" {
		t.Errorf("expected fetched title, got %q", paper.Title)
	}
	if _, err := h.papers.Get(context.Background(), "W2"); err != nil {
		t.Errorf("expected upstream paper to be cached: %v", err)
	}
}

func TestGetPaper_NotFoundAnywhere(t *testing.T) {
	h := newHarness()

	req := httptest.NewRequest(http.MethodGet, "/api/papers/nope", nil)
	rr := serveRoute(http.MethodGet, "/api/papers/{paperID}", h.srv.getPaper, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestBulkPapers_ServesCachedSubsetWhenUpstreamMissing(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if err := h.papers.Put(ctx, &domain.Paper{PaperID: "W1", Title: "cached"}); err != nil {
		t.Fatalf("seed paper: %v", err)
	}
	h.source.searchResults = nil

	req := httptest.NewRequest(http.MethodGet, "/api/papers/bulk/by-ids?paper_ids=W1,W3", nil)
	rr := serveRoute(http.MethodGet, "/api/papers/bulk/by-ids", h.srv.bulkPapers, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var papers []*domain.Paper
	decodeBody(t, rr, &papers)
	if len(papers) != 1 || papers[0].PaperID != "W1" {
		t.Fatalf("expected only the cached paper (W3 stays missing upstream), got %+v", papers)
	}
}

func TestBulkPapers_EmptyIDsReturnsEmptyList(t *testing.T) {
	h := newHarness()

	req := httptest.NewRequest(http.MethodGet, "/api/papers/bulk/by-ids", nil)
	rr := serveRoute(http.MethodGet, "/api/papers/bulk/by-ids", h.srv.bulkPapers, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var papers []*domain.Paper
	decodeBody(t, rr, &papers)
	if len(papers) != 0 {
		t.Fatalf("expected empty list, got %+v", papers)
	}
}

func TestSimilarPapers_CachesRelatedWorks(t *testing.T) {
	h := newHarness()
	h.source.relatedWorks = []*domain.Paper{{PaperID: "W9", Title: "related"}}

	req := httptest.NewRequest(http.MethodGet, "/api/papers/W1/similar", nil)
	rr := serveRoute(http.MethodGet, "/api/papers/{paperID}/similar", h.srv.similarPapers, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var papers []*domain.Paper
	decodeBody(t, rr, &papers)
	if len(papers) != 1 || papers[0].PaperID != "W9" {
		t.Fatalf("expected related paper W9, got %+v", papers)
	}
	if _, err := h.papers.Get(context.Background(), "W9"); err != nil {
		t.Errorf("expected related paper to be cached: %v", err)
	}
}

func TestSimilarPapers_RejectsOutOfRangeLimit(t *testing.T) {
	h := newHarness()

	req := httptest.NewRequest(http.MethodGet, "/api/papers/W1/similar?limit=0", nil)
	rr := serveRoute(http.MethodGet, "/api/papers/{paperID}/similar", h.srv.similarPapers, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}
