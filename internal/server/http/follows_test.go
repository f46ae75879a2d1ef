package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/helixir/literature-review-service/internal/domain"
)

func TestCreateFollow_Success(t *testing.T) {
	h := newHarness()

	body := `{"type":"author","entityId":"A1","entityName":"Jane Doe"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/follows", jsonBody(body)), "u1")
	req.Header.Set("Content-Type", "application/json")
	rr := serveRoute(http.MethodPost, "/api/follows", h.srv.createFollow, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	follows, err := h.srv.feed.ListFollows(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list follows: %v", err)
	}
	if len(follows) != 1 || follows[0].EntityID != "A1" {
		t.Fatalf("expected one follow of A1, got %+v", follows)
	}
}

func TestCreateFollow_RejectsUnknownType(t *testing.T) {
	h := newHarness()

	body := `{"type":"journal","entityId":"A1"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/follows", jsonBody(body)), "u1")
	req.Header.Set("Content-Type", "application/json")
	rr := serveRoute(http.MethodPost, "/api/follows", h.srv.createFollow, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDeleteFollow_RemovesEdge(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if _, _, err := h.srv.feed.Follow(ctx, "u1", domain.Follow{EntityType: domain.EntityAuthor, EntityID: "A1"}); err != nil {
		t.Fatalf("seed follow: %v", err)
	}

	req := withUser(httptest.NewRequest(http.MethodDelete, "/api/follows/author/A1", nil), "u1")
	rr := serveRoute(http.MethodDelete, "/api/follows/{type}/{entityID}", h.srv.deleteFollow, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	follows, err := h.srv.feed.ListFollows(ctx, "u1")
	if err != nil {
		t.Fatalf("list follows: %v", err)
	}
	if len(follows) != 0 {
		t.Fatalf("expected no follows remaining, got %+v", follows)
	}
}

func TestFollowFeed_EmptyWithNoFollows(t *testing.T) {
	h := newHarness()

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/follows/papers", nil), "u1")
	rr := serveRoute(http.MethodGet, "/api/follows/papers", h.srv.followFeed, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Papers []*domain.Paper `json:"papers"`
		Count  int             `json:"count"`
	}
	decodeBody(t, rr, &resp)
	if resp.Count != 0 {
		t.Errorf("expected empty follow feed, got count %d", resp.Count)
	}
}

func TestFollowFeed_RejectsOutOfRangeLimit(t *testing.T) {
	h := newHarness()

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/follows/papers?limit_per_entity=0", nil), "u1")
	rr := serveRoute(http.MethodGet, "/api/follows/papers", h.srv.followFeed, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}
