package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/literature-review-service/internal/authgateway"
	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/followfeed"
)

func (s *Server) listFollows(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)

	follows, err := s.feed.ListFollows(r.Context(), principal.UserID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"follows": follows})
}

func (s *Server) createFollow(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)

	var req followCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeErr(w, r, validationErrFromStruct("entityId", err))
		return
	}

	entityType := domain.EntityType(req.Type)
	if !entityType.Valid() {
		writeErr(w, r, domain.NewValidationError("type", "must be one of author, institution, topic, source, custom"))
		return
	}

	follow := domain.Follow{
		EntityType: entityType,
		EntityID:   req.EntityID,
		EntityName: req.EntityName,
		UpstreamID: req.OpenAlexID,
		FollowedAt: time.Now().UTC(),
	}

	result, _, err := s.feed.Follow(r.Context(), principal.UserID, follow)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "follow": result})
}

func (s *Server) deleteFollow(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)
	entityType := domain.EntityType(chi.URLParam(r, "type"))
	entityID := chi.URLParam(r, "entityID")

	if err := s.feed.Unfollow(r.Context(), principal.UserID, entityType, entityID); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) followFeed(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)

	perEntityLimit, err := parseBoundedInt(r, "limit_per_entity", followfeed.DefaultPerEntityLimit, 1, followfeed.DefaultTotalLimit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	totalLimit, err := parseBoundedInt(r, "total_limit", followfeed.DefaultTotalLimit, 1, followfeed.DefaultTotalLimit*5)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	feed, err := s.follow.Papers(r.Context(), principal, perEntityLimit, totalLimit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"papers": feed.Papers, "count": len(feed.Papers)})
}
