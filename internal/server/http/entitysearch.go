package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/literature-review-service/internal/domain"
)

var entitySearchKinds = map[string]domain.EntityType{
	"authors":      domain.EntityAuthor,
	"institutions": domain.EntityInstitution,
	"topics":       domain.EntityTopic,
	"sources":      domain.EntitySource,
}

// entitySearch backs the follow UI's typeahead (spec.md §6): resolving free
// text to candidate upstream entities of a given kind.
func (s *Server) entitySearch(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	entityType, ok := entitySearchKinds[kind]
	if !ok {
		writeErr(w, r, domain.NewValidationError("kind", "must be one of authors, institutions, topics, sources"))
		return
	}

	limit, err := s.paging.parseLimit(r, "limit")
	if err != nil {
		writeErr(w, r, err)
		return
	}

	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"results": []domain.Entity{}})
		return
	}

	results, err := s.source.SearchEntities(r.Context(), entityType, q, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
