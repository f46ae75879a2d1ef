package httpserver

import (
	"net/http"

	"github.com/helixir/literature-review-service/internal/authgateway"
	"github.com/helixir/literature-review-service/internal/domain"
)

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)

	profile, err := s.feed.GetProfile(r.Context(), principal.UserID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	folders, err := s.feed.ListFolders(r.Context(), principal.UserID)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"topics":  profile.Topics,
		"authors": profile.Authors,
		"folders": folders,
	})
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if len(req.Topics)+len(req.Authors) > domain.MaxProfileEntries*2 {
		writeErr(w, r, domain.NewValidationError("topics/authors", "too many profile entries"))
		return
	}

	if err := s.feed.PutProfile(r.Context(), principal.UserID, domain.Profile{Topics: req.Topics, Authors: req.Authors}); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK())
}

func (s *Server) clearProfile(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)

	if err := s.feed.ClearProfile(r.Context(), principal.UserID); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK())
}
