package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/literature-review-service/internal/authgateway"
	"github.com/helixir/literature-review-service/internal/repository"
)

func (s *Server) getFeedback(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)

	feedback, err := s.feed.GetFeedback(r.Context(), principal.UserID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feedback)
}

func (s *Server) postLike(w http.ResponseWriter, r *http.Request) {
	s.handleFeedbackPost(w, r, s.feed.Like)
}

func (s *Server) postDislike(w http.ResponseWriter, r *http.Request) {
	s.handleFeedbackPost(w, r, s.feed.Dislike)
}

func (s *Server) handleFeedbackPost(w http.ResponseWriter, r *http.Request, op feedbackOp) {
	principal := authgateway.Principal(r)

	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeErr(w, r, validationErrFromStruct("paper_id", err))
		return
	}

	snapshot := req.PaperData.toDomain(time.Now().UTC())
	if err := op(r.Context(), principal.UserID, req.PaperID, snapshot); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK())
}

func (s *Server) deleteLike(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)
	paperID := chi.URLParam(r, "paperID")

	if err := s.feed.Unlike(r.Context(), principal.UserID, paperID); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK())
}

func (s *Server) deleteDislike(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)
	paperID := chi.URLParam(r, "paperID")

	if err := s.feed.Undislike(r.Context(), principal.UserID, paperID); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK())
}

func (s *Server) clearFeedback(target repository.FeedbackClearTarget) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := authgateway.Principal(r)

		if err := s.feed.ClearFeedback(r.Context(), principal.UserID, target); err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, statusOK())
	}
}
