package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/literature-review-service/internal/authgateway"
	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/papersources"
	"github.com/helixir/literature-review-service/internal/searchengine"
)

func (s *Server) searchPapers(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)

	page, err := parsePage(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	perPage, err := s.paging.parsePerPage(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	req := searchengine.Request{
		Topics:  splitCSV(r.URL.Query().Get("topics")),
		Authors: splitCSV(r.URL.Query().Get("authors")),
		SortBy:  papersources.Sort(r.URL.Query().Get("sort_by")),
		Page:    page,
		PerPage: perPage,
	}

	result, err := s.search.Search(r.Context(), principal, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Papers)
}

func (s *Server) searchPapersByQuery(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)

	page, err := parsePage(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	perPage, err := s.paging.parsePerPage(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	req := searchengine.NaturalLanguageRequest{
		Query:   r.URL.Query().Get("q"),
		SortBy:  papersources.Sort(r.URL.Query().Get("sort_by")),
		Page:    page,
		PerPage: perPage,
	}

	result, err := s.search.SearchNaturalLanguage(r.Context(), principal, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Papers)
}

func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	paperID := chi.URLParam(r, "paperID")

	paper, err := s.papers.Get(r.Context(), paperID)
	if err == nil {
		writeJSON(w, http.StatusOK, paper)
		return
	}
	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) {
		writeErr(w, r, err)
		return
	}

	upstream, err := s.source.FetchWorkByID(r.Context(), paperID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if putErr := s.papers.Put(r.Context(), upstream); putErr != nil {
		s.logger.Warn().Err(putErr).Str("paper_id", paperID).Msg("failed to cache fetched paper")
	}
	writeJSON(w, http.StatusOK, upstream)
}

func (s *Server) bulkPapers(w http.ResponseWriter, r *http.Request) {
	ids := splitCSV(r.URL.Query().Get("paper_ids"))
	if len(ids) == 0 {
		writeJSON(w, http.StatusOK, []*domain.Paper{})
		return
	}

	cached, err := s.papers.GetMany(r.Context(), ids)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	have := make(map[string]struct{}, len(cached))
	for _, p := range cached {
		have[p.PaperID] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		result, err := s.source.FetchWorksByIDs(r.Context(), missing)
		if err != nil {
			s.logger.Warn().Err(err).Msg("bulk upstream fetch failed; serving cached subset")
		} else {
			if putErr := s.papers.PutMany(r.Context(), result.Papers); putErr != nil {
				s.logger.Warn().Err(putErr).Msg("failed to cache bulk-fetched papers")
			}
			cached = append(cached, result.Papers...)
		}
	}

	writeJSON(w, http.StatusOK, cached)
}

func (s *Server) similarPapers(w http.ResponseWriter, r *http.Request) {
	paperID := chi.URLParam(r, "paperID")

	limit, err := s.paging.parseLimit(r, "limit")
	if err != nil {
		writeErr(w, r, err)
		return
	}

	result, err := s.source.RelatedWorks(r.Context(), paperID, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if putErr := s.papers.PutMany(r.Context(), result.Papers); putErr != nil {
		s.logger.Warn().Err(putErr).Str("paper_id", paperID).Msg("failed to cache related papers")
	}
	writeJSON(w, http.StatusOK, result.Papers)
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)

	limit, err := s.paging.parseLimit(r, "limit")
	if err != nil {
		writeErr(w, r, err)
		return
	}

	page, err := s.recommend.Recommend(r.Context(), principal, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page.Papers)
}

func (s *Server) parseQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if s.parser == nil {
		writeJSON(w, http.StatusOK, domain.ParsedQuery{Keywords: splitCSV(q)})
		return
	}
	parsed, err := s.parser.Parse(r.Context(), q)
	if err != nil {
		s.logger.Warn().Err(err).Msg("query parse failed; falling back to raw keywords")
		parsed = domain.ParsedQuery{Keywords: []string{q}}
	}
	writeJSON(w, http.StatusOK, parsed)
}
