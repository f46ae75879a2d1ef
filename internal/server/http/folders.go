package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/literature-review-service/internal/authgateway"
	"github.com/helixir/literature-review-service/internal/domain"
)

func (s *Server) listFolders(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)

	folders, err := s.feed.ListFolders(r.Context(), principal.UserID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)

	var req folderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeErr(w, r, validationErrFromStruct("name", err))
		return
	}

	folder, err := s.feed.CreateFolder(r.Context(), principal.UserID, req.Name, req.Description)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (s *Server) getFolder(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)
	folderID := chi.URLParam(r, "folderID")

	folder, err := s.feed.GetFolder(r.Context(), principal.UserID, folderID)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	papers, err := s.papers.GetMany(r.Context(), folder.PaperIDs)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	byID := make(map[string]*domain.Paper, len(papers))
	for _, p := range papers {
		byID[p.PaperID] = p
	}
	ordered := make([]*domain.Paper, 0, len(folder.PaperIDs))
	for _, id := range folder.PaperIDs {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}

	writeJSON(w, http.StatusOK, folderWithPapersDTO{
		FolderID:    folder.FolderID,
		Name:        folder.Name,
		Description: folder.Description,
		Papers:      ordered,
		CreatedAt:   folder.CreatedAt,
		UpdatedAt:   folder.UpdatedAt,
	})
}

func (s *Server) deleteFolder(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)
	folderID := chi.URLParam(r, "folderID")

	if err := s.feed.DeleteFolder(r.Context(), principal.UserID, folderID); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addPaperToFolder(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)
	folderID := chi.URLParam(r, "folderID")

	var req folderAddPaperRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeErr(w, r, validationErrFromStruct("paper_id", err))
		return
	}

	snapshot := req.PaperData.toDomain(time.Now().UTC())
	if err := s.feed.AddPaperToFolder(r.Context(), principal.UserID, folderID, req.PaperID, snapshot); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK())
}

func (s *Server) removePaperFromFolder(w http.ResponseWriter, r *http.Request) {
	principal := authgateway.Principal(r)
	folderID := chi.URLParam(r, "folderID")
	paperID := chi.URLParam(r, "paperID")

	if err := s.feed.RemovePaperFromFolder(r.Context(), principal.UserID, folderID, paperID); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK())
}
