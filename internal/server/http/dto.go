package httpserver

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/literature-review-service/internal/domain"
)

var validate = validator.New()

// feedbackOp is the shape shared by feedservice.Service.Like and .Dislike,
// letting handleFeedbackPost dispatch to either without duplicating the
// request-decoding boilerplate.
type feedbackOp func(ctx context.Context, userID, paperID string, snapshot *domain.Paper) error

// validationErrFromStruct turns a go-playground/validator error into a
// domain.ValidationError naming the first failing field.
func validationErrFromStruct(field string, err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return domain.NewValidationError(verrs[0].Field(), "failed "+verrs[0].Tag()+" validation")
	}
	return domain.NewValidationError(field, err.Error())
}

// paperSnapshotDTO is the client-supplied paper payload that accompanies a
// feedback or folder mutation, upserted into C2 before the user-side
// mutation commits (spec.md §4.3 rule 7). All fields are optional except the
// id; a snapshot with only an id still resolves to whatever C2 already has.
type paperSnapshotDTO struct {
	PaperID       string          `json:"paperId" validate:"required"`
	Title         string          `json:"title"`
	Abstract      string          `json:"abstract"`
	TLDR          string          `json:"tldr"`
	Authors       []authorDTO     `json:"authors"`
	Year          *int            `json:"year"`
	Venue         string          `json:"venue"`
	DOI           string          `json:"doi"`
	URL           string          `json:"url"`
	CitationCount *int            `json:"citationCount"`
}

type authorDTO struct {
	DisplayName string `json:"displayName"`
	AuthorID    string `json:"authorId"`
}

// toDomain converts the wire snapshot into a domain.Paper with CachedAt and
// UpdatedAt both set to now; the caller (feedservice, via its own upsert) is
// the only writer of record, so a fresh snapshot always looks fresh.
func (d *paperSnapshotDTO) toDomain(now time.Time) *domain.Paper {
	if d == nil {
		return nil
	}
	authors := make([]domain.Author, 0, len(d.Authors))
	for _, a := range d.Authors {
		authors = append(authors, domain.Author{DisplayName: a.DisplayName, AuthorID: a.AuthorID})
	}
	return &domain.Paper{
		PaperID:       d.PaperID,
		Title:         d.Title,
		Abstract:      d.Abstract,
		TLDR:          d.TLDR,
		Authors:       authors,
		Year:          d.Year,
		Venue:         d.Venue,
		DOI:           d.DOI,
		URL:           d.URL,
		CitationCount: d.CitationCount,
		CachedAt:      now,
		UpdatedAt:     now,
	}
}

// feedbackRequest is the body of POST /api/feedback/like and .../dislike.
type feedbackRequest struct {
	PaperID    string            `json:"paper_id" validate:"required"`
	PaperData  *paperSnapshotDTO `json:"paper_data"`
}

// profileRequest is the body of PUT /api/profile.
type profileRequest struct {
	Topics  []string `json:"topics"`
	Authors []string `json:"authors"`
}

// folderCreateRequest is the body of POST /api/folders.
type folderCreateRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description"`
}

// folderAddPaperRequest is the body of POST /api/folders/{folderId}/papers.
type folderAddPaperRequest struct {
	PaperID   string            `json:"paper_id" validate:"required"`
	PaperData *paperSnapshotDTO `json:"paper_data"`
}

// folderWithPapersDTO is the response shape for GET /api/folders/{folderId}:
// spec.md §6 requires the single-folder view to embed resolved paper objects
// rather than the bare id list ListFolders returns, mirroring
// original_source/backend/routers/folders.py's get_folder, which returns
// full paper dicts under "papers".
type folderWithPapersDTO struct {
	FolderID    string          `json:"folderId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Papers      []*domain.Paper `json:"papers"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// followCreateRequest is the body of POST /api/follows.
type followCreateRequest struct {
	Type       string `json:"type" validate:"required"`
	EntityID   string `json:"entityId" validate:"required"`
	EntityName string `json:"entityName"`
	OpenAlexID string `json:"openalexId"`
}

func statusOK() map[string]string { return map[string]string{"status": "ok"} }
