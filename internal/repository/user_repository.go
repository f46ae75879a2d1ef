package repository

import (
	"context"

	"github.com/helixir/literature-review-service/internal/domain"
)

// UserRepository is the per-user aggregate store described in spec §4.3: a
// user's identity, declared profile, feedback, folders, and follows.
//
// Every mutation below is a raw storage operation; it does NOT enforce the
// cross-aggregate invariants of spec §4.3 (like/dislike flips, the "likes"
// folder's bidirectional sync, the folder's protected status). Those live
// in internal/feedservice, which composes these primitives inside Transact.
type UserRepository interface {
	// GetUser returns a user by id, or a *domain.NotFoundError if absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user, bumping LastLoginAt. Used by the
	// OAuth callback to materialize a principal on first and subsequent logins.
	UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error)

	// GetProfile returns the user's declared interests. A user with no
	// profile yet returns a zero-value Profile, not an error.
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)

	// PutProfile replaces the user's profile wholesale.
	PutProfile(ctx context.Context, userID string, profile domain.Profile) error

	// ClearProfile resets the user's profile to empty.
	ClearProfile(ctx context.Context, userID string) error

	// GetFeedback returns the user's liked and disliked paper id sets.
	GetFeedback(ctx context.Context, userID string) (domain.FeedbackSet, error)

	// SetFeedback inserts or updates a single feedback record, overwriting any
	// existing record for the same paper (including flipping its action).
	SetFeedback(ctx context.Context, userID, paperID string, action domain.FeedbackAction) error

	// DeleteFeedback removes the record for (userID, paperID) matching action,
	// if any. It is a no-op if no matching record exists.
	DeleteFeedback(ctx context.Context, userID, paperID string, action domain.FeedbackAction) error

	// ClearFeedback empties the liked set, disliked set, or both.
	ClearFeedback(ctx context.Context, userID string, target FeedbackClearTarget) error

	// ListFolders returns every folder the user owns, "likes" first.
	ListFolders(ctx context.Context, userID string) ([]*domain.Folder, error)

	// GetFolder returns one folder by id, or a *domain.NotFoundError.
	GetFolder(ctx context.Context, userID, folderID string) (*domain.Folder, error)

	// EnsureLikesFolder creates the user's "likes" folder if it does not
	// already exist. Idempotent.
	EnsureLikesFolder(ctx context.Context, userID string) error

	// CreateFolder creates a new, non-protected folder.
	CreateFolder(ctx context.Context, userID, name, description string) (*domain.Folder, error)

	// DeleteFolder removes a folder. Returns a *domain.ForbiddenError for the
	// "likes" folder.
	DeleteFolder(ctx context.Context, userID, folderID string) error

	// AddPaperToFolder appends paperID to the folder if absent (idempotent,
	// preserves first-insertion position).
	AddPaperToFolder(ctx context.Context, userID, folderID, paperID string) error

	// PrependPaperToFolder inserts paperID at the head of the folder if
	// absent (idempotent). Used exclusively for the "likes" folder, whose
	// most-recently-liked paper must sort first per spec §4.3.
	PrependPaperToFolder(ctx context.Context, userID, folderID, paperID string) error

	// RemovePaperFromFolder removes paperID from the folder if present.
	RemovePaperFromFolder(ctx context.Context, userID, folderID, paperID string) error

	// ListFollows returns every entity the user follows.
	ListFollows(ctx context.Context, userID string) ([]domain.Follow, error)

	// GetFollow returns a single follow edge, or a *domain.NotFoundError.
	GetFollow(ctx context.Context, userID string, entityType domain.EntityType, entityID string) (*domain.Follow, error)

	// PutFollow creates a follow edge. Idempotent: repeating the same
	// (entityType, entityID) pair returns the existing edge unchanged.
	PutFollow(ctx context.Context, userID string, follow domain.Follow) (domain.Follow, bool, error)

	// DeleteFollow removes a follow edge, if present.
	DeleteFollow(ctx context.Context, userID string, entityType domain.EntityType, entityID string) error

	// Transact runs fn against a repository bound to a single per-user
	// transaction (Postgres) or a held per-user mutex (in-memory), so every
	// store operation fn performs commits atomically or not at all. No
	// network I/O should happen outside of fn's calls to the handed-in repo.
	Transact(ctx context.Context, userID string, fn func(ctx context.Context, repo UserRepository) error) error
}
