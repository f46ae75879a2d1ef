// Package feedservice enforces the cross-aggregate consistency rules of
// spec §4.3 (C3) on top of the raw repository.UserRepository and
// repository.PaperRepository primitives: the like/dislike flip rules, the
// "likes" folder's bidirectional sync with the liked feedback set, and the
// snapshot-before-commit upsert ordering. Callers (the HTTP handlers) never
// touch the repositories directly for anything that crosses this boundary.
package feedservice

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/observability"
	"github.com/helixir/literature-review-service/internal/repository"
)

// Service enforces §4.3's invariants over a UserRepository/PaperRepository
// pair. Every method that mutates state runs inside a single UserRepository.Transact
// call for the affected user, so concurrent calls for the same user serialize
// and partial writes never leak out.
type Service struct {
	users   repository.UserRepository
	papers  repository.PaperRepository
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates a feed service over the given repositories.
func New(users repository.UserRepository, papers repository.PaperRepository, logger zerolog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		users:   users,
		papers:  papers,
		logger:  logger.With().Str("component", "feedservice").Logger(),
		metrics: metrics,
	}
}

// upsertSnapshot upserts a paper snapshot into C2 before any C3 mutation
// that references it commits, per §4.3 rule 7. snapshot may be nil, meaning
// the caller supplied no paper_data and the paper is assumed already cached.
func (s *Service) upsertSnapshot(ctx context.Context, snapshot *domain.Paper) error {
	if snapshot == nil {
		return nil
	}
	return s.papers.Put(ctx, snapshot)
}

// GetProfile returns the user's declared interests.
func (s *Service) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	return s.users.GetProfile(ctx, userID)
}

// PutProfile replaces the user's profile wholesale.
func (s *Service) PutProfile(ctx context.Context, userID string, profile domain.Profile) error {
	return s.users.PutProfile(ctx, userID, profile)
}

// ClearProfile resets the user's profile to empty.
func (s *Service) ClearProfile(ctx context.Context, userID string) error {
	return s.users.ClearProfile(ctx, userID)
}

// GetFeedback returns the user's liked and disliked paper id sets.
func (s *Service) GetFeedback(ctx context.Context, userID string) (domain.FeedbackSet, error) {
	return s.users.GetFeedback(ctx, userID)
}

// Like records a like for paperID, flipping any existing dislike and
// inserting paperID at the head of the "likes" folder (§4.3 rules 1, 3, 7).
func (s *Service) Like(ctx context.Context, userID, paperID string, snapshot *domain.Paper) error {
	if err := s.upsertSnapshot(ctx, snapshot); err != nil {
		return err
	}
	err := s.users.Transact(ctx, userID, func(ctx context.Context, repo repository.UserRepository) error {
		if err := repo.EnsureLikesFolder(ctx, userID); err != nil {
			return err
		}
		if err := repo.DeleteFeedback(ctx, userID, paperID, domain.FeedbackDisliked); err != nil {
			return err
		}
		if err := repo.SetFeedback(ctx, userID, paperID, domain.FeedbackLiked); err != nil {
			return err
		}
		return repo.PrependPaperToFolder(ctx, userID, domain.LikesFolderID, paperID)
	})
	if err == nil && s.metrics != nil {
		s.metrics.RecordFeedback("liked")
	}
	return err
}

// Dislike records a dislike for paperID, flipping any existing like and
// removing paperID from the "likes" folder (§4.3 rules 2, 7).
func (s *Service) Dislike(ctx context.Context, userID, paperID string, snapshot *domain.Paper) error {
	if err := s.upsertSnapshot(ctx, snapshot); err != nil {
		return err
	}
	err := s.users.Transact(ctx, userID, func(ctx context.Context, repo repository.UserRepository) error {
		if err := repo.DeleteFeedback(ctx, userID, paperID, domain.FeedbackLiked); err != nil {
			return err
		}
		if err := repo.RemovePaperFromFolder(ctx, userID, domain.LikesFolderID, paperID); err != nil {
			if _, isNotFound := err.(*domain.NotFoundError); !isNotFound {
				return err
			}
		}
		return repo.SetFeedback(ctx, userID, paperID, domain.FeedbackDisliked)
	})
	if err == nil && s.metrics != nil {
		s.metrics.RecordFeedback("disliked")
	}
	return err
}

// Unlike removes a like and its "likes" folder entry (§4.3 rule 4).
func (s *Service) Unlike(ctx context.Context, userID, paperID string) error {
	return s.users.Transact(ctx, userID, func(ctx context.Context, repo repository.UserRepository) error {
		if err := repo.DeleteFeedback(ctx, userID, paperID, domain.FeedbackLiked); err != nil {
			return err
		}
		if err := repo.RemovePaperFromFolder(ctx, userID, domain.LikesFolderID, paperID); err != nil {
			if _, isNotFound := err.(*domain.NotFoundError); !isNotFound {
				return err
			}
		}
		return nil
	})
}

// Undislike removes a dislike record.
func (s *Service) Undislike(ctx context.Context, userID, paperID string) error {
	return s.users.Transact(ctx, userID, func(ctx context.Context, repo repository.UserRepository) error {
		return repo.DeleteFeedback(ctx, userID, paperID, domain.FeedbackDisliked)
	})
}

// ClearFeedback empties the liked set, disliked set, or both. Clearing
// "liked" or "all" also empties the "likes" folder, keeping property 2 true.
func (s *Service) ClearFeedback(ctx context.Context, userID string, target repository.FeedbackClearTarget) error {
	return s.users.Transact(ctx, userID, func(ctx context.Context, repo repository.UserRepository) error {
		if err := repo.ClearFeedback(ctx, userID, target); err != nil {
			return err
		}
		if target == repository.ClearLiked || target == repository.ClearAll {
			folder, err := repo.GetFolder(ctx, userID, domain.LikesFolderID)
			if err != nil {
				if _, isNotFound := err.(*domain.NotFoundError); isNotFound {
					return nil
				}
				return err
			}
			for _, paperID := range append([]string(nil), folder.PaperIDs...) {
				if err := repo.RemovePaperFromFolder(ctx, userID, domain.LikesFolderID, paperID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ListFolders returns every folder the user owns, "likes" first.
func (s *Service) ListFolders(ctx context.Context, userID string) ([]*domain.Folder, error) {
	return s.users.ListFolders(ctx, userID)
}

// GetFolder returns one folder by id, including its papers' ids.
func (s *Service) GetFolder(ctx context.Context, userID, folderID string) (*domain.Folder, error) {
	return s.users.GetFolder(ctx, userID, folderID)
}

// CreateFolder creates a new, non-protected folder.
func (s *Service) CreateFolder(ctx context.Context, userID, name, description string) (*domain.Folder, error) {
	return s.users.CreateFolder(ctx, userID, name, description)
}

// DeleteFolder removes a folder, refusing the protected "likes" folder
// (§4.3 rule 6).
func (s *Service) DeleteFolder(ctx context.Context, userID, folderID string) error {
	if folderID == domain.LikesFolderID {
		return domain.NewForbiddenError("the likes folder cannot be deleted")
	}
	return s.users.DeleteFolder(ctx, userID, folderID)
}

// AddPaperToFolder adds paperID to folderID. Adding to the "likes" folder is
// equivalent to Like, per §4.3 rule 5.
func (s *Service) AddPaperToFolder(ctx context.Context, userID, folderID, paperID string, snapshot *domain.Paper) error {
	if folderID == domain.LikesFolderID {
		return s.Like(ctx, userID, paperID, snapshot)
	}
	if err := s.upsertSnapshot(ctx, snapshot); err != nil {
		return err
	}
	return s.users.Transact(ctx, userID, func(ctx context.Context, repo repository.UserRepository) error {
		return repo.AddPaperToFolder(ctx, userID, folderID, paperID)
	})
}

// RemovePaperFromFolder removes paperID from folderID. Removing from the
// "likes" folder is equivalent to Unlike, per §4.3 rule 5.
func (s *Service) RemovePaperFromFolder(ctx context.Context, userID, folderID, paperID string) error {
	if folderID == domain.LikesFolderID {
		return s.Unlike(ctx, userID, paperID)
	}
	return s.users.Transact(ctx, userID, func(ctx context.Context, repo repository.UserRepository) error {
		return repo.RemovePaperFromFolder(ctx, userID, folderID, paperID)
	})
}

// ListFollows returns every entity the user follows.
func (s *Service) ListFollows(ctx context.Context, userID string) ([]domain.Follow, error) {
	return s.users.ListFollows(ctx, userID)
}

// Follow creates a follow edge, returning the existing edge unchanged and
// created=false if the user already follows this entity (§8 property 7; the
// duplicate-follow open question is resolved as idempotent, not 409).
func (s *Service) Follow(ctx context.Context, userID string, follow domain.Follow) (domain.Follow, bool, error) {
	if !follow.EntityType.Valid() {
		return domain.Follow{}, false, domain.NewValidationError("type", "unknown entity type")
	}
	follow.FollowedAt = time.Now().UTC()

	var result domain.Follow
	var created bool
	err := s.users.Transact(ctx, userID, func(ctx context.Context, repo repository.UserRepository) error {
		var err error
		result, created, err = repo.PutFollow(ctx, userID, follow)
		return err
	})
	if err != nil {
		return domain.Follow{}, false, err
	}
	if created && s.metrics != nil {
		s.metrics.SetFollowsTotal(string(follow.EntityType), 1)
	}
	return result, created, nil
}

// Unfollow removes a follow edge, if present.
func (s *Service) Unfollow(ctx context.Context, userID string, entityType domain.EntityType, entityID string) error {
	return s.users.Transact(ctx, userID, func(ctx context.Context, repo repository.UserRepository) error {
		return repo.DeleteFollow(ctx, userID, entityType, entityID)
	})
}

// EnsureUser upserts a user record on login, per §4.8's callback flow.
func (s *Service) EnsureUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	stored, err := s.users.UpsertUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.users.EnsureLikesFolder(ctx, stored.UserID); err != nil {
		return nil, err
	}
	return stored, nil
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetUser(ctx, userID)
}
