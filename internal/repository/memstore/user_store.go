package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/repository"
)

var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is an in-memory implementation of repository.UserRepository.
// Transact serializes callers per user via a real mutex, matching the
// isolation the PostgreSQL implementation gets from its advisory lock.
type UserStore struct {
	dataMu   sync.Mutex
	users    map[string]*domain.User
	profiles map[string]domain.Profile
	feedback map[string]map[string]domain.FeedbackAction
	folders  map[string]map[string]*domain.Folder
	// folderOrder preserves folder creation order, since Go maps don't.
	folderOrder map[string][]string
	follows     map[string]map[string]domain.Follow

	lockMu    sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewUserStore creates an empty user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:       make(map[string]*domain.User),
		profiles:    make(map[string]domain.Profile),
		feedback:    make(map[string]map[string]domain.FeedbackAction),
		folders:     make(map[string]map[string]*domain.Folder),
		folderOrder: make(map[string][]string),
		follows:     make(map[string]map[string]domain.Follow),
		userLocks:   make(map[string]*sync.Mutex),
	}
}

func (s *UserStore) userLock(userID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// Transact implements repository.UserRepository.
func (s *UserStore) Transact(ctx context.Context, userID string, fn func(ctx context.Context, repo repository.UserRepository) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return fn(ctx, s)
}

func followKey(entityType domain.EntityType, entityID string) string {
	return string(entityType) + ":" + entityID
}

func cloneFolder(f *domain.Folder) *domain.Folder {
	if f == nil {
		return nil
	}
	cp := *f
	cp.PaperIDs = append([]string(nil), f.PaperIDs...)
	return &cp
}

// GetUser implements repository.UserRepository.
func (s *UserStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, domain.NewNotFoundError("user", userID)
	}
	cp := *u
	return &cp, nil
}

// UpsertUser implements repository.UserRepository.
func (s *UserStore) UpsertUser(_ context.Context, user *domain.User) (*domain.User, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.users[user.UserID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.LastLoginAt = now

	cp := *user
	s.users[user.UserID] = &cp
	return user, nil
}

// GetProfile implements repository.UserRepository.
func (s *UserStore) GetProfile(_ context.Context, userID string) (domain.Profile, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	return s.profiles[userID], nil
}

// PutProfile implements repository.UserRepository.
func (s *UserStore) PutProfile(_ context.Context, userID string, profile domain.Profile) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.profiles[userID] = profile
	return nil
}

// ClearProfile implements repository.UserRepository.
func (s *UserStore) ClearProfile(_ context.Context, userID string) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	delete(s.profiles, userID)
	return nil
}

// GetFeedback implements repository.UserRepository.
func (s *UserStore) GetFeedback(_ context.Context, userID string) (domain.FeedbackSet, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	var set domain.FeedbackSet
	for paperID, action := range s.feedback[userID] {
		switch action {
		case domain.FeedbackLiked:
			set.Liked = append(set.Liked, paperID)
		case domain.FeedbackDisliked:
			set.Disliked = append(set.Disliked, paperID)
		}
	}
	return set, nil
}

// SetFeedback implements repository.UserRepository.
func (s *UserStore) SetFeedback(_ context.Context, userID, paperID string, action domain.FeedbackAction) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	if s.feedback[userID] == nil {
		s.feedback[userID] = make(map[string]domain.FeedbackAction)
	}
	s.feedback[userID][paperID] = action
	return nil
}

// DeleteFeedback implements repository.UserRepository.
func (s *UserStore) DeleteFeedback(_ context.Context, userID, paperID string, action domain.FeedbackAction) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	if m := s.feedback[userID]; m != nil && m[paperID] == action {
		delete(m, paperID)
	}
	return nil
}

// ClearFeedback implements repository.UserRepository.
func (s *UserStore) ClearFeedback(_ context.Context, userID string, target repository.FeedbackClearTarget) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	m := s.feedback[userID]
	if m == nil {
		return nil
	}
	switch target {
	case repository.ClearLiked:
		for paperID, action := range m {
			if action == domain.FeedbackLiked {
				delete(m, paperID)
			}
		}
	case repository.ClearDisliked:
		for paperID, action := range m {
			if action == domain.FeedbackDisliked {
				delete(m, paperID)
			}
		}
	default:
		delete(s.feedback, userID)
	}
	return nil
}

// ListFolders implements repository.UserRepository, "likes" first.
func (s *UserStore) ListFolders(_ context.Context, userID string) ([]*domain.Folder, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	var folders []*domain.Folder
	if likes, ok := s.folders[userID][domain.LikesFolderID]; ok {
		folders = append(folders, cloneFolder(likes))
	}
	for _, folderID := range s.folderOrder[userID] {
		if folderID == domain.LikesFolderID {
			continue
		}
		if f, ok := s.folders[userID][folderID]; ok {
			folders = append(folders, cloneFolder(f))
		}
	}
	return folders, nil
}

// GetFolder implements repository.UserRepository.
func (s *UserStore) GetFolder(_ context.Context, userID, folderID string) (*domain.Folder, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	f, ok := s.folders[userID][folderID]
	if !ok {
		return nil, domain.NewNotFoundError("folder", folderID)
	}
	return cloneFolder(f), nil
}

// EnsureLikesFolder implements repository.UserRepository.
func (s *UserStore) EnsureLikesFolder(_ context.Context, userID string) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.ensureFolderLocked(userID, domain.LikesFolderID, "Likes", "")
	return nil
}

func (s *UserStore) ensureFolderLocked(userID, folderID, name, description string) *domain.Folder {
	if s.folders[userID] == nil {
		s.folders[userID] = make(map[string]*domain.Folder)
	}
	if f, ok := s.folders[userID][folderID]; ok {
		return f
	}
	now := time.Now().UTC()
	f := &domain.Folder{
		FolderID:    folderID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.folders[userID][folderID] = f
	s.folderOrder[userID] = append(s.folderOrder[userID], folderID)
	return f
}

// CreateFolder implements repository.UserRepository.
func (s *UserStore) CreateFolder(_ context.Context, userID, name, description string) (*domain.Folder, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	folderID := uuid.NewString()
	f := s.ensureFolderLocked(userID, folderID, name, description)
	return cloneFolder(f), nil
}

// DeleteFolder implements repository.UserRepository.
func (s *UserStore) DeleteFolder(_ context.Context, userID, folderID string) error {
	if folderID == domain.LikesFolderID {
		return domain.NewForbiddenError("the likes folder cannot be deleted")
	}

	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	if _, ok := s.folders[userID][folderID]; !ok {
		return domain.NewNotFoundError("folder", folderID)
	}
	delete(s.folders[userID], folderID)
	order := s.folderOrder[userID]
	for i, id := range order {
		if id == folderID {
			s.folderOrder[userID] = append(order[:i], order[i+1:]...)
			break
		}
	}
	return nil
}

// AddPaperToFolder implements repository.UserRepository.
func (s *UserStore) AddPaperToFolder(_ context.Context, userID, folderID, paperID string) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	f, ok := s.folders[userID][folderID]
	if !ok {
		return domain.NewNotFoundError("folder", folderID)
	}
	if !f.ContainsPaper(paperID) {
		f.PaperIDs = append(f.PaperIDs, paperID)
	}
	f.UpdatedAt = time.Now().UTC()
	return nil
}

// PrependPaperToFolder implements repository.UserRepository.
func (s *UserStore) PrependPaperToFolder(_ context.Context, userID, folderID, paperID string) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	f, ok := s.folders[userID][folderID]
	if !ok {
		return domain.NewNotFoundError("folder", folderID)
	}
	if !f.ContainsPaper(paperID) {
		f.PaperIDs = append([]string{paperID}, f.PaperIDs...)
	}
	f.UpdatedAt = time.Now().UTC()
	return nil
}

// RemovePaperFromFolder implements repository.UserRepository.
func (s *UserStore) RemovePaperFromFolder(_ context.Context, userID, folderID, paperID string) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	f, ok := s.folders[userID][folderID]
	if !ok {
		return domain.NewNotFoundError("folder", folderID)
	}
	for i, id := range f.PaperIDs {
		if id == paperID {
			f.PaperIDs = append(f.PaperIDs[:i], f.PaperIDs[i+1:]...)
			break
		}
	}
	f.UpdatedAt = time.Now().UTC()
	return nil
}

// ListFollows implements repository.UserRepository.
func (s *UserStore) ListFollows(_ context.Context, userID string) ([]domain.Follow, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	follows := make([]domain.Follow, 0, len(s.follows[userID]))
	for _, f := range s.follows[userID] {
		follows = append(follows, f)
	}
	return follows, nil
}

// GetFollow implements repository.UserRepository.
func (s *UserStore) GetFollow(_ context.Context, userID string, entityType domain.EntityType, entityID string) (*domain.Follow, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	f, ok := s.follows[userID][followKey(entityType, entityID)]
	if !ok {
		return nil, domain.NewNotFoundError("follow", entityID)
	}
	cp := f
	return &cp, nil
}

// PutFollow implements repository.UserRepository.
func (s *UserStore) PutFollow(_ context.Context, userID string, follow domain.Follow) (domain.Follow, bool, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	if s.follows[userID] == nil {
		s.follows[userID] = make(map[string]domain.Follow)
	}
	key := followKey(follow.EntityType, follow.EntityID)
	if existing, ok := s.follows[userID][key]; ok {
		return existing, false, nil
	}
	if follow.FollowedAt.IsZero() {
		follow.FollowedAt = time.Now().UTC()
	}
	s.follows[userID][key] = follow
	return follow, true, nil
}

// DeleteFollow implements repository.UserRepository.
func (s *UserStore) DeleteFollow(_ context.Context, userID string, entityType domain.EntityType, entityID string) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	key := followKey(entityType, entityID)
	if _, ok := s.follows[userID][key]; !ok {
		return domain.NewNotFoundError("follow", entityID)
	}
	delete(s.follows[userID], key)
	return nil
}
