package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/literature-review-service/internal/database"
	"github.com/helixir/literature-review-service/internal/domain"
)

// Compile-time interface verification.
var _ UserRepository = (*PgUserRepository)(nil)

// PgUserRepository is a PostgreSQL implementation of UserRepository.
//
// pool is only set on the top-level instance handed out by
// NewPgUserRepository; it is nil on the transaction-scoped instance Transact
// constructs for its callback, which prevents nested transactions.
type PgUserRepository struct {
	db   DBTX
	pool *database.DB
}

// NewPgUserRepository creates a new PostgreSQL user repository.
func NewPgUserRepository(db *database.DB) *PgUserRepository {
	return &PgUserRepository{db: db, pool: db}
}

// Transact implements UserRepository. It serializes concurrent mutations for
// the same user with a transaction-scoped Postgres advisory lock, released
// automatically at commit or rollback.
func (r *PgUserRepository) Transact(ctx context.Context, userID string, fn func(ctx context.Context, repo UserRepository) error) error {
	if r.pool == nil {
		return fmt.Errorf("nested Transact is not supported")
	}
	return r.pool.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", userID); err != nil {
			return fmt.Errorf("failed to acquire per-user lock: %w", err)
		}
		return fn(ctx, &PgUserRepository{db: tx})
	})
}

// GetUser implements UserRepository.
func (r *PgUserRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT user_id, email, display_name, picture_url, created_at, last_login_at
		FROM users WHERE user_id = $1`, userID)

	var u domain.User
	var displayName, pictureURL *string
	if err := row.Scan(&u.UserID, &u.Email, &displayName, &pictureURL, &u.CreatedAt, &u.LastLoginAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", userID)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.DisplayName = derefString(displayName)
	u.PictureURL = derefString(pictureURL)
	return &u, nil
}

// UpsertUser implements UserRepository.
func (r *PgUserRepository) UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.LastLoginAt = now

	row := r.db.QueryRow(ctx, `
		INSERT INTO users (user_id, email, display_name, picture_url, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			picture_url = EXCLUDED.picture_url,
			last_login_at = EXCLUDED.last_login_at
		RETURNING created_at`,
		user.UserID, user.Email, nullable(user.DisplayName), nullable(user.PictureURL), user.CreatedAt, user.LastLoginAt,
	)
	if err := row.Scan(&user.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

// GetProfile implements UserRepository.
func (r *PgUserRepository) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	row := r.db.QueryRow(ctx, `SELECT topics, authors FROM profiles WHERE user_id = $1`, userID)

	var topicsJSON, authorsJSON []byte
	if err := row.Scan(&topicsJSON, &authorsJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, nil
		}
		return domain.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	var profile domain.Profile
	if len(topicsJSON) > 0 {
		if err := json.Unmarshal(topicsJSON, &profile.Topics); err != nil {
			return domain.Profile{}, fmt.Errorf("failed to unmarshal topics: %w", err)
		}
	}
	if len(authorsJSON) > 0 {
		if err := json.Unmarshal(authorsJSON, &profile.Authors); err != nil {
			return domain.Profile{}, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}
	return profile, nil
}

// PutProfile implements UserRepository.
func (r *PgUserRepository) PutProfile(ctx context.Context, userID string, profile domain.Profile) error {
	topicsJSON, err := json.Marshal(profile.Topics)
	if err != nil {
		return fmt.Errorf("failed to marshal topics: %w", err)
	}
	authorsJSON, err := json.Marshal(profile.Authors)
	if err != nil {
		return fmt.Errorf("failed to marshal authors: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO profiles (user_id, topics, authors, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			topics = EXCLUDED.topics, authors = EXCLUDED.authors, updated_at = EXCLUDED.updated_at`,
		userID, topicsJSON, authorsJSON, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to put profile: %w", err)
	}
	return nil
}

// ClearProfile implements UserRepository.
func (r *PgUserRepository) ClearProfile(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear profile: %w", err)
	}
	return nil
}

// GetFeedback implements UserRepository.
func (r *PgUserRepository) GetFeedback(ctx context.Context, userID string) (domain.FeedbackSet, error) {
	rows, err := r.db.Query(ctx, `SELECT paper_id, action FROM feedback WHERE user_id = $1`, userID)
	if err != nil {
		return domain.FeedbackSet{}, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var set domain.FeedbackSet
	for rows.Next() {
		var paperID string
		var action domain.FeedbackAction
		if err := rows.Scan(&paperID, &action); err != nil {
			return domain.FeedbackSet{}, fmt.Errorf("failed to scan feedback: %w", err)
		}
		switch action {
		case domain.FeedbackLiked:
			set.Liked = append(set.Liked, paperID)
		case domain.FeedbackDisliked:
			set.Disliked = append(set.Disliked, paperID)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.FeedbackSet{}, fmt.Errorf("error iterating feedback: %w", err)
	}
	return set, nil
}

// SetFeedback implements UserRepository.
func (r *PgUserRepository) SetFeedback(ctx context.Context, userID, paperID string, action domain.FeedbackAction) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO feedback (user_id, paper_id, action, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, paper_id) DO UPDATE SET
			action = EXCLUDED.action, updated_at = EXCLUDED.updated_at`,
		userID, paperID, action, now,
	)
	if err != nil {
		return fmt.Errorf("failed to set feedback: %w", err)
	}
	return nil
}

// DeleteFeedback implements UserRepository.
func (r *PgUserRepository) DeleteFeedback(ctx context.Context, userID, paperID string, action domain.FeedbackAction) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM feedback WHERE user_id = $1 AND paper_id = $2 AND action = $3`,
		userID, paperID, action,
	)
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}
	return nil
}

// ClearFeedback implements UserRepository.
func (r *PgUserRepository) ClearFeedback(ctx context.Context, userID string, target FeedbackClearTarget) error {
	var err error
	switch target {
	case ClearLiked:
		_, err = r.db.Exec(ctx, `DELETE FROM feedback WHERE user_id = $1 AND action = $2`, userID, domain.FeedbackLiked)
	case ClearDisliked:
		_, err = r.db.Exec(ctx, `DELETE FROM feedback WHERE user_id = $1 AND action = $2`, userID, domain.FeedbackDisliked)
	default:
		_, err = r.db.Exec(ctx, `DELETE FROM feedback WHERE user_id = $1`, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to clear feedback: %w", err)
	}
	return nil
}

// ListFolders implements UserRepository.
func (r *PgUserRepository) ListFolders(ctx context.Context, userID string) ([]*domain.Folder, error) {
	rows, err := r.db.Query(ctx, `
		SELECT folder_id, name, description, created_at, updated_at
		FROM folders WHERE user_id = $1
		ORDER BY (folder_id = 'likes') DESC, created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*domain.Folder
	for rows.Next() {
		var f domain.Folder
		var description *string
		if err := rows.Scan(&f.FolderID, &f.Name, &description, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		f.Description = derefString(description)
		folders = append(folders, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folders: %w", err)
	}

	for _, f := range folders {
		paperIDs, err := r.folderPaperIDs(ctx, userID, f.FolderID)
		if err != nil {
			return nil, err
		}
		f.PaperIDs = paperIDs
	}
	return folders, nil
}

// GetFolder implements UserRepository.
func (r *PgUserRepository) GetFolder(ctx context.Context, userID, folderID string) (*domain.Folder, error) {
	row := r.db.QueryRow(ctx, `
		SELECT folder_id, name, description, created_at, updated_at
		FROM folders WHERE user_id = $1 AND folder_id = $2`, userID, folderID)

	var f domain.Folder
	var description *string
	if err := row.Scan(&f.FolderID, &f.Name, &description, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("folder", folderID)
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	f.Description = derefString(description)

	paperIDs, err := r.folderPaperIDs(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}
	f.PaperIDs = paperIDs
	return &f, nil
}

func (r *PgUserRepository) folderPaperIDs(ctx context.Context, userID, folderID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT paper_id FROM folder_papers
		WHERE user_id = $1 AND folder_id = $2
		ORDER BY position ASC`, userID, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder papers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan folder paper: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EnsureLikesFolder implements UserRepository.
func (r *PgUserRepository) EnsureLikesFolder(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO folders (user_id, folder_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, '', $4, $4)
		ON CONFLICT (user_id, folder_id) DO NOTHING`,
		userID, domain.LikesFolderID, "Likes", now,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure likes folder: %w", err)
	}
	return nil
}

// CreateFolder implements UserRepository.
func (r *PgUserRepository) CreateFolder(ctx context.Context, userID, name, description string) (*domain.Folder, error) {
	folderID := uuid.NewString()
	now := time.Now().UTC()

	_, err := r.db.Exec(ctx, `
		INSERT INTO folders (user_id, folder_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		userID, folderID, name, description, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	return &domain.Folder{
		FolderID:    folderID,
		Name:        name,
		Description: description,
		PaperIDs:    nil,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// DeleteFolder implements UserRepository.
func (r *PgUserRepository) DeleteFolder(ctx context.Context, userID, folderID string) error {
	if folderID == domain.LikesFolderID {
		return domain.NewForbiddenError("the likes folder cannot be deleted")
	}

	result, err := r.db.Exec(ctx, `DELETE FROM folders WHERE user_id = $1 AND folder_id = $2`, userID, folderID)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("folder", folderID)
	}
	return nil
}

// AddPaperToFolder implements UserRepository: idempotent, preserving the
// first-insertion position via a NOT EXISTS guard on the inserted position.
func (r *PgUserRepository) AddPaperToFolder(ctx context.Context, userID, folderID, paperID string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO folder_papers (user_id, folder_id, paper_id, position, added_at)
		SELECT $1, $2, $3,
			COALESCE((SELECT MAX(position) + 1 FROM folder_papers WHERE user_id = $1 AND folder_id = $2), 0),
			$4
		WHERE NOT EXISTS (
			SELECT 1 FROM folder_papers WHERE user_id = $1 AND folder_id = $2 AND paper_id = $3
		)`,
		userID, folderID, paperID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to add paper to folder: %w", err)
	}

	_, err = r.db.Exec(ctx, `UPDATE folders SET updated_at = $1 WHERE user_id = $2 AND folder_id = $3`, now, userID, folderID)
	if err != nil {
		return fmt.Errorf("failed to touch folder: %w", err)
	}
	return nil
}

// PrependPaperToFolder implements UserRepository: idempotent, shifting every
// existing entry's position down by one so paperID sorts first.
func (r *PgUserRepository) PrependPaperToFolder(ctx context.Context, userID, folderID, paperID string) error {
	now := time.Now().UTC()

	var exists bool
	if err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM folder_papers WHERE user_id = $1 AND folder_id = $2 AND paper_id = $3)`,
		userID, folderID, paperID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check folder membership: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := r.db.Exec(ctx, `
		UPDATE folder_papers SET position = position + 1 WHERE user_id = $1 AND folder_id = $2`,
		userID, folderID,
	); err != nil {
		return fmt.Errorf("failed to shift folder positions: %w", err)
	}

	if _, err := r.db.Exec(ctx, `
		INSERT INTO folder_papers (user_id, folder_id, paper_id, position, added_at)
		VALUES ($1, $2, $3, 0, $4)`,
		userID, folderID, paperID, now,
	); err != nil {
		return fmt.Errorf("failed to prepend paper to folder: %w", err)
	}

	if _, err := r.db.Exec(ctx, `UPDATE folders SET updated_at = $1 WHERE user_id = $2 AND folder_id = $3`, now, userID, folderID); err != nil {
		return fmt.Errorf("failed to touch folder: %w", err)
	}
	return nil
}

// RemovePaperFromFolder implements UserRepository.
func (r *PgUserRepository) RemovePaperFromFolder(ctx context.Context, userID, folderID, paperID string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM folder_papers WHERE user_id = $1 AND folder_id = $2 AND paper_id = $3`,
		userID, folderID, paperID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove paper from folder: %w", err)
	}

	_, err = r.db.Exec(ctx, `UPDATE folders SET updated_at = $1 WHERE user_id = $2 AND folder_id = $3`, time.Now().UTC(), userID, folderID)
	if err != nil {
		return fmt.Errorf("failed to touch folder: %w", err)
	}
	return nil
}

// ListFollows implements UserRepository.
func (r *PgUserRepository) ListFollows(ctx context.Context, userID string) ([]domain.Follow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT entity_type, entity_id, entity_name, upstream_id, followed_at
		FROM follows WHERE user_id = $1 ORDER BY followed_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list follows: %w", err)
	}
	defer rows.Close()

	var follows []domain.Follow
	for rows.Next() {
		var f domain.Follow
		var upstreamID *string
		if err := rows.Scan(&f.EntityType, &f.EntityID, &f.EntityName, &upstreamID, &f.FollowedAt); err != nil {
			return nil, fmt.Errorf("failed to scan follow: %w", err)
		}
		f.UpstreamID = derefString(upstreamID)
		follows = append(follows, f)
	}
	return follows, rows.Err()
}

// GetFollow implements UserRepository.
func (r *PgUserRepository) GetFollow(ctx context.Context, userID string, entityType domain.EntityType, entityID string) (*domain.Follow, error) {
	row := r.db.QueryRow(ctx, `
		SELECT entity_type, entity_id, entity_name, upstream_id, followed_at
		FROM follows WHERE user_id = $1 AND entity_type = $2 AND entity_id = $3`, userID, entityType, entityID)

	var f domain.Follow
	var upstreamID *string
	if err := row.Scan(&f.EntityType, &f.EntityID, &f.EntityName, &upstreamID, &f.FollowedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("follow", entityID)
		}
		return nil, fmt.Errorf("failed to get follow: %w", err)
	}
	f.UpstreamID = derefString(upstreamID)
	return &f, nil
}

// PutFollow implements UserRepository: idempotent, returns the existing edge
// unchanged with created=false on a repeat.
func (r *PgUserRepository) PutFollow(ctx context.Context, userID string, follow domain.Follow) (domain.Follow, bool, error) {
	if existing, err := r.GetFollow(ctx, userID, follow.EntityType, follow.EntityID); err == nil {
		return *existing, false, nil
	} else if !isNotFound(err) {
		return domain.Follow{}, false, err
	}

	if follow.FollowedAt.IsZero() {
		follow.FollowedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO follows (user_id, entity_type, entity_id, entity_name, upstream_id, followed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, entity_type, entity_id) DO NOTHING`,
		userID, follow.EntityType, follow.EntityID, follow.EntityName, nullable(follow.UpstreamID), follow.FollowedAt,
	)
	if err != nil {
		return domain.Follow{}, false, fmt.Errorf("failed to put follow: %w", err)
	}
	return follow, true, nil
}

// DeleteFollow implements UserRepository.
func (r *PgUserRepository) DeleteFollow(ctx context.Context, userID string, entityType domain.EntityType, entityID string) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM follows WHERE user_id = $1 AND entity_type = $2 AND entity_id = $3`,
		userID, entityType, entityID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("follow", entityID)
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound *domain.NotFoundError
	return errors.As(err, &notFound)
}
