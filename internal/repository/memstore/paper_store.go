// Package memstore provides in-memory implementations of the repository
// interfaces for tests and zero-config local development, mirroring the
// semantics of their PostgreSQL counterparts exactly (including Transact).
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/repository"
)

var _ repository.PaperRepository = (*PaperStore)(nil)

// PaperStore is a sync.RWMutex-guarded in-memory paper cache.
type PaperStore struct {
	mu     sync.RWMutex
	papers map[string]*domain.Paper
}

// NewPaperStore creates an empty paper store.
func NewPaperStore() *PaperStore {
	return &PaperStore{papers: make(map[string]*domain.Paper)}
}

func clonePaper(p *domain.Paper) *domain.Paper {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Authors = append([]domain.Author(nil), p.Authors...)
	if p.Year != nil {
		year := *p.Year
		cp.Year = &year
	}
	if p.CitationCount != nil {
		count := *p.CitationCount
		cp.CitationCount = &count
	}
	return &cp
}

// Put implements repository.PaperRepository.
func (s *PaperStore) Put(_ context.Context, paper *domain.Paper) error {
	if !paper.HasIdentifier() {
		return domain.NewValidationError("paperId", "paper must carry a paper id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := clonePaper(paper)
	if stored.CachedAt.IsZero() {
		stored.CachedAt = now
	}
	stored.UpdatedAt = now
	s.papers[stored.PaperID] = stored
	return nil
}

// PutMany implements repository.PaperRepository.
func (s *PaperStore) PutMany(ctx context.Context, papers []*domain.Paper) error {
	for _, p := range papers {
		if err := s.Put(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Get implements repository.PaperRepository.
func (s *PaperStore) Get(_ context.Context, paperID string) (*domain.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.papers[paperID]
	if !ok {
		return nil, domain.NewNotFoundError("paper", paperID)
	}
	return clonePaper(p), nil
}

// GetMany implements repository.PaperRepository; missing ids are omitted.
func (s *PaperStore) GetMany(_ context.Context, paperIDs []string) ([]*domain.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	papers := make([]*domain.Paper, 0, len(paperIDs))
	for _, id := range paperIDs {
		if p, ok := s.papers[id]; ok {
			papers = append(papers, clonePaper(p))
		}
	}
	return papers, nil
}

// Touch implements repository.PaperRepository.
func (s *PaperStore) Touch(_ context.Context, paperID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.papers[paperID]
	if !ok {
		return domain.NewNotFoundError("paper", paperID)
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ListStale implements repository.PaperRepository.
func (s *PaperStore) ListStale(_ context.Context, olderThan time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		id        string
		updatedAt time.Time
	}
	stale := make([]entry, 0)
	for id, p := range s.papers {
		if p.UpdatedAt.Before(olderThan) {
			stale = append(stale, entry{id: id, updatedAt: p.UpdatedAt})
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		if !stale[i].updatedAt.Equal(stale[j].updatedAt) {
			return stale[i].updatedAt.Before(stale[j].updatedAt)
		}
		return stale[i].id < stale[j].id
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	ids := make([]string, len(stale))
	for i, e := range stale {
		ids[i] = e.id
	}
	return ids, nil
}
