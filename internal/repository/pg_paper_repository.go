package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/literature-review-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

const paperUpsertQuery = `
	INSERT INTO papers (
		paper_id, title, abstract, tldr, authors,
		year, venue, doi, url, citation_count,
		cached_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
	)
	ON CONFLICT (paper_id) DO UPDATE SET
		title = EXCLUDED.title,
		abstract = EXCLUDED.abstract,
		tldr = EXCLUDED.tldr,
		authors = EXCLUDED.authors,
		year = EXCLUDED.year,
		venue = EXCLUDED.venue,
		doi = EXCLUDED.doi,
		url = EXCLUDED.url,
		citation_count = EXCLUDED.citation_count,
		updated_at = EXCLUDED.updated_at`

// Put implements PaperRepository.
func (r *PgPaperRepository) Put(ctx context.Context, paper *domain.Paper) error {
	if !paper.HasIdentifier() {
		return domain.NewValidationError("paperId", "paper must carry a paper id")
	}

	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return fmt.Errorf("failed to marshal authors: %w", err)
	}

	now := time.Now().UTC()
	if paper.CachedAt.IsZero() {
		paper.CachedAt = now
	}
	paper.UpdatedAt = now

	_, err = r.db.Exec(ctx, paperUpsertQuery,
		paper.PaperID, paper.Title, nullable(paper.Abstract), nullable(paper.TLDR), authorsJSON,
		paper.Year, nullable(paper.Venue), nullable(paper.DOI), nullable(paper.URL), paper.CitationCount,
		paper.CachedAt, paper.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert paper: %w", err)
	}
	return nil
}

// PutMany implements PaperRepository using a single batched round trip.
func (r *PgPaperRepository) PutMany(ctx context.Context, papers []*domain.Paper) error {
	if len(papers) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, paper := range papers {
		if !paper.HasIdentifier() {
			return domain.NewValidationError("paperId", "paper must carry a paper id")
		}
		authorsJSON, err := json.Marshal(paper.Authors)
		if err != nil {
			return fmt.Errorf("failed to marshal authors: %w", err)
		}
		if paper.CachedAt.IsZero() {
			paper.CachedAt = now
		}
		paper.UpdatedAt = now

		batch.Queue(paperUpsertQuery,
			paper.PaperID, paper.Title, nullable(paper.Abstract), nullable(paper.TLDR), authorsJSON,
			paper.Year, nullable(paper.Venue), nullable(paper.DOI), nullable(paper.URL), paper.CitationCount,
			paper.CachedAt, paper.UpdatedAt,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range papers {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert paper batch: %w", err)
		}
	}
	return nil
}

const paperSelectColumns = `paper_id, title, abstract, tldr, authors, year, venue, doi, url, citation_count, cached_at, updated_at`

// Get implements PaperRepository.
func (r *PgPaperRepository) Get(ctx context.Context, paperID string) (*domain.Paper, error) {
	row := r.db.QueryRow(ctx, "SELECT "+paperSelectColumns+" FROM papers WHERE paper_id = $1", paperID)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", paperID)
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	return paper, nil
}

// GetMany implements PaperRepository; missing ids are silently omitted.
func (r *PgPaperRepository) GetMany(ctx context.Context, paperIDs []string) ([]*domain.Paper, error) {
	if len(paperIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, "SELECT "+paperSelectColumns+" FROM papers WHERE paper_id = ANY($1)", paperIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query papers: %w", err)
	}
	defer rows.Close()

	papers := make([]*domain.Paper, 0, len(paperIDs))
	for rows.Next() {
		paper, err := scanPaperFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating papers: %w", err)
	}
	return papers, nil
}

// Touch implements PaperRepository.
func (r *PgPaperRepository) Touch(ctx context.Context, paperID string) error {
	result, err := r.db.Exec(ctx, "UPDATE papers SET updated_at = $1 WHERE paper_id = $2", time.Now().UTC(), paperID)
	if err != nil {
		return fmt.Errorf("failed to touch paper: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", paperID)
	}
	return nil
}

// ListStale implements PaperRepository.
func (r *PgPaperRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	query := "SELECT paper_id FROM papers WHERE updated_at < $1 ORDER BY updated_at ASC, paper_id ASC"
	args := []interface{}{olderThan}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale papers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stale paper id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// paperScanDest holds destination pointers for scanning a Paper row.
type paperScanDest struct {
	paper       domain.Paper
	abstract    *string
	tldr        *string
	venue       *string
	doi         *string
	url         *string
	authorsJSON []byte
}

func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.PaperID, &d.paper.Title, &d.abstract, &d.tldr, &d.authorsJSON,
		&d.paper.Year, &d.venue, &d.doi, &d.url, &d.paper.CitationCount,
		&d.paper.CachedAt, &d.paper.UpdatedAt,
	}
}

func (d *paperScanDest) finalize() (*domain.Paper, error) {
	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.paper.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}
	d.paper.Abstract = derefString(d.abstract)
	d.paper.TLDR = derefString(d.tldr)
	d.paper.Venue = derefString(d.venue)
	d.paper.DOI = derefString(d.doi)
	d.paper.URL = derefString(d.url)
	return &d.paper, nil
}

func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

func scanPaperFromRows(rows pgx.Rows) (*domain.Paper, error) {
	var dest paperScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
