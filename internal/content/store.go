package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Store is the persistence surface the pipeline actions depend on.
type Store interface {
	GetSource(ctx context.Context, contentID string) (*Source, error)
	SaveContent(ctx context.Context, c *Content) error
	GetContent(ctx context.Context, contentID string) (*Content, error)
	SaveCategories(ctx context.Context, contentID string, categories []string) error
	SaveImage(ctx context.Context, img *Image) error
}

// SQLStore implements Store over PostgreSQL.
type SQLStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSQLStore creates a new SQLStore instance
func NewSQLStore(db *sqlx.DB, logger *slog.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: logger,
	}
}

// GetSource retrieves a staged raw source by content id
func (s *SQLStore) GetSource(ctx context.Context, contentID string) (*Source, error) {
	query := `
		SELECT content_id, source_url, raw_body, last_pattern_id, created_at
		FROM ingest_sources
		WHERE content_id = $1
	`

	var src Source
	err := s.db.GetContext(ctx, &src, query, contentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return &src, nil
}

// SaveContent upserts the content record and replaces its lines. Safe to
// re-invoke on retry: the upsert and the delete-then-insert make the whole
// write idempotent for a given content id.
func (s *SQLStore) SaveContent(ctx context.Context, c *Content) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO contents (content_id, title, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (content_id) DO UPDATE
		SET title = EXCLUDED.title,
		    image_url = EXCLUDED.image_url,
		    updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, query, c.ContentID, c.Title, c.ImageURL); err != nil {
		return fmt.Errorf("failed to upsert content: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM content_lines WHERE content_id = $1`, c.ContentID); err != nil {
		return fmt.Errorf("failed to clear content lines: %w", err)
	}

	lineQuery := `
		INSERT INTO content_lines (content_id, line_no, text)
		VALUES ($1, $2, $3)
	`
	for _, line := range c.Lines {
		if _, err := tx.ExecContext(ctx, lineQuery, c.ContentID, line.LineNo, line.Text); err != nil {
			return fmt.Errorf("failed to insert content line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit content: %w", err)
	}

	s.logger.Info("Content saved",
		slog.String("content_id", c.ContentID),
		slog.Int("lines", len(c.Lines)),
	)

	return nil
}

// GetContent retrieves a content record with its lines
func (s *SQLStore) GetContent(ctx context.Context, contentID string) (*Content, error) {
	query := `
		SELECT content_id, title, image_url, created_at, updated_at
		FROM contents
		WHERE content_id = $1
	`

	var c Content
	err := s.db.GetContext(ctx, &c, query, contentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get content: %w", err)
	}

	lineQuery := `
		SELECT id, content_id, line_no, text
		FROM content_lines
		WHERE content_id = $1
		ORDER BY line_no ASC
	`
	if err := s.db.SelectContext(ctx, &c.Lines, lineQuery, contentID); err != nil {
		return nil, fmt.Errorf("failed to get content lines: %w", err)
	}

	return &c, nil
}

// SaveCategories replaces the category assignments for a content record
func (s *SQLStore) SaveCategories(ctx context.Context, contentID string, categories []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM content_categories WHERE content_id = $1`, contentID); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}

	query := `
		INSERT INTO content_categories (content_id, category)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	for _, cat := range categories {
		if _, err := tx.ExecContext(ctx, query, contentID, cat); err != nil {
			return fmt.Errorf("failed to insert category: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit categories: %w", err)
	}

	return nil
}

// SaveImage upserts the processed image metadata for a content record
func (s *SQLStore) SaveImage(ctx context.Context, img *Image) error {
	query := `
		INSERT INTO content_images (content_id, source_url, thumbnail_key, width, height)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_id) DO UPDATE
		SET source_url = EXCLUDED.source_url,
		    thumbnail_key = EXCLUDED.thumbnail_key,
		    width = EXCLUDED.width,
		    height = EXCLUDED.height
	`

	_, err := s.db.ExecContext(ctx, query,
		img.ContentID,
		img.SourceURL,
		img.ThumbnailKey,
		img.Width,
		img.Height,
	)
	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}

	return nil
}
