package pattern

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Store runs one atomic track attempt and serves pattern reads.
type Store interface {
	TrackOnce(ctx context.Context, ruleKey, exampleLine, linkID string) (int64, error)
	List(ctx context.Context, filter ListFilter) ([]Record, error)
}

// ListFilter controls pattern listing pagination.
type ListFilter struct {
	PageSize int
	Cursor   *Cursor
}

// Cursor marks a position in the (occurrence_count, id) descending order.
type Cursor struct {
	OccurrenceCount int64
	ID              int64
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

// execer is the slice of sqlx.Tx the track transaction needs.
type execer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TrackOnce runs one upsert-and-link transaction. The caller owns retries.
func (s *SQLStore) TrackOnce(ctx context.Context, ruleKey, exampleLine, linkID string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := trackTx(ctx, tx, s.logger, ruleKey, exampleLine, linkID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit pattern: %w", err)
	}

	return id, nil
}

// trackTx upserts the pattern by its natural key and, when a link target is
// supplied, sets the back-reference inside the same transaction. A link
// failure is logged and swallowed; it must not abort the pattern write.
func trackTx(ctx context.Context, q execer, logger *slog.Logger, ruleKey, exampleLine, linkID string) (int64, error) {
	upsert := `
		INSERT INTO parse_patterns (rule_key, example_line, occurrence_count, first_seen, updated_at)
		VALUES ($1, $2, 1, NOW(), NOW())
		ON CONFLICT (rule_key) DO UPDATE
		SET occurrence_count = parse_patterns.occurrence_count + 1,
		    example_line = COALESCE(NULLIF(EXCLUDED.example_line, ''), parse_patterns.example_line),
		    updated_at = NOW()
		RETURNING id
	`

	var id int64
	if err := q.GetContext(ctx, &id, upsert, ruleKey, exampleLine); err != nil {
		return 0, fmt.Errorf("failed to upsert pattern: %w", err)
	}

	if linkID != "" {
		if err := linkSource(ctx, q, logger, id, linkID); err != nil {
			return 0, err
		}
	}

	return id, nil
}

// linkSource sets the back-reference under a savepoint. An errored statement
// puts the whole Postgres transaction into the aborted state, so without the
// savepoint a failed link would doom the pattern upsert at commit time.
func linkSource(ctx context.Context, q execer, logger *slog.Logger, patternID int64, linkID string) error {
	if _, err := q.ExecContext(ctx, `SAVEPOINT pattern_link`); err != nil {
		return fmt.Errorf("failed to create link savepoint: %w", err)
	}

	link := `UPDATE ingest_sources SET last_pattern_id = $1 WHERE content_id = $2`
	if _, err := q.ExecContext(ctx, link, patternID, linkID); err != nil {
		if _, rbErr := q.ExecContext(ctx, `ROLLBACK TO SAVEPOINT pattern_link`); rbErr != nil {
			return fmt.Errorf("failed to roll back link savepoint: %w", rbErr)
		}
		logger.Warn("Failed to link pattern to source, continuing",
			slog.Int64("pattern_id", patternID),
			slog.String("content_id", linkID),
			slog.Any("error", err),
		)
		return nil
	}

	if _, err := q.ExecContext(ctx, `RELEASE SAVEPOINT pattern_link`); err != nil {
		return fmt.Errorf("failed to release link savepoint: %w", err)
	}

	return nil
}

// List returns patterns ordered by occurrence count, most frequent first.
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	query := `
		SELECT id, rule_key, COALESCE(example_line, '') AS example_line,
		       occurrence_count, first_seen, updated_at
		FROM parse_patterns
	`
	args := []any{}

	if filter.Cursor != nil {
		query += ` WHERE (occurrence_count, id) < ($1, $2)`
		args = append(args, filter.Cursor.OccurrenceCount, filter.Cursor.ID)
	}

	query += ` ORDER BY occurrence_count DESC, id DESC`
	query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
	args = append(args, filter.PageSize+1)

	var records []Record
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}

	return records, nil
}
