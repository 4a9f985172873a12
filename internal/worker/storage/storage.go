package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/recipeworks/ingest-pipeline/internal/jobs"
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

// DeadLetterStore records jobs that exhausted their attempts or failed with
// a non-retryable error.
type DeadLetterStore interface {
	Save(ctx context.Context, job jobs.Job, jerr *queueerr.JobError) error
}

type SQLDeadLetterStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewSQLDeadLetterStore(db *sqlx.DB, logger *slog.Logger) *SQLDeadLetterStore {
	return &SQLDeadLetterStore{
		db:     db,
		logger: logger,
	}
}

// Save upserts the dead-letter row keyed by job ID so a redelivered terminal
// failure overwrites the previous record instead of erroring.
func (s *SQLDeadLetterStore) Save(ctx context.Context, job jobs.Job, jerr *queueerr.JobError) error {
	query := `
		INSERT INTO dead_letter_jobs (job_id, queue_name, action_name, payload, attempt, error_kind, error_severity, error_message, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (job_id) DO UPDATE SET
			attempt = EXCLUDED.attempt,
			error_kind = EXCLUDED.error_kind,
			error_severity = EXCLUDED.error_severity,
			error_message = EXCLUDED.error_message,
			failed_at = EXCLUDED.failed_at`

	_, err := s.db.ExecContext(ctx, query,
		job.JobID,
		job.QueueName,
		job.ActionName,
		[]byte(job.Payload),
		job.Attempt,
		string(jerr.Kind),
		string(jerr.Severity),
		jerr.Error(),
	)
	if err != nil {
		return fmt.Errorf("failed to save dead letter job: %w", err)
	}

	s.logger.Debug("Dead letter job saved",
		slog.String("job_id", job.JobID),
		slog.String("queue", string(job.QueueName)),
	)
	return nil
}
