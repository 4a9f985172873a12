package pattern

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/recipeworks/ingest-pipeline/internal/metrics"
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

// Tracker deduplicates recurring parse-pattern signatures under concurrent
// writers. Each attempt is one atomic transaction; write races on the
// uniqueness constraint and transaction aborts are absorbed by a bounded
// retry loop, anything else is fatal on the first occurrence.
type Tracker struct {
	store  Store
	exec   *queueerr.Executor
	cfg    queueerr.RetryConfig
	logger *slog.Logger
}

// NewTracker creates a Tracker over PostgreSQL.
func NewTracker(db *sqlx.DB, cfg queueerr.RetryConfig, logger *slog.Logger) *Tracker {
	return NewTrackerWithStore(NewSQLStore(db, logger), cfg, logger, nil)
}

// NewTrackerWithStore creates a Tracker over an explicit store and optional
// injected sleep. For tests.
func NewTrackerWithStore(store Store, cfg queueerr.RetryConfig, logger *slog.Logger, sleep queueerr.SleepFunc) *Tracker {
	exec := queueerr.NewExecutor(logger)
	if sleep != nil {
		exec = queueerr.NewExecutorWithSleep(logger, sleep)
	}
	return &Tracker{
		store:  store,
		exec:   exec,
		cfg:    cfg,
		logger: logger,
	}
}

// Track upserts the pattern for an ordered rule-id sequence, incrementing
// its occurrence count, and returns the pattern id. linkID, when non-empty,
// names the originating source record to back-reference.
func (t *Tracker) Track(ctx context.Context, ruleIDs []string, exampleLine, linkID string) (int64, error) {
	if len(ruleIDs) == 0 {
		return 0, queueerr.NewValidation("rule id sequence is empty").WithCode("EMPTY_PATTERN")
	}

	key := RuleKey(ruleIDs)

	var id int64
	err := t.exec.Execute(ctx, t.cfg, queueerr.ExecuteOptions{
		Operation: "pattern.track",
		RetryIf:   IsRetryable,
		Context:   map[string]any{"rule_key": key},
	}, func(ctx context.Context) error {
		got, err := t.store.TrackOnce(ctx, key, exampleLine, linkID)
		if err != nil {
			if IsRetryable(err) {
				metrics.PatternConflicts.Inc()
				return queueerr.Wrap(queueerr.KindDatabase, "pattern write conflict", err)
			}
			return err
		}
		id = got
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.PatternsTracked.Inc()

	t.logger.Debug("Pattern tracked",
		slog.Int64("pattern_id", id),
		slog.String("rule_key", key),
	)

	return id, nil
}

// List returns patterns ordered by occurrence count.
func (t *Tracker) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	return t.store.List(ctx, filter)
}

// Postgres error codes that make the whole transaction worth re-running.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// IsRetryable reports whether err is a write race or isolation abort that
// re-running the transaction can resolve.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch string(pqErr.Code) {
	case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
		return true
	}
	return false
}
