package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/recipeworks/ingest-pipeline/internal/broadcast"
	"github.com/recipeworks/ingest-pipeline/internal/content"
	"github.com/recipeworks/ingest-pipeline/internal/jobs"
)

// Context carries job correlation for one pipeline run. Read-only to
// actions.
type Context struct {
	JobID     string
	QueueName jobs.QueueName
	Attempt   int
}

// PatternTracker records a parse-pattern sighting, optionally linking it to
// an originating record.
type PatternTracker interface {
	Track(ctx context.Context, ruleIDs []string, exampleLine, linkID string) (int64, error)
}

// JobPublisher hands a job to the queue transport.
type JobPublisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// Dependencies are the shared collaborators handed to every action factory.
type Dependencies struct {
	Logger      *slog.Logger
	Content     content.Store
	Patterns    PatternTracker
	Broadcaster broadcast.Broadcaster
	Publisher   JobPublisher
}

// Action is one named, composable pipeline step. Execute returns an
// extended copy of the envelope; it may perform external side effects but
// must tolerate re-invocation on retry. A missing upstream field is a
// validation error, never a silent default.
type Action interface {
	Name() jobs.ActionName
	Execute(ctx context.Context, data Data, run Context) (Data, error)
}

// Factory constructs an action bound to shared dependencies.
type Factory func(deps *Dependencies) Action

// clock abstraction kept package-private; only the runner needs it.
var now = time.Now
