package handler

import (
	"context"
	"log/slog"

	"github.com/recipeworks/ingest-pipeline/internal/health"
	"github.com/recipeworks/ingest-pipeline/internal/pattern"
	"github.com/recipeworks/ingest-pipeline/shared/rabbitmq"
)

// JobEnqueuer publishes a job onto its queue with publish-side retries.
// Satisfied by the RabbitMQ client.
type JobEnqueuer interface {
	PublishWithRetry(ctx context.Context, queueName string, body []byte) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	RabbitClient *rabbitmq.Client
	Patterns     pattern.Store
	Monitor      *health.Monitor
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger       *slog.Logger
	rabbitClient JobEnqueuer
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:       deps.Logger,
		rabbitClient: deps.RabbitClient,
	}
}

// PatternHandler handles pattern-related HTTP requests
type PatternHandler struct {
	logger   *slog.Logger
	patterns pattern.Store
}

// NewPatternHandler creates a new PatternHandler instance
func NewPatternHandler(deps *Dependencies) *PatternHandler {
	return &PatternHandler{
		logger:   deps.Logger,
		patterns: deps.Patterns,
	}
}

// HealthHandler serves the health endpoints from the shared monitor
type HealthHandler struct {
	logger  *slog.Logger
	monitor *health.Monitor
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		logger:  deps.Logger,
		monitor: deps.Monitor,
	}
}
