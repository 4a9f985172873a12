package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/recipeworks/ingest-pipeline/shared/redis"
)

// Event is one progress report emitted by a pipeline stage.
type Event struct {
	JobID     string    `json:"job_id"`
	QueueName string    `json:"queue_name"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	ContentID string    `json:"content_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster publishes status events to subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, event Event) error
}

// Publisher broadcasts events over a Redis pub/sub channel.
type Publisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewPublisher creates a new Publisher instance
func NewPublisher(client *redis.Client, channel string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Broadcast serializes the event and publishes it. Whether a failure aborts
// the calling stage is the call site's decision.
func (p *Publisher) Broadcast(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, body); err != nil {
		return fmt.Errorf("failed to broadcast status event: %w", err)
	}

	p.logger.Debug("Status event broadcast",
		slog.String("job_id", event.JobID),
		slog.String("queue", event.QueueName),
		slog.String("status", event.Status),
	)

	return nil
}
