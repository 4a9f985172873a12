package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/recipeworks/ingest-pipeline/internal/jobs"
)

// dispatch listens to broker deliveries for one queue and feeds decoded
// jobs to that queue's pool.
func (w *Worker) dispatch(ctx context.Context, rt QueueRuntime, deliveries <-chan amqp.Delivery, jobsChan chan<- *jobs.Message) {
	defer close(jobsChan)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Dispatcher stopped - context canceled",
				slog.String("queue", rt.Name.String()),
			)
			return

		case <-w.stopChan:
			w.logger.Info("Dispatcher stopped - worker stopping",
				slog.String("queue", rt.Name.String()),
			)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("Delivery channel closed",
					slog.String("queue", rt.Name.String()),
				)
				return
			}

			msg, ok := w.decodeDelivery(rt, delivery)
			if !ok {
				continue
			}

			select {
			case jobsChan <- msg:
				w.logger.Debug("Job dispatched to pool",
					slog.String("queue", rt.Name.String()),
					slog.String("job_id", msg.JobID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				// Requeue so another worker picks it up
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.Any("error", nackErr),
					)
				}
				return
			}
		}
	}
}

// decodeDelivery parses and validates one delivery. Malformed messages are
// NACKed without requeue: redelivery cannot fix them.
func (w *Worker) decodeDelivery(rt QueueRuntime, delivery amqp.Delivery) (*jobs.Message, bool) {
	var job jobs.Job
	if err := json.Unmarshal(delivery.Body, &job); err != nil {
		w.logger.Error("Failed to parse job message",
			slog.String("queue", rt.Name.String()),
			slog.Any("error", err),
		)
		w.rejectDelivery(delivery)
		return nil, false
	}

	if _, err := uuid.Parse(job.JobID); err != nil {
		w.logger.Error("Invalid job_id format - not a UUID",
			slog.String("queue", rt.Name.String()),
			slog.String("job_id", job.JobID),
		)
		w.rejectDelivery(delivery)
		return nil, false
	}

	if job.QueueName != rt.Name {
		w.logger.Error("Job routed to wrong queue",
			slog.String("queue", rt.Name.String()),
			slog.String("job_queue", job.QueueName.String()),
			slog.String("job_id", job.JobID),
		)
		w.rejectDelivery(delivery)
		return nil, false
	}

	return &jobs.Message{Job: job, DeliveryTag: delivery.DeliveryTag}, true
}

func (w *Worker) rejectDelivery(delivery amqp.Delivery) {
	if err := delivery.Nack(false, false); err != nil {
		w.logger.Error("Failed to NACK malformed message",
			slog.Any("error", err),
		)
	}
}
