package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/recipeworks/ingest-pipeline/internal/jobs"
	"github.com/recipeworks/ingest-pipeline/internal/metrics"
	"github.com/recipeworks/ingest-pipeline/internal/pipeline"
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

// processJob runs one job attempt through its queue's pipeline.
func (w *Worker) processJob(ctx context.Context, rt QueueRuntime, msg *jobs.Message) error {
	p, ok := w.pipelines[rt.Name]
	if !ok {
		return queueerr.NewWorker("no pipeline for queue").
			WithContext("queue", rt.Name.String())
	}

	var payload map[string]any
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return queueerr.Wrap(queueerr.KindValidation, "invalid job payload JSON", err).
				WithJob(msg.JobID, rt.Name.String(), msg.Attempt)
		}
	}

	run := pipeline.Context{
		JobID:     msg.JobID,
		QueueName: rt.Name,
		Attempt:   msg.Attempt,
	}

	_, err := p.Run(ctx, pipeline.Data(payload), run)
	return err
}

// acker is the ACK/NACK slice of the broker channel.
type acker interface {
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
}

// retryPublisher republishes a failed job for delayed redelivery.
type retryPublisher interface {
	PublishDelayed(ctx context.Context, queueName string, body []byte, delay time.Duration) error
}

// settle converts a processing result into the job's terminal move for this
// attempt: ACK on success, a delayed retry copy when the classifier allows
// another attempt, or a dead-letter row when it does not.
func (w *Worker) settle(ctx context.Context, rt QueueRuntime, msg *jobs.Message, procErr error, ch acker, pub retryPublisher) {
	if procErr == nil {
		if err := ch.Ack(msg.DeliveryTag, false); err != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("job_id", msg.JobID),
				slog.Any("error", err),
			)
			return
		}
		metrics.JobsProcessed.WithLabelValues(rt.Name.String(), "completed").Inc()
		w.logger.Info("Job completed successfully",
			slog.String("queue", rt.Name.String()),
			slog.String("job_id", msg.JobID),
		)
		return
	}

	je := queueerr.From(procErr)
	if je.JobID == "" {
		je.WithJob(msg.JobID, rt.Name.String(), msg.Attempt)
	}

	w.logger.Log(ctx, queueerr.LogLevel(je.Severity), "Job attempt failed",
		slog.String("queue", rt.Name.String()),
		slog.String("job_id", msg.JobID),
		slog.String("kind", string(je.Kind)),
		slog.String("severity", string(je.Severity)),
		slog.Int("attempt", msg.Attempt),
		slog.Any("error", procErr),
	)

	if queueerr.ShouldRetry(je, msg.Attempt+1, rt.Retry) {
		if err := w.scheduleRetry(ctx, rt, msg, je, pub); err != nil {
			// The retry copy never reached the broker. ACKing here would
			// lose the job, so requeue the original delivery instead.
			w.requeue(rt, msg, ch)
			return
		}
		_ = ch.Ack(msg.DeliveryTag, false)
		return
	}

	if err := w.deadLetter(ctx, rt, msg, je); err != nil {
		w.requeue(rt, msg, ch)
		return
	}
	_ = ch.Ack(msg.DeliveryTag, false)
}

// requeue NACKs the delivery back onto the work queue after a failed
// terminal move. The attempt counter is unchanged; the redelivered job
// repeats the same attempt.
func (w *Worker) requeue(rt QueueRuntime, msg *jobs.Message, ch acker) {
	if err := ch.Nack(msg.DeliveryTag, false, true); err != nil {
		w.logger.Error("Failed to requeue message",
			slog.String("queue", rt.Name.String()),
			slog.String("job_id", msg.JobID),
			slog.Any("error", err),
		)
	}
}

// scheduleRetry publishes a copy of the job with the attempt counter bumped
// into the retry queue; the broker redelivers it after the backoff delay.
func (w *Worker) scheduleRetry(ctx context.Context, rt QueueRuntime, msg *jobs.Message, je *queueerr.JobError, pub retryPublisher) error {
	retry := msg.Job
	retry.Attempt++

	body, err := json.Marshal(retry)
	if err != nil {
		w.logger.Error("Failed to marshal retry job",
			slog.String("job_id", msg.JobID),
			slog.Any("error", err),
		)
		return err
	}

	delay := queueerr.Backoff(msg.Attempt, rt.Retry)
	if err := pub.PublishDelayed(ctx, rt.Name.String(), body, delay); err != nil {
		w.logger.Error("Failed to publish retry job",
			slog.String("job_id", msg.JobID),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		return err
	}

	metrics.JobRetries.WithLabelValues(rt.Name.String(), string(je.Kind)).Inc()
	w.logger.Info("Job scheduled for retry",
		slog.String("queue", rt.Name.String()),
		slog.String("job_id", msg.JobID),
		slog.Int("next_attempt", retry.Attempt),
		slog.Duration("delay", delay),
	)
	return nil
}

// deadLetter persists the terminal failure for inspection.
func (w *Worker) deadLetter(ctx context.Context, rt QueueRuntime, msg *jobs.Message, je *queueerr.JobError) error {
	if err := w.deadLetters.Save(ctx, msg.Job, je); err != nil {
		w.logger.Error("Failed to persist dead-lettered job",
			slog.String("queue", rt.Name.String()),
			slog.String("job_id", msg.JobID),
			slog.Any("error", err),
		)
		return err
	}

	metrics.JobsProcessed.WithLabelValues(rt.Name.String(), "dead_lettered").Inc()
	w.logger.Warn("Job dead-lettered",
		slog.String("queue", rt.Name.String()),
		slog.String("job_id", msg.JobID),
		slog.String("kind", string(je.Kind)),
		slog.Int("attempt", msg.Attempt),
	)
	return nil
}
