package actions

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/recipeworks/ingest-pipeline/internal/broadcast"
	"github.com/recipeworks/ingest-pipeline/internal/jobs"
	"github.com/recipeworks/ingest-pipeline/internal/pipeline"
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

// broadcastStatus reports pipeline progress to subscribers. A broadcast
// failure is logged and swallowed: progress reporting never fails the job.
// Reads: content_id?.
type broadcastStatus struct {
	deps   *pipeline.Dependencies
	status string
}

// NewBroadcastStatus returns a factory for a broadcast_status action that
// reports the given status.
func NewBroadcastStatus(status string) pipeline.Factory {
	return func(deps *pipeline.Dependencies) pipeline.Action {
		return &broadcastStatus{deps: deps, status: status}
	}
}

func (a *broadcastStatus) Name() jobs.ActionName {
	return jobs.ActionBroadcastStatus
}

func (a *broadcastStatus) Execute(ctx context.Context, data pipeline.Data, run pipeline.Context) (pipeline.Data, error) {
	contentID, _ := data.String(KeyContentID)

	event := broadcast.Event{
		JobID:     run.JobID,
		QueueName: run.QueueName.String(),
		Action:    a.Name().String(),
		Status:    a.status,
		ContentID: contentID,
		Timestamp: time.Now(),
	}

	if err := a.deps.Broadcaster.Broadcast(ctx, event); err != nil {
		a.deps.Logger.Warn("Status broadcast failed, continuing",
			slog.String("job_id", run.JobID),
			slog.String("status", a.status),
			slog.Any("error", err),
		)
	}

	return data, nil
}

// publishNext hands the job off to the next queue(s) in the ingestion flow.
// The payload carries the envelope forward, so downstream queues see every
// field produced upstream.
// Reads: whole envelope.
type publishNext struct {
	deps    *pipeline.Dependencies
	targets []jobs.QueueName
}

// NewPublishNext returns a factory for a publish_next action targeting the
// given queues.
func NewPublishNext(targets ...jobs.QueueName) pipeline.Factory {
	return func(deps *pipeline.Dependencies) pipeline.Action {
		return &publishNext{deps: deps, targets: targets}
	}
}

func (a *publishNext) Name() jobs.ActionName {
	return jobs.ActionPublishNext
}

func (a *publishNext) Execute(ctx context.Context, data pipeline.Data, run pipeline.Context) (pipeline.Data, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, queueerr.Wrap(queueerr.KindWorker, "failed to marshal payload for next queue", err)
	}

	for _, target := range a.targets {
		job := jobs.Job{
			JobID:      uuid.New().String(),
			QueueName:  target,
			ActionName: jobs.EntryAction(target),
			Payload:    payload,
			CreatedAt:  time.Now(),
		}

		body, err := json.Marshal(job)
		if err != nil {
			return nil, queueerr.Wrap(queueerr.KindWorker, "failed to marshal next job", err)
		}

		if err := a.deps.Publisher.Publish(ctx, target.String(), body); err != nil {
			return nil, queueerr.Wrap(queueerr.KindExternalService, "failed to publish next job", err).
				WithContext("target_queue", target.String())
		}

		a.deps.Logger.Info("Next pipeline job published",
			slog.String("job_id", job.JobID),
			slog.String("from_queue", run.QueueName.String()),
			slog.String("to_queue", target.String()),
		)
	}

	return data, nil
}

