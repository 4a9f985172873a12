package pipeline

import (
	"context"
	"log/slog"

	"github.com/recipeworks/ingest-pipeline/internal/jobs"
	"github.com/recipeworks/ingest-pipeline/internal/metrics"
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

// Pipeline is the fixed ordered sequence of actions run for one job.
type Pipeline struct {
	queue   jobs.QueueName
	actions []Action
	logger  *slog.Logger
}

// Queue returns the queue this pipeline serves.
func (p *Pipeline) Queue() jobs.QueueName {
	return p.queue
}

// Run executes the stages strictly sequentially: stage i+1 only starts
// after stage i resolves. A stage failure stops the run; the typed error
// carries job and action context for the retry engine, which owns the
// requeue decision. The pipeline never catches-and-continues.
func (p *Pipeline) Run(ctx context.Context, data Data, run Context) (Data, error) {
	for _, action := range p.actions {
		start := now()

		p.logger.Debug("Executing pipeline stage",
			slog.String("queue", p.queue.String()),
			slog.String("action", action.Name().String()),
			slog.String("job_id", run.JobID),
			slog.Int("attempt", run.Attempt),
		)

		next, err := action.Execute(ctx, data, run)
		metrics.PipelineStageDuration.
			WithLabelValues(p.queue.String(), action.Name().String()).
			Observe(now().Sub(start).Seconds())

		if err != nil {
			je := queueerr.From(err).
				WithJob(run.JobID, p.queue.String(), run.Attempt).
				WithContext("action", action.Name().String())

			metrics.JobErrors.
				WithLabelValues(p.queue.String(), string(je.Kind), string(je.Severity)).
				Inc()

			return nil, je
		}

		data = next
	}

	return data, nil
}
