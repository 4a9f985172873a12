package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/recipeworks/ingest-pipeline/internal/jobs"
)

// spawnPool starts the bounded goroutine pool for one queue.
func (w *Worker) spawnPool(ctx context.Context, rt QueueRuntime, jobsChan <-chan *jobs.Message) {
	for i := 0; i < rt.Concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, rt, jobsChan, i)
	}

	w.logger.Info("Worker pool spawned",
		slog.String("queue", rt.Name.String()),
		slog.Int("worker_count", rt.Concurrency),
	)
}

// workerLoop is the main processing loop for each pool goroutine.
func (w *Worker) workerLoop(ctx context.Context, rt QueueRuntime, jobsChan <-chan *jobs.Message, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%s-%d", w.workerID, rt.Name, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-jobsChan:
			if !ok {
				w.logger.Info("Worker goroutine stopping - jobs channel closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.logger.Info("Worker received job",
				slog.String("worker_name", workerName),
				slog.String("job_id", msg.JobID),
				slog.Int("attempt", msg.Attempt),
			)

			err := w.processJob(ctx, rt, msg)

			channel := w.broker.GetChannel()
			if channel == nil {
				w.logger.Error("Failed to get broker channel for ACK/NACK",
					slog.String("worker_name", workerName),
					slog.String("job_id", msg.JobID),
				)
				continue
			}

			w.settle(ctx, rt, msg, err, channel, w.broker)
		}
	}
}
