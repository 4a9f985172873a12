package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/recipeworks/ingest-pipeline/internal/jobs"
	"github.com/recipeworks/ingest-pipeline/internal/pipeline"
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
	"github.com/recipeworks/ingest-pipeline/internal/worker/storage"
	"github.com/recipeworks/ingest-pipeline/shared/rabbitmq"
)

// QueueRuntime holds the per-queue execution settings.
type QueueRuntime struct {
	Name          jobs.QueueName
	Concurrency   int
	PrefetchCount int
	Retry         queueerr.RetryConfig
}

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Broker      *rabbitmq.Client
	Registry    *pipeline.Registry
	Deps        *pipeline.Dependencies
	DeadLetters storage.DeadLetterStore
	WorkerID    string
	Queues      []QueueRuntime
}

// Worker consumes every configured queue and drives each job through its
// pipeline. Different jobs run concurrently, bounded per queue; within one
// job the pipeline stages run strictly in order.
type Worker struct {
	logger      *slog.Logger
	broker      *rabbitmq.Client
	registry    *pipeline.Registry
	deps        *pipeline.Dependencies
	deadLetters storage.DeadLetterStore
	workerID    string
	queues      []QueueRuntime
	pipelines   map[jobs.QueueName]*pipeline.Pipeline
	wg          sync.WaitGroup
	stopChan    chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	return &Worker{
		logger:      cfg.Logger,
		broker:      cfg.Broker,
		registry:    cfg.Registry,
		deps:        cfg.Deps,
		deadLetters: cfg.DeadLetters,
		workerID:    workerID,
		queues:      cfg.Queues,
		pipelines:   make(map[jobs.QueueName]*pipeline.Pipeline),
		stopChan:    make(chan struct{}),
	}
}

// Start builds every pipeline, declares the queue topology, and begins
// consuming. Blocks until the context is canceled. Pipeline resolution
// failures surface here, before the first job is dispatched.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("queues", len(w.queues)),
	)

	for _, rt := range w.queues {
		p, err := w.registry.Build(rt.Name, w.deps, w.logger)
		if err != nil {
			return fmt.Errorf("failed to build pipeline for queue %s: %w", rt.Name, err)
		}
		w.pipelines[rt.Name] = p

		if err := w.broker.DeclareQueue(rt.Name.String()); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", rt.Name, err)
		}
	}

	for _, rt := range w.queues {
		if err := w.startQueue(ctx, rt); err != nil {
			return fmt.Errorf("failed to start queue %s: %w", rt.Name, err)
		}
	}

	w.logger.Info("Worker started, consuming all queues",
		slog.String("worker_id", w.workerID),
	)

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// startQueue wires one queue's consumer, dispatcher, and goroutine pool.
func (w *Worker) startQueue(ctx context.Context, rt QueueRuntime) error {
	consumerTag := fmt.Sprintf("%s-%s", w.workerID, rt.Name)
	deliveries, err := w.broker.Consume(rt.Name.String(), consumerTag, rt.PrefetchCount)
	if err != nil {
		return err
	}

	jobsChan := make(chan *jobs.Message)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.dispatch(ctx, rt, deliveries, jobsChan)
	}()

	w.spawnPool(ctx, rt, jobsChan)

	w.logger.Info("Queue consumer started",
		slog.String("queue", rt.Name.String()),
		slog.String("consumer_tag", consumerTag),
		slog.Int("concurrency", rt.Concurrency),
		slog.Int("prefetch_count", rt.PrefetchCount),
	)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
