package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/recipeworks/ingest-pipeline/internal/actions"
	"github.com/recipeworks/ingest-pipeline/internal/broadcast"
	"github.com/recipeworks/ingest-pipeline/internal/config"
	"github.com/recipeworks/ingest-pipeline/internal/content"
	"github.com/recipeworks/ingest-pipeline/internal/jobs"
	"github.com/recipeworks/ingest-pipeline/internal/pattern"
	"github.com/recipeworks/ingest-pipeline/internal/pipeline"
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
	"github.com/recipeworks/ingest-pipeline/internal/worker"
	"github.com/recipeworks/ingest-pipeline/internal/worker/storage"
	"github.com/recipeworks/ingest-pipeline/shared/logger"
	"github.com/recipeworks/ingest-pipeline/shared/postgresql"
	"github.com/recipeworks/ingest-pipeline/shared/rabbitmq"
	"github.com/recipeworks/ingest-pipeline/shared/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	// Initialize Redis client for status broadcasting
	redisClient, err := redis.NewClient(&redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}

	appLogger.Info("Redis connection established")

	// Build action registry
	registry := pipeline.NewRegistry()
	if err := actions.RegisterAll(registry); err != nil {
		return fmt.Errorf("failed to register actions: %w", err)
	}

	// Pattern tracker uses the first configured queue's retry policy for
	// its internal transaction retries
	trackerRetry := queueerr.DefaultRetryConfig
	if len(cfg.Queues) > 0 {
		trackerRetry = retryConfig(cfg.Queues[0])
	}
	tracker := pattern.NewTracker(dbClient.GetDB(), trackerRetry, appLogger.Logger)

	// Shared action dependencies
	deps := &pipeline.Dependencies{
		Logger:      appLogger.Logger,
		Content:     content.NewSQLStore(dbClient.GetDB(), appLogger.Logger),
		Patterns:    tracker,
		Broadcaster: broadcast.NewPublisher(redisClient, cfg.Broadcast.Channel, appLogger.Logger),
		Publisher:   rabbitClient,
	}

	// Per-queue runtime settings
	queues := make([]worker.QueueRuntime, len(cfg.Queues))
	for i, q := range cfg.Queues {
		queues[i] = worker.QueueRuntime{
			Name:          jobs.QueueName(q.Name),
			Concurrency:   q.Concurrency,
			PrefetchCount: q.PrefetchCount,
			Retry:         retryConfig(q),
		}
	}

	// Create worker instance
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:      appLogger.Logger,
		Broker:      rabbitClient,
		Registry:    registry,
		Deps:        deps,
		DeadLetters: storage.NewSQLDeadLetterStore(dbClient.GetDB(), appLogger.Logger),
		Queues:      queues,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	// Cancel context to stop worker
	cancel()

	// Give worker time to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop worker
	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	// Cleanup function to close all resources
	cleanup := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
		if redisClient != nil {
			redisClient.Close()
		}
	}
	cleanup()

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// retryConfig maps one queue's config section onto the retry policy
func retryConfig(q config.QueueConfig) queueerr.RetryConfig {
	return queueerr.RetryConfig{
		MaxAttempts:       q.MaxAttempts,
		BaseDelay:         q.BaseDelay,
		BackoffMultiplier: q.BackoffMultiplier,
		MaxDelay:          q.MaxDelay,
	}
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueDurable:       true,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
