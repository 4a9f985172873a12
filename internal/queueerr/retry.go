package queueerr

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// RetryConfig defines retry behavior. Immutable per call; callers override
// per invocation by passing a different value.
type RetryConfig struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:       3,
	BaseDelay:         500 * time.Millisecond,
	BackoffMultiplier: 2.0,
	MaxDelay:          30 * time.Second,
}

// ShouldRetry decides whether a failed attempt is eligible for another run.
// Attempt numbers are zero-based: attempt n means n prior attempts happened.
func ShouldRetry(err error, attempt int, cfg RetryConfig) bool {
	if attempt >= cfg.MaxAttempts {
		return false
	}

	je := From(err)
	if je.Kind == KindValidation {
		return false
	}
	if je.Severity == SeverityCritical {
		return false
	}

	return true
}

// Backoff computes the delay before retrying a zero-based attempt:
// min(base * multiplier^attempt, max). Non-jittered; deterministic delays
// are applied uniformly across all retry paths.
func Backoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// LogLevel maps a severity to its logging channel.
func LogLevel(s Severity) slog.Level {
	switch s {
	case SeverityCritical, SeverityHigh:
		return slog.LevelError
	case SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// SleepFunc pauses for d or returns early with the context error. Injectable
// so tests run without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ExecuteOptions customize one Execute call.
type ExecuteOptions struct {
	// Operation names the guarded operation for logging.
	Operation string
	// RetryIf, when set, further restricts which errors are retried.
	// ShouldRetry still applies first.
	RetryIf func(error) bool
	// Context is merged into every log record and the final error.
	Context map[string]any
}

// Executor runs operations under the uniform classify-log-retry policy.
type Executor struct {
	logger *slog.Logger
	sleep  SleepFunc
}

// NewExecutor creates an Executor using real delays.
func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{logger: logger, sleep: sleepWithContext}
}

// NewExecutorWithSleep creates an Executor with an injected sleep, for
// deterministic tests.
func NewExecutorWithSleep(logger *slog.Logger, sleep SleepFunc) *Executor {
	return &Executor{logger: logger, sleep: sleep}
}

// Execute runs op up to cfg.MaxAttempts times. On each failure it
// classifies the error, logs it at the severity-tiered channel with merged
// structured context, and either backs off and retries or returns the typed
// error for the transport to requeue or dead-letter.
func (x *Executor) Execute(ctx context.Context, cfg RetryConfig, opts ExecuteOptions, op func(ctx context.Context) error) error {
	var lastErr *JobError

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		je := From(err)
		je.Attempt = attempt
		for k, v := range opts.Context {
			je.WithContext(k, v)
		}
		lastErr = je

		attrs := []any{
			slog.String("operation", opts.Operation),
			slog.String("kind", string(je.Kind)),
			slog.String("severity", string(je.Severity)),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		}
		for k, v := range je.Context {
			attrs = append(attrs, slog.Any(k, v))
		}
		x.logger.Log(ctx, LogLevel(je.Severity), "Operation failed", attrs...)

		if !ShouldRetry(je, attempt+1, cfg) {
			return je
		}
		if opts.RetryIf != nil && !opts.RetryIf(err) {
			return je
		}

		delay := Backoff(attempt, cfg)
		x.logger.Debug("Retrying operation",
			slog.String("operation", opts.Operation),
			slog.Int("next_attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		if err := x.sleep(ctx, delay); err != nil {
			return je
		}
	}

	return lastErr
}
