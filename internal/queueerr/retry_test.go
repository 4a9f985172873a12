package queueerr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BaseDelay:         100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          1 * time.Second,
	}
}

func TestShouldRetry(t *testing.T) {
	cfg := testRetryConfig()

	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{
			name:    "transient error below limit",
			err:     NewNetwork("connection reset"),
			attempt: 1,
			want:    true,
		},
		{
			name:    "transient error at limit",
			err:     NewNetwork("connection reset"),
			attempt: 3,
			want:    false,
		},
		{
			name:    "transient error above limit",
			err:     NewNetwork("connection reset"),
			attempt: 7,
			want:    false,
		},
		{
			name:    "validation never retried",
			err:     NewValidation("missing field"),
			attempt: 1,
			want:    false,
		},
		{
			name:    "critical never retried",
			err:     NewDatabase("corrupt index").WithSeverity(SeverityCritical),
			attempt: 1,
			want:    false,
		},
		{
			name:    "parsing retries like transient kinds",
			err:     NewParsing("truncated body"),
			attempt: 1,
			want:    true,
		},
		{
			name:    "database retries below limit",
			err:     NewDatabase("deadlock detected"),
			attempt: 2,
			want:    true,
		},
		{
			name:    "plain error is classified first",
			err:     errors.New("dial tcp: connection refused"),
			attempt: 1,
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRetry(tt.err, tt.attempt, cfg))
		})
	}
}

func TestBackoff(t *testing.T) {
	cfg := testRetryConfig()

	t.Run("first retry waits the base delay", func(t *testing.T) {
		assert.Equal(t, cfg.BaseDelay, Backoff(0, cfg))
	})

	t.Run("delay grows geometrically", func(t *testing.T) {
		assert.Equal(t, 200*time.Millisecond, Backoff(1, cfg))
		assert.Equal(t, 400*time.Millisecond, Backoff(2, cfg))
		assert.Equal(t, 800*time.Millisecond, Backoff(3, cfg))
	})

	t.Run("delay is capped at max", func(t *testing.T) {
		assert.Equal(t, cfg.MaxDelay, Backoff(4, cfg))
		assert.Equal(t, cfg.MaxDelay, Backoff(20, cfg))
	})

	t.Run("delay is non-decreasing in attempt", func(t *testing.T) {
		prev := time.Duration(0)
		for attempt := 0; attempt < 12; attempt++ {
			d := Backoff(attempt, cfg)
			assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
			prev = d
		}
	})
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		severity Severity
		want     slog.Level
	}{
		{SeverityCritical, slog.LevelError},
		{SeverityHigh, slog.LevelError},
		{SeverityMedium, slog.LevelWarn},
		{SeverityLow, slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			assert.Equal(t, tt.want, LogLevel(tt.severity))
		})
	}
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestExecutor_Execute(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("success on first attempt", func(t *testing.T) {
		x := NewExecutorWithSleep(logger, noSleep)

		calls := 0
		err := x.Execute(context.Background(), testRetryConfig(), ExecuteOptions{Operation: "op"}, func(ctx context.Context) error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("transient failures retried up to limit", func(t *testing.T) {
		x := NewExecutorWithSleep(logger, noSleep)

		calls := 0
		err := x.Execute(context.Background(), testRetryConfig(), ExecuteOptions{Operation: "op"}, func(ctx context.Context) error {
			calls++
			return NewNetwork("connection reset")
		})

		require.Error(t, err)
		assert.Equal(t, 3, calls)

		var je *JobError
		require.ErrorAs(t, err, &je)
		assert.Equal(t, KindNetwork, je.Kind)
		assert.Equal(t, 2, je.Attempt)
	})

	t.Run("recovers after transient failures", func(t *testing.T) {
		x := NewExecutorWithSleep(logger, noSleep)

		calls := 0
		err := x.Execute(context.Background(), testRetryConfig(), ExecuteOptions{Operation: "op"}, func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return NewTimeout("slow")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("validation error fails immediately", func(t *testing.T) {
		x := NewExecutorWithSleep(logger, noSleep)

		calls := 0
		err := x.Execute(context.Background(), testRetryConfig(), ExecuteOptions{Operation: "op"}, func(ctx context.Context) error {
			calls++
			return NewValidation("missing field")
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("critical error fails immediately", func(t *testing.T) {
		x := NewExecutorWithSleep(logger, noSleep)

		calls := 0
		err := x.Execute(context.Background(), testRetryConfig(), ExecuteOptions{Operation: "op"}, func(ctx context.Context) error {
			calls++
			return NewDatabase("corrupt page").WithSeverity(SeverityCritical)
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retryIf further restricts retries", func(t *testing.T) {
		x := NewExecutorWithSleep(logger, noSleep)

		calls := 0
		opts := ExecuteOptions{
			Operation: "op",
			RetryIf:   func(error) bool { return false },
		}
		err := x.Execute(context.Background(), testRetryConfig(), opts, func(ctx context.Context) error {
			calls++
			return NewNetwork("connection reset")
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("sleeps the computed backoff between attempts", func(t *testing.T) {
		var delays []time.Duration
		x := NewExecutorWithSleep(logger, func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		})

		cfg := testRetryConfig()
		_ = x.Execute(context.Background(), cfg, ExecuteOptions{Operation: "op"}, func(ctx context.Context) error {
			return NewNetwork("connection reset")
		})

		require.Len(t, delays, 2)
		assert.Equal(t, Backoff(0, cfg), delays[0])
		assert.Equal(t, Backoff(1, cfg), delays[1])
	})

	t.Run("cancelled sleep stops retrying", func(t *testing.T) {
		x := NewExecutorWithSleep(logger, func(ctx context.Context, d time.Duration) error {
			return context.Canceled
		})

		calls := 0
		err := x.Execute(context.Background(), testRetryConfig(), ExecuteOptions{Operation: "op"}, func(ctx context.Context) error {
			calls++
			return NewNetwork("connection reset")
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("execute options context lands on the error", func(t *testing.T) {
		x := NewExecutorWithSleep(logger, noSleep)

		opts := ExecuteOptions{
			Operation: "track-pattern",
			Context:   map[string]any{"rule_key": "R-QTY,R-TEXT"},
		}
		err := x.Execute(context.Background(), testRetryConfig(), opts, func(ctx context.Context) error {
			return NewDatabase("deadlock detected")
		})

		var je *JobError
		require.ErrorAs(t, err, &je)
		assert.Equal(t, "R-QTY,R-TEXT", je.Context["rule_key"])
	})
}
