package health

import (
	"context"
	"errors"
	"time"
)

// Status is the operational state of a component or the whole service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ErrComponentNotFound is returned when asking for an unknown component
var ErrComponentNotFound = errors.New("health component not found")

// Check is a point-in-time assessment of one subsystem.
type Check struct {
	Status         Status    `json:"status"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	Performance    int       `json:"performance"`
	Warnings       []string  `json:"warnings,omitempty"`
	Error          string    `json:"error,omitempty"`
	ErrorCode      string    `json:"error_code,omitempty"`
	Critical       bool      `json:"critical,omitempty"`
	RetryAfterMS   int64     `json:"retry_after_ms,omitempty"`
	LastChecked    time.Time `json:"last_checked"`
}

// ServiceHealth is one atomically-replaced snapshot of every check.
type ServiceHealth struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Queues    map[string]Check `json:"queues,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Checker probes one component. Check must respect ctx; the monitor bounds
// every call with a hard timeout regardless.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type checkerFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (c checkerFunc) Name() string                    { return c.name }
func (c checkerFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// NewChecker wraps a plain function as a Checker.
func NewChecker(name string, fn func(ctx context.Context) error) Checker {
	return checkerFunc{name: name, fn: fn}
}

// PerformanceScore maps a check's response time onto a monotonic step scale.
func PerformanceScore(d time.Duration) int {
	switch {
	case d < 100*time.Millisecond:
		return 100
	case d < 250*time.Millisecond:
		return 90
	case d < 750*time.Millisecond:
		return 75
	case d < 3000*time.Millisecond:
		return 50
	case d < 5000*time.Millisecond:
		return 25
	default:
		return 0
	}
}

// Aggregate computes the worst-of overall status. Order independent.
func Aggregate(checks ...Check) Status {
	status := StatusHealthy
	for _, c := range checks {
		if c.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if c.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}
