package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/recipeworks/ingest-pipeline/internal/metrics"
)

// Monitor aggregates component checks behind a TTL cache. Construct one
// process-scoped instance in main wiring; there is no package-level state.
type Monitor struct {
	mu            sync.Mutex
	ttl           time.Duration
	checkTimeout  time.Duration
	checkers      []Checker
	queueCheckers []Checker
	snapshot      *ServiceHealth
	now           func() time.Time
	logger        *slog.Logger
}

// NewMonitor creates a Monitor with the given cache TTL and per-check
// hard timeout.
func NewMonitor(ttl, checkTimeout time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		ttl:          ttl,
		checkTimeout: checkTimeout,
		now:          time.Now,
		logger:       logger,
	}
}

// Register adds a component checker. Call before serving traffic.
func (m *Monitor) Register(c Checker) {
	m.checkers = append(m.checkers, c)
}

// RegisterQueue adds a per-queue checker, reported under the nested
// "queues" slice of the snapshot.
func (m *Monitor) RegisterQueue(c Checker) {
	m.queueCheckers = append(m.queueCheckers, c)
}

// GetHealth returns the cached snapshot while it is younger than the TTL,
// otherwise recomputes every check and atomically replaces the cache.
func (m *Monitor) GetHealth(ctx context.Context) *ServiceHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot != nil && m.now().Sub(m.snapshot.Timestamp) < m.ttl {
		return m.snapshot
	}

	return m.refreshLocked(ctx)
}

// RefreshHealth unconditionally recomputes, bypassing the TTL check.
func (m *Monitor) RefreshHealth(ctx context.Context) *ServiceHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.refreshLocked(ctx)
}

// IsHealthy reports overall serving capability. Degraded still serves.
func (m *Monitor) IsHealthy(ctx context.Context) bool {
	return m.GetHealth(ctx).Status != StatusUnhealthy
}

// ComponentHealth returns the named component's slice of the snapshot.
func (m *Monitor) ComponentHealth(ctx context.Context, name string) (Check, error) {
	snapshot := m.GetHealth(ctx)
	if check, ok := snapshot.Checks[name]; ok {
		return check, nil
	}
	return Check{}, ErrComponentNotFound
}

// QueueHealth returns the named queue's slice of the snapshot.
func (m *Monitor) QueueHealth(ctx context.Context, name string) (Check, error) {
	snapshot := m.GetHealth(ctx)
	if check, ok := snapshot.Queues[name]; ok {
		return check, nil
	}
	return Check{}, ErrComponentNotFound
}

// Reset clears the cached snapshot. For tests.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = nil
}

func (m *Monitor) refreshLocked(ctx context.Context) *ServiceHealth {
	checks := m.runAll(ctx, m.checkers)
	queues := m.runAll(ctx, m.queueCheckers)

	all := make([]Check, 0, len(checks)+len(queues))
	for name, c := range checks {
		metrics.HealthStatus.WithLabelValues(name).Set(statusValue(c.Status))
		all = append(all, c)
	}
	for name, c := range queues {
		metrics.HealthStatus.WithLabelValues("queue:"+name).Set(statusValue(c.Status))
		all = append(all, c)
	}

	snapshot := &ServiceHealth{
		Status:    Aggregate(all...),
		Checks:    checks,
		Queues:    queues,
		Timestamp: m.now(),
	}
	m.snapshot = snapshot

	m.logger.Debug("Health snapshot refreshed",
		slog.String("status", string(snapshot.Status)),
		slog.Int("components", len(checks)),
		slog.Int("queues", len(queues)),
	)

	return snapshot
}

// runAll executes independent checks in parallel.
func (m *Monitor) runAll(ctx context.Context, checkers []Checker) map[string]Check {
	results := make(map[string]Check, len(checkers))
	if len(checkers) == 0 {
		return results
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			check := m.runOne(ctx, c)
			mu.Lock()
			results[c.Name()] = check
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	return results
}

// runOne bounds a single check with the hard timeout: a hung check becomes
// Unhealthy instead of stalling the aggregator.
func (m *Monitor) runOne(ctx context.Context, c Checker) Check {
	checkCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	start := m.now()
	done := make(chan error, 1)
	go func() {
		done <- c.Check(checkCtx)
	}()

	var err error
	timedOut := false
	select {
	case err = <-done:
	case <-time.After(m.checkTimeout):
		timedOut = true
	}

	elapsed := m.now().Sub(start)
	metrics.HealthCheckLatency.WithLabelValues(c.Name()).Observe(elapsed.Seconds())

	check := Check{
		ResponseTimeMS: elapsed.Milliseconds(),
		Performance:    PerformanceScore(elapsed),
		LastChecked:    m.now(),
	}

	switch {
	case timedOut:
		check.Status = StatusUnhealthy
		check.Error = "health check timed out"
		check.ErrorCode = "CHECK_TIMEOUT"
		check.RetryAfterMS = m.ttl.Milliseconds()
	case err != nil:
		check.Status = StatusUnhealthy
		check.Error = err.Error()
		check.RetryAfterMS = m.ttl.Milliseconds()
	case check.Performance <= 50:
		check.Status = StatusDegraded
		check.Warnings = []string{"slow response"}
	default:
		check.Status = StatusHealthy
	}

	if check.Status != StatusHealthy {
		m.logger.Warn("Component check not healthy",
			slog.String("component", c.Name()),
			slog.String("status", string(check.Status)),
			slog.Int64("response_time_ms", check.ResponseTimeMS),
			slog.String("error", check.Error),
		)
	}

	return check
}

func statusValue(s Status) float64 {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}
