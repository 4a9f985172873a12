package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed tracks terminal job outcomes per queue
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_jobs_processed_total",
			Help: "Total number of jobs processed to a terminal state",
		},
		[]string{"queue", "status"},
	)

	// JobRetries tracks requeued attempts per queue and error kind
	JobRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_job_retries_total",
			Help: "Total number of job retry publishes",
		},
		[]string{"queue", "kind"},
	)

	// JobErrors tracks classified stage failures
	JobErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_job_errors_total",
			Help: "Total number of classified job errors",
		},
		[]string{"queue", "kind", "severity"},
	)

	// PipelineStageDuration tracks per-stage execution time
	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue", "action"},
	)

	// PatternsTracked counts successful pattern upserts
	PatternsTracked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_patterns_tracked_total",
			Help: "Total number of successful pattern track calls",
		},
	)

	// PatternConflicts counts transactions retried after a write race
	PatternConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_pattern_conflicts_total",
			Help: "Total number of pattern transactions retried after conflicts",
		},
	)

	// HealthStatus exposes the last observed status per component
	// (0 = healthy, 1 = degraded, 2 = unhealthy)
	HealthStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingest_health_status",
			Help: "Component health status (0 healthy, 1 degraded, 2 unhealthy)",
		},
		[]string{"component"},
	)

	// HealthCheckLatency tracks component check response time
	HealthCheckLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_health_check_latency_seconds",
			Help:    "Component health check latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component"},
	)
)
