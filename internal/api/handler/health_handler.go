package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recipeworks/ingest-pipeline/internal/health"
)

// GetHealth handles GET /health
// Returns the full cached health snapshot. The body keeps the success
// envelope even on 503: the request itself succeeded, and monitoring
// clients need the per-check detail to see what is failing. The status
// code alone carries the unhealthy signal.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	snapshot := h.monitor.GetHealth(c.Request.Context())

	status := http.StatusOK
	if snapshot.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	respondSuccess(c, status, snapshot)
}

// GetLiveness handles GET /health/live
// Process is up; no dependency checks
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"status": "alive"})
}

// GetReadiness handles GET /health/ready
// Ready while the aggregate status is not unhealthy; degraded still serves
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	if !h.monitor.IsHealthy(c.Request.Context()) {
		respondError(c, http.StatusServiceUnavailable, "Service is not ready", "UNHEALTHY", "NOT_READY")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"status": "ready"})
}

// GetComponent handles GET /health/components/:name
func (h *HealthHandler) GetComponent(c *gin.Context) {
	name := c.Param("name")

	check, err := h.monitor.ComponentHealth(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, health.ErrComponentNotFound) {
			respondError(c, http.StatusNotFound, "Unknown health component", "VALIDATION", "COMPONENT_NOT_FOUND")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to check component", "WORKER", "")
		return
	}

	status := http.StatusOK
	if check.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	respondSuccess(c, status, gin.H{"name": name, "check": check})
}

// GetQueue handles GET /health/queues/:name
func (h *HealthHandler) GetQueue(c *gin.Context) {
	name := c.Param("name")

	check, err := h.monitor.QueueHealth(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, health.ErrComponentNotFound) {
			respondError(c, http.StatusNotFound, "Unknown queue", "VALIDATION", "QUEUE_NOT_FOUND")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to check queue", "WORKER", "")
		return
	}

	status := http.StatusOK
	if check.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	respondSuccess(c, status, gin.H{"name": name, "check": check})
}
