package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/recipeworks/ingest-pipeline/internal/api/dto"
	"github.com/recipeworks/ingest-pipeline/internal/jobs"
)

// CreateJob handles POST /api/v1/jobs
// Enqueues a new ingestion job on one of the known queues
func (h *JobHandler) CreateJob(c *gin.Context) {
	h.logger.Info("CreateJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		respondError(c, http.StatusBadRequest, "Invalid request body", "VALIDATION", "INVALID_BODY")
		return
	}

	queue := jobs.QueueName(req.QueueName)
	if !queue.Valid() {
		respondError(c, http.StatusBadRequest, "Unknown queue name", "VALIDATION", "UNKNOWN_QUEUE")
		return
	}

	if len(req.Payload) > 0 && !json.Valid(req.Payload) {
		respondError(c, http.StatusBadRequest, "Payload must be valid JSON", "VALIDATION", "INVALID_PAYLOAD")
		return
	}

	job := jobs.Job{
		JobID:      uuid.New().String(),
		QueueName:  queue,
		ActionName: jobs.EntryAction(queue),
		Payload:    req.Payload,
		Attempt:    0,
		CreatedAt:  time.Now(),
	}

	body, err := json.Marshal(job)
	if err != nil {
		h.logger.Error("Failed to marshal job", slog.String("error", err.Error()))
		respondError(c, http.StatusInternalServerError, "Failed to create job", "WORKER", "")
		return
	}

	if err := h.rabbitClient.PublishWithRetry(c.Request.Context(), queue.String(), body); err != nil {
		h.logger.Error("Failed to publish job",
			slog.String("job_id", job.JobID),
			slog.String("queue", queue.String()),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusServiceUnavailable, "Failed to enqueue job", "EXTERNAL_SERVICE", "PUBLISH_FAILED")
		return
	}

	h.logger.Info("Job enqueued",
		slog.String("job_id", job.JobID),
		slog.String("queue", queue.String()),
	)

	respondSuccess(c, http.StatusAccepted, dto.JobDTO{
		JobID:      job.JobID,
		QueueName:  job.QueueName.String(),
		ActionName: job.ActionName.String(),
		Payload:    job.Payload,
		Attempt:    job.Attempt,
		CreatedAt:  job.CreatedAt.Format(time.RFC3339),
	})
}
