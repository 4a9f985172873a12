package dto

import "encoding/json"

// CreateJobRequest is the body of POST /api/v1/jobs
type CreateJobRequest struct {
	QueueName string          `json:"queue_name" binding:"required"`
	Payload   json.RawMessage `json:"payload"`
}

// JobDTO is the API representation of an enqueued job
type JobDTO struct {
	JobID      string          `json:"job_id"`
	QueueName  string          `json:"queue_name"`
	ActionName string          `json:"action_name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Attempt    int             `json:"attempt"`
	CreatedAt  string          `json:"created_at"`
}
