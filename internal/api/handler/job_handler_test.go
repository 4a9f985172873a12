package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipeworks/ingest-pipeline/internal/jobs"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type enqueued struct {
	queue string
	body  []byte
}

type fakeEnqueuer struct {
	published []enqueued
	err       error
}

func (f *fakeEnqueuer) PublishWithRetry(ctx context.Context, queueName string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, enqueued{queue: queueName, body: body})
	return nil
}

func postJSON(t *testing.T, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

type errorEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.Success)
	return env
}

func TestJobHandler_CreateJob(t *testing.T) {
	t.Run("enqueues a job with the queue's entry action", func(t *testing.T) {
		enq := &fakeEnqueuer{}
		h := &JobHandler{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), rabbitClient: enq}

		c, w := postJSON(t, `{"queue_name":"ingest.parse","payload":{"source_id":"src-1"}}`)
		h.CreateJob(c)

		require.Equal(t, http.StatusAccepted, w.Code)

		var env struct {
			Success bool `json:"success"`
			Data    struct {
				JobID      string          `json:"job_id"`
				QueueName  string          `json:"queue_name"`
				ActionName string          `json:"action_name"`
				Payload    json.RawMessage `json:"payload"`
				Attempt    int             `json:"attempt"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.True(t, env.Success)
		assert.Equal(t, "ingest.parse", env.Data.QueueName)
		assert.Equal(t, "fetch_source", env.Data.ActionName)
		assert.Equal(t, 0, env.Data.Attempt)
		assert.JSONEq(t, `{"source_id":"src-1"}`, string(env.Data.Payload))

		_, err := uuid.Parse(env.Data.JobID)
		assert.NoError(t, err, "job_id must be a UUID")

		require.Len(t, enq.published, 1)
		assert.Equal(t, "ingest.parse", enq.published[0].queue)

		var job jobs.Job
		require.NoError(t, json.Unmarshal(enq.published[0].body, &job))
		assert.Equal(t, env.Data.JobID, job.JobID)
		assert.Equal(t, jobs.QueueParse, job.QueueName)
		assert.Equal(t, jobs.ActionFetchSource, job.ActionName)
	})

	t.Run("save queue starts at validate_payload", func(t *testing.T) {
		enq := &fakeEnqueuer{}
		h := &JobHandler{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), rabbitClient: enq}

		c, w := postJSON(t, `{"queue_name":"ingest.save","payload":{"title":"Pancakes"}}`)
		h.CreateJob(c)

		require.Equal(t, http.StatusAccepted, w.Code)
		require.Len(t, enq.published, 1)

		var job jobs.Job
		require.NoError(t, json.Unmarshal(enq.published[0].body, &job))
		assert.Equal(t, jobs.ActionValidatePayload, job.ActionName)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := &JobHandler{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), rabbitClient: &fakeEnqueuer{}}

		c, w := postJSON(t, `{"queue_name":`)
		h.CreateJob(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeError(t, w)
		assert.Equal(t, "INVALID_BODY", env.Error.Code)
	})

	t.Run("missing queue_name", func(t *testing.T) {
		h := &JobHandler{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), rabbitClient: &fakeEnqueuer{}}

		c, w := postJSON(t, `{"payload":{}}`)
		h.CreateJob(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeError(t, w)
		assert.Equal(t, "INVALID_BODY", env.Error.Code)
	})

	t.Run("unknown queue", func(t *testing.T) {
		enq := &fakeEnqueuer{}
		h := &JobHandler{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), rabbitClient: enq}

		c, w := postJSON(t, `{"queue_name":"ingest.bogus"}`)
		h.CreateJob(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeError(t, w)
		assert.Equal(t, "UNKNOWN_QUEUE", env.Error.Code)
		assert.Empty(t, enq.published)
	})

	t.Run("publish failure", func(t *testing.T) {
		h := &JobHandler{
			logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
			rabbitClient: &fakeEnqueuer{err: errors.New("broker unavailable")},
		}

		c, w := postJSON(t, `{"queue_name":"ingest.parse"}`)
		h.CreateJob(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		env := decodeError(t, w)
		assert.Equal(t, "PUBLISH_FAILED", env.Error.Code)
		assert.Equal(t, "EXTERNAL_SERVICE", env.Error.Type)
	})
}
