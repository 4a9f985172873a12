package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipeworks/ingest-pipeline/internal/health"
)

func okChecker(name string) health.Checker {
	return health.NewChecker(name, func(ctx context.Context) error { return nil })
}

func failChecker(name string) health.Checker {
	return health.NewChecker(name, func(ctx context.Context) error {
		return errors.New("connection refused")
	})
}

func healthHandler(t *testing.T, checkers, queues []health.Checker) *HealthHandler {
	t.Helper()
	monitor := health.NewMonitor(time.Minute, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, c := range checkers {
		monitor.Register(c)
	}
	for _, q := range queues {
		monitor.RegisterQueue(q)
	}
	return &HealthHandler{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), monitor: monitor}
}

func getPath(t *testing.T, fn gin.HandlerFunc, params gin.Params) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	c.Params = params
	fn(c)
	return w
}

func TestHealthHandler_GetHealth(t *testing.T) {
	t.Run("healthy snapshot", func(t *testing.T) {
		h := healthHandler(t, []health.Checker{okChecker("database")}, nil)

		w := getPath(t, h.GetHealth, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var env struct {
			Success bool                 `json:"success"`
			Data    health.ServiceHealth `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.True(t, env.Success)
		assert.Equal(t, health.StatusHealthy, env.Data.Status)
		assert.Contains(t, env.Data.Checks, "database")
	})

	t.Run("unhealthy snapshot returns 503", func(t *testing.T) {
		h := healthHandler(t, []health.Checker{okChecker("database"), failChecker("broker")}, nil)

		w := getPath(t, h.GetHealth, nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var env struct {
			Data health.ServiceHealth `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.Equal(t, health.StatusUnhealthy, env.Data.Status)
	})
}

func TestHealthHandler_GetLiveness(t *testing.T) {
	// Liveness never consults the monitor, even a failing one.
	h := healthHandler(t, []health.Checker{failChecker("database")}, nil)

	w := getPath(t, h.GetLiveness, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")
}

func TestHealthHandler_GetReadiness(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		h := healthHandler(t, []health.Checker{okChecker("database")}, nil)

		w := getPath(t, h.GetReadiness, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "ready")
	})

	t.Run("not ready", func(t *testing.T) {
		h := healthHandler(t, []health.Checker{failChecker("database")}, nil)

		w := getPath(t, h.GetReadiness, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		env := decodeError(t, w)
		assert.Equal(t, "NOT_READY", env.Error.Code)
	})
}

func TestHealthHandler_GetComponent(t *testing.T) {
	h := healthHandler(t,
		[]health.Checker{okChecker("database")},
		[]health.Checker{okChecker("ingest.parse")},
	)

	t.Run("known component", func(t *testing.T) {
		w := getPath(t, h.GetComponent, gin.Params{{Key: "name", Value: "database"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"database"`)
	})

	t.Run("unknown component", func(t *testing.T) {
		w := getPath(t, h.GetComponent, gin.Params{{Key: "name", Value: "mainframe"}})
		assert.Equal(t, http.StatusNotFound, w.Code)
		env := decodeError(t, w)
		assert.Equal(t, "COMPONENT_NOT_FOUND", env.Error.Code)
	})

	t.Run("queues are not components", func(t *testing.T) {
		w := getPath(t, h.GetComponent, gin.Params{{Key: "name", Value: "ingest.parse"}})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHealthHandler_GetQueue(t *testing.T) {
	h := healthHandler(t,
		[]health.Checker{okChecker("database")},
		[]health.Checker{okChecker("ingest.parse"), failChecker("ingest.image")},
	)

	t.Run("known queue", func(t *testing.T) {
		w := getPath(t, h.GetQueue, gin.Params{{Key: "name", Value: "ingest.parse"}})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unhealthy queue returns 503", func(t *testing.T) {
		w := getPath(t, h.GetQueue, gin.Params{{Key: "name", Value: "ingest.image"}})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("unknown queue", func(t *testing.T) {
		w := getPath(t, h.GetQueue, gin.Params{{Key: "name", Value: "ingest.unknown"}})
		assert.Equal(t, http.StatusNotFound, w.Code)
		env := decodeError(t, w)
		assert.Equal(t, "QUEUE_NOT_FOUND", env.Error.Code)
	})
}
