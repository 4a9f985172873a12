package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/recipeworks/ingest-pipeline/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Initialize handlers
	jobHandler := handler.NewJobHandler(deps)
	patternHandler := handler.NewPatternHandler(deps)
	healthHandler := handler.NewHealthHandler(deps)

	// Health endpoints
	h := r.Group("/health")
	{
		h.GET("", healthHandler.GetHealth)
		h.GET("/live", healthHandler.GetLiveness)
		h.GET("/ready", healthHandler.GetReadiness)
		h.GET("/components/:name", healthHandler.GetComponent)
		h.GET("/queues/:name", healthHandler.GetQueue)
		h.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Enqueue a new ingestion job
			jobs.POST("", jobHandler.CreateJob)
		}

		patterns := v1.Group("/patterns")
		{
			// GET /api/v1/patterns - List tracked patterns with pagination
			patterns.GET("", patternHandler.ListPatterns)
		}
	}

	return r
}
