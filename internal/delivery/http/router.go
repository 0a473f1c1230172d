package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/delivery/http/middleware"
	"github.com/codeforge/judge-harness/internal/usecase"
)

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(
	runUC *usecase.RunBatchUsecase,
	enqueueUC *usecase.EnqueueGradingUsecase,
	verdictUC *usecase.GetVerdictUsecase,
	checks map[string]HealthCheck,
	logger *zap.Logger,
	rateLimitPerMin int,
	maxBodyBytes int64,
) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting)
		healthHandler := NewHealthHandler(checks, logger)
		v1.GET("/health", healthHandler.Health)

		langHandler := NewLanguageHandler()
		v1.GET("/languages", langHandler.List)

		limited := v1.Group("", middleware.RateLimiter(rateLimitPerMin), middleware.BodySizeLimit(maxBodyBytes))

		runHandler := NewRunHandler(runUC, logger)
		limited.POST("/run", runHandler.Run)

		subHandler := NewSubmissionHandler(enqueueUC, verdictUC, logger)
		limited.POST("/submissions", subHandler.Submit)
		v1.GET("/submissions/:id", subHandler.GetByID)

		// WebSocket variants
		wsHandler := NewWebSocketHandler(runUC, verdictUC, logger)
		limited.GET("/run/stream", wsHandler.StreamRun)
		v1.GET("/submissions/:id/stream", wsHandler.StreamVerdict)
	}

	return router
}
