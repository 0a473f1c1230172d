package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/config"
	handler "github.com/codeforge/judge-harness/internal/delivery/http"
	"github.com/codeforge/judge-harness/internal/judge"
	"github.com/codeforge/judge-harness/internal/pool"
	"github.com/codeforge/judge-harness/internal/publisher"
	"github.com/codeforge/judge-harness/internal/repository/postgres"
	redisrepo "github.com/codeforge/judge-harness/internal/repository/redis"
	"github.com/codeforge/judge-harness/internal/synth"
	"github.com/codeforge/judge-harness/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting judge harness API server")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Connect to PostgreSQL
	ctx := context.Background()
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to Redis
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to ping Redis", zap.Error(err))
	}
	logger.Info("Connected to Redis")

	// Initialize RabbitMQ publisher
	pub, err := publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
	}
	defer pub.Close()
	logger.Info("Connected to RabbitMQ")

	// Initialize repositories
	testCases := redisrepo.NewCachedTestCaseStore(rdb, postgres.NewPostgresTestCaseStore(dbPool), cfg.Redis.TestCaseTTL, logger)
	verdicts := redisrepo.NewRedisVerdictStore(rdb, cfg.Redis.VerdictTTL)

	// Shared worker pool bounds in-flight judge submissions for every request
	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, cfg.Worker.QueueSize, logger)
	workerPool.Start(ctx)

	judgeClient := judge.NewClient(cfg.Judge.ClientConfig(), logger)

	// Initialize use cases
	runUC := usecase.NewRunBatchUsecase(testCases, synth.Default(), judgeClient, workerPool, cfg.Limits.ExecutionLimits(), logger)
	enqueueUC := usecase.NewEnqueueGradingUsecase(verdicts, pub, logger)
	verdictUC := usecase.NewGetVerdictUsecase(verdicts, logger)

	checks := map[string]handler.HealthCheck{
		"postgres": dbPool.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}

	// Initialize router
	router := handler.NewRouter(runUC, enqueueUC, verdictUC, checks, logger, cfg.Server.RateLimit, cfg.Server.MaxBodyBytes)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	workerPool.Stop()

	logger.Info("API server stopped")
}
