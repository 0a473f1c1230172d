package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/config"
	amqpdelivery "github.com/codeforge/judge-harness/internal/delivery/amqp"
	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/judge"
	"github.com/codeforge/judge-harness/internal/pool"
	"github.com/codeforge/judge-harness/internal/repository/postgres"
	redisrepo "github.com/codeforge/judge-harness/internal/repository/redis"
	"github.com/codeforge/judge-harness/internal/synth"
	"github.com/codeforge/judge-harness/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting judge harness grading worker")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
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
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// Initialize repositories
	testCases := redisrepo.NewCachedTestCaseStore(redisClient, postgres.NewPostgresTestCaseStore(dbPool), cfg.Redis.TestCaseTTL, logger)
	verdicts := redisrepo.NewRedisVerdictStore(redisClient, cfg.Redis.VerdictTTL)
	idempotencyStore := redisrepo.NewRedisIdempotencyStore(redisClient, cfg.Redis.JobLockTTL)

	// Test cases of every grading job share one pool,
	// and outlive ctx so interrupted batches can still settle.
	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, cfg.Worker.QueueSize, logger)
	workerPool.Start(context.Background())

	judgeClient := judge.NewClient(cfg.Judge.ClientConfig(), logger)

	// Initialize use cases
	runUC := usecase.NewRunBatchUsecase(testCases, synth.Default(), judgeClient, workerPool, cfg.Limits.ExecutionLimits(), logger)
	gradeUC := usecase.NewGradeUsecase(runUC, logger)
	processUC := usecase.NewProcessGradingUsecase(gradeUC, verdicts, idempotencyStore, logger)

	// Unbuffered so prefetch alone bounds unacknowledged messages
	messages := make(chan *domain.GradingMessage)

	// Initialize AMQP consumer
	consumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, messages, cfg.Worker.GradingConcurrency, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AMQP consumer", zap.Error(err))
	}
	defer consumer.Close()
	logger.Info("Connected to RabbitMQ")

	dispatcher := amqpdelivery.NewDispatcher(messages, processUC, cfg.Worker.GradingConcurrency, logger)
	dispatcher.Start(ctx)

	// Start AMQP consumer in a goroutine
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("AMQP consumer error", zap.Error(err))
			cancel()
		}
	}()

	// Start Prometheus metrics server
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics server listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	// Let in-flight grading finish recording its verdicts before the pool goes
	dispatcher.Wait()
	workerPool.Stop()

	logger.Info("Worker stopped")
}
