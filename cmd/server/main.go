package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/clock"
	"github.com/classhall/assess-backend/internal/config"
	"github.com/classhall/assess-backend/internal/database"
	"github.com/classhall/assess-backend/internal/handler"
	"github.com/classhall/assess-backend/internal/logger"
	"github.com/classhall/assess-backend/internal/notifier"
	"github.com/classhall/assess-backend/internal/repository"
	"github.com/classhall/assess-backend/internal/router"
	"github.com/classhall/assess-backend/internal/service"
	"github.com/classhall/assess-backend/internal/validator"
	"github.com/classhall/assess-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Assessment Engine")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	assessmentRepo := repository.NewAssessmentRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	integrityRepo := repository.NewIntegrityEventRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	clk := clock.System()
	notify := notifier.NewRedisNotifier(rdb, log)

	authService := service.NewAuthService(cfg)
	metricsService := service.NewMetricsService()
	attemptService := service.NewAttemptService(assessmentRepo, submissionRepo, rdb, clk, notify, log)
	gradingService := service.NewGradingService(assessmentRepo, submissionRepo, integrityRepo, notify, log)
	assessmentService := service.NewAssessmentService(assessmentRepo, submissionRepo, attemptService, rdb, clk, notify, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Assessment: handler.NewAssessmentHandler(assessmentService, log),
		Grading:    handler.NewGradingHandler(gradingService, metricsService, log),
		Attempt:    handler.NewAttemptHandler(attemptService, metricsService, log),
		WS:         handler.NewWSHandler(attemptService, metricsService, rdb, cfg.IntegrityGrace, log, cfg.AllowedOrigins),
		Monitor:    handler.NewMonitorHandler(assessmentService, rdb, log),
		System:     handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	autosaveWorker := worker.NewAutosaveWorker(submissionRepo, rdb, log)
	integrityWorker := worker.NewIntegrityWorker(integrityRepo, rdb, log)
	sealWorker := worker.NewSealWorker(attemptService, rdb, cfg.SealRetryInterval, log)
	lifecycleWorker := worker.NewLifecycleWorker(assessmentService, metricsService, rdb, cfg.SweepInterval, log)

	go autosaveWorker.Start(workerCtx)
	go integrityWorker.Start(workerCtx)
	go sealWorker.Start(workerCtx)
	go lifecycleWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, metricsService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
