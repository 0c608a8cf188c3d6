package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/careloop/patient-api/internal/config"
	"github.com/careloop/patient-api/internal/handler"
	auditHandler "github.com/careloop/patient-api/internal/handler/audit"
	authHandler "github.com/careloop/patient-api/internal/handler/auth"
	patientHandler "github.com/careloop/patient-api/internal/handler/patient"
	"github.com/careloop/patient-api/internal/middleware"
	"github.com/careloop/patient-api/internal/repository/postgres"
	"github.com/careloop/patient-api/internal/router"
	accessService "github.com/careloop/patient-api/internal/service/access"
	auditService "github.com/careloop/patient-api/internal/service/audit"
	authService "github.com/careloop/patient-api/internal/service/auth"
	patientService "github.com/careloop/patient-api/internal/service/patient"
	"github.com/careloop/patient-api/internal/worker"
	"github.com/careloop/patient-api/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Setup(cfg.Logging)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Redis backs the audit fallback queue. Optional: without it, failed
	// read-path audit writes are surfaced in the operator log only.
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse redis URL")
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
	}

	// Repositories
	patientRepo := postgres.NewPatientRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Services
	auditSvc := auditService.NewService(auditRepo)
	dispatcher := worker.NewAuditDispatcher(auditSvc, rdb, worker.DispatcherConfig{
		QueueSize:     cfg.Audit.QueueSize,
		DrainInterval: cfg.Audit.DrainInterval,
		WriteTimeout:  cfg.Audit.WriteTimeout,
	})
	auditor := auditService.NewLogger(auditSvc, dispatcher)
	accessSvc := accessService.NewService(patientRepo, userRepo)
	patientSvc := patientService.NewService(patientRepo, accessSvc)
	authSvc := authService.NewService(userRepo, cfg.JWT)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	// Handlers
	h := handler.NewHandler(db)
	authH := authHandler.NewHandler(authSvc)
	patientH := patientHandler.NewHandler(patientSvc, accessSvc, auditor)
	auditH := auditHandler.NewHandler(auditSvc)

	r := router.NewRouter(authMiddleware, authH, patientH, auditH, h, router.Config{
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSConfig:     middleware.DefaultCORSConfig(),
		MetricsPrefix:  "patient_api",
	})
	r.Setup()

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go dispatcher.Start(workerCtx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	// Wait for the dispatcher's shutdown flush: buffered audit entries
	// must reach the store or the fallback queue before the process exits.
	stopWorkers()
	<-dispatcher.Done()

	log.Info().Msg("server exited properly")
}
