package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "mediascore/docs" // This is for Swagger
	"mediascore/internal/config"
	"mediascore/internal/database"
	"mediascore/internal/handlers"
	"mediascore/internal/indicator"
	"mediascore/internal/logger"
	"mediascore/internal/middleware"
	"mediascore/internal/pipeline"
	"mediascore/internal/repository"
	"mediascore/internal/scheduler"
	sentryutil "mediascore/internal/sentry"
	"mediascore/internal/service"
	"mediascore/internal/storage"

	httpSwagger "github.com/swaggo/http-swagger"
)

// @title MediaScore API
// @version 1.0
// @description Backend API for media monitoring report intake and KPI scoring

// @contact.name API Support
// @contact.email support@mediascore.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level: cfg.Log.Level,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
	)

	// Initialize error reporting
	if err := sentryutil.Init(sentryutil.Config{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.App.Version,
		Enabled:     cfg.Sentry.Enabled,
	}); err != nil {
		slog.Error("Failed to initialize error reporting", "error", err)
		os.Exit(1)
	}
	defer sentryutil.Flush(2 * time.Second)

	// Initialize database
	db, err := database.New(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func(db *database.Database) {
		err := db.Close()
		if err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	// Run database migrations
	migrator := database.NewMigrationExecutor(db.DB)
	if err := migrator.RunMigrations("./migrations"); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	// Initialize indicator registry
	indicators := indicator.NewRegistry()
	if cfg.Pipeline.IndicatorFile != "" {
		if err := indicators.LoadFile(cfg.Pipeline.IndicatorFile); err != nil {
			slog.Error("Failed to load indicator overrides", "file", cfg.Pipeline.IndicatorFile, "error", err)
			os.Exit(1)
		}
		slog.Info("Indicator overrides loaded", "file", cfg.Pipeline.IndicatorFile)
	}

	// Initialize file storage
	fileStore, err := storage.NewFileStore(cfg.Upload.Dir)
	if err != nil {
		slog.Error("Failed to initialize file storage", "dir", cfg.Upload.Dir, "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	reportRepo := repository.NewReportRepository(db.DB)
	kpiRepo := repository.NewKPIRepository(db.DB)
	notificationRepo := repository.NewNotificationRepository(db.DB)

	// Initialize pipeline worker
	worker := pipeline.NewWorker(reportRepo, notificationRepo, kpiRepo, fileStore, indicators, pipeline.WorkerConfig{
		BatchSize:       cfg.Pipeline.BatchSize,
		LinkTimeout:     cfg.Pipeline.LinkTimeout,
		MaxFetchBytes:   cfg.Pipeline.MaxFetchBytes,
		StaleClaimAfter: cfg.Pipeline.StaleClaimAfter,
	})

	// Initialize services
	uploadService := service.NewUploadService(reportRepo, fileStore, indicators, &cfg.Upload)
	approvalService := service.NewApprovalService(reportRepo, notificationRepo, worker)

	// Initialize scheduler
	schedulerService := scheduler.NewScheduler(worker, &cfg.Pipeline)
	schedulerService.Start()
	defer schedulerService.Stop()

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(&cfg.JWT)

	// Initialize handlers
	uploadHandler := handlers.NewUploadHandler(uploadService, cfg.Upload.MaxSizeBytes)
	reportHandler := handlers.NewReportHandler(reportRepo, approvalService, worker)
	kpiHandler := handlers.NewKPIHandler(kpiRepo)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo)

	// Setup router
	mux := http.NewServeMux()

	// Report routes
	mux.Handle("POST /api/v1/reports/upload",
		authMw.Authenticate(http.HandlerFunc(uploadHandler.Upload)))
	mux.Handle("GET /api/v1/reports",
		authMw.Authenticate(http.HandlerFunc(reportHandler.List)))
	mux.Handle("GET /api/v1/reports/{id}",
		authMw.Authenticate(http.HandlerFunc(reportHandler.Get)))

	// Admin decision routes
	mux.Handle("POST /api/v1/reports/{id}/approve",
		authMw.Authenticate(
			authMw.RequireAdmin(
				http.HandlerFunc(reportHandler.Approve),
			),
		),
	)
	mux.Handle("POST /api/v1/reports/{id}/reject",
		authMw.Authenticate(
			authMw.RequireAdmin(
				http.HandlerFunc(reportHandler.Reject),
			),
		),
	)
	mux.Handle("POST /api/v1/reports/{id}/process",
		authMw.Authenticate(
			authMw.RequireAdmin(
				http.HandlerFunc(reportHandler.Process),
			),
		),
	)
	mux.Handle("POST /api/v1/reports/process",
		authMw.Authenticate(
			authMw.RequireAdmin(
				http.HandlerFunc(reportHandler.ProcessQueued),
			),
		),
	)

	// KPI routes
	mux.Handle("GET /api/v1/kpis",
		authMw.Authenticate(http.HandlerFunc(kpiHandler.List)))

	// Notification routes
	mux.Handle("GET /api/v1/notifications",
		authMw.Authenticate(http.HandlerFunc(notificationHandler.List)))
	mux.Handle("POST /api/v1/notifications/{id}/read",
		authMw.Authenticate(http.HandlerFunc(notificationHandler.MarkRead)))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, err := w.Write([]byte(`{"status":"unhealthy","database":"error"}`))
			if err != nil {
				slog.Error("Failed to write health check response", "error", err)
				return
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(`{"status":"healthy","version":"` + cfg.App.Version + `"}`))
		if err != nil {
			slog.Error("Failed to write health check response", "error", err)
			return
		}
	})

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := middleware.Logging(mux)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}
