package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"supplydocs/internal/config"
	"supplydocs/internal/database"
	"supplydocs/internal/database/migration"
	"supplydocs/internal/docgen"
	handlers "supplydocs/internal/http/handler"
	"supplydocs/internal/http/middleware"
	"supplydocs/internal/metrics"
	tracing "supplydocs/internal/otel"
	"supplydocs/internal/repository/postgres"
	"supplydocs/internal/service"
	"supplydocs/internal/storage"
	"supplydocs/internal/templates"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize tracing")
	}
	defer shutdownTracing(context.Background())

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migration.EnsureMigrated(ctx, db, log); err != nil {
			log.WithError(err).Fatal("failed to migrate database")
		}
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize object storage")
	}

	reg := prometheus.NewRegistry()
	workerMetrics, err := metrics.New(reg)
	if err != nil {
		log.WithError(err).Fatal("failed to register worker metrics")
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.WithError(err).Fatal("failed to register http metrics")
	}

	// Assemble the processing pipeline with explicit dependencies
	proc := service.NewProcessor(
		postgres.NewRequestPostgres(db),
		templates.NewObjectStore(objStore),
		objStore,
		docgen.NewDocxRenderer(),
		log,
		workerMetrics,
		service.Options{
			PollInterval:   cfg.Worker.PollInterval,
			RunOnce:        cfg.Worker.RunOnce,
			MaxConcurrent:  cfg.Worker.MaxConcurrent,
			SupplyTemplate: cfg.Worker.SupplyTemplate,
			ClaimsTemplate: cfg.Worker.ClaimsTemplate,
		},
	)

	// Operational endpoints: health, status, metrics
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())
	app.Use(promMiddleware.Handler())
	handlers.RegisterRoutes(app, db, proc, reg)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Error("health server stopped")
		}
	}()

	log.WithFields(logrus.Fields{
		"poll_interval": cfg.Worker.PollInterval.String(),
		"run_once":      cfg.Worker.RunOnce,
	}).Info("document processing worker started")

	runErr := proc.Run(ctx)
	_ = app.Shutdown()
	if runErr != nil {
		log.WithError(runErr).Fatal("document processing failed")
	}
}
