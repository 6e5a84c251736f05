package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kursadbilgin/enroll-engine/internal/artifact"
	"github.com/kursadbilgin/enroll-engine/internal/browser"
	"github.com/kursadbilgin/enroll-engine/internal/config"
	"github.com/kursadbilgin/enroll-engine/internal/enroll"
	"github.com/kursadbilgin/enroll-engine/internal/handler"
	"github.com/kursadbilgin/enroll-engine/internal/observability"
	"github.com/kursadbilgin/enroll-engine/internal/pacing"
	"github.com/kursadbilgin/enroll-engine/internal/registry"
	"github.com/kursadbilgin/enroll-engine/internal/service"
	"github.com/kursadbilgin/enroll-engine/internal/transport"
)

const artifactMaxAge = 24 * time.Hour

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	if removed, err := artifact.CleanupOld(cfg.ResultsDir, artifactMaxAge, logger); err != nil {
		logger.Warn("stale artifact sweep failed", zap.Error(err))
	} else if removed > 0 {
		logger.Info("startup artifact sweep done", zap.Int("removed", removed))
	}

	production := cfg.Production || browser.DetectProduction()
	provisioner := browser.NewProvisioner(browser.Config{
		Production:       production,
		ChromeBin:        cfg.ChromeBin,
		ChromeDriverPath: cfg.ChromeDriverPath,
	}, logger, metrics)

	taskRegistry := registry.New()
	processors := func() service.RecordProcessor {
		return enroll.NewProcessor(provisioner, cfg.AffiliatorCountry, logger)
	}

	taskService, err := service.NewTaskService(
		taskRegistry,
		processors,
		pacing.NewFixedDelay(pacing.DefaultRecordDelay),
		cfg.ResultsDir,
		cfg.MaxConcurrentTasks,
		metrics,
		logger,
	)
	if err != nil {
		logger.Fatal("task service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
		BodyLimit:    32 * 1024 * 1024,
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterTaskRoutes(app, taskService, logger); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	logger.Info("enroll-engine api started",
		zap.Int("port", cfg.APIPort),
		zap.Bool("production", production),
		zap.Int("maxConcurrentTasks", cfg.MaxConcurrentTasks),
	)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}
