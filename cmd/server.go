package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/config"
	"github.com/Abraxas-365/flashmoji/pkg/fiberx"
	"github.com/Abraxas-365/flashmoji/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

func main() {
	// 1. Logger
	logx.SetDefaultLogger(logx.NewLogger(logx.LoadFromEnv()))

	logx.Info("🚀 Starting Flashmoji API Server...")

	// 2. Config
	cfg, err := config.Load()
	if err != nil {
		logx.WithError(err).Fatal("Invalid configuration")
	}

	// 3. Dependency container
	container := NewContainer(cfg)
	defer container.Cleanup()

	// 4. Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "Flashmoji API",
		DisableStartupMessage: true,
		ErrorHandler:          fiberx.ErrorHandler(cfg.Server.Debug),
		BodyLimit:             cfg.Server.BodyLimit,
		IdleTimeout:           120 * time.Second,
	})

	// 5. Global middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return "req-" + uuid.NewString()
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, OPTIONS",
		ExposeHeaders: "X-Request-ID",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	// 6. Health and info
	app.Get("/health", healthCheckHandler(container))
	app.Get("/", infoHandler(cfg))

	// locally stored images are served by this process
	if cfg.Storage.Mode == "local" {
		app.Static("/images", cfg.Storage.LocalDir, fiber.Static{
			MaxAge: int((24 * time.Hour).Seconds()),
		})
	}

	// 7. Routes
	container.QueueHandlers.RegisterRoutes(app)
	logx.Info("✓ Queue routes registered")

	container.CardHandlers.RegisterRoutes(app)
	logx.Info("✓ Card routes registered")

	// 8. 404
	app.Use(fiberx.NotFound)

	printRouteSummary(container)

	// 9. Background work, then serve
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	container.StartBackgroundServices(bgCtx)

	startServer(app, cfg.Server.Port)
}

// healthCheckHandler reports the queue and every backing store
func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		health := fiber.Map{
			"status":  "healthy",
			"service": "flashmoji-api",
			"version": container.Config.Server.AppVersion,
			"queue":   container.Queue.Status(),
		}

		if container.DB != nil {
			if err := container.DB.PingContext(ctx); err != nil {
				health["db"] = "unhealthy"
				health["db_error"] = err.Error()
				health["status"] = "degraded"
			} else {
				health["db"] = "healthy"
			}
		} else {
			health["db"] = "memory"
		}

		if container.Mirror != nil {
			if err := container.Mirror.Ping(ctx); err != nil {
				health["redis"] = "unhealthy"
				health["redis_error"] = err.Error()
				health["status"] = "degraded"
			} else {
				health["redis"] = "healthy"
			}
		}

		if c.QueryBool("check_storage", false) {
			if exists, err := container.FileSystem.Exists(ctx, ".health-check"); err != nil {
				health["storage"] = "unhealthy"
				health["storage_error"] = err.Error()
				health["status"] = "degraded"
			} else {
				health["storage"] = "healthy"
				health["storage_accessible"] = exists
			}
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

func infoHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":     "Flashmoji API",
			"version":     cfg.Server.AppVersion,
			"description": "Illustrated vocabulary cards with queued image generation",
			"providers": fiber.Map{
				"image": cfg.ImageGen.Provider,
				"llm":   cfg.LLM.Provider,
			},
			"storage": cfg.Storage.Mode,
			"endpoints": fiber.Map{
				"health": "/health",
				"queue":  "/api/v1/queue",
				"cards":  "/api/v1/cards",
			},
		})
	}
}

func printRouteSummary(container *Container) {
	logx.Info("📋 Route Summary:")
	logx.Info("   ├─ Queue: /api/v1/queue, /api/v1/queue/async, /api/v1/queue/status, /api/v1/queue/items")
	if container.Mirror != nil {
		logx.Info("   ├─ History: /api/v1/queue/history, /api/v1/queue/history/stats")
	}
	logx.Info("   ├─ Cards: /api/v1/cards/*, /api/v1/gallery")
	logx.Info("   ├─ Prompts: /api/v1/prompts, /api/v1/prompts/batch, /api/v1/categorize/batch")
	logx.Info("   └─ Health: /health")
}

// startServer starts the server with graceful shutdown
func startServer(app *fiber.App, port string) {
	go func() {
		logx.Info(strings.Repeat("=", 61))
		logx.Infof("🚀 Server listening on port %s", port)
		logx.Infof("💚 Health Check: http://localhost:%s/health", port)
		logx.Info("⚠️ Queued jobs live in memory and are lost on restart")
		logx.Info(strings.Repeat("=", 61))

		if err := app.Listen(":" + port); err != nil {
			logx.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(app)
}

func gracefulShutdown(app *fiber.App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logx.Infof("🛑 Received signal: %v", sig)
	logx.Info("Shutting down gracefully...")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}

	logx.Info("✅ Server exited successfully")
}
