package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"dispatch/config"
	"dispatch/middleware"
	"dispatch/realtime"
	"dispatch/routes"
	"dispatch/store"
	"dispatch/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "DISPATCH: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize and start the realtime hub
	hub := realtime.NewHub(log.New(os.Stdout, "HUB: ", log.LstdFlags))
	go hub.Run(ctx)

	// Session store shared by REST and realtime layers
	st := store.New(config.DB, hub, log.New(os.Stdout, "STORE: ", log.LstdFlags))

	// Initialize and start the cleanup worker
	cleanupWorker := worker.NewCleanupWorker(config.DB, logger)
	go cleanupWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, hub, st)

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
