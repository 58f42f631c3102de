package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	controller "dispatch/controllers"
	"dispatch/middleware"
	"dispatch/realtime"
	"dispatch/store"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	auth := app.Group("/api/auth", middleware.AuthRateLimiter(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	auth.Post("/sign_up", controller.SignUp)
	auth.Post("/sign_in", controller.SignIn)
	auth.Post("/reset_password", controller.ResetPassword)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, hub *realtime.Hub, st *store.Store) {
	sessionController := controller.NewSessionController(db, st, log.New(os.Stdout, "SESSION: ", log.LstdFlags))
	workspaceController := controller.NewWorkspaceController(db, hub.Presence(), log.New(os.Stdout, "WORKSPACE: ", log.LstdFlags))
	inviteController := controller.NewInviteController(db, log.New(os.Stdout, "INVITE: ", log.LstdFlags))
	analyticsController := controller.NewAnalyticsController(db, st, log.New(os.Stdout, "ANALYTICS: ", log.LstdFlags))

	api := app.Group("/api", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Profile
	api.Post("/user/me", controller.Me)

	// Workspaces
	api.Post("/workspaces/new", workspaceController.Create)
	api.Post("/workspaces/:id", workspaceController.Get)
	api.Delete("/workspaces/:id/users/:userId", workspaceController.RemoveMember)

	// Invites
	api.Post("/invites/new", inviteController.Create)
	api.Post("/invites", inviteController.List)
	api.Post("/invites/:id/accept", inviteController.Accept)
	api.Post("/invites/:id", inviteController.PublicInfo)
	api.Delete("/invites/:id", inviteController.Delete)

	// Analytics
	api.Post("/analytics/:teamId", analyticsController.Get)

	// Sessions. The visitor-facing create endpoint is unauthenticated
	// and rate limited; everything else authenticates per request.
	api.Post("/sessions/create", middleware.SessionRateLimiter(), sessionController.Create)
	api.Post("/sessions/:teamId", sessionController.List)
	api.Post("/session/:id/create", sessionController.Append)
	api.Post("/session/:id", sessionController.Get)
	api.Patch("/session/:id", sessionController.Update)

	// Realtime endpoint; the handshake happens in-band after upgrade
	app.Get("/ws", websocket.New(realtime.Handler(db, st, hub)))

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB, hub *realtime.Hub, st *store.Store) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app, db)
	SetupAPIRoutes(app, db, hub, st)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
