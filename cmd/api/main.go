package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/animdrive/backend/internal/config"
	"github.com/animdrive/backend/internal/database"
	"github.com/animdrive/backend/internal/handlers"
	"github.com/animdrive/backend/internal/identity"
	"github.com/animdrive/backend/internal/middleware"
	"github.com/animdrive/backend/internal/models"
	"github.com/animdrive/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/stripe/stripe-go/v81"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect optional stores (file mirror, rate-limiter backend)
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect storage backends: %v", err)
	}
	defer database.Close()

	// Identity provider client
	ids := identity.NewClerkClient(cfg.ClerkSecretKey)

	// Session verification key
	sessionKey, err := middleware.ParseSessionKey(cfg.ClerkPEMPublicKey)
	if err != nil {
		log.Fatalf("Failed to parse CLERK_PEM_PUBLIC_KEY: %v", err)
	}

	// Billing provider
	stripe.Key = cfg.StripeSecretKey

	plans := models.NewPlanTable(cfg.WizardPriceID, cfg.SorcererPriceID)
	syncer := services.NewStorageSyncer(ids)
	mirror := services.NewFileMirror(database.DB)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "AnimDrive API v1.0",
		ServerHeader: "AnimDrive",
		BodyLimit:    1 * 1024 * 1024, // upload bytes never transit this server
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "animdrive-api",
		})
	})

	// Initialize handlers
	driveHandler := handlers.NewDriveHandler(ids, syncer, mirror)
	userHandler := handlers.NewUserHandler(ids)
	adminHandler := handlers.NewAdminHandler(ids)
	webhookHandler := handlers.NewWebhookHandler(ids, plans, cfg.StripeWebhookSecret)

	// API routes
	api := app.Group("/api")
	api.Use(middleware.RateLimiter(cfg.RateLimitPerMinute, 1*time.Minute))

	// Billing webhooks authenticate by signature, not session
	api.Post("/webhooks/stripe", webhookHandler.Handle)

	// Session-gated routes
	protected := api.Group("", middleware.SessionAuth(sessionKey))

	protected.Get("/drive/list", driveHandler.List)
	protected.Post("/drive/upload", driveHandler.InitUpload)
	protected.Post("/drive/delete", driveHandler.Delete)
	protected.Get("/drive/storage", driveHandler.Storage)
	protected.Post("/drive/sync", driveHandler.Sync)

	protected.Get("/user/storage", userHandler.GetStorage)
	protected.Post("/user/storage", userHandler.UpdateStorage)

	// Admin endpoints each re-run the role check themselves
	protected.Get("/admin/check-role", adminHandler.CheckRole)
	protected.Get("/admin/users", adminHandler.ListUsers)
	protected.Post("/admin/create-user", adminHandler.CreateUser)
	protected.Post("/admin/update-user", adminHandler.UpdateUser)
	protected.Delete("/admin/users/:id", adminHandler.DeleteUser)
	protected.Get("/admin/secret-files", adminHandler.ListSecretFiles)
	protected.Post("/admin/upload-secret-file", adminHandler.UploadSecretFile)
	protected.Get("/admin/download-secret-file/:fileId", adminHandler.DownloadSecretFile)

	// Start server
	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("AnimDrive API listening on port %d", cfg.APIPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
