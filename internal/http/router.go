package http

import (
	"time"

	"github.com/campfund/backend/internal/config"
	"github.com/campfund/backend/internal/http/handlers"
	"github.com/campfund/backend/internal/middleware"
	"github.com/campfund/backend/internal/rbac"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	webhookHandler *handlers.WebhookHandler,
	campaignHandler *handlers.CampaignHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Signature",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Webhook (signed, not rate limited: the provider retries on 429
	// and batches would pile up)
	api.Post("/webhooks/transactions", webhookHandler.HandleTransactions)

	// Auth (public)
	api.Post("/auth/token", authHandler.IssueToken)

	// Rate-limited public endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Public campaign reads
	api.Get("/campaigns/:id/funding", campaignHandler.GetFunding)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	protected.Post("/campaigns", middleware.RequirePermission(rbac.PermCreateCampaign), campaignHandler.CreateCampaign)
	protected.Get("/campaigns", campaignHandler.ListCampaigns)
	protected.Get("/campaigns/:id", campaignHandler.GetCampaign)
	protected.Get("/campaigns/:id/ledger", campaignHandler.GetLedger)
	protected.Get("/campaigns/:id/refunds", campaignHandler.GetRefunds)

	// Admin
	admin := protected.Group("/admin", middleware.AdminMiddleware(cfg))
	admin.Post("/campaigns/:id/retry-purchase", adminHandler.RetryPurchase)
	admin.Post("/campaigns/:id/refunds", adminHandler.TriggerRefunds)
	admin.Post("/campaigns/:id/status", adminHandler.OverrideStatus)
	admin.Post("/reconcile", adminHandler.RunReconcile)
	admin.Get("/campaigns/:id/audit", adminHandler.GetAudit)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
