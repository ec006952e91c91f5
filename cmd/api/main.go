package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/campfund/backend/internal/chain"
	"github.com/campfund/backend/internal/config"
	"github.com/campfund/backend/internal/db"
	"github.com/campfund/backend/internal/events"
	apphttp "github.com/campfund/backend/internal/http"
	"github.com/campfund/backend/internal/http/handlers"
	"github.com/campfund/backend/internal/repositories"
	"github.com/campfund/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns), log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// TON
	api, err := chain.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to TON", zap.Error(err))
	}
	gateway, err := chain.NewTONGateway(api, cfg.CustodySeed, log)
	if err != nil {
		log.Fatal("failed to init custody wallet", zap.Error(err))
	}

	// Repositories
	campaignRepo := repositories.NewCampaignRepo(pool)
	contributionRepo := repositories.NewContributionRepo(pool)
	ledgerRepo := repositories.NewLedgerTxRepo(pool)
	serviceRepo := repositories.NewServiceRepo(pool)
	refundRepo := repositories.NewRefundRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	dispatcher := services.NewDispatcher(ctx, log)
	refs := services.NewRedisRefRegistry(rdb)
	enriched := chain.NewEnrichedClient(cfg.EnrichedAPIBaseURL, cfg.EnrichedAPIKey, cfg.EnrichedTimeoutMS, cfg.EnrichedMaxRetries, log)
	raw := chain.NewRawClient(api, log)
	market := services.NewMarketplaceClient(cfg.MarketplaceBaseURL, log)

	verifier := services.NewVerifierService(campaignRepo, ledgerRepo, refs, enriched, raw, cfg, log)
	fraud := services.NewFraudService(contributionRepo, auditRepo, log)
	funding := services.NewFundingService(campaignRepo, auditRepo, dispatcher, publisher, log)
	purchase := services.NewPurchaseService(campaignRepo, serviceRepo, ledgerRepo, auditRepo, funding, gateway, market, dispatcher, publisher, cfg, log)
	refund := services.NewRefundService(campaignRepo, contributionRepo, refundRepo, ledgerRepo, gateway, publisher, log)
	funding.SetPurchaser(purchase)
	funding.SetRefunder(refund)
	reconcile := services.NewReconcileService(campaignRepo, contributionRepo, auditRepo, funding, gateway, publisher, cfg, log)
	ingest := services.NewIngestService(campaignRepo, contributionRepo, verifier, fraud, funding, publisher, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, log)
	webhookHandler := handlers.NewWebhookHandler(cfg, ingest, log)
	campaignHandler := handlers.NewCampaignHandler(campaignRepo, ledgerRepo, refundRepo, gateway, log)
	adminHandler := handlers.NewAdminHandler(funding, purchase, refund, reconcile, auditRepo, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, webhookHandler, campaignHandler, adminHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
		dispatcher.Wait()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
