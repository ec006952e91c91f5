package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campfund/backend/internal/chain"
	"github.com/campfund/backend/internal/config"
	"github.com/campfund/backend/internal/db"
	"github.com/campfund/backend/internal/events"
	"github.com/campfund/backend/internal/models"
	"github.com/campfund/backend/internal/repositories"
	"github.com/campfund/backend/internal/services"
	"go.uber.org/zap"
)

// The worker runs the periodic jobs: balance reconciliation, deadline
// sweeps and refund sweeps for campaigns owing refunds.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns), log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	api, err := chain.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to TON", zap.Error(err))
	}
	gateway, err := chain.NewTONGateway(api, cfg.CustodySeed, log)
	if err != nil {
		log.Fatal("failed to init custody wallet", zap.Error(err))
	}

	// Repos
	campaignRepo := repositories.NewCampaignRepo(pool)
	contributionRepo := repositories.NewContributionRepo(pool)
	ledgerRepo := repositories.NewLedgerTxRepo(pool)
	serviceRepo := repositories.NewServiceRepo(pool)
	refundRepo := repositories.NewRefundRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	dispatcher := services.NewDispatcher(ctx, log)
	market := services.NewMarketplaceClient(cfg.MarketplaceBaseURL, log)

	funding := services.NewFundingService(campaignRepo, auditRepo, dispatcher, publisher, log)
	purchase := services.NewPurchaseService(campaignRepo, serviceRepo, ledgerRepo, auditRepo, funding, gateway, market, dispatcher, publisher, cfg, log)
	refund := services.NewRefundService(campaignRepo, contributionRepo, refundRepo, ledgerRepo, gateway, publisher, log)
	funding.SetPurchaser(purchase)
	funding.SetRefunder(refund)
	reconcile := services.NewReconcileService(campaignRepo, contributionRepo, auditRepo, funding, gateway, publisher, cfg, log)

	log.Info("worker started",
		zap.Duration("reconcile_interval", cfg.ReconcileInterval),
		zap.Duration("deadline_check_interval", cfg.DeadlineCheckInterval),
		zap.Duration("refund_sweep_interval", cfg.RefundSweepInterval),
	)

	// Run jobs on tickers
	reconcileTicker := time.NewTicker(cfg.ReconcileInterval)
	deadlineTicker := time.NewTicker(cfg.DeadlineCheckInterval)
	refundTicker := time.NewTicker(cfg.RefundSweepInterval)
	defer reconcileTicker.Stop()
	defer deadlineTicker.Stop()
	defer refundTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-reconcileTicker.C:
			if err := reconcile.Run(ctx); err != nil {
				log.Error("reconciliation pass failed", zap.Error(err))
			}
		case <-deadlineTicker.C:
			if err := funding.CheckDeadlines(ctx); err != nil {
				log.Error("deadline sweep failed", zap.Error(err))
			}
		case <-refundTicker.C:
			runRefundSweep(ctx, campaignRepo, refund, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			dispatcher.Wait()
			return
		case <-ctx.Done():
			dispatcher.Wait()
			return
		}
	}
}

// runRefundSweep picks up every campaign owing refunds: failed and
// cancelled campaigns that have not started refunding yet (a crash can
// separate the transition from the dispatched refund run), plus
// refunding campaigns with contributions left over from a failed
// transfer mid-sweep.
func runRefundSweep(ctx context.Context, campaignRepo *repositories.CampaignRepo, refund *services.RefundService, log *zap.Logger) {
	campaigns, err := campaignRepo.ListByStatuses(ctx,
		models.CampaignStatusFailed,
		models.CampaignStatusCancelled,
		models.CampaignStatusRefunding,
	)
	if err != nil {
		log.Error("failed to list campaigns owing refunds", zap.Error(err))
		return
	}

	for _, c := range campaigns {
		if err := refund.ProcessRefunds(ctx, c.ID); err != nil {
			log.Error("refund sweep failed",
				zap.String("campaign_id", c.ID.String()),
				zap.Error(err),
			)
		}
	}
}
