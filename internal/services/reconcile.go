package services

import (
	"context"
	"fmt"

	"github.com/campfund/backend/internal/chain"
	"github.com/campfund/backend/internal/config"
	"github.com/campfund/backend/internal/events"
	"github.com/campfund/backend/internal/models"
	"go.uber.org/zap"
)

// ReconcileService compares each campaign's tracked balance against
// the on-chain balance of its wallet and corrects drift. The chain is
// the source of truth: missed webhooks, lost writes, and out-of-band
// transfers all surface here.
type ReconcileService struct {
	campaignRepo     campaignStore
	contributionRepo contributionStore
	auditRepo        auditStore
	funding          *FundingService
	gateway          chain.Gateway
	publisher        events.Publisher
	cfg              *config.Config
	log              *zap.Logger
}

func NewReconcileService(
	campaignRepo campaignStore,
	contributionRepo contributionStore,
	auditRepo auditStore,
	funding *FundingService,
	gateway chain.Gateway,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *ReconcileService {
	return &ReconcileService{
		campaignRepo:     campaignRepo,
		contributionRepo: contributionRepo,
		auditRepo:        auditRepo,
		funding:          funding,
		gateway:          gateway,
		publisher:        publisher,
		cfg:              cfg,
		log:              log,
	}
}

// Run reconciles every active and funded campaign. Per-campaign errors
// are logged and skipped so one unreachable wallet never stalls the
// pass.
func (s *ReconcileService) Run(ctx context.Context) error {
	campaigns, err := s.campaignRepo.ListByStatuses(ctx, models.CampaignStatusActive, models.CampaignStatusFunded)
	if err != nil {
		return fmt.Errorf("list campaigns for reconciliation: %w", err)
	}

	for i := range campaigns {
		if err := s.reconcileOne(ctx, &campaigns[i]); err != nil {
			s.log.Error("reconcile campaign",
				zap.String("campaign_id", campaigns[i].ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *ReconcileService) reconcileOne(ctx context.Context, campaign *models.Campaign) error {
	balance, err := s.gateway.GetBalance(ctx, campaign.WalletAddress)
	if err != nil {
		return fmt.Errorf("read wallet balance: %w", err)
	}

	diff := balance.Sub(campaign.CurrentAmount).Abs()
	if diff.LessThanOrEqual(s.cfg.ReconcileEpsilon) {
		return nil
	}

	if diff.LessThan(s.cfg.ReconcileThreshold) {
		// Small drift, usually gas: note it, leave the ledger alone.
		s.log.Debug("minor balance drift",
			zap.String("campaign_id", campaign.ID.String()),
			zap.String("tracked", campaign.CurrentAmount.String()),
			zap.String("on_chain", balance.String()),
		)
		return nil
	}

	confirmedSum, err := s.contributionRepo.SumConfirmedByCampaign(ctx, campaign.ID)
	if err != nil {
		s.log.Warn("sum confirmed contributions", zap.Error(err))
	}

	s.log.Warn("balance drift corrected",
		zap.String("campaign_id", campaign.ID.String()),
		zap.String("tracked", campaign.CurrentAmount.String()),
		zap.String("on_chain", balance.String()),
		zap.String("confirmed_sum", confirmedSum.String()),
	)

	if err := s.campaignRepo.SetCurrentAmount(ctx, campaign.ID, balance); err != nil {
		return fmt.Errorf("correct tracked balance: %w", err)
	}

	id := campaign.ID
	if err := s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "system",
		Action:     "balance_corrected",
		EntityType: "campaign",
		EntityID:   &id,
		Meta: map[string]any{
			"tracked":       campaign.CurrentAmount.String(),
			"on_chain":      balance.String(),
			"confirmed_sum": confirmedSum.String(),
		},
	}); err != nil {
		s.log.Error("audit balance correction", zap.Error(err))
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.StreamCampaign, events.Event{
			Type: events.EventBalanceCorrected,
			Payload: map[string]any{
				"campaign_id": campaign.ID.String(),
				"tracked":     campaign.CurrentAmount.String(),
				"on_chain":    balance.String(),
			},
		}); err != nil {
			s.log.Warn("publish event", zap.Error(err))
		}
	}

	if campaign.Status == models.CampaignStatusActive && balance.GreaterThanOrEqual(campaign.TargetAmount) {
		if err := s.funding.MarkFunded(ctx, campaign.ID); err != nil {
			return fmt.Errorf("mark funded after correction: %w", err)
		}
	}
	return nil
}
