package services

import (
	"context"
	"fmt"

	"github.com/campfund/backend/internal/chain"
	"github.com/campfund/backend/internal/events"
	"github.com/campfund/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RefundService returns contributions to their senders once a campaign
// has failed or been cancelled. Refunds run sequentially per campaign
// and are resumable: every completed refund flags its contribution, so
// a crashed or repeated sweep skips what is already paid out.
type RefundService struct {
	campaignRepo     campaignStore
	contributionRepo contributionStore
	refundRepo       refundStore
	ledgerRepo       ledgerStore
	gateway          chain.Gateway
	publisher        events.Publisher
	log              *zap.Logger
}

func NewRefundService(
	campaignRepo campaignStore,
	contributionRepo contributionStore,
	refundRepo refundStore,
	ledgerRepo ledgerStore,
	gateway chain.Gateway,
	publisher events.Publisher,
	log *zap.Logger,
) *RefundService {
	return &RefundService{
		campaignRepo:     campaignRepo,
		contributionRepo: contributionRepo,
		refundRepo:       refundRepo,
		ledgerRepo:       ledgerRepo,
		gateway:          gateway,
		publisher:        publisher,
		log:              log,
	}
}

// ProcessRefunds moves the campaign into refunding (or resumes an
// interrupted run) and pays back every confirmed, not-yet-refunded
// contribution. Individual transfer failures are recorded and skipped;
// the next sweep retries them.
func (s *RefundService) ProcessRefunds(ctx context.Context, campaignID uuid.UUID) error {
	campaign, err := s.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("load campaign %s: %w", campaignID, err)
	}

	switch campaign.Status {
	case models.CampaignStatusFailed, models.CampaignStatusCancelled:
		// Losing the transition race means another worker started the
		// sweep; continue, the per-contribution guards keep it safe.
		if _, err := s.campaignRepo.UpdateStatusIf(ctx, campaignID, campaign.Status, models.CampaignStatusRefunding); err != nil {
			return fmt.Errorf("enter refunding: %w", err)
		}
	case models.CampaignStatusRefunding:
		// Resuming an interrupted sweep.
	default:
		return fmt.Errorf("campaign %s is %s, not refundable", campaignID, campaign.Status)
	}

	contributions, err := s.contributionRepo.ListRefundable(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("list refundable contributions: %w", err)
	}

	s.log.Info("refund sweep started",
		zap.String("campaign_id", campaignID.String()),
		zap.Int("contributions", len(contributions)),
	)

	var failures int
	for _, c := range contributions {
		if err := s.refundOne(ctx, campaign, c); err != nil {
			failures++
			s.log.Error("refund contribution",
				zap.String("contribution_id", c.ID.String()),
				zap.Error(err),
			)
		}
	}

	if failures > 0 {
		return fmt.Errorf("refund sweep for %s: %d of %d refunds failed", campaignID, failures, len(contributions))
	}
	return nil
}

func (s *RefundService) refundOne(ctx context.Context, campaign *models.Campaign, c models.Contribution) error {
	campaignID := campaign.ID
	done, err := s.refundRepo.HasCompletedForContribution(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("check prior refund: %w", err)
	}
	if done {
		// Paid out in a previous run; the contribution flag write may
		// have been lost, so set it again.
		if _, err := s.contributionRepo.MarkRefunded(ctx, c.ID, ""); err != nil {
			s.log.Warn("re-flag refunded contribution", zap.Error(err))
		}
		return nil
	}

	refund := &models.Refund{
		ContributionID:   c.ID,
		CampaignID:       campaignID,
		Amount:           c.Amount,
		RecipientAddress: c.FromAddress,
		Status:           models.RefundStatusPending,
		Reason:           "campaign_failed",
	}
	if err := s.refundRepo.Create(ctx, refund); err != nil {
		return fmt.Errorf("create refund record: %w", err)
	}
	if err := s.refundRepo.MarkProcessing(ctx, refund.ID); err != nil {
		return fmt.Errorf("mark refund processing: %w", err)
	}

	txRef, err := s.gateway.Transfer(ctx, campaignID, c.FromAddress, c.Amount)
	if err != nil {
		if mErr := s.refundRepo.MarkFailed(ctx, refund.ID, err.Error()); mErr != nil {
			s.log.Error("mark refund failed", zap.Error(mErr))
		}
		return fmt.Errorf("refund transfer: %w", err)
	}

	if err := s.refundRepo.MarkCompleted(ctx, refund.ID, txRef); err != nil {
		s.log.Error("mark refund completed", zap.String("tx_ref", txRef), zap.Error(err))
	}
	if _, err := s.contributionRepo.MarkRefunded(ctx, c.ID, txRef); err != nil {
		s.log.Error("flag contribution refunded", zap.String("tx_ref", txRef), zap.Error(err))
	}
	if _, err := s.ledgerRepo.Insert(ctx, &models.LedgerTransaction{
		CampaignID:  campaignID,
		Kind:        models.LedgerTxKindRefund,
		Amount:      c.Amount.Neg(),
		TxRef:       txRef,
		Status:      models.LedgerTxStatusConfirmed,
		FromAddress: campaign.WalletAddress,
		ToAddress:   c.FromAddress,
	}); err != nil {
		s.log.Error("record refund in ledger", zap.Error(err))
	}

	s.publish(events.EventRefundCompleted, map[string]any{
		"campaign_id":     campaignID.String(),
		"contribution_id": c.ID.String(),
		"amount":          c.Amount.String(),
		"recipient":       c.FromAddress,
		"tx_ref":          txRef,
	})

	s.log.Info("refund completed",
		zap.String("contribution_id", c.ID.String()),
		zap.String("amount", c.Amount.String()),
		zap.String("tx_ref", txRef),
	)
	return nil
}

func (s *RefundService) publish(eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.Background(), events.StreamCampaign, events.Event{
		Type:    eventType,
		Payload: payload,
	}); err != nil {
		s.log.Warn("publish event", zap.String("type", eventType), zap.Error(err))
	}
}
