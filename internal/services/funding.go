package services

import (
	"context"
	"fmt"
	"time"

	"github.com/campfund/backend/internal/events"
	"github.com/campfund/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type purchaser interface {
	Execute(ctx context.Context, campaignID uuid.UUID) error
}

type refunder interface {
	ProcessRefunds(ctx context.Context, campaignID uuid.UUID) error
}

// FundingService owns the campaign funding state machine: it applies
// verified contributions to campaign balances and drives the
// active → funded → completed and active → failed → refunding paths.
// Status transitions go through conditional updates so exactly one
// caller wins a race to the same transition.
type FundingService struct {
	campaignRepo campaignStore
	auditRepo    auditStore
	purchaser    purchaser
	refunder     refunder
	dispatcher   *Dispatcher
	publisher    events.Publisher
	log          *zap.Logger
}

func NewFundingService(
	campaignRepo campaignStore,
	auditRepo auditStore,
	dispatcher *Dispatcher,
	publisher events.Publisher,
	log *zap.Logger,
) *FundingService {
	return &FundingService{
		campaignRepo: campaignRepo,
		auditRepo:    auditRepo,
		dispatcher:   dispatcher,
		publisher:    publisher,
		log:          log,
	}
}

// SetPurchaser and SetRefunder wire the downstream services after
// construction; the purchase and refund services are built on top of
// funding, so the dependency runs this way around.
func (s *FundingService) SetPurchaser(p purchaser) { s.purchaser = p }
func (s *FundingService) SetRefunder(r refunder)   { s.refunder = r }

// ApplyContribution credits the campaign balance and, when the target
// is reached while the campaign is still active, marks it funded and
// kicks off the purchase. Contributions arriving out of order are
// fine: the balance is cumulative and the funded transition fires on
// whichever contribution crosses the target.
func (s *FundingService) ApplyContribution(ctx context.Context, campaignID uuid.UUID, amount decimal.Decimal) error {
	balance, err := s.campaignRepo.AddToCurrentAmount(ctx, campaignID, amount)
	if err != nil {
		return fmt.Errorf("credit campaign %s: %w", campaignID, err)
	}

	s.log.Info("contribution applied",
		zap.String("campaign_id", campaignID.String()),
		zap.String("amount", amount.String()),
		zap.String("current", balance.CurrentAmount.String()),
		zap.String("target", balance.TargetAmount.String()),
	)

	if balance.Status == models.CampaignStatusActive && balance.CurrentAmount.GreaterThanOrEqual(balance.TargetAmount) {
		return s.MarkFunded(ctx, campaignID)
	}
	return nil
}

// MarkFunded performs the active → funded transition and dispatches
// the purchase. Losing the transition race is not an error: another
// caller already handled it.
func (s *FundingService) MarkFunded(ctx context.Context, campaignID uuid.UUID) error {
	won, err := s.transition(ctx, campaignID, models.CampaignStatusActive, models.CampaignStatusFunded, "funding target reached")
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	s.publish(events.EventCampaignFunded, map[string]any{
		"campaign_id": campaignID.String(),
	})

	if s.purchaser != nil {
		s.dispatcher.Go("purchase:"+campaignID.String(), func(ctx context.Context) error {
			return s.purchaser.Execute(ctx, campaignID)
		})
	}
	return nil
}

// CompleteAfterPurchase performs the funded → completed transition once
// the marketplace order is live.
func (s *FundingService) CompleteAfterPurchase(ctx context.Context, campaignID uuid.UUID) error {
	won, err := s.transition(ctx, campaignID, models.CampaignStatusFunded, models.CampaignStatusCompleted, "service purchased")
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("campaign %s left funded state before completion", campaignID)
	}
	return nil
}

// CheckDeadlines fails every active campaign whose deadline has passed
// without reaching its target, then dispatches refunds for each.
func (s *FundingService) CheckDeadlines(ctx context.Context) error {
	expired, err := s.campaignRepo.ListExpiredUnderfunded(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("list expired campaigns: %w", err)
	}

	for _, campaign := range expired {
		id := campaign.ID
		won, err := s.transition(ctx, id, models.CampaignStatusActive, models.CampaignStatusFailed, "deadline passed before funding target")
		if err != nil {
			s.log.Error("fail expired campaign", zap.String("campaign_id", id.String()), zap.Error(err))
			continue
		}
		if !won {
			continue
		}

		s.publish(events.EventCampaignFailed, map[string]any{
			"campaign_id": id.String(),
			"reason":      "deadline_passed",
		})

		if s.refunder != nil {
			s.dispatcher.Go("refund:"+id.String(), func(ctx context.Context) error {
				return s.refunder.ProcessRefunds(ctx, id)
			})
		}
	}
	return nil
}

// OverrideStatus is the admin escape hatch. It still obeys the
// transition table and records who forced the change.
func (s *FundingService) OverrideStatus(ctx context.Context, campaignID uuid.UUID, to, actor string) error {
	campaign, err := s.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if !models.IsValidCampaignTransition(campaign.Status, to) {
		return fmt.Errorf("invalid transition %s -> %s", campaign.Status, to)
	}

	won, err := s.transition(ctx, campaignID, campaign.Status, to, "admin override by "+actor)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("campaign %s changed status concurrently", campaignID)
	}

	if to == models.CampaignStatusRefunding && s.refunder != nil {
		s.dispatcher.Go("refund:"+campaignID.String(), func(ctx context.Context) error {
			return s.refunder.ProcessRefunds(ctx, campaignID)
		})
	}
	return nil
}

// transition applies a guarded status change and audits it. Returns
// whether this caller performed the change.
func (s *FundingService) transition(ctx context.Context, campaignID uuid.UUID, from, to, reason string) (bool, error) {
	if !models.IsValidCampaignTransition(from, to) {
		return false, fmt.Errorf("invalid transition %s -> %s", from, to)
	}

	won, err := s.campaignRepo.UpdateStatusIf(ctx, campaignID, from, to)
	if err != nil {
		return false, fmt.Errorf("transition campaign %s to %s: %w", campaignID, to, err)
	}
	if !won {
		s.log.Debug("transition already applied elsewhere",
			zap.String("campaign_id", campaignID.String()),
			zap.String("from", from),
			zap.String("to", to),
		)
		return false, nil
	}

	s.log.Info("campaign status changed",
		zap.String("campaign_id", campaignID.String()),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("reason", reason),
	)

	id := campaignID
	if err := s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "system",
		Action:     "status_change",
		EntityType: "campaign",
		EntityID:   &id,
		Meta: map[string]any{
			"from":   from,
			"to":     to,
			"reason": reason,
		},
	}); err != nil {
		s.log.Error("audit status change", zap.Error(err))
	}
	return true, nil
}

func (s *FundingService) publish(eventType string, payload map[string]any) {
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
