package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/campfund/backend/internal/chain"
	"github.com/campfund/backend/internal/config"
	"github.com/campfund/backend/internal/events"
	"github.com/campfund/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type marketSubmitter interface {
	Submit(ctx context.Context, campaign *models.Campaign, paymentTxRef string) (*SubmitResult, error)
}

// attemptOutcome is the classified result of one purchase attempt.
type attemptOutcome struct {
	success           bool
	retryable         bool
	needsManualReview bool
	err               error
	paymentTxRef      string
	serviceID         *uuid.UUID
}

// PurchaseService executes the marketplace purchase for a funded
// campaign: pay the marketplace from the campaign wallet, then submit
// the order. At most one attempt per campaign runs at a time, enforced
// by an in-process lock; a retryable failure schedules exactly one
// delayed retry.
type PurchaseService struct {
	campaignRepo campaignStore
	serviceRepo  serviceStore
	ledgerRepo   ledgerStore
	auditRepo    auditStore
	funding      *FundingService
	gateway      chain.Gateway
	market       marketSubmitter
	dispatcher   *Dispatcher
	publisher    events.Publisher
	cfg          *config.Config
	log          *zap.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

func NewPurchaseService(
	campaignRepo campaignStore,
	serviceRepo serviceStore,
	ledgerRepo ledgerStore,
	auditRepo auditStore,
	funding *FundingService,
	gateway chain.Gateway,
	market marketSubmitter,
	dispatcher *Dispatcher,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *PurchaseService {
	return &PurchaseService{
		campaignRepo: campaignRepo,
		serviceRepo:  serviceRepo,
		ledgerRepo:   ledgerRepo,
		auditRepo:    auditRepo,
		funding:      funding,
		gateway:      gateway,
		market:       market,
		dispatcher:   dispatcher,
		publisher:    publisher,
		cfg:          cfg,
		log:          log,
		inflight:     make(map[uuid.UUID]struct{}),
	}
}

func (s *PurchaseService) tryAcquire(campaignID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[campaignID]; busy {
		return false
	}
	s.inflight[campaignID] = struct{}{}
	return true
}

func (s *PurchaseService) release(campaignID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, campaignID)
}

// ErrPurchaseInFlight is returned when a purchase attempt for the same
// campaign is already running.
var ErrPurchaseInFlight = errors.New("purchase already in progress")

// Execute runs a purchase attempt for the campaign and returns the
// first attempt's outcome. Concurrent calls for the same campaign
// collapse into one: later callers get ErrPurchaseInFlight immediately
// without touching the network.
func (s *PurchaseService) Execute(ctx context.Context, campaignID uuid.UUID) error {
	if !s.tryAcquire(campaignID) {
		s.log.Debug("purchase already in flight", zap.String("campaign_id", campaignID.String()))
		return ErrPurchaseInFlight
	}
	defer s.release(campaignID)

	return s.attempt(ctx, campaignID, true)
}

func (s *PurchaseService) attempt(ctx context.Context, campaignID uuid.UUID, allowRetry bool) error {
	outcome := s.run(ctx, campaignID)

	s.recordAttempt(ctx, campaignID, outcome)

	switch {
	case outcome.success:
		s.log.Info("purchase completed",
			zap.String("campaign_id", campaignID.String()),
			zap.String("payment_tx_ref", outcome.paymentTxRef),
		)
		s.publish(events.EventPurchaseCompleted, map[string]any{
			"campaign_id":    campaignID.String(),
			"payment_tx_ref": outcome.paymentTxRef,
		})
		return nil
	case outcome.retryable && allowRetry:
		s.log.Warn("purchase failed, retrying once",
			zap.String("campaign_id", campaignID.String()),
			zap.Duration("delay", s.cfg.PurchaseRetryDelay),
			zap.Error(outcome.err),
		)
		s.dispatcher.Go("purchase-retry:"+campaignID.String(), func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.PurchaseRetryDelay):
			}
			if !s.tryAcquire(campaignID) {
				return nil
			}
			defer s.release(campaignID)
			return s.attempt(ctx, campaignID, false)
		})
		return outcome.err
	default:
		s.log.Error("purchase failed",
			zap.String("campaign_id", campaignID.String()),
			zap.Bool("needs_manual_review", outcome.needsManualReview),
			zap.Error(outcome.err),
		)
		s.publish(events.EventPurchaseFailed, map[string]any{
			"campaign_id":         campaignID.String(),
			"needs_manual_review": outcome.needsManualReview,
			"error":               errString(outcome.err),
		})
		return outcome.err
	}
}

// run performs one attempt end to end and classifies the outcome.
func (s *PurchaseService) run(ctx context.Context, campaignID uuid.UUID) attemptOutcome {
	campaign, err := s.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return attemptOutcome{retryable: true, err: fmt.Errorf("load campaign: %w", err)}
	}

	if campaign.Status != models.CampaignStatusFunded {
		return attemptOutcome{err: fmt.Errorf("campaign is %s, not funded", campaign.Status)}
	}
	if campaign.CurrentAmount.LessThan(campaign.TargetAmount) {
		return attemptOutcome{retryable: true, err: fmt.Errorf("insufficient funds: %s of %s", campaign.CurrentAmount, campaign.TargetAmount)}
	}
	if campaign.Deadline.Before(time.Now()) {
		return attemptOutcome{err: fmt.Errorf("deadline passed before purchase")}
	}

	existing, err := s.serviceRepo.GetActiveByCampaign(ctx, campaignID)
	if err != nil {
		return attemptOutcome{retryable: true, err: fmt.Errorf("check existing service: %w", err)}
	}
	if existing != nil {
		return attemptOutcome{err: fmt.Errorf("service %s already exists for campaign", existing.ID)}
	}

	switch campaign.Kind {
	case models.KindEnhancedInfo:
		return s.purchaseEnhancedInfo(ctx, campaign)
	case models.KindAdvertising:
		return s.purchaseAdvertising(ctx, campaign)
	case models.KindBoost:
		return s.purchaseBoost(ctx, campaign)
	default:
		return attemptOutcome{err: fmt.Errorf("unknown campaign kind %q", campaign.Kind)}
	}
}

// The kind routines all drive the same pay-then-submit flow today; they
// stay separate so kind-specific marketplace parameters have a home.

func (s *PurchaseService) purchaseEnhancedInfo(ctx context.Context, campaign *models.Campaign) attemptOutcome {
	return s.payAndSubmit(ctx, campaign)
}

func (s *PurchaseService) purchaseAdvertising(ctx context.Context, campaign *models.Campaign) attemptOutcome {
	return s.payAndSubmit(ctx, campaign)
}

func (s *PurchaseService) purchaseBoost(ctx context.Context, campaign *models.Campaign) attemptOutcome {
	return s.payAndSubmit(ctx, campaign)
}

func (s *PurchaseService) payAndSubmit(ctx context.Context, campaign *models.Campaign) attemptOutcome {
	txRef, err := s.gateway.Transfer(ctx, campaign.ID, s.cfg.MarketplaceReceiveAddress, campaign.TargetAmount)
	if err != nil {
		// Nothing left the wallet; safe to retry.
		return attemptOutcome{retryable: true, err: fmt.Errorf("payment transfer: %w", err)}
	}

	outcome := s.finalize(ctx, campaign, txRef)
	outcome.paymentTxRef = txRef
	return outcome
}

// finalize records the payment and submits the marketplace order. The
// payment has already left the wallet here, so nothing on this path is
// retryable: a failure escalates to manual review instead of risking a
// double spend.
func (s *PurchaseService) finalize(ctx context.Context, campaign *models.Campaign, paymentTxRef string) attemptOutcome {
	if _, err := s.ledgerRepo.Insert(ctx, &models.LedgerTransaction{
		CampaignID:  campaign.ID,
		Kind:        models.LedgerTxKindServicePurchase,
		Amount:      campaign.TargetAmount.Neg(),
		TxRef:       paymentTxRef,
		Status:      models.LedgerTxStatusConfirmed,
		FromAddress: campaign.WalletAddress,
		ToAddress:   s.cfg.MarketplaceReceiveAddress,
	}); err != nil {
		return attemptOutcome{needsManualReview: true, err: fmt.Errorf("record payment after transfer: %w", err)}
	}

	result, err := s.market.Submit(ctx, campaign, paymentTxRef)
	if err != nil {
		return attemptOutcome{needsManualReview: true, err: fmt.Errorf("submit order after payment: %w", err)}
	}
	if !result.Success {
		return attemptOutcome{needsManualReview: true, err: fmt.Errorf("marketplace rejected order after payment: %s", result.Error)}
	}

	service := &models.Service{
		CampaignID: campaign.ID,
		Kind:       campaign.Kind,
		ExternalID: result.ServiceID,
		Status:     models.ServiceStatusActive,
	}
	if err := s.serviceRepo.Create(ctx, service); err != nil {
		return attemptOutcome{needsManualReview: true, err: fmt.Errorf("record service: %w", err)}
	}
	if err := s.campaignRepo.SetServiceID(ctx, campaign.ID, service.ID); err != nil {
		return attemptOutcome{needsManualReview: true, err: fmt.Errorf("link service to campaign: %w", err)}
	}

	if err := s.funding.CompleteAfterPurchase(ctx, campaign.ID); err != nil {
		return attemptOutcome{needsManualReview: true, err: err}
	}

	if err := s.campaignDebitApplied(ctx, campaign); err != nil {
		s.log.Warn("debit campaign balance after purchase", zap.Error(err))
	}

	return attemptOutcome{success: true, serviceID: &service.ID}
}

// campaignDebitApplied mirrors the on-chain payment in the campaign's
// tracked balance. Reconciliation corrects any drift if this write is
// lost.
func (s *PurchaseService) campaignDebitApplied(ctx context.Context, campaign *models.Campaign) error {
	_, err := s.campaignRepo.AddToCurrentAmount(ctx, campaign.ID, campaign.TargetAmount.Neg())
	return err
}

func (s *PurchaseService) recordAttempt(ctx context.Context, campaignID uuid.UUID, o attemptOutcome) {
	rec := models.PurchaseAttempt{
		CampaignID:        campaignID,
		Success:           o.success,
		Retryable:         o.retryable,
		ServiceID:         o.serviceID,
		NeedsManualReview: o.needsManualReview,
	}
	if o.err != nil {
		msg := o.err.Error()
		rec.Error = &msg
	}
	if o.paymentTxRef != "" {
		ref := o.paymentTxRef
		rec.PaymentTxRef = &ref
	}
	if err := s.auditRepo.LogPurchaseAttempt(ctx, rec); err != nil {
		s.log.Error("record purchase attempt", zap.Error(err))
	}
}

func (s *PurchaseService) publish(eventType string, payload map[string]any) {
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

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
