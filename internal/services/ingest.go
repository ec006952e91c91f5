package services

import (
	"context"

	"github.com/campfund/backend/internal/events"
	"github.com/campfund/backend/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferNotice is one transfer as reported by a notification source.
type TransferNotice struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Asset  string          `json:"asset,omitempty"`
}

// TxNotification is one transaction in a webhook or poller batch.
type TxNotification struct {
	TxRef           string           `json:"tx_ref"`
	Seqno           uint64           `json:"seqno"`
	Timestamp       int64            `json:"timestamp"`
	NativeTransfers []TransferNotice `json:"native_transfers"`
	TokenTransfers  []TransferNotice `json:"token_transfers"`
}

// IngestService routes notified transfers into verification and the
// funding ledger. Each batch item is isolated: one bad transaction
// never blocks the rest of the batch.
type IngestService struct {
	campaignRepo     campaignStore
	contributionRepo contributionStore
	verifier         *VerifierService
	fraud            *FraudService
	funding          *FundingService
	publisher        events.Publisher
	log              *zap.Logger
}

func NewIngestService(
	campaignRepo campaignStore,
	contributionRepo contributionStore,
	verifier *VerifierService,
	fraud *FraudService,
	funding *FundingService,
	publisher events.Publisher,
	log *zap.Logger,
) *IngestService {
	return &IngestService{
		campaignRepo:     campaignRepo,
		contributionRepo: contributionRepo,
		verifier:         verifier,
		fraud:            fraud,
		funding:          funding,
		publisher:        publisher,
		log:              log,
	}
}

// ProcessBatch handles each notification independently and returns how
// many were processed without error. Transfers to unknown wallets are
// skipped silently: the watched address set is wider than our campaigns.
func (s *IngestService) ProcessBatch(ctx context.Context, batch []TxNotification) int {
	processed := 0
	for _, tx := range batch {
		if err := s.processOne(ctx, tx); err != nil {
			s.log.Error("process notification",
				zap.String("tx_ref", tx.TxRef),
				zap.Error(err),
			)
			continue
		}
		processed++
	}
	return processed
}

func (s *IngestService) processOne(ctx context.Context, tx TxNotification) error {
	// Native transfers are authoritative when any of them reaches a
	// campaign wallet; token transfers are the fallback, matching the
	// verifier's extraction order.
	matched, err := s.routeTransfers(ctx, tx, tx.NativeTransfers)
	if err != nil {
		return err
	}
	if !matched {
		if _, err := s.routeTransfers(ctx, tx, tx.TokenTransfers); err != nil {
			return err
		}
	}
	return nil
}

// routeTransfers verifies and records every transfer in the list that
// targets a campaign wallet. It reports whether any did.
func (s *IngestService) routeTransfers(ctx context.Context, tx TxNotification, transfers []TransferNotice) (bool, error) {
	matched := false
	for _, t := range transfers {
		campaign, err := s.campaignRepo.GetByWalletAddress(ctx, t.To)
		if err != nil {
			return matched, err
		}
		if campaign == nil {
			continue
		}
		matched = true

		expected := t.Amount
		result, err := s.verifier.VerifyContribution(ctx, tx.TxRef, campaign.ID, &expected)
		if err != nil {
			return matched, err
		}
		if result.AlreadyProcessed {
			s.log.Debug("reference already processed", zap.String("tx_ref", tx.TxRef))
			continue
		}
		if !result.Valid {
			s.log.Warn("contribution rejected",
				zap.String("tx_ref", tx.TxRef),
				zap.String("campaign_id", campaign.ID.String()),
				zap.String("reason", result.Reason),
			)
			continue
		}

		s.fraud.Evaluate(ctx, result.FromAddress, result.Amount, campaign.ID)

		contribution := &models.Contribution{
			CampaignID:  campaign.ID,
			FromAddress: result.FromAddress,
			Amount:      result.Amount,
			TxRef:       tx.TxRef,
			Status:      models.ContributionStatusConfirmed,
		}
		if err := s.contributionRepo.Create(ctx, contribution); err != nil {
			return matched, err
		}

		if err := s.funding.ApplyContribution(ctx, campaign.ID, result.Amount); err != nil {
			return matched, err
		}

		s.publish(events.EventContributionConfirmed, map[string]interface{}{
			"campaign_id": campaign.ID.String(),
			"tx_ref":      tx.TxRef,
			"amount":      result.Amount.String(),
			"from":        result.FromAddress,
		})
	}
	return matched, nil
}

func (s *IngestService) publish(eventType string, payload map[string]interface{}) {
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
