package services

import (
	"context"
	"fmt"
	"time"

	"github.com/campfund/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	fraudBurstWindow      = 60 * time.Second
	fraudBurstCount       = 3
	fraudLargeAmount      = 10000
	fraudRoundAmountFloor = 100
	fraudLifetimeTotal    = 50000
	fraudCampaignSpread   = 20
)

// FraudVerdict lists why a contribution looks suspicious. A suspicious
// contribution is still accepted; the verdict only drives review logging.
type FraudVerdict struct {
	Suspicious bool
	Reasons    []string
}

// FraudService scores contributions against heuristic thresholds.
// Scoring is advisory and never blocks the funding path: a failed
// lookup skips its check instead of failing the evaluation.
type FraudService struct {
	contributionRepo contributionStore
	auditRepo        auditStore
	log              *zap.Logger
}

func NewFraudService(contributionRepo contributionStore, auditRepo auditStore, log *zap.Logger) *FraudService {
	return &FraudService{
		contributionRepo: contributionRepo,
		auditRepo:        auditRepo,
		log:              log,
	}
}

func (s *FraudService) Evaluate(ctx context.Context, fromAddress string, amount decimal.Decimal, campaignID uuid.UUID) FraudVerdict {
	var reasons []string

	count, err := s.contributionRepo.CountByAddressSince(ctx, fromAddress, time.Now().Add(-fraudBurstWindow))
	if err != nil {
		s.log.Warn("fraud check skipped: burst count lookup failed", zap.Error(err))
	} else if count > fraudBurstCount {
		reasons = append(reasons, fmt.Sprintf("%d contributions from address within %s", count, fraudBurstWindow))
	}

	if amount.GreaterThan(decimal.NewFromInt(fraudLargeAmount)) {
		reasons = append(reasons, fmt.Sprintf("single contribution of %s exceeds %d", amount, fraudLargeAmount))
	}

	if amount.GreaterThan(decimal.NewFromInt(fraudRoundAmountFloor)) && amount.Mod(decimal.NewFromInt(100)).IsZero() {
		reasons = append(reasons, fmt.Sprintf("round amount %s (multiple of 100)", amount))
	}

	total, err := s.contributionRepo.SumConfirmedByAddress(ctx, fromAddress)
	if err != nil {
		s.log.Warn("fraud check skipped: lifetime total lookup failed", zap.Error(err))
	} else if total.Add(amount).GreaterThan(decimal.NewFromInt(fraudLifetimeTotal)) {
		reasons = append(reasons, fmt.Sprintf("lifetime total %s exceeds %d", total.Add(amount), fraudLifetimeTotal))
	}

	spread, err := s.contributionRepo.CountDistinctCampaignsByAddress(ctx, fromAddress)
	if err != nil {
		s.log.Warn("fraud check skipped: campaign spread lookup failed", zap.Error(err))
	} else if spread > fraudCampaignSpread {
		reasons = append(reasons, fmt.Sprintf("address has contributed to %d campaigns", spread))
	}

	verdict := FraudVerdict{Suspicious: len(reasons) > 0, Reasons: reasons}
	if verdict.Suspicious {
		s.log.Warn("suspicious contribution flagged",
			zap.String("from", fromAddress),
			zap.String("campaign_id", campaignID.String()),
			zap.String("amount", amount.String()),
			zap.Strings("reasons", reasons),
		)
		if err := s.auditRepo.LogSuspicious(ctx, models.SuspiciousActivity{
			CampaignID:  campaignID,
			FromAddress: fromAddress,
			Amount:      amount,
			Reasons:     reasons,
		}); err != nil {
			s.log.Error("record suspicious activity", zap.Error(err))
		}
	}
	return verdict
}
