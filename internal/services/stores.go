package services

import (
	"context"
	"time"

	"github.com/campfund/backend/internal/models"
	"github.com/campfund/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store interfaces consumed by the engine services. The pgx-backed
// repositories satisfy them; tests substitute in-memory fakes.

type campaignStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	GetByWalletAddress(ctx context.Context, address string) (*models.Campaign, error)
	AddToCurrentAmount(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*models.CampaignBalance, error)
	SetCurrentAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	SetServiceID(ctx context.Context, id, serviceID uuid.UUID) error
	ListExpiredUnderfunded(ctx context.Context, now time.Time) ([]models.Campaign, error)
	ListByStatuses(ctx context.Context, statuses ...string) ([]models.Campaign, error)
}

type contributionStore interface {
	Create(ctx context.Context, c *models.Contribution) error
	ListRefundable(ctx context.Context, campaignID uuid.UUID) ([]models.Contribution, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, refundTxRef string) (bool, error)
	CountByAddressSince(ctx context.Context, address string, since time.Time) (int, error)
	SumConfirmedByAddress(ctx context.Context, address string) (decimal.Decimal, error)
	CountDistinctCampaignsByAddress(ctx context.Context, address string) (int, error)
	SumConfirmedByCampaign(ctx context.Context, campaignID uuid.UUID) (decimal.Decimal, error)
}

type ledgerStore interface {
	Insert(ctx context.Context, t *models.LedgerTransaction) (bool, error)
}

type serviceStore interface {
	Create(ctx context.Context, s *models.Service) error
	GetActiveByCampaign(ctx context.Context, campaignID uuid.UUID) (*models.Service, error)
}

type refundStore interface {
	Create(ctx context.Context, r *models.Refund) error
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, txRef string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	HasCompletedForContribution(ctx context.Context, contributionID uuid.UUID) (bool, error)
}

type auditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	LogSuspicious(ctx context.Context, rec models.SuspiciousActivity) error
	LogPurchaseAttempt(ctx context.Context, a models.PurchaseAttempt) error
}

var (
	_ campaignStore     = (*repositories.CampaignRepo)(nil)
	_ contributionStore = (*repositories.ContributionRepo)(nil)
	_ ledgerStore       = (*repositories.LedgerTxRepo)(nil)
	_ serviceStore      = (*repositories.ServiceRepo)(nil)
	_ refundStore       = (*repositories.RefundRepo)(nil)
	_ auditStore        = (*repositories.AuditRepo)(nil)
)
