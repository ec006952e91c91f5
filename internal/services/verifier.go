package services

import (
	"context"
	"fmt"

	"github.com/campfund/backend/internal/chain"
	"github.com/campfund/backend/internal/config"
	"github.com/campfund/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type enrichedFetcher interface {
	GetTransaction(ctx context.Context, txRef string) (*chain.TxDetail, error)
}

type rawFetcher interface {
	GetTransaction(ctx context.Context, accountAddr, txRef string) (*chain.TxDetail, error)
}

// VerifyResult is the verifier's verdict on one transaction reference.
// AlreadyProcessed is a no-op signal, not an error: the reference was
// accepted before and must not be counted again.
type VerifyResult struct {
	Valid            bool
	AlreadyProcessed bool
	Amount           decimal.Decimal
	FromAddress      string
	ToAddress        string
	Reason           string
}

// VerifierService validates that a transaction reference carries exactly
// one qualifying transfer into a campaign's custodial wallet, and
// persists a ledger record once per reference. Safe for concurrent use:
// callers for the same reference serialize on the registry claim.
type VerifierService struct {
	campaignRepo campaignStore
	ledgerRepo   ledgerStore
	refs         RefRegistry
	enriched     enrichedFetcher
	raw          rawFetcher
	cfg          *config.Config
	log          *zap.Logger
}

func NewVerifierService(
	campaignRepo campaignStore,
	ledgerRepo ledgerStore,
	refs RefRegistry,
	enriched enrichedFetcher,
	raw rawFetcher,
	cfg *config.Config,
	log *zap.Logger,
) *VerifierService {
	return &VerifierService{
		campaignRepo: campaignRepo,
		ledgerRepo:   ledgerRepo,
		refs:         refs,
		enriched:     enriched,
		raw:          raw,
		cfg:          cfg,
		log:          log,
	}
}

// VerifyContribution checks the transfer referenced by txRef against
// the campaign's wallet. expected, when non-nil, is the amount the
// notification claimed; a mismatch beyond the tolerance rejects the
// transfer. Only accepted references stay marked in the registry.
func (s *VerifierService) VerifyContribution(ctx context.Context, txRef string, campaignID uuid.UUID, expected *decimal.Decimal) (*VerifyResult, error) {
	claimed, err := s.refs.Claim(ctx, txRef)
	if err != nil {
		return nil, fmt.Errorf("claim reference: %w", err)
	}
	if !claimed {
		return &VerifyResult{AlreadyProcessed: true}, nil
	}

	// The claim is held for the duration of the verification; rejected
	// and errored references release it so nothing stays marked except
	// accepted ones.
	reject := func(reason string) (*VerifyResult, error) {
		_ = s.refs.Release(ctx, txRef)
		return &VerifyResult{Valid: false, Reason: reason}, nil
	}
	fail := func(err error) (*VerifyResult, error) {
		_ = s.refs.Release(ctx, txRef)
		return nil, err
	}

	campaign, err := s.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return fail(fmt.Errorf("load campaign %s: %w", campaignID, err))
	}

	detail, err := s.fetchDetail(ctx, campaign.WalletAddress, txRef)
	if err != nil {
		return fail(err)
	}

	transfer, reason := extractQualifyingTransfer(detail, campaign.WalletAddress)
	if reason != "" {
		return reject(reason)
	}

	if expected != nil {
		if transfer.Amount.Sub(*expected).Abs().GreaterThan(s.cfg.AmountTolerance) {
			return reject(fmt.Sprintf("amount mismatch: observed %s, expected %s", transfer.Amount, expected))
		}
	}

	if transfer.Amount.LessThan(s.cfg.MinContribution) {
		return reject(fmt.Sprintf("amount %s below minimum contribution %s", transfer.Amount, s.cfg.MinContribution))
	}

	inserted, err := s.ledgerRepo.Insert(ctx, &models.LedgerTransaction{
		CampaignID:  campaign.ID,
		Kind:        models.LedgerTxKindContribution,
		Amount:      transfer.Amount,
		TxRef:       txRef,
		Status:      models.LedgerTxStatusConfirmed,
		FromAddress: transfer.From,
		ToAddress:   transfer.To,
	})
	if err != nil {
		return fail(fmt.Errorf("persist ledger record: %w", err))
	}
	if !inserted {
		// Another process already recorded this reference durably.
		return &VerifyResult{AlreadyProcessed: true}, nil
	}

	s.log.Info("contribution verified",
		zap.String("tx_ref", txRef),
		zap.String("campaign_id", campaign.ID.String()),
		zap.String("amount", transfer.Amount.String()),
		zap.String("from", transfer.From),
	)

	return &VerifyResult{
		Valid:       true,
		Amount:      transfer.Amount,
		FromAddress: transfer.From,
		ToAddress:   transfer.To,
	}, nil
}

// fetchDetail prefers the enriched provider and falls back to the raw
// ledger when it is unavailable.
func (s *VerifierService) fetchDetail(ctx context.Context, walletAddress, txRef string) (*chain.TxDetail, error) {
	detail, err := s.enriched.GetTransaction(ctx, txRef)
	if err == nil {
		return detail, nil
	}
	if err == chain.ErrTxNotFound {
		return nil, err
	}

	s.log.Warn("enriched provider unavailable, falling back to raw ledger",
		zap.String("tx_ref", txRef),
		zap.Error(err),
	)

	detail, rawErr := s.raw.GetTransaction(ctx, walletAddress, txRef)
	if rawErr != nil {
		return nil, fmt.Errorf("fetch transaction %s: enriched: %v; raw: %w", txRef, err, rawErr)
	}
	return detail, nil
}

// extractQualifyingTransfer finds the single transfer into the wallet.
// Native-asset transfers are preferred; token transfers are a fallback
// for older payment paths. Zero or multiple matches are rejected as
// ambiguous attribution.
func extractQualifyingTransfer(detail *chain.TxDetail, walletAddress string) (chain.Transfer, string) {
	matches := transfersTo(detail.NativeTransfers, walletAddress)
	if len(matches) == 0 {
		matches = transfersTo(detail.TokenTransfers, walletAddress)
	}

	switch len(matches) {
	case 0:
		return chain.Transfer{}, "no transfer to campaign wallet found"
	case 1:
		return matches[0], ""
	default:
		return chain.Transfer{}, fmt.Sprintf("ambiguous attribution: %d transfers to campaign wallet in one transaction", len(matches))
	}
}

func transfersTo(transfers []chain.Transfer, to string) []chain.Transfer {
	var out []chain.Transfer
	for _, t := range transfers {
		if t.To == to && t.Amount.IsPositive() {
			out = append(out, t)
		}
	}
	return out
}
