package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campfund/backend/internal/chain"
	"github.com/campfund/backend/internal/config"
	"github.com/campfund/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		MinContribution:           decimal.NewFromInt(5),
		AmountTolerance:           decimal.RequireFromString("0.01"),
		ReconcileEpsilon:          decimal.RequireFromString("0.01"),
		ReconcileThreshold:        decimal.RequireFromString("0.5"),
		PurchaseRetryDelay:        10 * time.Millisecond,
		MarketplaceReceiveAddress: "EQmarketplace",
	}
}

func testCampaign(status string, target int64) *models.Campaign {
	return &models.Campaign{
		ID:            uuid.New(),
		Title:         "test campaign",
		Kind:          models.KindBoost,
		WalletAddress: "EQcampaignwallet",
		TargetAmount:  decimal.NewFromInt(target),
		CurrentAmount: decimal.Zero,
		Deadline:      time.Now().Add(24 * time.Hour),
		Status:        status,
	}
}

func detailWithTransfer(txRef, from, to string, amount int64) *chain.TxDetail {
	return &chain.TxDetail{
		TxRef: txRef,
		NativeTransfers: []chain.Transfer{
			{From: from, To: to, Amount: decimal.NewFromInt(amount)},
		},
	}
}

func newTestVerifier(campaign *models.Campaign) (*VerifierService, *memRegistry, *memLedger, *fakeEnriched, *fakeRaw) {
	campaigns := newMemCampaigns(campaign)
	ledger := newMemLedger()
	registry := newMemRegistry()
	enriched := newFakeEnriched()
	raw := newFakeRaw()
	v := NewVerifierService(campaigns, ledger, registry, enriched, raw, testConfig(), zap.NewNop())
	return v, registry, ledger, enriched, raw
}

func TestVerifyContribution_Accepts(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusActive, 100)
	v, registry, ledger, enriched, _ := newTestVerifier(campaign)

	const ref = "100:abc"
	enriched.details[ref] = detailWithTransfer(ref, "EQsender", campaign.WalletAddress, 25)

	expected := decimal.NewFromInt(25)
	result, err := v.VerifyContribution(context.Background(), ref, campaign.ID, &expected)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, "EQsender", result.FromAddress)
	require.True(t, result.Amount.Equal(decimal.NewFromInt(25)))

	// Accepted references stay claimed and land in the ledger.
	require.True(t, registry.held(ref))
	require.Equal(t, 1, ledger.count())
}

func TestVerifyContribution_SecondCallIsNoOp(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusActive, 100)
	v, _, ledger, enriched, _ := newTestVerifier(campaign)

	const ref = "101:abc"
	enriched.details[ref] = detailWithTransfer(ref, "EQsender", campaign.WalletAddress, 25)

	first, err := v.VerifyContribution(context.Background(), ref, campaign.ID, nil)
	require.NoError(t, err)
	require.True(t, first.Valid)

	second, err := v.VerifyContribution(context.Background(), ref, campaign.ID, nil)
	require.NoError(t, err)
	require.True(t, second.AlreadyProcessed)
	require.Equal(t, 1, ledger.count())
}

func TestVerifyContribution_ConcurrentSameRef(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusActive, 100)
	v, _, ledger, enriched, _ := newTestVerifier(campaign)

	const ref = "102:abc"
	enriched.details[ref] = detailWithTransfer(ref, "EQsender", campaign.WalletAddress, 25)

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := v.VerifyContribution(context.Background(), ref, campaign.ID, nil)
			if err != nil {
				return
			}
			if result.Valid {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, accepted, "exactly one caller may accept a reference")
	require.Equal(t, 1, ledger.count())
}

func TestVerifyContribution_RejectsAndReleases(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusActive, 100)

	tests := []struct {
		name     string
		detail   func() *chain.TxDetail
		expected *decimal.Decimal
		reason   string
	}{
		{
			name: "no transfer to wallet",
			detail: func() *chain.TxDetail {
				return detailWithTransfer("r", "EQsender", "EQsomeoneelse", 25)
			},
			reason: "no transfer",
		},
		{
			name: "ambiguous attribution",
			detail: func() *chain.TxDetail {
				return &chain.TxDetail{
					NativeTransfers: []chain.Transfer{
						{From: "EQa", To: campaign.WalletAddress, Amount: decimal.NewFromInt(10)},
						{From: "EQb", To: campaign.WalletAddress, Amount: decimal.NewFromInt(15)},
					},
				}
			},
			reason: "ambiguous",
		},
		{
			name: "amount mismatch",
			detail: func() *chain.TxDetail {
				return detailWithTransfer("r", "EQsender", campaign.WalletAddress, 25)
			},
			expected: decPtr(decimal.NewFromInt(30)),
			reason:   "mismatch",
		},
		{
			name: "below minimum",
			detail: func() *chain.TxDetail {
				return detailWithTransfer("r", "EQsender", campaign.WalletAddress, 2)
			},
			reason: "below minimum",
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, registry, ledger, enriched, _ := newTestVerifier(campaign)
			ref := formatTestRef(200 + i)
			enriched.details[ref] = tt.detail()

			result, err := v.VerifyContribution(context.Background(), ref, campaign.ID, tt.expected)
			require.NoError(t, err)
			require.False(t, result.Valid)
			require.Contains(t, result.Reason, tt.reason)

			// Rejected references must be claimable again.
			require.False(t, registry.held(ref))
			require.Equal(t, 0, ledger.count())
		})
	}
}

func TestVerifyContribution_ToleranceAllowsSmallDelta(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusActive, 100)
	v, _, _, enriched, _ := newTestVerifier(campaign)

	const ref = "300:abc"
	enriched.details[ref] = &chain.TxDetail{
		NativeTransfers: []chain.Transfer{
			{From: "EQsender", To: campaign.WalletAddress, Amount: decimal.RequireFromString("24.995")},
		},
	}

	expected := decimal.NewFromInt(25)
	result, err := v.VerifyContribution(context.Background(), ref, campaign.ID, &expected)
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestVerifyContribution_FallsBackToRawLedger(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusActive, 100)
	v, _, _, enriched, raw := newTestVerifier(campaign)

	const ref = "301:abc"
	enriched.err = errors.New("provider down")
	raw.details[ref] = detailWithTransfer(ref, "EQsender", campaign.WalletAddress, 25)

	result, err := v.VerifyContribution(context.Background(), ref, campaign.ID, nil)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, 1, raw.calls)
}

func TestVerifyContribution_TransientErrorReleasesClaim(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusActive, 100)
	v, registry, _, enriched, raw := newTestVerifier(campaign)

	const ref = "302:abc"
	enriched.err = errors.New("provider down")
	// Raw ledger has nothing either: both sources failed.

	_, err := v.VerifyContribution(context.Background(), ref, campaign.ID, nil)
	require.Error(t, err)
	require.False(t, registry.held(ref))

	// Once the sources recover, the same reference verifies cleanly.
	enriched.err = nil
	enriched.details[ref] = detailWithTransfer(ref, "EQsender", campaign.WalletAddress, 25)
	result, err := v.VerifyContribution(context.Background(), ref, campaign.ID, nil)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, 1, raw.calls)
}

func TestVerifyContribution_TokenTransferFallback(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusActive, 100)
	v, _, _, enriched, _ := newTestVerifier(campaign)

	const ref = "303:abc"
	enriched.details[ref] = &chain.TxDetail{
		TokenTransfers: []chain.Transfer{
			{From: "EQsender", To: campaign.WalletAddress, Amount: decimal.NewFromInt(25)},
		},
	}

	result, err := v.VerifyContribution(context.Background(), ref, campaign.ID, nil)
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func formatTestRef(i int) string {
	return decimal.NewFromInt(int64(i)).String() + ":ref"
}
