package services

import (
	"context"
	"strings"
	"testing"

	"github.com/campfund/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFraudEvaluate_CleanContribution(t *testing.T) {
	contributions := &memContributions{}
	audit := &memAudit{}
	f := NewFraudService(contributions, audit, zap.NewNop())

	verdict := f.Evaluate(context.Background(), "EQclean", decimal.NewFromInt(50), uuid.New())
	require.False(t, verdict.Suspicious)
	require.Empty(t, verdict.Reasons)
	require.Empty(t, audit.suspicious)
}

func TestFraudEvaluate_LargeAmount(t *testing.T) {
	f := NewFraudService(&memContributions{}, &memAudit{}, zap.NewNop())

	verdict := f.Evaluate(context.Background(), "EQwhale", decimal.NewFromInt(10001), uuid.New())
	require.True(t, verdict.Suspicious)
	require.Len(t, verdict.Reasons, 1)
	require.Contains(t, verdict.Reasons[0], "exceeds 10000")
}

func TestFraudEvaluate_RoundAmount(t *testing.T) {
	f := NewFraudService(&memContributions{}, &memAudit{}, zap.NewNop())

	tests := []struct {
		amount     string
		suspicious bool
	}{
		{"500", true},
		{"100", false},  // at the floor, not above it
		{"150", false},  // above floor but not a multiple of 100
		{"99.5", false},
	}
	for _, tt := range tests {
		verdict := f.Evaluate(context.Background(), "EQround", decimal.RequireFromString(tt.amount), uuid.New())
		require.Equal(t, tt.suspicious, verdict.Suspicious, "amount %s", tt.amount)
	}
}

func TestFraudEvaluate_BurstFromOneAddress(t *testing.T) {
	contributions := &memContributions{}
	campaignID := uuid.New()
	for i := 0; i < 4; i++ {
		require.NoError(t, contributions.Create(context.Background(), &models.Contribution{
			CampaignID:  campaignID,
			FromAddress: "EQburst",
			Amount:      decimal.NewFromInt(10),
			TxRef:       formatTestRef(400 + i),
			Status:      models.ContributionStatusConfirmed,
		}))
	}
	audit := &memAudit{}
	f := NewFraudService(contributions, audit, zap.NewNop())

	verdict := f.Evaluate(context.Background(), "EQburst", decimal.NewFromInt(10), campaignID)
	require.True(t, verdict.Suspicious)
	require.Len(t, audit.suspicious, 1)
	require.Equal(t, "EQburst", audit.suspicious[0].FromAddress)
}

func TestFraudEvaluate_LifetimeTotal(t *testing.T) {
	contributions := &memContributions{}
	require.NoError(t, contributions.Create(context.Background(), &models.Contribution{
		CampaignID:  uuid.New(),
		FromAddress: "EQbig",
		Amount:      decimal.NewFromInt(49000),
		TxRef:       formatTestRef(500),
		Status:      models.ContributionStatusConfirmed,
	}))
	f := NewFraudService(contributions, &memAudit{}, zap.NewNop())

	// 49000 on record + 2000 incoming crosses the lifetime line, and the
	// burst check fires too (one prior contribution within the window is
	// under the burst count, so only the lifetime reason applies).
	verdict := f.Evaluate(context.Background(), "EQbig", decimal.NewFromInt(2000), uuid.New())
	require.True(t, verdict.Suspicious)

	found := false
	for _, r := range verdict.Reasons {
		if strings.Contains(r, "lifetime") {
			found = true
		}
	}
	require.True(t, found, "expected a lifetime total reason, got %v", verdict.Reasons)
}

func TestFraudEvaluate_CampaignSpread(t *testing.T) {
	contributions := &memContributions{}
	for i := 0; i < 21; i++ {
		require.NoError(t, contributions.Create(context.Background(), &models.Contribution{
			CampaignID:  uuid.New(),
			FromAddress: "EQspread",
			Amount:      decimal.NewFromInt(10),
			TxRef:       formatTestRef(600 + i),
			Status:      models.ContributionStatusConfirmed,
		}))
	}
	f := NewFraudService(contributions, &memAudit{}, zap.NewNop())

	verdict := f.Evaluate(context.Background(), "EQspread", decimal.NewFromInt(10), uuid.New())
	require.True(t, verdict.Suspicious)
}
