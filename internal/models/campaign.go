package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Campaign statuses
const (
	CampaignStatusActive    = "active"
	CampaignStatusFunded    = "funded"
	CampaignStatusCompleted = "completed"
	CampaignStatusFailed    = "failed"
	CampaignStatusRefunding = "refunding"
	CampaignStatusCancelled = "cancelled"
)

// CampaignKind selects which marketplace purchase is made once the
// campaign is fully funded.
type CampaignKind string

const (
	KindEnhancedInfo CampaignKind = "enhanced_info"
	KindAdvertising  CampaignKind = "advertising"
	KindBoost        CampaignKind = "boost"
)

func IsValidCampaignKind(k CampaignKind) bool {
	switch k {
	case KindEnhancedInfo, KindAdvertising, KindBoost:
		return true
	}
	return false
}

// Valid state transitions: from -> []to
//
// Transitions are one-directional. refunding is terminal; cancelled may
// still move to refunding so contributors get their money back.
var ValidCampaignTransitions = map[string][]string{
	CampaignStatusActive:    {CampaignStatusFunded, CampaignStatusFailed, CampaignStatusCancelled},
	CampaignStatusFunded:    {CampaignStatusCompleted, CampaignStatusCancelled},
	CampaignStatusCompleted: {},
	CampaignStatusFailed:    {CampaignStatusRefunding},
	CampaignStatusRefunding: {},
	CampaignStatusCancelled: {CampaignStatusRefunding},
}

func IsValidCampaignTransition(from, to string) bool {
	allowed, ok := ValidCampaignTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

type Campaign struct {
	ID            uuid.UUID       `json:"id"`
	CreatorUserID uuid.UUID       `json:"creator_user_id"`
	Title         string          `json:"title"`
	Kind          CampaignKind    `json:"kind"`
	WalletAddress string          `json:"wallet_address"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Deadline      time.Time       `json:"deadline"`
	Status        string          `json:"status"`
	ServiceID     *uuid.UUID      `json:"service_id,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CampaignBalance is the snapshot returned by the atomic balance update.
type CampaignBalance struct {
	CurrentAmount decimal.Decimal
	TargetAmount  decimal.Decimal
	Status        string
}
