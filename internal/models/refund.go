package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Refund statuses
const (
	RefundStatusPending    = "pending"
	RefundStatusProcessing = "processing"
	RefundStatusCompleted  = "completed"
	RefundStatusFailed     = "failed"
)

type Refund struct {
	ID               uuid.UUID       `json:"id"`
	ContributionID   uuid.UUID       `json:"contribution_id"`
	CampaignID       uuid.UUID       `json:"campaign_id"`
	Amount           decimal.Decimal `json:"amount"`
	RecipientAddress string          `json:"recipient_address"`
	Status           string          `json:"status"`
	TxRef            *string         `json:"tx_ref,omitempty"`
	Reason           string          `json:"reason"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
