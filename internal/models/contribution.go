package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contribution statuses
const (
	ContributionStatusPending   = "pending"
	ContributionStatusConfirmed = "confirmed"
	ContributionStatusFailed    = "failed"
)

// Contribution is a verified incoming transfer attributed to a campaign.
// TxRef is unique system-wide: the same on-chain transaction can never
// produce two contributions.
type Contribution struct {
	ID          uuid.UUID       `json:"id"`
	CampaignID  uuid.UUID       `json:"campaign_id"`
	FromAddress string          `json:"from_address"`
	Amount      decimal.Decimal `json:"amount"`
	TxRef       string          `json:"tx_ref"`
	Status      string          `json:"status"`
	Refunded    bool            `json:"refunded"`
	RefundTxRef *string         `json:"refund_tx_ref,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
