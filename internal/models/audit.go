package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AuditLog struct {
	ID          uuid.UUID      `json:"id"`
	ActorUserID *uuid.UUID     `json:"actor_user_id,omitempty"`
	ActorType   string         `json:"actor_type"` // user / system / admin
	Action      string         `json:"action"`
	EntityType  string         `json:"entity_type"`
	EntityID    *uuid.UUID     `json:"entity_id,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SuspiciousActivity is an append-only audit record written by the fraud
// heuristic. It never blocks a contribution.
type SuspiciousActivity struct {
	ID          uuid.UUID       `json:"id"`
	CampaignID  uuid.UUID       `json:"campaign_id"`
	FromAddress string          `json:"from_address"`
	Amount      decimal.Decimal `json:"amount"`
	Reasons     []string        `json:"reasons"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PurchaseAttempt is an append-only record of every purchase attempt,
// successful or not.
type PurchaseAttempt struct {
	ID                uuid.UUID  `json:"id"`
	CampaignID        uuid.UUID  `json:"campaign_id"`
	Success           bool       `json:"success"`
	Retryable         bool       `json:"retryable"`
	Error             *string    `json:"error,omitempty"`
	PaymentTxRef      *string    `json:"payment_tx_ref,omitempty"`
	ServiceID         *uuid.UUID `json:"service_id,omitempty"`
	NeedsManualReview bool       `json:"needs_manual_review"`
	CreatedAt         time.Time  `json:"created_at"`
}
