package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger transaction kinds
const (
	LedgerTxKindContribution    = "contribution"
	LedgerTxKindRefund          = "refund"
	LedgerTxKindServicePurchase = "service_purchase"
)

// Ledger transaction statuses
const (
	LedgerTxStatusConfirmed = "confirmed"
	LedgerTxStatusFailed    = "failed"
)

// LedgerTransaction records one verified on-chain event. TxRef carries a
// unique constraint and is the durable idempotency key: an insert that
// conflicts means the event was already processed.
type LedgerTransaction struct {
	ID          uuid.UUID       `json:"id"`
	CampaignID  uuid.UUID       `json:"campaign_id"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	TxRef       string          `json:"tx_ref"`
	Status      string          `json:"status"`
	FromAddress string          `json:"from_address"`
	ToAddress   string          `json:"to_address"`
	CreatedAt   time.Time       `json:"created_at"`
}
