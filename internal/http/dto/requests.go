package dto

import (
	"time"

	"github.com/campfund/backend/internal/services"
)

type TokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	APIKey string `json:"api_key"`
}

type CreateCampaignRequest struct {
	Title        string         `json:"title"`
	Kind         string         `json:"kind"` // enhanced_info / advertising / boost
	TargetAmount string         `json:"target_amount"`
	Deadline     time.Time      `json:"deadline"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// WebhookBatch is the payload delivered by the transaction
// notification provider: a bare JSON array of notifications.
type WebhookBatch []services.TxNotification

type OverrideStatusRequest struct {
	Status string `json:"status"`
}
