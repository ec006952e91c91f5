package models

import (
	"time"

	"github.com/google/uuid"
)

// Service statuses
const (
	ServiceStatusPending = "pending"
	ServiceStatusActive  = "active"
	ServiceStatusFailed  = "failed"
)

// Service is the marketplace purchase made for a completed campaign.
// Created exactly once per successfully completed campaign.
type Service struct {
	ID          uuid.UUID      `json:"id"`
	CampaignID  uuid.UUID      `json:"campaign_id"`
	Kind        CampaignKind   `json:"kind"`
	ExternalID  string         `json:"external_id"`
	Details     map[string]any `json:"details,omitempty"`
	Status      string         `json:"status"`
	PurchasedAt time.Time      `json:"purchased_at"`
}
