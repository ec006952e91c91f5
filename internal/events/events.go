package events

import "context"

// StreamCampaign carries all engine events.
const StreamCampaign = "events:campaign"

// Event types
const (
	EventContributionConfirmed = "contribution_confirmed"
	EventCampaignFunded        = "campaign_funded"
	EventPurchaseCompleted     = "purchase_completed"
	EventPurchaseFailed        = "purchase_failed"
	EventRefundCompleted       = "refund_completed"
	EventBalanceCorrected      = "balance_corrected"
	EventCampaignFailed        = "campaign_failed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
