package dto

import "time"

type TokenResponse struct {
	Token string `json:"token"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type WebhookResponse struct {
	Success   bool      `json:"success"`
	Processed int       `json:"processed"`
	Timestamp time.Time `json:"timestamp"`
}

type CampaignFundingResponse struct {
	CampaignID    string `json:"campaign_id"`
	WalletAddress string `json:"wallet_address"`
	CurrentAmount string `json:"current_amount"`
	TargetAmount  string `json:"target_amount"`
	Status        string `json:"status"`
}
