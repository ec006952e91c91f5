package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/campfund/backend/internal/models"
	"go.uber.org/zap"
)

// SubmitResult is the marketplace's answer to an order submission.
type SubmitResult struct {
	Success   bool   `json:"success"`
	ServiceID string `json:"service_id"`
	Error     string `json:"error,omitempty"`
}

// MarketplaceClient submits purchase orders to the external service
// marketplace over HTTP. Payment happens before submission, so the
// caller decides what a failure here means.
type MarketplaceClient struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewMarketplaceClient(baseURL string, log *zap.Logger) *MarketplaceClient {
	return &MarketplaceClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

type submitRequest struct {
	CampaignID   string         `json:"campaign_id"`
	Kind         string         `json:"kind"`
	Amount       string         `json:"amount"`
	PaymentTxRef string         `json:"payment_tx_ref"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func (c *MarketplaceClient) Submit(ctx context.Context, campaign *models.Campaign, paymentTxRef string) (*SubmitResult, error) {
	body, err := json.Marshal(submitRequest{
		CampaignID:   campaign.ID.String(),
		Kind:         string(campaign.Kind),
		Amount:       campaign.TargetAmount.String(),
		PaymentTxRef: paymentTxRef,
		Metadata:     campaign.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/purchases", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("marketplace returned status %d", resp.StatusCode)
	}

	var result SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode marketplace response: %w", err)
	}

	c.log.Info("order submitted",
		zap.String("campaign_id", campaign.ID.String()),
		zap.Bool("success", result.Success),
		zap.String("service_id", result.ServiceID),
	)
	return &result, nil
}
