package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/campfund/backend/internal/config"
	"github.com/campfund/backend/internal/http/dto"
	"github.com/campfund/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WebhookHandler receives transaction notification batches from the
// chain data provider.
type WebhookHandler struct {
	cfg    *config.Config
	ingest *services.IngestService
	log    *zap.Logger
}

func NewWebhookHandler(cfg *config.Config, ingest *services.IngestService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, ingest: ingest, log: log}
}

// HandleTransactions verifies the batch signature and hands the batch
// to ingestion. The response reports how many items were processed; a
// partially failed batch is still a 200 so the provider does not
// redeliver items that already went through.
func (h *WebhookHandler) HandleTransactions(c *fiber.Ctx) error {
	body := c.Body()

	if !h.verifySignature(body, c.Get("X-Signature")) {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid signature"})
	}

	var batch dto.WebhookBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "body must be a JSON array of transaction notifications"})
	}

	processed := h.ingest.ProcessBatch(c.Context(), batch)

	h.log.Info("webhook batch handled",
		zap.Int("received", len(batch)),
		zap.Int("processed", processed),
	)

	return c.JSON(dto.WebhookResponse{
		Success:   true,
		Processed: processed,
		Timestamp: time.Now().UTC(),
	})
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if h.cfg.WebhookSecret == "" {
		// Development mode: no secret configured, accept unsigned.
		h.log.Warn("accepting unsigned webhook (no WEBHOOK_SECRET)")
		return true
	}
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
