package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/campfund/backend/internal/config"
	"github.com/campfund/backend/internal/db"
	"github.com/campfund/backend/internal/events"
	"go.uber.org/zap"
)

// Notifier subscribes to engine events and forwards notable ones to
// an external notification endpoint (chat bot, alerting webhook, CRM).

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.NotifyWebhookURL == "" {
		log.Fatal("NOTIFY_WEBHOOK_URL is required")
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)

	log.Info("notifier started", zap.String("target", cfg.NotifyWebhookURL))

	_ = subscriber.Subscribe(ctx, events.StreamCampaign, func(event events.Event) {
		if !notable(event.Type) {
			return
		}
		log.Info("forwarding event", zap.String("type", event.Type))
		forward(cfg.NotifyWebhookURL, event, log)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notifier")
	cancel()
}

// notable filters the stream down to events an operator cares about.
// Contribution-level noise stays on the websocket only.
func notable(eventType string) bool {
	switch eventType {
	case events.EventCampaignFunded,
		events.EventCampaignFailed,
		events.EventPurchaseCompleted,
		events.EventPurchaseFailed,
		events.EventBalanceCorrected:
		return true
	}
	return false
}

func forward(baseURL string, event events.Event, log *zap.Logger) {
	body, _ := json.Marshal(map[string]any{
		"type":    event.Type,
		"payload": event.Payload,
	})

	url := strings.TrimRight(baseURL, "/") + "/notify"
	resp, err := http.Post(url, "application/json", strings.NewReader(string(body)))
	if err != nil {
		log.Warn("failed to forward notification", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn(fmt.Sprintf("notification endpoint returned %d", resp.StatusCode))
	}
}
