package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/campfund/backend/internal/config"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

// Connect establishes a connection to the TON network.
// If a primary lite server is configured it is used first, with the
// fallback server added when the primary is unreachable. With no
// explicit servers, lite servers are auto-discovered from the global
// TON config based on the network.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (ton.APIClientWrapped, error) {
	client := liteclient.NewConnectionPool()

	if cfg.LiteServerHost != "" && cfg.LiteServerKey != "" {
		addr := fmt.Sprintf("%s:%d", cfg.LiteServerHost, cfg.LiteServerPort)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := client.AddConnection(ctx, addr, cfg.LiteServerKey); err != nil {
			if cfg.LiteServerFallbackHost == "" || cfg.LiteServerFallbackKey == "" {
				return nil, fmt.Errorf("connect to lite server %s: %w", addr, err)
			}
			fallbackAddr := fmt.Sprintf("%s:%d", cfg.LiteServerFallbackHost, cfg.LiteServerFallbackPort)
			log.Warn("primary lite server unreachable, trying fallback",
				zap.String("primary", addr),
				zap.String("fallback", fallbackAddr),
				zap.Error(err),
			)
			if err := client.AddConnection(ctx, fallbackAddr, cfg.LiteServerFallbackKey); err != nil {
				return nil, fmt.Errorf("connect to fallback lite server %s: %w", fallbackAddr, err)
			}
		}
	} else {
		var configURL string
		switch strings.ToLower(cfg.TONNetwork) {
		case "mainnet":
			configURL = "https://ton.org/global.config.json"
		default:
			configURL = "https://ton.org/testnet-global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", cfg.TONNetwork))
		if err := client.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
		}
	}

	proofPolicy := ton.ProofCheckPolicyFast
	if strings.ToLower(cfg.TONNetwork) == "mainnet" {
		proofPolicy = ton.ProofCheckPolicySecure
	}

	return ton.NewAPIClient(client, proofPolicy).WithRetry(), nil
}
