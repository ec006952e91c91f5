package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/campfund/backend/internal/chain"
	"github.com/campfund/backend/internal/config"
	"github.com/campfund/backend/internal/db"
	"github.com/campfund/backend/internal/events"
	"github.com/campfund/backend/internal/models"
	"github.com/campfund/backend/internal/repositories"
	"github.com/campfund/backend/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

const (
	cursorKeyPrefix = "chain-poller:cursor:"
	txBatchSize     = 100
)

// The chain poller is the second ingestion path, independent of the
// webhook provider: it walks each open campaign wallet's transaction
// history and feeds new inbound transfers into the same ingest
// pipeline. The verifier's idempotency guards make the overlap with
// webhook delivery harmless.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns), log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	api, err := chain.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to TON network", zap.Error(err))
	}

	campaignRepo := repositories.NewCampaignRepo(pool)
	contributionRepo := repositories.NewContributionRepo(pool)
	ledgerRepo := repositories.NewLedgerTxRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)

	dispatcher := services.NewDispatcher(ctx, log)
	refs := services.NewRedisRefRegistry(rdb)
	enriched := chain.NewEnrichedClient(cfg.EnrichedAPIBaseURL, cfg.EnrichedAPIKey, cfg.EnrichedTimeoutMS, cfg.EnrichedMaxRetries, log)
	raw := chain.NewRawClient(api, log)

	verifier := services.NewVerifierService(campaignRepo, ledgerRepo, refs, enriched, raw, cfg, log)
	fraud := services.NewFraudService(contributionRepo, auditRepo, log)
	funding := services.NewFundingService(campaignRepo, auditRepo, dispatcher, publisher, log)
	ingest := services.NewIngestService(campaignRepo, contributionRepo, verifier, fraud, funding, publisher, log)

	log.Info("chain poller started",
		zap.String("network", cfg.TONNetwork),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := pollAll(ctx, api, campaignRepo, ingest, rdb, log); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down chain poller")
			cancel()
			dispatcher.Wait()
			return
		case <-ctx.Done():
			dispatcher.Wait()
			return
		}
	}
}

// pollAll walks the wallets of every campaign still accepting funds.
func pollAll(
	ctx context.Context,
	api ton.APIClientWrapped,
	campaignRepo *repositories.CampaignRepo,
	ingest *services.IngestService,
	rdb *redis.Client,
	log *zap.Logger,
) error {
	campaigns, err := campaignRepo.ListByStatuses(ctx, models.CampaignStatusActive, models.CampaignStatusFunded)
	if err != nil {
		return fmt.Errorf("list open campaigns: %w", err)
	}

	for _, c := range campaigns {
		if err := pollWallet(ctx, api, c.WalletAddress, ingest, rdb, log); err != nil {
			log.Error("poll wallet failed",
				zap.String("campaign_id", c.ID.String()),
				zap.String("wallet", c.WalletAddress),
				zap.Error(err),
			)
		}
	}
	return nil
}

func pollWallet(
	ctx context.Context,
	api ton.APIClientWrapped,
	walletAddress string,
	ingest *services.IngestService,
	rdb *redis.Client,
	log *zap.Logger,
) error {
	addr, err := address.ParseAddr(walletAddress)
	if err != nil {
		return fmt.Errorf("parse wallet address: %w", err)
	}

	block, err := api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return fmt.Errorf("get master block: %w", err)
	}

	account, err := api.GetAccount(ctx, block, addr)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		return nil
	}

	cursorLT, seen := loadCursor(ctx, rdb, walletAddress)
	if !seen {
		// First sight of this wallet: start at its current state so
		// historical transactions (already handled via webhook, or
		// predating the campaign) are not replayed.
		saveCursor(ctx, rdb, walletAddress, account.LastTxLT, account.LastTxHash)
		log.Info("cursor initialized",
			zap.String("wallet", walletAddress),
			zap.Uint64("lt", account.LastTxLT),
		)
		return nil
	}

	if account.LastTxLT <= cursorLT {
		return nil
	}

	newTxs, err := fetchNewTransactions(ctx, api, addr, account, cursorLT)
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}

	batch := buildNotifications(newTxs)
	if len(batch) > 0 {
		log.Info("new wallet activity",
			zap.String("wallet", walletAddress),
			zap.Int("transactions", len(batch)),
		)
		ingest.ProcessBatch(ctx, batch)
	}

	saveCursor(ctx, rdb, walletAddress, account.LastTxLT, account.LastTxHash)
	return nil
}

// fetchNewTransactions retrieves all transactions with LT > cursorLT.
// ListTransactions paginates backwards from the account head; we stop
// once the cursor is reached and return in chronological order.
func fetchNewTransactions(
	ctx context.Context,
	api ton.APIClientWrapped,
	addr *address.Address,
	account *tlb.Account,
	cursorLT uint64,
) ([]*tlb.Transaction, error) {
	var allTxs []*tlb.Transaction

	lt := account.LastTxLT
	hash := account.LastTxHash

	for {
		txs, err := api.ListTransactions(ctx, addr, uint32(txBatchSize), lt, hash)
		if err != nil {
			return nil, fmt.Errorf("list transactions (lt=%d): %w", lt, err)
		}
		if len(txs) == 0 {
			break
		}

		reachedCursor := false
		for _, tx := range txs {
			if tx.LT <= cursorLT {
				reachedCursor = true
				continue
			}
			allTxs = append(allTxs, tx)
		}

		if reachedCursor || len(txs) < txBatchSize {
			break
		}

		oldest := txs[0]
		if oldest.PrevTxLT == 0 {
			break
		}
		lt = oldest.PrevTxLT
		hash = oldest.PrevTxHash
	}

	sort.Slice(allTxs, func(i, j int) bool {
		return allTxs[i].LT < allTxs[j].LT
	})

	return allTxs, nil
}

// buildNotifications converts raw ledger transactions into the same
// shape the webhook provider delivers. Outbound, bounced and zero-value
// messages carry no contribution and are dropped here.
func buildNotifications(txs []*tlb.Transaction) []services.TxNotification {
	var batch []services.TxNotification
	for _, tx := range txs {
		if tx.IO.In == nil {
			continue
		}
		inMsg, ok := tx.IO.In.Msg.(*tlb.InternalMessage)
		if !ok || inMsg == nil || inMsg.Bounced {
			continue
		}
		if inMsg.Amount.Nano().Sign() <= 0 {
			continue
		}

		batch = append(batch, services.TxNotification{
			TxRef:     chain.FormatTxRef(tx.LT, tx.Hash),
			Timestamp: int64(tx.Now),
			NativeTransfers: []services.TransferNotice{
				{
					From:   inMsg.SrcAddr.String(),
					To:     inMsg.DstAddr.String(),
					Amount: chain.DecimalFromNano(inMsg.Amount.Nano()),
				},
			},
		})
	}
	return batch
}

func loadCursor(ctx context.Context, rdb *redis.Client, wallet string) (uint64, bool) {
	val, err := rdb.Get(ctx, cursorKeyPrefix+wallet+":lt").Result()
	if err != nil || val == "" {
		return 0, false
	}
	lt, _ := strconv.ParseUint(val, 10, 64)
	return lt, true
}

func saveCursor(ctx context.Context, rdb *redis.Client, wallet string, lt uint64, hash []byte) {
	rdb.Set(ctx, cursorKeyPrefix+wallet+":lt", strconv.FormatUint(lt, 10), 0)
	rdb.Set(ctx, cursorKeyPrefix+wallet+":hash", hex.EncodeToString(hash), 0)
}
