package chain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"go.uber.org/zap"
)

// TONGateway implements Gateway over a custodial master wallet.
// Each campaign gets a deterministic subwallet derived from its id, so
// deposit addresses are stable without storing keys per campaign.
type TONGateway struct {
	api    ton.APIClientWrapped
	master *wallet.Wallet
	log    *zap.Logger

	mu         sync.Mutex
	subwallets map[uint32]*wallet.Wallet
}

func NewTONGateway(api ton.APIClientWrapped, seed string, log *zap.Logger) (*TONGateway, error) {
	words := strings.Fields(seed)
	if len(words) == 0 {
		return nil, fmt.Errorf("empty custody seed")
	}

	master, err := wallet.FromSeed(api, words, wallet.V4R2)
	if err != nil {
		return nil, fmt.Errorf("derive master wallet: %w", err)
	}

	return &TONGateway{
		api:        api,
		master:     master,
		log:        log,
		subwallets: make(map[uint32]*wallet.Wallet),
	}, nil
}

// subwalletID maps a campaign id onto a stable subwallet id.
func subwalletID(campaignID uuid.UUID) uint32 {
	sum := sha256.Sum256(campaignID[:])
	// Keep the reserved default subwallet (698983191) for the master.
	id := binary.BigEndian.Uint32(sum[:4])
	if id == wallet.DefaultSubwallet {
		id++
	}
	return id
}

func (g *TONGateway) campaignWallet(campaignID uuid.UUID) (*wallet.Wallet, error) {
	id := subwalletID(campaignID)

	g.mu.Lock()
	defer g.mu.Unlock()

	if w, ok := g.subwallets[id]; ok {
		return w, nil
	}
	w, err := g.master.GetSubwallet(id)
	if err != nil {
		return nil, fmt.Errorf("derive subwallet %d: %w", id, err)
	}
	g.subwallets[id] = w
	return w, nil
}

func (g *TONGateway) ResolveAddress(ctx context.Context, campaignID uuid.UUID) (string, error) {
	w, err := g.campaignWallet(campaignID)
	if err != nil {
		return "", err
	}
	return w.WalletAddress().String(), nil
}

func (g *TONGateway) Transfer(ctx context.Context, campaignID uuid.UUID, toAddress string, amount decimal.Decimal) (string, error) {
	w, err := g.campaignWallet(campaignID)
	if err != nil {
		return "", err
	}

	to, err := address.ParseAddr(toAddress)
	if err != nil {
		return "", fmt.Errorf("invalid destination address %q: %w", toAddress, err)
	}

	coins := tlb.FromNanoTON(NanoFromDecimal(amount))
	msg, err := w.BuildTransfer(to, coins, false, fmt.Sprintf("campaign:%s", campaignID))
	if err != nil {
		return "", fmt.Errorf("build transfer: %w", err)
	}

	tx, _, err := w.SendWaitTransaction(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("submit transfer: %w", err)
	}

	ref := FormatTxRef(tx.LT, tx.Hash)
	g.log.Info("transfer submitted",
		zap.String("campaign_id", campaignID.String()),
		zap.String("to", toAddress),
		zap.String("amount", amount.String()),
		zap.String("tx_ref", ref),
	)
	return ref, nil
}

func (g *TONGateway) GetBalance(ctx context.Context, addr string) (decimal.Decimal, error) {
	parsed, err := address.ParseAddr(addr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	block, err := g.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get master block: %w", err)
	}

	account, err := g.api.GetAccount(ctx, block, parsed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get account: %w", err)
	}

	if account == nil || !account.IsActive || account.State == nil {
		return decimal.Zero, nil
	}
	return DecimalFromNano(account.State.Balance.Nano()), nil
}
