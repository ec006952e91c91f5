package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

// RawClient resolves transaction detail straight from the ledger via
// lite servers. Used when the enriched provider is unavailable. Only
// native transfers are visible at this level; token transfers require
// the enriched provider.
type RawClient struct {
	api ton.APIClientWrapped
	log *zap.Logger
}

func NewRawClient(api ton.APIClientWrapped, log *zap.Logger) *RawClient {
	return &RawClient{api: api, log: log}
}

// GetTransaction loads the transaction identified by txRef from the
// given account's history.
func (c *RawClient) GetTransaction(ctx context.Context, accountAddr, txRef string) (*TxDetail, error) {
	lt, hash, err := ParseTxRef(txRef)
	if err != nil {
		return nil, err
	}

	addr, err := address.ParseAddr(accountAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid account address %q: %w", accountAddr, err)
	}

	txs, err := c.api.ListTransactions(ctx, addr, 1, lt, hash)
	if err != nil {
		return nil, fmt.Errorf("list transactions (lt=%d): %w", lt, err)
	}
	if len(txs) == 0 {
		return nil, ErrTxNotFound
	}

	tx := txs[0]
	detail := &TxDetail{
		TxRef:     txRef,
		Seqno:     tx.LT,
		Timestamp: time.Unix(int64(tx.Now), 0),
	}

	if tx.IO.In != nil {
		if inMsg, ok := tx.IO.In.Msg.(*tlb.InternalMessage); ok && inMsg != nil && !inMsg.Bounced {
			if inMsg.Amount.Nano().Sign() > 0 {
				detail.NativeTransfers = append(detail.NativeTransfers, Transfer{
					From:   inMsg.SrcAddr.String(),
					To:     accountAddr,
					Amount: DecimalFromNano(inMsg.Amount.Nano()),
				})
			}
		}
	}

	return detail, nil
}
