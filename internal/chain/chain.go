package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is one asset movement extracted from a transaction.
// AssetID is empty for native-asset transfers and carries the token
// master address for token transfers.
type Transfer struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Amount  decimal.Decimal `json:"amount"`
	AssetID string          `json:"asset_id,omitempty"`
}

// TxDetail is the provider-independent view of one on-chain transaction.
type TxDetail struct {
	TxRef           string     `json:"tx_ref"`
	Seqno           uint64     `json:"seqno"`
	Timestamp       time.Time  `json:"timestamp"`
	NativeTransfers []Transfer `json:"native_transfers"`
	TokenTransfers  []Transfer `json:"token_transfers"`
}

// Gateway is the custodial wallet capability: resolve a campaign's
// deposit address, sign and submit outgoing transfers, read balances.
type Gateway interface {
	ResolveAddress(ctx context.Context, campaignID uuid.UUID) (string, error)
	Transfer(ctx context.Context, campaignID uuid.UUID, toAddress string, amount decimal.Decimal) (string, error)
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// FormatTxRef encodes a transaction reference as "<lt>:<hash hex>".
func FormatTxRef(lt uint64, hash []byte) string {
	return fmt.Sprintf("%d:%s", lt, hex.EncodeToString(hash))
}

// ParseTxRef decodes a reference produced by FormatTxRef.
func ParseTxRef(ref string) (uint64, []byte, error) {
	parts := strings.SplitN(ref, ":", 2)
	if len(parts) != 2 {
		return 0, nil, fmt.Errorf("invalid tx ref %q", ref)
	}
	lt, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid tx ref lt %q: %w", parts[0], err)
	}
	hash, err := hex.DecodeString(parts[1])
	if err != nil {
		return 0, nil, fmt.Errorf("invalid tx ref hash %q: %w", parts[1], err)
	}
	return lt, hash, nil
}

// DecimalFromNano converts nanoTON to a decimal TON amount.
func DecimalFromNano(nano *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(nano, -9)
}

// NanoFromDecimal converts a decimal TON amount to nanoTON, truncating
// anything below 1 nano.
func NanoFromDecimal(d decimal.Decimal) *big.Int {
	return d.Shift(9).Truncate(0).BigInt()
}
