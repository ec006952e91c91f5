package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrTxNotFound means the provider does not know the transaction. This
// is terminal for the reference, not a provider outage.
var ErrTxNotFound = errors.New("transaction not found")

// EnrichedClient fetches pre-parsed transaction detail from the
// enriched provider API. Transport failures are retried with a short
// backoff; callers fall back to the raw ledger when it stays down.
type EnrichedClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	log        *zap.Logger
}

func NewEnrichedClient(baseURL, apiKey string, timeoutMS, maxRetries int, log *zap.Logger) *EnrichedClient {
	return &EnrichedClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
		maxRetries: maxRetries,
		log:        log,
	}
}

func (c *EnrichedClient) GetTransaction(ctx context.Context, txRef string) (*TxDetail, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("enriched provider not configured")
	}

	url := fmt.Sprintf("%s/v1/transactions/%s", c.baseURL, txRef)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return nil, ErrTxNotFound
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("enriched provider returned %d for %s", resp.StatusCode, txRef)
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		var raw struct {
			TxRef           string     `json:"tx_ref"`
			Seqno           uint64     `json:"seqno"`
			Timestamp       int64      `json:"timestamp"`
			NativeTransfers []Transfer `json:"native_transfers"`
			TokenTransfers  []Transfer `json:"token_transfers"`
		}
		err = json.NewDecoder(resp.Body).Decode(&raw)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode enriched tx %s: %w", txRef, err)
		}

		return &TxDetail{
			TxRef:           raw.TxRef,
			Seqno:           raw.Seqno,
			Timestamp:       time.Unix(raw.Timestamp, 0),
			NativeTransfers: raw.NativeTransfers,
			TokenTransfers:  raw.TokenTransfers,
		}, nil
	}

	return nil, fmt.Errorf("enriched provider unavailable: %w", lastErr)
}
