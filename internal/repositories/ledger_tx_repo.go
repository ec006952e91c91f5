package repositories

import (
	"context"

	"github.com/campfund/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LedgerTxRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerTxRepo(pool *pgxpool.Pool) *LedgerTxRepo {
	return &LedgerTxRepo{pool: pool}
}

// Insert records a verified on-chain event. tx_ref is unique, so a
// duplicate insert is silently skipped and reported via the return
// value. This is the durable half of the idempotency guarantee.
func (r *LedgerTxRepo) Insert(ctx context.Context, t *models.LedgerTransaction) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO ledger_transactions (campaign_id, kind, amount, tx_ref, status, from_address, to_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tx_ref) DO NOTHING
	`, t.CampaignID, t.Kind, t.Amount, t.TxRef, t.Status, t.FromAddress, t.ToAddress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LedgerTxRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]models.LedgerTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, campaign_id, kind, amount, tx_ref, status, from_address, to_address, created_at
		FROM ledger_transactions
		WHERE campaign_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LedgerTransaction
	for rows.Next() {
		var t models.LedgerTransaction
		if err := rows.Scan(&t.ID, &t.CampaignID, &t.Kind, &t.Amount, &t.TxRef,
			&t.Status, &t.FromAddress, &t.ToAddress, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
