package repositories

import (
	"context"
	"time"

	"github.com/campfund/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type ContributionRepo struct {
	pool *pgxpool.Pool
}

func NewContributionRepo(pool *pgxpool.Pool) *ContributionRepo {
	return &ContributionRepo{pool: pool}
}

func (r *ContributionRepo) Create(ctx context.Context, c *models.Contribution) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO contributions (campaign_id, from_address, amount, tx_ref, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, c.CampaignID, c.FromAddress, c.Amount, c.TxRef, c.Status).Scan(&c.ID, &c.CreatedAt)
}

func (r *ContributionRepo) GetByTxRef(ctx context.Context, txRef string) (*models.Contribution, error) {
	var c models.Contribution
	err := r.pool.QueryRow(ctx, `
		SELECT id, campaign_id, from_address, amount, tx_ref, status, refunded, refund_tx_ref, created_at
		FROM contributions WHERE tx_ref = $1
	`, txRef).Scan(&c.ID, &c.CampaignID, &c.FromAddress, &c.Amount, &c.TxRef,
		&c.Status, &c.Refunded, &c.RefundTxRef, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListRefundable returns confirmed, not yet refunded contributions for
// the campaign, oldest first.
func (r *ContributionRepo) ListRefundable(ctx context.Context, campaignID uuid.UUID) ([]models.Contribution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, campaign_id, from_address, amount, tx_ref, status, refunded, refund_tx_ref, created_at
		FROM contributions
		WHERE campaign_id = $1 AND status = $2 AND refunded = false
		ORDER BY created_at
	`, campaignID, models.ContributionStatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contribution
	for rows.Next() {
		var c models.Contribution
		if err := rows.Scan(&c.ID, &c.CampaignID, &c.FromAddress, &c.Amount, &c.TxRef,
			&c.Status, &c.Refunded, &c.RefundTxRef, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// MarkRefunded flips the refunded flag exactly once. The refunded=false
// guard in the predicate makes a second call for the same contribution
// a no-op, which is what keeps refunds single-shot.
func (r *ContributionRepo) MarkRefunded(ctx context.Context, id uuid.UUID, refundTxRef string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contributions SET refunded = true, refund_tx_ref = $1
		WHERE id = $2 AND refunded = false
	`, refundTxRef, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CountByAddressSince counts the sender's contributions created after
// the given instant. Used by the fraud heuristic's burst check.
func (r *ContributionRepo) CountByAddressSince(ctx context.Context, address string, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM contributions WHERE from_address = $1 AND created_at >= $2
	`, address, since).Scan(&n)
	return n, err
}

func (r *ContributionRepo) SumConfirmedByAddress(ctx context.Context, address string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(sum(amount), 0) FROM contributions
		WHERE from_address = $1 AND status = $2
	`, address, models.ContributionStatusConfirmed).Scan(&sum)
	return sum, err
}

func (r *ContributionRepo) CountDistinctCampaignsByAddress(ctx context.Context, address string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(DISTINCT campaign_id) FROM contributions WHERE from_address = $1
	`, address).Scan(&n)
	return n, err
}

// SumConfirmedByCampaign re-derives the campaign total from confirmed
// contribution rows. Reconciliation compares this and the on-chain
// balance against the stored current_amount.
func (r *ContributionRepo) SumConfirmedByCampaign(ctx context.Context, campaignID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(sum(amount), 0) FROM contributions
		WHERE campaign_id = $1 AND status = $2
	`, campaignID, models.ContributionStatusConfirmed).Scan(&sum)
	return sum, err
}
