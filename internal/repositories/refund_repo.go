package repositories

import (
	"context"

	"github.com/campfund/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RefundRepo struct {
	pool *pgxpool.Pool
}

func NewRefundRepo(pool *pgxpool.Pool) *RefundRepo {
	return &RefundRepo{pool: pool}
}

func (r *RefundRepo) Create(ctx context.Context, ref *models.Refund) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO refunds (contribution_id, campaign_id, amount, recipient_address, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, ref.ContributionID, ref.CampaignID, ref.Amount, ref.RecipientAddress, ref.Status, ref.Reason,
	).Scan(&ref.ID, &ref.CreatedAt, &ref.UpdatedAt)
}

func (r *RefundRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refunds SET status = $1, updated_at = now() WHERE id = $2
	`, models.RefundStatusProcessing, id)
	return err
}

func (r *RefundRepo) MarkCompleted(ctx context.Context, id uuid.UUID, txRef string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refunds SET status = $1, tx_ref = $2, updated_at = now() WHERE id = $3
	`, models.RefundStatusCompleted, txRef, id)
	return err
}

func (r *RefundRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refunds SET status = $1, reason = $2, updated_at = now() WHERE id = $3
	`, models.RefundStatusFailed, reason, id)
	return err
}

// HasCompletedForContribution reports whether the contribution already
// received a completed refund. Read-time guard against double payout.
func (r *RefundRepo) HasCompletedForContribution(ctx context.Context, contributionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM refunds
			WHERE contribution_id = $1 AND status = $2
		)
	`, contributionID, models.RefundStatusCompleted).Scan(&exists)
	return exists, err
}

func (r *RefundRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Refund, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, contribution_id, campaign_id, amount, recipient_address, status, tx_ref, reason, created_at, updated_at
		FROM refunds WHERE campaign_id = $1 ORDER BY created_at
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Refund
	for rows.Next() {
		var ref models.Refund
		if err := rows.Scan(&ref.ID, &ref.ContributionID, &ref.CampaignID, &ref.Amount,
			&ref.RecipientAddress, &ref.Status, &ref.TxRef, &ref.Reason,
			&ref.CreatedAt, &ref.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}
