package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/campfund/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

const campaignColumns = `id, creator_user_id, title, kind, wallet_address,
       target_amount, current_amount, deadline, status, service_id, metadata,
       created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(&c.ID, &c.CreatorUserID, &c.Title, &c.Kind, &c.WalletAddress,
		&c.TargetAmount, &c.CurrentAmount, &c.Deadline, &c.Status, &c.ServiceID,
		&c.Metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (creator_user_id, title, kind, wallet_address, target_amount, deadline, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, current_amount, created_at, updated_at
	`, c.CreatorUserID, c.Title, c.Kind, c.WalletAddress, c.TargetAmount, c.Deadline, c.Status, c.Metadata,
	).Scan(&c.ID, &c.CurrentAmount, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return scanCampaign(r.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
}

// GetByWalletAddress is the point lookup used to attribute an incoming
// transfer to a campaign. A miss is (nil, nil), not an error: most
// transfers on a watched chain do not target a campaign wallet.
func (r *CampaignRepo) GetByWalletAddress(ctx context.Context, address string) (*models.Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE wallet_address = $1`, address))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AddToCurrentAmount atomically adds delta to the campaign balance and
// returns the post-update snapshot.
func (r *CampaignRepo) AddToCurrentAmount(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*models.CampaignBalance, error) {
	var b models.CampaignBalance
	err := r.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET current_amount = current_amount + $1, updated_at = now()
		WHERE id = $2
		RETURNING current_amount, target_amount, status
	`, delta, id).Scan(&b.CurrentAmount, &b.TargetAmount, &b.Status)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SetCurrentAmount overwrites the stored balance. Used only by
// reconciliation, which re-derives the value from the ledger of record.
func (r *CampaignRepo) SetCurrentAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET current_amount = $1, updated_at = now() WHERE id = $2
	`, amount, id)
	return err
}

// UpdateStatusIf performs a conditional status transition. It reports
// whether this caller won the transition, so concurrent callers cannot
// both act on the same edge.
func (r *CampaignRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CampaignRepo) SetServiceID(ctx context.Context, id, serviceID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET service_id = $1, updated_at = now() WHERE id = $2
	`, serviceID, id)
	return err
}

// ListExpiredUnderfunded returns active campaigns whose deadline has
// passed without the target being reached.
func (r *CampaignRepo) ListExpiredUnderfunded(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE status = $1 AND deadline < $2 AND current_amount < target_amount
	`, models.CampaignStatusActive, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

func (r *CampaignRepo) ListByStatuses(ctx context.Context, statuses ...string) ([]models.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+` FROM campaigns WHERE status = ANY($1)
	`, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

type CampaignFilter struct {
	CreatorUserID *uuid.UUID
	Status        *string
	Limit         int
	Offset        int
}

func (r *CampaignRepo) List(ctx context.Context, f CampaignFilter) ([]models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	args := []any{}
	i := 1

	if f.CreatorUserID != nil {
		query += fmt.Sprintf(" AND creator_user_id = $%d", i)
		args = append(args, *f.CreatorUserID)
		i++
	}
	if f.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", i)
		args = append(args, *f.Status)
		i++
	}

	query += " ORDER BY created_at DESC"
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", i, i+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

type pgxRows interface {
	Next() bool
	Scan(...any) error
}

func collectCampaigns(rows pgxRows) ([]models.Campaign, error) {
	var out []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}
