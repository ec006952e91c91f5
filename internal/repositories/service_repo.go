package repositories

import (
	"context"

	"github.com/campfund/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ServiceRepo struct {
	pool *pgxpool.Pool
}

func NewServiceRepo(pool *pgxpool.Pool) *ServiceRepo {
	return &ServiceRepo{pool: pool}
}

func (r *ServiceRepo) Create(ctx context.Context, s *models.Service) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO services (campaign_id, kind, external_id, details, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, purchased_at
	`, s.CampaignID, s.Kind, s.ExternalID, s.Details, s.Status).Scan(&s.ID, &s.PurchasedAt)
}

// GetActiveByCampaign returns the campaign's pending or active service,
// or nil when the campaign has never been purchased.
func (r *ServiceRepo) GetActiveByCampaign(ctx context.Context, campaignID uuid.UUID) (*models.Service, error) {
	var s models.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, campaign_id, kind, external_id, details, status, purchased_at
		FROM services
		WHERE campaign_id = $1 AND status IN ($2, $3)
		ORDER BY purchased_at DESC
		LIMIT 1
	`, campaignID, models.ServiceStatusPending, models.ServiceStatusActive,
	).Scan(&s.ID, &s.CampaignID, &s.Kind, &s.ExternalID, &s.Details, &s.Status, &s.PurchasedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ServiceRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE services SET status = $1 WHERE id = $2`, status, id)
	return err
}
