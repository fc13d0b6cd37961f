package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"lmdPortal/models"
)

// PickupRepository handles Pickup rows.
type PickupRepository struct {
	db *gorm.DB
}

// NewPickupRepository creates a new PickupRepository.
func NewPickupRepository(db *gorm.DB) *PickupRepository {
	return &PickupRepository{db: db}
}

// Create inserts a new pickup request.
func (r *PickupRepository) Create(ctx context.Context, p *models.Pickup) error {
	if p == nil {
		return errors.New("pickup is nil")
	}
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	return q.Create(p).Error
}

// GetByID fetches a pickup by id. Returns (nil, nil) when missing.
func (r *PickupRepository) GetByID(ctx context.Context, id string) (*models.Pickup, error) {
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	var p models.Pickup
	if err := q.Where("id = ?", id).Take(&p).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &p, nil
}

// UpdateIfNotTerminal applies updates while the pickup is not Picked or
// Failed. It reports false when no such row exists.
func (r *PickupRepository) UpdateIfNotTerminal(ctx context.Context, id string, updates map[string]any) (bool, error) {
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	updates["updated_at"] = time.Now().UTC()
	res := q.Model(&models.Pickup{}).
		Where("id = ? AND status NOT IN ?", id, []string{string(models.PickupStatusPicked), string(models.PickupStatusFailed)}).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListPickupsParams represents filters and pagination for List.
type ListPickupsParams struct {
	Page    int
	Limit   int
	Status  *models.PickupStatus
	RiderID string
	Search  string // substring of request id, customer name or phone, AWB number
}

// Normalize clamps Page and Limit to their allowed ranges.
func (p ListPickupsParams) Normalize() ListPickupsParams {
	p.Page, p.Limit = clampPage(p.Page, p.Limit)
	p.Search = strings.TrimSpace(p.Search)
	return p
}

// List returns one page of pickups, newest first, and the total match count.
func (r *PickupRepository) List(ctx context.Context, p ListPickupsParams) ([]models.Pickup, int64, error) {
	p = p.Normalize()
	q, cancel := withTimeout(ctx, r.db, listTimeout)
	defer cancel()

	q = q.Model(&models.Pickup{})
	if p.Status != nil {
		q = q.Where("status = ?", string(*p.Status))
	}
	if p.RiderID != "" {
		q = q.Where("rider_id = ?", p.RiderID)
	}
	if p.Search != "" {
		pat := likePattern(p.Search)
		q = q.Where(
			`(LOWER(request_id) LIKE ? ESCAPE '\' OR LOWER(customer_name) LIKE ? ESCAPE '\' OR LOWER(customer_phone) LIKE ? ESCAPE '\' OR LOWER(awb_number) LIKE ? ESCAPE '\')`,
			pat, pat, pat, pat,
		)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Pickup
	err := q.Order("created_at DESC, id DESC").
		Offset((p.Page - 1) * p.Limit).
		Limit(p.Limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CountByStatus returns the number of pickups per status.
func (r *PickupRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(ctx, r.db, &models.Pickup{})
}
