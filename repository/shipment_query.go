package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"lmdPortal/models"
)

// ListShipmentsParams represents filters and pagination for List.
type ListShipmentsParams struct {
	Page   int
	Limit  int
	Status *models.ShipmentStatus // nil means all statuses
	Search string                 // substring of AWB, order id, consignee name or phone
}

// Normalize clamps Page and Limit to their allowed ranges.
func (p ListShipmentsParams) Normalize() ListShipmentsParams {
	p.Page, p.Limit = clampPage(p.Page, p.Limit)
	p.Search = strings.TrimSpace(p.Search)
	return p
}

// List returns one page of shipments (newest first, with timelines) and the
// total number of matching rows.
func (r *ShipmentRepository) List(ctx context.Context, p ListShipmentsParams) ([]models.Shipment, int64, error) {
	p = p.Normalize()
	q, cancel := withTimeout(ctx, r.db, listTimeout)
	defer cancel()

	q = q.Model(&models.Shipment{})
	if p.Status != nil {
		q = q.Where("status = ?", string(*p.Status))
	}
	if p.Search != "" {
		pat := likePattern(p.Search)
		q = q.Where(
			`(LOWER(awb) LIKE ? ESCAPE '\' OR LOWER(order_id) LIKE ? ESCAPE '\' OR LOWER(consignee_name) LIKE ? ESCAPE '\' OR LOWER(consignee_phone) LIKE ? ESCAPE '\')`,
			pat, pat, pat, pat,
		)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []models.Shipment
	err := q.Preload("Timeline", timelineOrder).
		Order("created_at DESC, id DESC").
		Offset((p.Page - 1) * p.Limit).
		Limit(p.Limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
