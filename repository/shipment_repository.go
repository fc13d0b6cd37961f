package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"lmdPortal/models"
)

// ShipmentRepository handles Shipment rows and their timeline.
type ShipmentRepository struct {
	db *gorm.DB
}

// NewShipmentRepository creates a new ShipmentRepository.
func NewShipmentRepository(db *gorm.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

func timelineOrder(db *gorm.DB) *gorm.DB {
	return db.Order("timestamp ASC, id ASC")
}

// Create inserts a shipment together with its initial timeline events.
func (r *ShipmentRepository) Create(ctx context.Context, s *models.Shipment) error {
	if s == nil {
		return errors.New("shipment is nil")
	}
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	return q.Create(s).Error
}

// GetByID fetches a shipment with its timeline. Returns (nil, nil) when missing.
func (r *ShipmentRepository) GetByID(ctx context.Context, id string) (*models.Shipment, error) {
	return r.getBy(ctx, "id = ?", id)
}

// GetByAWB fetches a shipment by air waybill. Returns (nil, nil) when missing.
func (r *ShipmentRepository) GetByAWB(ctx context.Context, awb string) (*models.Shipment, error) {
	return r.getBy(ctx, "awb = ?", awb)
}

func (r *ShipmentRepository) getBy(ctx context.Context, cond string, arg any) (*models.Shipment, error) {
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	var s models.Shipment
	if err := q.Preload("Timeline", timelineOrder).Where(cond, arg).Take(&s).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &s, nil
}

// FindByIDs returns the shipments among ids that exist, without timelines.
func (r *ShipmentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Shipment, error) {
	q, cancel := withTimeout(ctx, r.db, listTimeout)
	defer cancel()
	var out []models.Shipment
	err := q.Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// UpdateUnlocked applies updates to the shipment only while it is unlocked.
// It reports false when no unlocked row with that id exists.
func (r *ShipmentRepository) UpdateUnlocked(ctx context.Context, id string, updates map[string]any) (bool, error) {
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	updates["updated_at"] = time.Now().UTC()
	res := q.Model(&models.Shipment{}).Where("id = ? AND locked = ?", id, false).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AppendEvent adds one tracking event to a shipment's timeline.
func (r *ShipmentRepository) AppendEvent(ctx context.Context, e *models.TrackingEvent) error {
	if e == nil {
		return errors.New("tracking event is nil")
	}
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	return q.Create(e).Error
}

// AttachToManifest sets manifest_id on the given shipments that are still
// unassigned and unlocked, returning how many rows changed.
func (r *ShipmentRepository) AttachToManifest(ctx context.Context, manifestID string, ids []string) (int64, error) {
	q, cancel := withTimeout(ctx, r.db, listTimeout)
	defer cancel()
	res := q.Model(&models.Shipment{}).
		Where("id IN ? AND manifest_id IS NULL AND locked = ?", ids, false).
		Updates(map[string]any{"manifest_id": manifestID, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// LockByManifest locks every member of a manifest in one statement.
func (r *ShipmentRepository) LockByManifest(ctx context.Context, manifestID string) (int64, error) {
	q, cancel := withTimeout(ctx, r.db, listTimeout)
	defer cancel()
	res := q.Model(&models.Shipment{}).
		Where("manifest_id = ?", manifestID).
		Updates(map[string]any{"locked": true, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// CountByStatus returns the number of shipments per status.
func (r *ShipmentRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(ctx, r.db, &models.Shipment{})
}
