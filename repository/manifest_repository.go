package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"lmdPortal/models"
)

// ManifestRepository handles Manifest rows. Membership is stored on the
// shipments table and managed through ShipmentRepository.
type ManifestRepository struct {
	db *gorm.DB
}

// NewManifestRepository creates a new ManifestRepository.
func NewManifestRepository(db *gorm.DB) *ManifestRepository {
	return &ManifestRepository{db: db}
}

// memberColumns is the slim projection of member shipments returned with a manifest.
func memberColumns(db *gorm.DB) *gorm.DB {
	return db.Select("id", "awb", "manifest_id", "status", "locked").Order("awb ASC")
}

// Create inserts a new manifest.
func (r *ManifestRepository) Create(ctx context.Context, m *models.Manifest) error {
	if m == nil {
		return errors.New("manifest is nil")
	}
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	return q.Omit("Shipments").Create(m).Error
}

// GetByID fetches a manifest with its member shipments. Returns (nil, nil) when missing.
func (r *ManifestRepository) GetByID(ctx context.Context, id string) (*models.Manifest, error) {
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	var m models.Manifest
	if err := q.Preload("Shipments", memberColumns).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &m, nil
}

// CloseIfOpen marks the manifest Closed only if it is currently Open.
// It reports false when no open manifest with that id exists.
func (r *ManifestRepository) CloseIfOpen(ctx context.Context, id string, closedAt time.Time) (bool, error) {
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	res := q.Model(&models.Manifest{}).
		Where("id = ? AND status = ?", id, string(models.ManifestStatusOpen)).
		Updates(map[string]any{
			"status":     string(models.ManifestStatusClosed),
			"closed_at":  closedAt,
			"updated_at": closedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List returns manifests newest first, optionally filtered by status.
func (r *ManifestRepository) List(ctx context.Context, status *models.ManifestStatus, limit int) ([]models.Manifest, error) {
	_, limit = clampPage(1, limit)
	q, cancel := withTimeout(ctx, r.db, listTimeout)
	defer cancel()
	q = q.Preload("Shipments", memberColumns)
	if status != nil {
		q = q.Where("status = ?", string(*status))
	}
	var out []models.Manifest
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// CountByStatus returns the number of manifests per status.
func (r *ManifestRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(ctx, r.db, &models.Manifest{})
}
