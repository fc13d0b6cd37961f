package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"lmdPortal/models"
)

// RiderRepository handles Rider rows.
type RiderRepository struct {
	db *gorm.DB
}

// NewRiderRepository creates a new RiderRepository.
func NewRiderRepository(db *gorm.DB) *RiderRepository {
	return &RiderRepository{db: db}
}

// Create inserts a new rider.
func (r *RiderRepository) Create(ctx context.Context, rd *models.Rider) error {
	if rd == nil {
		return errors.New("rider is nil")
	}
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	return q.Create(rd).Error
}

// GetByID fetches a rider by id. Returns (nil, nil) when missing.
func (r *RiderRepository) GetByID(ctx context.Context, id string) (*models.Rider, error) {
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	var rd models.Rider
	if err := q.Where("id = ?", id).Take(&rd).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &rd, nil
}

// List returns riders ordered by name, optionally filtered by status.
func (r *RiderRepository) List(ctx context.Context, status *models.RiderStatus) ([]models.Rider, error) {
	q, cancel := withTimeout(ctx, r.db, listTimeout)
	defer cancel()
	if status != nil {
		q = q.Where("status = ?", string(*status))
	}
	var out []models.Rider
	err := q.Order("name ASC, id ASC").Find(&out).Error
	return out, err
}

// ListAvailable returns every rider that is not Offline.
func (r *RiderRepository) ListAvailable(ctx context.Context) ([]models.Rider, error) {
	q, cancel := withTimeout(ctx, r.db, listTimeout)
	defer cancel()
	var out []models.Rider
	err := q.Where("status <> ?", string(models.RiderStatusOffline)).Order("id ASC").Find(&out).Error
	return out, err
}

// UpdateLocation stores the latest reported position and status.
// It reports false when the rider does not exist.
func (r *RiderRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64, status models.RiderStatus, at time.Time) (bool, error) {
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	res := q.Model(&models.Rider{}).Where("id = ?", id).Updates(map[string]any{
		"lat":                 lat,
		"lng":                 lng,
		"status":              string(status),
		"location_updated_at": at,
		"updated_at":          at,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountByStatus returns the number of riders per status.
func (r *RiderRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(ctx, r.db, &models.Rider{})
}
