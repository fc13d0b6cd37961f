package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"lmdPortal/models"
)

// APIHistoryRepository stores snapshots of inbound API requests.
type APIHistoryRepository struct {
	db *gorm.DB
}

// NewAPIHistoryRepository creates a new APIHistoryRepository.
func NewAPIHistoryRepository(db *gorm.DB) *APIHistoryRepository {
	return &APIHistoryRepository{db: db}
}

// Create appends one entry.
func (r *APIHistoryRepository) Create(ctx context.Context, e *models.APIHistoryEntry) error {
	if e == nil {
		return errors.New("api history entry is nil")
	}
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	return q.Create(e).Error
}

// GetByID fetches one entry. Returns (nil, nil) when missing.
func (r *APIHistoryRepository) GetByID(ctx context.Context, id string) (*models.APIHistoryEntry, error) {
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	var e models.APIHistoryEntry
	if err := q.Where("id = ?", id).Take(&e).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &e, nil
}

// ListAPIHistoryParams filters history reads.
type ListAPIHistoryParams struct {
	Method   string
	Endpoint string // substring match
	ActorID  string
	Limit    int
}

// List returns matching entries, newest first.
func (r *APIHistoryRepository) List(ctx context.Context, p ListAPIHistoryParams) ([]models.APIHistoryEntry, error) {
	limit := recentLimit(p.Limit)
	q, cancel := withTimeout(ctx, r.db, listTimeout)
	defer cancel()
	if p.Method != "" {
		q = q.Where("method = ?", strings.ToUpper(p.Method))
	}
	if p.Endpoint != "" {
		q = q.Where(`LOWER(endpoint) LIKE ? ESCAPE '\'`, likePattern(p.Endpoint))
	}
	if p.ActorID != "" {
		q = q.Where("actor_id = ?", p.ActorID)
	}
	var out []models.APIHistoryEntry
	err := q.Order("timestamp DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// DeleteOlderThan removes entries recorded before cutoff and returns how
// many were removed.
func (r *APIHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	q, cancel := withTimeout(ctx, r.db, listTimeout)
	defer cancel()
	res := q.Where("timestamp < ?", cutoff).Delete(&models.APIHistoryEntry{})
	return res.RowsAffected, res.Error
}
