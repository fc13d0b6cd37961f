package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"lmdPortal/models"
)

// AuditRepository appends and reads audit log entries. It has no update or
// delete operations.
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends one audit entry.
func (r *AuditRepository) Create(ctx context.Context, a *models.AuditLog) error {
	if a == nil {
		return errors.New("audit log is nil")
	}
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	return q.Create(a).Error
}

// ListAuditParams filters audit log reads. Empty fields match everything.
type ListAuditParams struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     string
	Limit      int
}

// List returns matching entries, newest first.
func (r *AuditRepository) List(ctx context.Context, p ListAuditParams) ([]models.AuditLog, error) {
	limit := recentLimit(p.Limit)
	q, cancel := withTimeout(ctx, r.db, listTimeout)
	defer cancel()
	if p.EntityType != "" {
		q = q.Where("entity_type = ?", p.EntityType)
	}
	if p.EntityID != "" {
		q = q.Where("entity_id = ?", p.EntityID)
	}
	if p.ActorID != "" {
		q = q.Where("actor_id = ?", p.ActorID)
	}
	if p.Action != "" {
		q = q.Where("action = ?", p.Action)
	}
	var out []models.AuditLog
	err := q.Order("timestamp DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Count returns the number of entries for one entity.
func (r *AuditRepository) Count(ctx context.Context, entityType, entityID string) (int64, error) {
	q, cancel := withTimeout(ctx, r.db, queryTimeout)
	defer cancel()
	var n int64
	err := q.Model(&models.AuditLog{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Count(&n).Error
	return n, err
}
