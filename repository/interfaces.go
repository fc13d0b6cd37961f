package repository

import (
	"context"
	"time"

	"lmdPortal/models"
)

// ShipmentRepositoryI defines operations on Shipment entities.
type ShipmentRepositoryI interface {
	Create(ctx context.Context, s *models.Shipment) error
	GetByID(ctx context.Context, id string) (*models.Shipment, error)
	GetByAWB(ctx context.Context, awb string) (*models.Shipment, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Shipment, error)
	List(ctx context.Context, p ListShipmentsParams) ([]models.Shipment, int64, error)
	UpdateUnlocked(ctx context.Context, id string, updates map[string]any) (bool, error)
	AppendEvent(ctx context.Context, e *models.TrackingEvent) error
	AttachToManifest(ctx context.Context, manifestID string, ids []string) (int64, error)
	LockByManifest(ctx context.Context, manifestID string) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// PickupRepositoryI defines operations on Pickup entities.
type PickupRepositoryI interface {
	Create(ctx context.Context, p *models.Pickup) error
	GetByID(ctx context.Context, id string) (*models.Pickup, error)
	List(ctx context.Context, p ListPickupsParams) ([]models.Pickup, int64, error)
	UpdateIfNotTerminal(ctx context.Context, id string, updates map[string]any) (bool, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// ManifestRepositoryI defines operations on Manifest entities.
type ManifestRepositoryI interface {
	Create(ctx context.Context, m *models.Manifest) error
	GetByID(ctx context.Context, id string) (*models.Manifest, error)
	CloseIfOpen(ctx context.Context, id string, closedAt time.Time) (bool, error)
	List(ctx context.Context, status *models.ManifestStatus, limit int) ([]models.Manifest, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// RiderRepositoryI defines operations on Rider entities.
type RiderRepositoryI interface {
	Create(ctx context.Context, rd *models.Rider) error
	GetByID(ctx context.Context, id string) (*models.Rider, error)
	List(ctx context.Context, status *models.RiderStatus) ([]models.Rider, error)
	ListAvailable(ctx context.Context) ([]models.Rider, error)
	UpdateLocation(ctx context.Context, id string, lat, lng float64, status models.RiderStatus, at time.Time) (bool, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// AuditRepositoryI defines the append-only audit log.
type AuditRepositoryI interface {
	Create(ctx context.Context, a *models.AuditLog) error
	List(ctx context.Context, p ListAuditParams) ([]models.AuditLog, error)
	Count(ctx context.Context, entityType, entityID string) (int64, error)
}

// APIHistoryRepositoryI defines operations on API history entries.
type APIHistoryRepositoryI interface {
	Create(ctx context.Context, e *models.APIHistoryEntry) error
	GetByID(ctx context.Context, id string) (*models.APIHistoryEntry, error)
	List(ctx context.Context, p ListAPIHistoryParams) ([]models.APIHistoryEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

var (
	_ ShipmentRepositoryI   = (*ShipmentRepository)(nil)
	_ PickupRepositoryI     = (*PickupRepository)(nil)
	_ ManifestRepositoryI   = (*ManifestRepository)(nil)
	_ RiderRepositoryI      = (*RiderRepository)(nil)
	_ AuditRepositoryI      = (*AuditRepository)(nil)
	_ APIHistoryRepositoryI = (*APIHistoryRepository)(nil)
)
