package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entity types recorded in the audit log.
const (
	EntityShipment   = "SHIPMENT"
	EntityPickup     = "PICKUP"
	EntityManifest   = "MANIFEST"
	EntityRider      = "RIDER"
	EntityAPIHistory = "API_HISTORY"
)

// Audit actions written by the lifecycle managers.
const (
	ActionCreateShipment        = "CREATE_SHIPMENT"
	ActionUpdateShipmentStatus  = "UPDATE_SHIPMENT_STATUS"
	ActionUpdateShipmentDetails = "UPDATE_SHIPMENT_DETAILS"
	ActionCancelShipment        = "CANCEL_SHIPMENT"
	ActionCreatePickup          = "CREATE_PICKUP"
	ActionUpdatePickupDetails   = "UPDATE_PICKUP_DETAILS"
	ActionUpdatePickupStatus    = "UPDATE_PICKUP_STATUS"
	ActionCreateManifest        = "CREATE_MANIFEST"
	ActionCloseManifest         = "CLOSE_MANIFEST"
	ActionCreateRider           = "CREATE_RIDER"
	ActionUpdateRiderLocation   = "UPDATE_RIDER_LOCATION"
	ActionRetriggerAPIRequest   = "RETRIGGER_API_REQUEST"
)

// AuditLog is an append-only record of who changed what. Rows are never
// updated or deleted.
type AuditLog struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	ActorID    string    `gorm:"size:64;not null;index" json:"userId"`
	ActorName  string    `gorm:"size:128" json:"userName"`
	Action     string    `gorm:"size:64;not null" json:"action"`
	EntityType string    `gorm:"size:32;not null;index:idx_audit_entity" json:"entityType"`
	EntityID   string    `gorm:"size:64;not null;index:idx_audit_entity" json:"entityId"`
	Details    string    `gorm:"type:text" json:"details"`
	IPAddress  string    `gorm:"size:64" json:"ipAddress,omitempty"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// APIHistoryEntry is an append-only snapshot of one inbound API request.
type APIHistoryEntry struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Method     string    `gorm:"size:8;not null;index" json:"method"`
	Endpoint   string    `gorm:"size:256;not null;index" json:"endpoint"`
	Query      string    `gorm:"type:text" json:"query,omitempty"`
	StatusCode int       `gorm:"not null" json:"statusCode"`
	DurationMs int64     `gorm:"not null" json:"durationMs"`
	ActorID    string    `gorm:"size:64;index" json:"userId,omitempty"`
	Payload    string    `gorm:"type:text" json:"payload,omitempty"`
	Response   string    `gorm:"type:text" json:"response,omitempty"`
	ReplayOf   *string   `gorm:"size:36" json:"replayOf,omitempty"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
}

func (APIHistoryEntry) TableName() string {
	return "api_history"
}

func (e *APIHistoryEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
