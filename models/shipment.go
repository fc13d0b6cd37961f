package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShipmentStatus represents the current progress of a shipment.
type ShipmentStatus string

const (
	ShipmentStatusCreated        ShipmentStatus = "Created"
	ShipmentStatusPickupAssigned ShipmentStatus = "Pickup Assigned"
	ShipmentStatusPicked         ShipmentStatus = "Picked"
	ShipmentStatusInTransit      ShipmentStatus = "In Transit"
	ShipmentStatusOutForDelivery ShipmentStatus = "Out for Delivery"
	ShipmentStatusDelivered      ShipmentStatus = "Delivered"
	ShipmentStatusFailed         ShipmentStatus = "Failed"
	ShipmentStatusCancelled      ShipmentStatus = "Cancelled"
	ShipmentStatusDelayed        ShipmentStatus = "Delayed"
	ShipmentStatusRTO            ShipmentStatus = "RTO"
	ShipmentStatusReturned       ShipmentStatus = "Returned"
)

// ShipmentStatuses lists every valid shipment status in lifecycle order.
var ShipmentStatuses = []ShipmentStatus{
	ShipmentStatusCreated,
	ShipmentStatusPickupAssigned,
	ShipmentStatusPicked,
	ShipmentStatusInTransit,
	ShipmentStatusOutForDelivery,
	ShipmentStatusDelivered,
	ShipmentStatusFailed,
	ShipmentStatusCancelled,
	ShipmentStatusDelayed,
	ShipmentStatusRTO,
	ShipmentStatusReturned,
}

// ParseShipmentStatus matches s case-insensitively against the known statuses.
func ParseShipmentStatus(s string) (ShipmentStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range ShipmentStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// Shipment is a single consignment identified by its air waybill (AWB).
// Once Locked is set (manifest closed) the row is frozen.
type Shipment struct {
	ID                 string          `gorm:"primaryKey;size:36" json:"id"`
	AWB                string          `gorm:"size:64;not null;uniqueIndex" json:"awb"`
	OrderID            string          `gorm:"size:64;not null;index" json:"orderId"`
	ConsigneeName      string          `gorm:"size:128;not null" json:"consigneeName"`
	ConsigneePhone     string          `gorm:"size:32;not null" json:"consigneePhone"`
	Address            string          `gorm:"type:text;not null" json:"address"`
	Origin             string          `gorm:"size:128" json:"origin"`
	Destination        string          `gorm:"size:128" json:"destination"`
	Weight             *float64        `json:"weight,omitempty"`
	ServiceType        string          `gorm:"size:32;not null" json:"serviceType"`
	Status             ShipmentStatus  `gorm:"size:32;not null;index" json:"status"`
	CancellationReason string          `gorm:"type:text" json:"cancellationReason,omitempty"`
	ManifestID         *string         `gorm:"size:36;index" json:"manifestId,omitempty"`
	Locked             bool            `gorm:"not null;default:false" json:"isLocked"`
	Timeline           []TrackingEvent `gorm:"foreignKey:ShipmentID" json:"timeline"`
	CreatedAt          time.Time       `gorm:"not null;index" json:"createdAt"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updatedAt"`
}

func (s *Shipment) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// TrackingEvent is one immutable entry of a shipment's timeline.
type TrackingEvent struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	ShipmentID  string         `gorm:"size:36;not null;index" json:"shipmentId"`
	Status      ShipmentStatus `gorm:"size:32;not null" json:"status"`
	Location    string         `gorm:"size:128;not null" json:"location"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	Timestamp   time.Time      `gorm:"not null;index" json:"timestamp"`
}

func (e *TrackingEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
