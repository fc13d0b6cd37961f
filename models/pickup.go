package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PickupStatus represents the progress of a pickup request.
type PickupStatus string

const (
	PickupStatusRequested PickupStatus = "Requested"
	PickupStatusAssigned  PickupStatus = "Assigned"
	PickupStatusPicked    PickupStatus = "Picked"
	PickupStatusFailed    PickupStatus = "Failed"
	PickupStatusCancelled PickupStatus = "Cancelled"
)

var PickupStatuses = []PickupStatus{
	PickupStatusRequested,
	PickupStatusAssigned,
	PickupStatusPicked,
	PickupStatusFailed,
	PickupStatusCancelled,
}

// ParsePickupStatus matches s case-insensitively against the known statuses.
func ParsePickupStatus(s string) (PickupStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range PickupStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are accepted.
func (s PickupStatus) IsTerminal() bool {
	return s == PickupStatusPicked || s == PickupStatusFailed
}

// Pickup is a scheduled collection from a customer address.
// FailureReason and Remarks are set if and only if Status is Failed.
type Pickup struct {
	ID              string       `gorm:"primaryKey;size:36" json:"id"`
	RequestID       string       `gorm:"size:64;not null;uniqueIndex" json:"requestId"`
	CustomerName    string       `gorm:"size:128" json:"customerName"`
	CustomerPhone   string       `gorm:"size:32" json:"customerPhone"`
	ContactName     string       `gorm:"size:128" json:"contactName,omitempty"`
	ContactPhone    string       `gorm:"size:32" json:"contactPhone,omitempty"`
	ScheduledDate   time.Time    `gorm:"not null;index" json:"scheduledDate"`
	Address         string       `gorm:"type:text;not null" json:"address"`
	City            string       `gorm:"size:64" json:"city,omitempty"`
	ServiceType     string       `gorm:"size:32;not null" json:"serviceType"`
	AWBNumber       string       `gorm:"size:64" json:"awbNumber,omitempty"`
	Lat             *float64     `json:"lat,omitempty"`
	Lng             *float64     `json:"lng,omitempty"`
	ItemCount       int          `json:"itemCount"`
	EstimatedWeight *float64     `json:"estimatedWeight,omitempty"`
	Status          PickupStatus `gorm:"size:32;not null;index" json:"status"`
	RiderID         *string      `gorm:"size:36;index" json:"riderId,omitempty"`
	FailureReason   string       `gorm:"type:text" json:"failureReason,omitempty"`
	Remarks         string       `gorm:"type:text" json:"remarks,omitempty"`
	CreatedAt       time.Time    `gorm:"not null;index" json:"createdAt"`
	UpdatedAt       time.Time    `gorm:"not null" json:"updatedAt"`
}

func (p *Pickup) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
