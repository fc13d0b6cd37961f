package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RiderStatus represents what a rider is currently doing.
type RiderStatus string

const (
	RiderStatusIdle    RiderStatus = "Idle"
	RiderStatusMoving  RiderStatus = "Moving"
	RiderStatusOffline RiderStatus = "Offline"
)

// ParseRiderStatus matches s case-insensitively against the known statuses.
func ParseRiderStatus(s string) (RiderStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range []RiderStatus{RiderStatusIdle, RiderStatusMoving, RiderStatusOffline} {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// Rider is a field courier whose last known position is reported by the
// rider app.
type Rider struct {
	ID                string      `gorm:"primaryKey;size:36" json:"id"`
	Name              string      `gorm:"size:128;not null" json:"name"`
	Phone             string      `gorm:"size:32" json:"phone,omitempty"`
	Status            RiderStatus `gorm:"size:16;not null;index" json:"status"`
	Lat               float64     `json:"lat"`
	Lng               float64     `json:"lng"`
	LocationUpdatedAt *time.Time  `json:"locationUpdatedAt,omitempty"`
	CurrentShipmentID *string     `gorm:"size:36" json:"currentShipmentId,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

func (r *Rider) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
