package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ManifestStatus is Open until the manifest is closed, exactly once.
type ManifestStatus string

const (
	ManifestStatusOpen   ManifestStatus = "Open"
	ManifestStatusClosed ManifestStatus = "Closed"
)

// Manifest groups shipments handed over together at end of day.
// Membership lives on Shipment.ManifestID.
type Manifest struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	ManifestRef string         `gorm:"size:32;not null;uniqueIndex" json:"manifestRef"`
	Status      ManifestStatus `gorm:"size:16;not null;index" json:"status"`
	GeneratedBy string         `gorm:"size:128;not null" json:"generatedBy"`
	ClosedAt    *time.Time     `json:"closedAt,omitempty"`
	Shipments   []Shipment     `gorm:"foreignKey:ManifestID" json:"shipments,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updatedAt"`
}

func (m *Manifest) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
