package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bike statuses
const (
	BikeStatusAvailable   = "AVAILABLE"
	BikeStatusReserved    = "RESERVED"
	BikeStatusBooked      = "BOOKED"
	BikeStatusMaintenance = "MAINTENANCE"
)

type Bike struct {
	ID        string  `gorm:"primarykey;type:uuid"`
	ChipID    string  `gorm:"uniqueIndex;not null"`
	StationID *string `gorm:"index;type:uuid"`
	Status    string  `gorm:"not null;default:'AVAILABLE';index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *Bike) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

type Station struct {
	ID        string `gorm:"primarykey;type:uuid"`
	Name      string `gorm:"not null"`
	Address   string
	Capacity  int
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Station) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
