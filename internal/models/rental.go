package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Rental statuses
const (
	RentalStatusReserved  = "RESERVED"
	RentalStatusRented    = "RENTED"
	RentalStatusCompleted = "COMPLETED"
	RentalStatusCancelled = "CANCELLED"
)

// Rental is the shadow row created alongside every reservation; the rental
// flow owns the RENTED -> COMPLETED half of the lifecycle, this core only
// creates, starts, cancels and re-binds RESERVED rows.
type Rental struct {
	ID             string  `gorm:"primarykey;type:uuid"`
	ReservationID  *string `gorm:"uniqueIndex;type:uuid"`
	UserID         string  `gorm:"not null;index;type:uuid"`
	BikeID         *string `gorm:"index;type:uuid"`
	StartStationID string  `gorm:"not null;type:uuid"`
	EndStationID   *string `gorm:"type:uuid"`
	SubscriptionID *string `gorm:"type:uuid"`
	Status         string  `gorm:"not null;default:'RESERVED';index"`
	StartTime      time.Time
	EndTime        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r *Rental) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
