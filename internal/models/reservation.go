package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reservation statuses
const (
	ReservationStatusPending   = "PENDING"
	ReservationStatusActive    = "ACTIVE"
	ReservationStatusCancelled = "CANCELLED"
	ReservationStatusExpired   = "EXPIRED"
)

// Reservation options
const (
	ReservationOptionOneTime      = "ONE_TIME"
	ReservationOptionSubscription = "SUBSCRIPTION"
	ReservationOptionFixedSlot    = "FIXED_SLOT"
)

// Reservation is the hold row. A "current hold" is status=PENDING with a
// bike assigned and StartTime <= now < EndTime. FIXED_SLOT rows keep
// EndTime nil until assignment and are excluded from time-window hold
// queries on purpose.
//
// Two partial unique indexes (created in repositories.InitDB) enforce at
// most one PENDING/ACTIVE row per user and, for bike-assigned rows, per
// bike; inserts racing past the application-level checks surface as a
// unique violation mapped to a typed conflict.
type Reservation struct {
	ID                  string  `gorm:"primarykey;type:uuid"`
	UserID              string  `gorm:"not null;index;type:uuid"`
	BikeID              *string `gorm:"index;type:uuid"`
	StationID           string  `gorm:"not null;type:uuid"`
	ReservationOption   string  `gorm:"not null;default:'ONE_TIME'"`
	FixedSlotTemplateID *string `gorm:"type:uuid"`
	SubscriptionID      *string `gorm:"type:uuid"`
	StartTime           time.Time
	EndTime             *time.Time
	Prepaid             int64  `gorm:"not null;default:0"`
	Status              string `gorm:"not null;default:'PENDING';index"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
