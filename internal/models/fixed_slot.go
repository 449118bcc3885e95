package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Fixed-slot template statuses
const (
	FixedSlotStatusActive   = "ACTIVE"
	FixedSlotStatusPaused   = "PAUSED"
	FixedSlotStatusArchived = "ARCHIVED"
)

// FixedSlotTemplate is a recurring reservation schedule. SlotStart carries
// only the time-of-day component; the batch assignment job merges it with
// each scheduled FixedSlotDate to produce the concrete start time.
type FixedSlotTemplate struct {
	ID        string `gorm:"primarykey;type:uuid"`
	UserID    string `gorm:"not null;index;type:uuid"`
	StationID string `gorm:"not null;type:uuid"`
	SlotStart time.Time
	Status    string `gorm:"not null;default:'ACTIVE'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *FixedSlotTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type FixedSlotDate struct {
	ID         string    `gorm:"primarykey;type:uuid"`
	TemplateID string    `gorm:"not null;index;uniqueIndex:uniq_fixed_slot_dates_template_date;type:uuid"`
	SlotDate   time.Time `gorm:"not null;uniqueIndex:uniq_fixed_slot_dates_template_date"`
}

func (d *FixedSlotDate) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
