package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subscription statuses
const (
	SubscriptionStatusActive    = "ACTIVE"
	SubscriptionStatusExpired   = "EXPIRED"
	SubscriptionStatusExhausted = "EXHAUSTED"
)

type Subscription struct {
	ID         string `gorm:"primarykey;type:uuid"`
	UserID     string `gorm:"not null;index;type:uuid"`
	Status     string `gorm:"not null;default:'ACTIVE'"`
	UsageLimit int    `gorm:"not null"`
	UsedCount  int    `gorm:"not null;default:0"`
	ValidFrom  time.Time
	ValidUntil time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
