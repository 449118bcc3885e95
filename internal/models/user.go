package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID       string `gorm:"primarykey;type:uuid"`
	Email    string `gorm:"uniqueIndex;not null"`
	Password string `gorm:"not null"`
	FullName string `gorm:"not null"`
	Phone    string
	Role     string `gorm:"default:'user'"`
	Status   string `gorm:"default:'active'"`

	// Stripe Connect onboarding state; payouts stay disabled until the
	// account.updated webhook reports the capability as active.
	StripeConnectedAccountID *string `gorm:"uniqueIndex;default:null"`
	StripePayoutsEnabled     bool    `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
