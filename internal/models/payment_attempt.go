package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment attempt statuses
const (
	PaymentAttemptStatusPending   = "PENDING"
	PaymentAttemptStatusSucceeded = "SUCCEEDED"
	PaymentAttemptStatusFailed    = "FAILED"
)

// Payment attempt kinds
const (
	PaymentAttemptKindTopup = "TOPUP"
)

// PaymentAttempt is the audit row for a top-up. It is inserted before the
// provider checkout session so a session-creation failure still leaves a
// trail; ProviderRef is attached once the session exists. The
// (provider, provider_ref) pair is unique so a replayed session id cannot
// attach to two attempts.
type PaymentAttempt struct {
	ID            string  `gorm:"primarykey;type:uuid"`
	UserID        string  `gorm:"not null;index;type:uuid"`
	WalletID      string  `gorm:"not null;index;type:uuid"`
	Provider      string  `gorm:"not null;default:'STRIPE';uniqueIndex:uniq_payment_attempts_provider_ref"`
	ProviderRef   *string `gorm:"uniqueIndex:uniq_payment_attempts_provider_ref"`
	Kind          string  `gorm:"not null;default:'TOPUP'"`
	Status        string  `gorm:"not null;default:'PENDING'"`
	AmountMinor   int64   `gorm:"not null"`
	Currency      string  `gorm:"not null"`
	FailureReason *string
	Metadata      JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *PaymentAttempt) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
