package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Withdrawal statuses
const (
	WithdrawalStatusPending    = "PENDING"
	WithdrawalStatusProcessing = "PROCESSING"
	WithdrawalStatusSucceeded  = "SUCCEEDED"
	WithdrawalStatusFailed     = "FAILED"
)

// WalletWithdrawal tracks one payout request from PENDING through PROCESSING
// to a terminal SUCCEEDED/FAILED. PROCESSING carries a TTL: a row whose
// ProcessingAt is older than the processing TTL may be re-claimed by the
// executor or resolved by the sweep job. IdempotencyKey is unique so a
// duplicate request returns the existing row instead of creating a second
// payout.
type WalletWithdrawal struct {
	ID               string `gorm:"primarykey;type:uuid"`
	UserID           string `gorm:"not null;index;type:uuid"`
	WalletID         string `gorm:"not null;index;type:uuid"`
	Amount           int64  `gorm:"not null"`
	Currency         string `gorm:"not null;default:'vnd'"`
	Status           string `gorm:"not null;default:'PENDING';index"`
	IdempotencyKey   string `gorm:"uniqueIndex:uniq_wallet_withdrawals_idem;not null"`
	StripeTransferID *string
	StripePayoutID   *string `gorm:"index"`
	FailureReason    *string
	ProcessingAt     *time.Time `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (w *WalletWithdrawal) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}
