package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet hold statuses
const (
	WalletHoldStatusActive   = "ACTIVE"
	WalletHoldStatusReleased = "RELEASED"
	WalletHoldStatusSettled  = "SETTLED"
)

// WalletHoldReasonWithdrawal is the only hold reason today; the column
// exists so future escrow kinds do not need a schema change.
const WalletHoldReasonWithdrawal = "WITHDRAWAL"

// WalletHold is the escrow record for exactly one withdrawal. It is created
// in the same transaction as the withdrawal row and the reservedBalance
// increment, and resolves to RELEASED (withdrawal failed or cancelled) or
// SETTLED (payout confirmed paid).
type WalletHold struct {
	ID           string `gorm:"primarykey;type:uuid"`
	WalletID     string `gorm:"not null;index;type:uuid"`
	WithdrawalID string `gorm:"uniqueIndex:uniq_wallet_holds_withdrawal;not null;type:uuid"`
	Amount       int64  `gorm:"not null"`
	Status       string `gorm:"not null;default:'ACTIVE'"`
	Reason       string `gorm:"default:'WITHDRAWAL'"`
	ReleasedAt   *time.Time
	SettledAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (h *WalletHold) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
