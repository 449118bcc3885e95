package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet statuses
const (
	WalletStatusActive = "ACTIVE"
	WalletStatusFrozen = "FROZEN"
)

// Wallet transaction types
const (
	TransactionTypeDeposit = "DEPOSIT"
	TransactionTypeDebit   = "DEBIT"
	TransactionTypeRefund  = "REFUND"
	TransactionTypeBonus   = "BONUS"
)

// Wallet transaction statuses
const (
	TransactionStatusSuccess = "SUCCESS"
	TransactionStatusPending = "PENDING"
	TransactionStatusFailed  = "FAILED"
)

// Wallet keeps all amounts in minor currency units. ReservedBalance is the
// slice of Balance earmarked for in-flight withdrawals; the repository only
// ever mutates the pair through single conditional statements, so
// 0 <= ReservedBalance <= Balance holds under concurrent access.
type Wallet struct {
	ID              string `gorm:"primarykey;type:uuid"`
	UserID          string `gorm:"uniqueIndex;not null;type:uuid"`
	Balance         int64  `gorm:"not null;default:0"`
	ReservedBalance int64  `gorm:"not null;default:0"`
	Currency        string `gorm:"default:'VND'"`
	Status          string `gorm:"default:'ACTIVE'"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// Available returns the balance not locked behind withdrawal escrow.
func (w *Wallet) Available() int64 {
	return w.Balance - w.ReservedBalance
}

// WalletTransaction is an append-only ledger row. Amount is the gross amount;
// for credits the net applied to the balance is Amount-Fee. Hash carries the
// idempotency key of externally-driven movements (webhook replays hit the
// unique index instead of double-applying).
type WalletTransaction struct {
	ID          string `gorm:"primarykey;type:uuid"`
	WalletID    string `gorm:"not null;index;type:uuid"`
	Amount      int64  `gorm:"not null"`
	Fee         int64  `gorm:"not null;default:0"`
	Description string
	Hash        *string `gorm:"uniqueIndex:uniq_wallet_transactions_hash"`
	Type        string  `gorm:"not null"`
	Status      string  `gorm:"not null;default:'SUCCESS'"`
	CreatedAt   time.Time
}

func (t *WalletTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
