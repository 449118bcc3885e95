package wallet

import (
	"context"
	"time"

	"mebike/internal/models"

	"gorm.io/gorm"
)

// Service defines the wallet service interface. Every balance mutation exists
// in two forms: the plain one runs in its own transaction, the InTx one joins
// the caller's transaction so a reservation or withdrawal can move money and
// flip its own rows atomically.
type Service interface {
	GetWallet(ctx context.Context, userID string) (*models.Wallet, error)
	GetWalletInTx(tx *gorm.DB, userID string) (*models.Wallet, error)
	CreateWallet(ctx context.Context, userID string) (*models.Wallet, error)
	GetBalance(ctx context.Context, userID string) (int64, int64, error)

	Credit(ctx context.Context, input CreditInput) (*models.Wallet, error)
	CreditInTx(tx *gorm.DB, input CreditInput) (*models.Wallet, error)
	Debit(ctx context.Context, input DebitInput) (*models.Wallet, error)
	DebitInTx(tx *gorm.DB, input DebitInput) (*models.Wallet, error)

	// Reserve moves amount from available into escrow; Release gives it
	// back. Both are conditional and report ErrInsufficientBalance /
	// ErrNothingReserved instead of going negative.
	ReserveInTx(tx *gorm.DB, walletID string, amount int64) error
	ReleaseInTx(tx *gorm.DB, walletID string, amount int64) error

	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]models.WalletTransaction, int64, error)
}

// MetricsCollector receives wallet operation telemetry. A nil collector is
// replaced with a no-op one.
type MetricsCollector interface {
	RecordOperationDuration(operation string, d time.Duration)
	RecordOperationResult(operation, result string)
	RecordCacheHit(operation string)
	RecordCacheMiss(operation string)
	RecordBalanceChange(walletID string, delta int64)
	RecordError(operation, errType string)
}
