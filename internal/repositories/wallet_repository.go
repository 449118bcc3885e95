package repositories

import (
	"mebike/internal/models"

	"gorm.io/gorm"
)

// IncreaseBalanceInput credits a wallet. Net applied to the balance is
// Amount-Fee; the ledger row records the gross Amount and the Fee. Hash, when
// set, is the idempotency key: a second credit with the same hash fails with
// ErrWalletHashExists and leaves the balance untouched.
type IncreaseBalanceInput struct {
	UserID      string
	Amount      int64
	Fee         int64
	Description string
	Hash        *string
	Type        string
}

// DecreaseBalanceInput debits a wallet against its available (non-reserved)
// balance.
type DecreaseBalanceInput struct {
	UserID      string
	Amount      int64
	Description string
	Hash        *string
	Type        string
}

// WalletRepository owns every wallet balance mutation. All four mutators are
// single conditional SQL statements, so concurrent callers serialize on the
// row without explicit locks.
type WalletRepository interface {
	// WithTx returns a repository bound to an externally-managed transaction.
	WithTx(tx *gorm.DB) WalletRepository

	CreateForUser(userID string) (*models.Wallet, error)
	GetByUserID(userID string) (*models.Wallet, error)
	GetByID(id string) (*models.Wallet, error)

	IncreaseBalance(input IncreaseBalanceInput) (*models.Wallet, error)
	DecreaseBalance(input DecreaseBalanceInput) (*models.Wallet, error)
	ReserveBalance(walletID string, amount int64) (bool, error)
	ReleaseReservedBalance(walletID string, amount int64) (bool, error)

	ListTransactions(walletID string, limit, offset int) ([]models.WalletTransaction, int64, error)
}
