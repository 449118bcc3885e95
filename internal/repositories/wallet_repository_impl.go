package repositories

import (
	"errors"

	"mebike/internal/models"

	"gorm.io/gorm"
)

type walletRepositoryImpl struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepositoryImpl{db: db}
}

func (r *walletRepositoryImpl) WithTx(tx *gorm.DB) WalletRepository {
	return &walletRepositoryImpl{db: tx}
}

func (r *walletRepositoryImpl) CreateForUser(userID string) (*models.Wallet, error) {
	wallet := &models.Wallet{
		UserID:   userID,
		Balance:  0,
		Currency: "VND",
		Status:   models.WalletStatusActive,
	}
	if err := r.db.Create(wallet).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateWallet
		}
		return nil, err
	}
	return wallet, nil
}

func (r *walletRepositoryImpl) GetByUserID(userID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepositoryImpl) GetByID(id string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.Where("id = ?", id).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// IncreaseBalance credits Amount-Fee to the wallet and writes the ledger row
// in the same transaction. The unique index on the transaction hash turns a
// replayed credit into ErrWalletHashExists before the balance moves.
func (r *walletRepositoryImpl) IncreaseBalance(input IncreaseBalanceInput) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", input.UserID).First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return err
		}

		logRow := models.WalletTransaction{
			WalletID:    wallet.ID,
			Amount:      input.Amount,
			Fee:         input.Fee,
			Description: input.Description,
			Hash:        input.Hash,
			Type:        input.Type,
			Status:      models.TransactionStatusSuccess,
		}
		if logRow.Type == "" {
			logRow.Type = models.TransactionTypeDeposit
		}
		if err := tx.Create(&logRow).Error; err != nil {
			if isUniqueViolation(err) && uniqueConstraintName(err) == constraintWalletTxHash {
				return ErrWalletHashExists
			}
			return err
		}

		net := input.Amount - input.Fee
		res := tx.Model(&models.Wallet{}).
			Where("id = ?", wallet.ID).
			Update("balance", gorm.Expr("balance + ?", net))
		if res.Error != nil {
			return res.Error
		}
		wallet.Balance += net
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// DecreaseBalance debits the wallet with a single conditional UPDATE guarded
// by the available balance (balance - reserved_balance). Zero rows affected
// means the funds were not there and nothing was written.
func (r *walletRepositoryImpl) DecreaseBalance(input DecreaseBalanceInput) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", input.UserID).First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return err
		}

		res := tx.Model(&models.Wallet{}).
			Where("id = ? AND balance - reserved_balance >= ?", wallet.ID, input.Amount).
			Update("balance", gorm.Expr("balance - ?", input.Amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

		logRow := models.WalletTransaction{
			WalletID:    wallet.ID,
			Amount:      input.Amount,
			Description: input.Description,
			Hash:        input.Hash,
			Type:        input.Type,
			Status:      models.TransactionStatusSuccess,
		}
		if logRow.Type == "" {
			logRow.Type = models.TransactionTypeDebit
		}
		if err := tx.Create(&logRow).Error; err != nil {
			if isUniqueViolation(err) && uniqueConstraintName(err) == constraintWalletTxHash {
				return ErrWalletHashExists
			}
			return err
		}
		wallet.Balance -= input.Amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// ReserveBalance moves amount from available into reserved. Returns false
// when the available balance could not cover the amount.
func (r *walletRepositoryImpl) ReserveBalance(walletID string, amount int64) (bool, error) {
	res := r.db.Model(&models.Wallet{}).
		Where("id = ? AND balance - reserved_balance >= ?", walletID, amount).
		Update("reserved_balance", gorm.Expr("reserved_balance + ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReleaseReservedBalance gives amount back to the available balance. Returns
// false when the reserved balance was smaller than amount, which signals a
// double release.
func (r *walletRepositoryImpl) ReleaseReservedBalance(walletID string, amount int64) (bool, error) {
	res := r.db.Model(&models.Wallet{}).
		Where("id = ? AND reserved_balance >= ?", walletID, amount).
		Update("reserved_balance", gorm.Expr("reserved_balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *walletRepositoryImpl) ListTransactions(walletID string, limit, offset int) ([]models.WalletTransaction, int64, error) {
	var total int64
	if err := r.db.Model(&models.WalletTransaction{}).Where("wallet_id = ?", walletID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.WalletTransaction
	err := r.db.Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
