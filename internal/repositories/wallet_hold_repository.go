package repositories

import (
	"errors"
	"time"

	"mebike/internal/models"

	"gorm.io/gorm"
)

// WalletHoldRepository tracks the escrow rows backing withdrawals. A hold is
// created ACTIVE next to the reserved-balance bump and ends up exactly once
// in RELEASED or SETTLED.
type WalletHoldRepository interface {
	WithTx(tx *gorm.DB) WalletHoldRepository

	Create(walletID, withdrawalID string, amount int64) (*models.WalletHold, error)
	FindByWithdrawalID(withdrawalID string) (*models.WalletHold, error)
	// ReleaseByWithdrawalID flips an ACTIVE hold to RELEASED. False when the
	// hold was already closed.
	ReleaseByWithdrawalID(withdrawalID string) (bool, error)
	// SettleByWithdrawalID flips an ACTIVE hold to SETTLED. False when the
	// hold was already closed.
	SettleByWithdrawalID(withdrawalID string) (bool, error)
	SumActiveAmountByWallet(walletID string) (int64, error)
}

type walletHoldRepositoryImpl struct {
	db *gorm.DB
}

func NewWalletHoldRepository(db *gorm.DB) WalletHoldRepository {
	return &walletHoldRepositoryImpl{db: db}
}

func (r *walletHoldRepositoryImpl) WithTx(tx *gorm.DB) WalletHoldRepository {
	return &walletHoldRepositoryImpl{db: tx}
}

func (r *walletHoldRepositoryImpl) Create(walletID, withdrawalID string, amount int64) (*models.WalletHold, error) {
	hold := &models.WalletHold{
		WalletID:     walletID,
		WithdrawalID: withdrawalID,
		Amount:       amount,
		Status:       models.WalletHoldStatusActive,
		Reason:       models.WalletHoldReasonWithdrawal,
	}
	if err := r.db.Create(hold).Error; err != nil {
		return nil, err
	}
	return hold, nil
}

func (r *walletHoldRepositoryImpl) FindByWithdrawalID(withdrawalID string) (*models.WalletHold, error) {
	var hold models.WalletHold
	err := r.db.Where("withdrawal_id = ?", withdrawalID).First(&hold).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrHoldNotFound
	}
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *walletHoldRepositoryImpl) ReleaseByWithdrawalID(withdrawalID string) (bool, error) {
	now := time.Now()
	res := r.db.Model(&models.WalletHold{}).
		Where("withdrawal_id = ? AND status = ?", withdrawalID, models.WalletHoldStatusActive).
		Updates(map[string]interface{}{
			"status":      models.WalletHoldStatusReleased,
			"released_at": &now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *walletHoldRepositoryImpl) SettleByWithdrawalID(withdrawalID string) (bool, error) {
	now := time.Now()
	res := r.db.Model(&models.WalletHold{}).
		Where("withdrawal_id = ? AND status = ?", withdrawalID, models.WalletHoldStatusActive).
		Updates(map[string]interface{}{
			"status":     models.WalletHoldStatusSettled,
			"settled_at": &now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *walletHoldRepositoryImpl) SumActiveAmountByWallet(walletID string) (int64, error) {
	var total int64
	err := r.db.Model(&models.WalletHold{}).
		Where("wallet_id = ? AND status = ?", walletID, models.WalletHoldStatusActive).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
