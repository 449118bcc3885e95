package repositories

import (
	"errors"
	"time"

	"mebike/internal/models"

	"gorm.io/gorm"
)

// WithdrawalRepository persists withdrawal rows through their
// PENDING -> PROCESSING -> SUCCEEDED/FAILED lifecycle. Every transition is a
// conditional update so two workers can never both own the same row.
type WithdrawalRepository interface {
	WithTx(tx *gorm.DB) WithdrawalRepository

	// CreatePending inserts a PENDING withdrawal. When the idempotency key
	// already exists the stored row is returned instead, with created=false.
	CreatePending(userID, walletID string, amount int64, currency, idempotencyKey string) (*models.WalletWithdrawal, bool, error)
	FindByID(id string) (*models.WalletWithdrawal, error)
	FindByIdempotencyKey(key string) (*models.WalletWithdrawal, error)
	FindByPayoutID(payoutID string) (*models.WalletWithdrawal, error)
	// FindProcessingBefore lists PROCESSING rows whose claim is older than
	// staleBefore. These are orphans of crashed workers.
	FindProcessingBefore(staleBefore time.Time, limit int) ([]models.WalletWithdrawal, error)
	// MarkProcessing claims the row: PENDING rows and stale PROCESSING rows
	// (processing_at < staleBefore) are taken, fresh claims are left alone.
	MarkProcessing(id string, staleBefore time.Time) (bool, error)
	SetStripeRefs(id string, transferID, payoutID *string) error
	MarkSucceeded(id string) (bool, error)
	MarkFailed(id string, reason string) (bool, error)
}

type withdrawalRepositoryImpl struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) WithdrawalRepository {
	return &withdrawalRepositoryImpl{db: db}
}

func (r *withdrawalRepositoryImpl) WithTx(tx *gorm.DB) WithdrawalRepository {
	return &withdrawalRepositoryImpl{db: tx}
}

func (r *withdrawalRepositoryImpl) CreatePending(userID, walletID string, amount int64, currency, idempotencyKey string) (*models.WalletWithdrawal, bool, error) {
	row := &models.WalletWithdrawal{
		UserID:         userID,
		WalletID:       walletID,
		Amount:         amount,
		Currency:       currency,
		Status:         models.WithdrawalStatusPending,
		IdempotencyKey: idempotencyKey,
	}
	err := r.db.Create(row).Error
	if err == nil {
		return row, true, nil
	}
	if !isUniqueViolation(err) || uniqueConstraintName(err) != constraintWithdrawalIdem {
		return nil, false, err
	}
	existing, findErr := r.FindByIdempotencyKey(idempotencyKey)
	if findErr != nil {
		return nil, false, findErr
	}
	return existing, false, nil
}

func (r *withdrawalRepositoryImpl) FindByID(id string) (*models.WalletWithdrawal, error) {
	var row models.WalletWithdrawal
	err := r.db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *withdrawalRepositoryImpl) FindByIdempotencyKey(key string) (*models.WalletWithdrawal, error) {
	var row models.WalletWithdrawal
	err := r.db.Where("idempotency_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *withdrawalRepositoryImpl) FindByPayoutID(payoutID string) (*models.WalletWithdrawal, error) {
	var row models.WalletWithdrawal
	err := r.db.Where("stripe_payout_id = ?", payoutID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *withdrawalRepositoryImpl) FindProcessingBefore(staleBefore time.Time, limit int) ([]models.WalletWithdrawal, error) {
	var rows []models.WalletWithdrawal
	err := r.db.Where("status = ? AND processing_at < ?", models.WithdrawalStatusProcessing, staleBefore).
		Order("processing_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *withdrawalRepositoryImpl) MarkProcessing(id string, staleBefore time.Time) (bool, error) {
	now := time.Now()
	res := r.db.Model(&models.WalletWithdrawal{}).
		Where(
			"id = ? AND (status = ? OR (status = ? AND processing_at < ?))",
			id, models.WithdrawalStatusPending, models.WithdrawalStatusProcessing, staleBefore,
		).
		Updates(map[string]interface{}{
			"status":        models.WithdrawalStatusProcessing,
			"processing_at": &now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *withdrawalRepositoryImpl) SetStripeRefs(id string, transferID, payoutID *string) error {
	updates := map[string]interface{}{}
	if transferID != nil {
		updates["stripe_transfer_id"] = transferID
	}
	if payoutID != nil {
		updates["stripe_payout_id"] = payoutID
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.WalletWithdrawal{}).Where("id = ?", id).Updates(updates).Error
}

func (r *withdrawalRepositoryImpl) MarkSucceeded(id string) (bool, error) {
	res := r.db.Model(&models.WalletWithdrawal{}).
		Where("id = ? AND status = ?", id, models.WithdrawalStatusProcessing).
		Update("status", models.WithdrawalStatusSucceeded)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *withdrawalRepositoryImpl) MarkFailed(id string, reason string) (bool, error) {
	res := r.db.Model(&models.WalletWithdrawal{}).
		Where("id = ? AND status IN ?", id, []string{models.WithdrawalStatusPending, models.WithdrawalStatusProcessing}).
		Updates(map[string]interface{}{
			"status":         models.WithdrawalStatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
