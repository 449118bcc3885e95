package repositories

import (
	"errors"

	"mebike/internal/models"

	"gorm.io/gorm"
)

// PaymentAttemptRepository records provider payment intents. The composite
// unique index on (provider, provider_ref) is what makes webhook application
// idempotent at the row level: the same checkout session can only ever attach
// to one attempt.
type PaymentAttemptRepository interface {
	WithTx(tx *gorm.DB) PaymentAttemptRepository

	Create(attempt *models.PaymentAttempt) error
	// AttachProviderRef stamps the provider's reference on an attempt after
	// the provider call succeeds. ErrDuplicateProviderRef when another
	// attempt already owns the reference.
	AttachProviderRef(attemptID, provider, providerRef string) error
	FindByID(id string) (*models.PaymentAttempt, error)
	FindByProviderRef(provider, providerRef string) (*models.PaymentAttempt, error)
	// MarkSucceededIfPending flips PENDING -> SUCCEEDED. False means some
	// other delivery of the same event got there first, or the attempt was
	// already failed.
	MarkSucceededIfPending(attemptID string) (bool, error)
	MarkFailedIfPending(attemptID, reason string) (bool, error)
}

type paymentAttemptRepositoryImpl struct {
	db *gorm.DB
}

func NewPaymentAttemptRepository(db *gorm.DB) PaymentAttemptRepository {
	return &paymentAttemptRepositoryImpl{db: db}
}

func (r *paymentAttemptRepositoryImpl) WithTx(tx *gorm.DB) PaymentAttemptRepository {
	return &paymentAttemptRepositoryImpl{db: tx}
}

func (r *paymentAttemptRepositoryImpl) Create(attempt *models.PaymentAttempt) error {
	if attempt.Status == "" {
		attempt.Status = models.PaymentAttemptStatusPending
	}
	if err := r.db.Create(attempt).Error; err != nil {
		if isUniqueViolation(err) && uniqueConstraintName(err) == constraintAttemptProviderRef {
			return ErrDuplicateProviderRef
		}
		return err
	}
	return nil
}

func (r *paymentAttemptRepositoryImpl) AttachProviderRef(attemptID, provider, providerRef string) error {
	err := r.db.Model(&models.PaymentAttempt{}).
		Where("id = ?", attemptID).
		Updates(map[string]interface{}{
			"provider":     provider,
			"provider_ref": providerRef,
		}).Error
	if err != nil {
		if isUniqueViolation(err) && uniqueConstraintName(err) == constraintAttemptProviderRef {
			return ErrDuplicateProviderRef
		}
		return err
	}
	return nil
}

func (r *paymentAttemptRepositoryImpl) FindByID(id string) (*models.PaymentAttempt, error) {
	var row models.PaymentAttempt
	err := r.db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *paymentAttemptRepositoryImpl) FindByProviderRef(provider, providerRef string) (*models.PaymentAttempt, error) {
	var row models.PaymentAttempt
	err := r.db.Where("provider = ? AND provider_ref = ?", provider, providerRef).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *paymentAttemptRepositoryImpl) MarkSucceededIfPending(attemptID string) (bool, error) {
	res := r.db.Model(&models.PaymentAttempt{}).
		Where("id = ? AND status = ?", attemptID, models.PaymentAttemptStatusPending).
		Update("status", models.PaymentAttemptStatusSucceeded)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *paymentAttemptRepositoryImpl) MarkFailedIfPending(attemptID, reason string) (bool, error) {
	res := r.db.Model(&models.PaymentAttempt{}).
		Where("id = ? AND status = ?", attemptID, models.PaymentAttemptStatusPending).
		Updates(map[string]interface{}{
			"status":         models.PaymentAttemptStatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
