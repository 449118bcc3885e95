package repositories

import (
	"errors"

	"mebike/internal/models"

	"gorm.io/gorm"
)

// SubscriptionRepository meters ride credits. UseOne is the only mutation the
// reservation flow needs; it burns a credit with a single conditional update.
type SubscriptionRepository interface {
	WithTx(tx *gorm.DB) SubscriptionRepository

	GetByID(id string) (*models.Subscription, error)
	// UseOne increments used_count when the subscription is ACTIVE and has
	// credits left. ErrSubscriptionExhausted when it does not.
	UseOne(id string) error
}

type subscriptionRepositoryImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepositoryImpl{db: db}
}

func (r *subscriptionRepositoryImpl) WithTx(tx *gorm.DB) SubscriptionRepository {
	return &subscriptionRepositoryImpl{db: tx}
}

func (r *subscriptionRepositoryImpl) GetByID(id string) (*models.Subscription, error) {
	var row models.Subscription
	err := r.db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *subscriptionRepositoryImpl) UseOne(id string) error {
	res := r.db.Model(&models.Subscription{}).
		Where("id = ? AND status = ? AND used_count < usage_limit", id, models.SubscriptionStatusActive).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(id); err != nil {
			return err
		}
		return ErrSubscriptionExhausted
	}
	return nil
}
