package repositories

import (
	"errors"

	"mebike/internal/models"

	"gorm.io/gorm"
)

// UserRepository covers the lookups the wallet and payout flows need, plus
// the Stripe Connect bookkeeping driven by account.updated webhooks.
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository

	Create(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	FindByStripeAccountID(accountID string) (*models.User, error)
	SetStripeAccount(userID, accountID string) error
	SetStripePayoutsEnabled(accountID string, enabled bool) error
}

type userRepositoryImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepositoryImpl{db: db}
}

func (r *userRepositoryImpl) WithTx(tx *gorm.DB) UserRepository {
	return &userRepositoryImpl{db: tx}
}

func (r *userRepositoryImpl) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *userRepositoryImpl) GetByID(id string) (*models.User, error) {
	var user models.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepositoryImpl) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepositoryImpl) FindByStripeAccountID(accountID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("stripe_connected_account_id = ?", accountID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepositoryImpl) SetStripeAccount(userID, accountID string) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("stripe_connected_account_id", accountID).Error
}

func (r *userRepositoryImpl) SetStripePayoutsEnabled(accountID string, enabled bool) error {
	return r.db.Model(&models.User{}).
		Where("stripe_connected_account_id = ?", accountID).
		Update("stripe_payouts_enabled", enabled).Error
}
