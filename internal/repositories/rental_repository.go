package repositories

import (
	"errors"
	"time"

	"mebike/internal/models"

	"gorm.io/gorm"
)

// CreateRentalInput seeds the shadow rental row next to a new reservation.
// BikeID stays nil for fixed-slot placeholders until the batch job assigns
// one.
type CreateRentalInput struct {
	UserID         string
	BikeID         *string
	ReservationID  string
	StartStationID string
	SubscriptionID *string
	StartTime      time.Time
}

// RentalRepository keeps the ride rows shadowing reservations. A confirmed
// reservation flips its RESERVED rental to RENTED; a cancelled or expired one
// flips it to CANCELLED.
type RentalRepository interface {
	WithTx(tx *gorm.DB) RentalRepository

	CreateReservedForReservation(input CreateRentalInput) (*models.Rental, error)
	FindByReservationID(reservationID string) (*models.Rental, error)
	// StartReserved flips the reservation's rental RESERVED -> RENTED.
	StartReserved(reservationID string) (bool, error)
	// CancelReserved flips the reservation's rental RESERVED -> CANCELLED.
	CancelReserved(reservationID string) (bool, error)
	// AssignBike backfills the bike on a RESERVED rental created without one.
	AssignBike(reservationID, bikeID string) (bool, error)
}

type rentalRepositoryImpl struct {
	db *gorm.DB
}

func NewRentalRepository(db *gorm.DB) RentalRepository {
	return &rentalRepositoryImpl{db: db}
}

func (r *rentalRepositoryImpl) WithTx(tx *gorm.DB) RentalRepository {
	return &rentalRepositoryImpl{db: tx}
}

func (r *rentalRepositoryImpl) CreateReservedForReservation(input CreateRentalInput) (*models.Rental, error) {
	row := &models.Rental{
		UserID:         input.UserID,
		BikeID:         input.BikeID,
		ReservationID:  &input.ReservationID,
		StartStationID: input.StartStationID,
		SubscriptionID: input.SubscriptionID,
		Status:         models.RentalStatusReserved,
		StartTime:      input.StartTime,
	}
	if err := r.db.Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *rentalRepositoryImpl) FindByReservationID(reservationID string) (*models.Rental, error) {
	var row models.Rental
	err := r.db.Where("reservation_id = ?", reservationID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRentalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *rentalRepositoryImpl) StartReserved(reservationID string) (bool, error) {
	res := r.db.Model(&models.Rental{}).
		Where("reservation_id = ? AND status = ?", reservationID, models.RentalStatusReserved).
		Update("status", models.RentalStatusRented)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *rentalRepositoryImpl) CancelReserved(reservationID string) (bool, error) {
	res := r.db.Model(&models.Rental{}).
		Where("reservation_id = ? AND status = ?", reservationID, models.RentalStatusReserved).
		Update("status", models.RentalStatusCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *rentalRepositoryImpl) AssignBike(reservationID, bikeID string) (bool, error) {
	res := r.db.Model(&models.Rental{}).
		Where("reservation_id = ? AND status = ?", reservationID, models.RentalStatusReserved).
		Update("bike_id", bikeID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
