package repositories

import (
	"errors"

	"mebike/internal/models"

	"gorm.io/gorm"
)

// BikeRepository guards bike state with conditional updates. The status
// machine is AVAILABLE -> RESERVED -> BOOKED, with RESERVED -> AVAILABLE on
// cancel or expiry.
type BikeRepository interface {
	WithTx(tx *gorm.DB) BikeRepository

	GetByID(id string) (*models.Bike, error)
	// ReserveIfAvailable flips AVAILABLE -> RESERVED. False means someone
	// else got the bike first.
	ReserveIfAvailable(bikeID string) (bool, error)
	// BookIfReserved flips RESERVED -> BOOKED on confirmation.
	BookIfReserved(bikeID string) (bool, error)
	// ReleaseIfReserved flips RESERVED -> AVAILABLE on cancel/expiry.
	ReleaseIfReserved(bikeID string) (bool, error)
	FindAvailableByStation(stationID string, limit int) ([]models.Bike, error)
}

type bikeRepositoryImpl struct {
	db *gorm.DB
}

func NewBikeRepository(db *gorm.DB) BikeRepository {
	return &bikeRepositoryImpl{db: db}
}

func (r *bikeRepositoryImpl) WithTx(tx *gorm.DB) BikeRepository {
	return &bikeRepositoryImpl{db: tx}
}

func (r *bikeRepositoryImpl) GetByID(id string) (*models.Bike, error) {
	var bike models.Bike
	err := r.db.Where("id = ?", id).First(&bike).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBikeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bike, nil
}

func (r *bikeRepositoryImpl) ReserveIfAvailable(bikeID string) (bool, error) {
	res := r.db.Model(&models.Bike{}).
		Where("id = ? AND status = ?", bikeID, models.BikeStatusAvailable).
		Update("status", models.BikeStatusReserved)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *bikeRepositoryImpl) BookIfReserved(bikeID string) (bool, error) {
	res := r.db.Model(&models.Bike{}).
		Where("id = ? AND status = ?", bikeID, models.BikeStatusReserved).
		Update("status", models.BikeStatusBooked)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *bikeRepositoryImpl) ReleaseIfReserved(bikeID string) (bool, error) {
	res := r.db.Model(&models.Bike{}).
		Where("id = ? AND status = ?", bikeID, models.BikeStatusReserved).
		Update("status", models.BikeStatusAvailable)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *bikeRepositoryImpl) FindAvailableByStation(stationID string, limit int) ([]models.Bike, error) {
	var bikes []models.Bike
	err := r.db.Where("station_id = ? AND status = ?", stationID, models.BikeStatusAvailable).
		Order("chip_id ASC").
		Limit(limit).
		Find(&bikes).Error
	if err != nil {
		return nil, err
	}
	return bikes, nil
}
