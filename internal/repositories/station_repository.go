package repositories

import (
	"errors"

	"mebike/internal/models"

	"gorm.io/gorm"
)

type StationRepository interface {
	WithTx(tx *gorm.DB) StationRepository

	GetByID(id string) (*models.Station, error)
}

type stationRepositoryImpl struct {
	db *gorm.DB
}

func NewStationRepository(db *gorm.DB) StationRepository {
	return &stationRepositoryImpl{db: db}
}

func (r *stationRepositoryImpl) WithTx(tx *gorm.DB) StationRepository {
	return &stationRepositoryImpl{db: tx}
}

func (r *stationRepositoryImpl) GetByID(id string) (*models.Station, error) {
	var station models.Station
	err := r.db.Where("id = ?", id).First(&station).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &station, nil
}
