package reservation

import (
	"errors"
	"time"

	"mebike/internal/models"
	"mebike/internal/repositories"

	"gorm.io/gorm"
)

// Service owns reservation state transitions. It is ignorant of money: the
// use cases in this package combine it with the wallet service inside one
// transaction.
type Service struct {
	reservations repositories.ReservationRepository
	rentals      repositories.RentalRepository
}

func NewService(
	reservations repositories.ReservationRepository,
	rentals repositories.RentalRepository,
) *Service {
	if reservations == nil {
		panic("reservation repository is required")
	}
	if rentals == nil {
		panic("rental repository is required")
	}
	return &Service{reservations: reservations, rentals: rentals}
}

// ReserveHoldInTx inserts a PENDING reservation inside the caller's
// transaction. Uniqueness violations from the partial indexes come back as
// typed conflicts so the caller can retry with a different bike.
func (s *Service) ReserveHoldInTx(tx *gorm.DB, input repositories.CreateReservationInput) (*models.Reservation, error) {
	row, err := s.reservations.WithTx(tx).Create(input)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrActiveReservationExists):
			return nil, ErrActiveReservationExists
		case errors.Is(err, repositories.ErrBikeAlreadyReserved):
			return nil, ErrBikeAlreadyReserved
		case errors.Is(err, repositories.ErrSlotAlreadyReserved):
			return nil, ErrSlotAlreadyReserved
		}
		return nil, err
	}
	return row, nil
}

// ConfirmPendingInTx moves PENDING -> ACTIVE and returns the updated row and
// its bike id. The caller must flip the rental and bike rows in the same
// transaction.
func (s *Service) ConfirmPendingInTx(tx *gorm.DB, reservationID, userID string, now time.Time) (*models.Reservation, string, error) {
	row, err := s.loadOwned(tx, reservationID, userID)
	if err != nil {
		return nil, "", err
	}
	if row.Status != models.ReservationStatusPending {
		return nil, "", ErrInvalidTransition
	}
	if row.EndTime != nil && !row.EndTime.After(now) {
		return nil, "", ErrHoldExpired
	}
	if row.BikeID == nil {
		return nil, "", ErrReservationMissingBike
	}

	ok, err := s.reservations.WithTx(tx).UpdateStatus(row.ID, models.ReservationStatusPending, models.ReservationStatusActive)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrInvalidTransition
	}
	row.Status = models.ReservationStatusActive
	return row, *row.BikeID, nil
}

// CancelPendingInTx moves PENDING -> CANCELLED. Only valid from PENDING.
func (s *Service) CancelPendingInTx(tx *gorm.DB, reservationID, userID string) (*models.Reservation, error) {
	row, err := s.loadOwned(tx, reservationID, userID)
	if err != nil {
		return nil, err
	}
	if row.Status != models.ReservationStatusPending {
		return nil, ErrInvalidTransition
	}

	ok, err := s.reservations.WithTx(tx).UpdateStatus(row.ID, models.ReservationStatusPending, models.ReservationStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	row.Status = models.ReservationStatusCancelled
	return row, nil
}

// ExpireHoldInTx flips one PENDING hold to EXPIRED, but only when its end
// time has passed. Re-runs and early job deliveries affect zero rows.
func (s *Service) ExpireHoldInTx(tx *gorm.DB, reservationID string, now time.Time) (*models.Reservation, bool, error) {
	repo := s.reservations.WithTx(tx)
	row, err := repo.FindByID(reservationID)
	if err != nil {
		if errors.Is(err, repositories.ErrReservationNotFound) {
			return nil, false, ErrReservationNotFound
		}
		return nil, false, err
	}
	ok, err := repo.ExpirePendingHold(reservationID, now)
	if err != nil {
		return nil, false, err
	}
	if ok {
		row.Status = models.ReservationStatusExpired
	}
	return row, ok, nil
}

// MarkExpiredNow sweeps every overdue PENDING hold to EXPIRED. Idempotent.
func (s *Service) MarkExpiredNow(tx *gorm.DB, now time.Time) ([]models.Reservation, error) {
	return s.reservations.WithTx(tx).MarkExpiredNow(now)
}

func (s *Service) loadOwned(tx *gorm.DB, reservationID, userID string) (*models.Reservation, error) {
	row, err := s.reservations.WithTx(tx).FindByID(reservationID)
	if err != nil {
		if errors.Is(err, repositories.ErrReservationNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if row.UserID != userID {
		return nil, ErrReservationNotOwned
	}
	return row, nil
}
