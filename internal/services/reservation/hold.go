package reservation

import (
	"errors"
	"time"

	"mebike/internal/models"
	"mebike/internal/repositories"
)

// HoldService answers "does user/bike X have a live hold right now". The
// time-window queries exclude FIXED_SLOT rows (end time unset until the
// batch job assigns a bike); the status-only query includes them. Both exist
// on purpose and must not be collapsed.
type HoldService struct {
	reservations repositories.ReservationRepository
}

func NewHoldService(reservations repositories.ReservationRepository) *HoldService {
	return &HoldService{reservations: reservations}
}

// CurrentHoldForUser returns the user's live hold, or nil when there is none.
func (s *HoldService) CurrentHoldForUser(userID string, now time.Time) (*models.Reservation, error) {
	row, err := s.reservations.PendingHoldByUserNow(userID, now)
	if errors.Is(err, repositories.ErrReservationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// CurrentHoldForBike returns the bike's live hold, or nil when there is none.
func (s *HoldService) CurrentHoldForBike(bikeID string, now time.Time) (*models.Reservation, error) {
	row, err := s.reservations.PendingHoldByBikeNow(bikeID, now)
	if errors.Is(err, repositories.ErrReservationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// LatestPendingOrActive is the status-only check backing the one-reservation-
// per-user rule. Unlike the hold queries it does include FIXED_SLOT rows.
func (s *HoldService) LatestPendingOrActive(userID string) (*models.Reservation, error) {
	row, err := s.reservations.LatestPendingOrActiveByUser(userID)
	if errors.Is(err, repositories.ErrReservationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// NextUpcoming returns the user's next reservation starting after now.
func (s *HoldService) NextUpcoming(userID string, now time.Time) (*models.Reservation, error) {
	row, err := s.reservations.NextUpcomingByUser(userID, now)
	if errors.Is(err, repositories.ErrReservationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *HoldService) ListForUser(userID string, limit, offset int) ([]models.Reservation, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.reservations.ListForUser(userID, limit, offset)
}
