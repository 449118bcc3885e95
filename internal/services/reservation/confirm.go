package reservation

import (
	"time"

	"mebike/internal/models"
	"mebike/internal/repositories"

	"gorm.io/gorm"
)

// ConfirmReservation moves the caller's hold to ACTIVE: reservation
// PENDING -> ACTIVE, rental RESERVED -> RENTED, bike RESERVED -> BOOKED, and
// the pending expiry/notify jobs are cancelled. One transaction.
func (u *UseCases) ConfirmReservation(reservationID, userID string) (*models.Reservation, error) {
	now := time.Now()

	var confirmed *models.Reservation
	err := repositories.RunInTransaction(u.db, func(tx *gorm.DB) error {
		row, bikeID, err := u.svc.ConfirmPendingInTx(tx, reservationID, userID, now)
		if err != nil {
			return err
		}

		ok, err := u.rentals.WithTx(tx).StartReserved(row.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}

		ok, err = u.bikes.WithTx(tx).BookIfReserved(bikeID)
		if err != nil {
			return err
		}
		if !ok {
			// The bike moved underneath us; surface its real status instead
			// of silently succeeding.
			return ErrBikeUnavailable
		}

		u.cancelHoldJobs(tx, row.ID)
		confirmed = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// cancelHoldJobs withdraws the pending notify/expire jobs for a hold that
// reached a terminal decision. Best effort: a job that already ran simply has
// nothing left to cancel.
func (u *UseCases) cancelHoldJobs(tx *gorm.DB, reservationID string) {
	outbox := u.outbox.WithTx(tx)
	_, _ = outbox.CancelByDedupeKey(models.JobTypeReservationNotifyNearExpiry, notifyDedupeKey(reservationID))
	_, _ = outbox.CancelByDedupeKey(models.JobTypeReservationExpireHold, expireDedupeKey(reservationID))
}
