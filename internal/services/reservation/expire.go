package reservation

import (
	"time"

	"mebike/internal/models"
	"mebike/internal/repositories"

	"gorm.io/gorm"
)

// ExpireHold is the expire-hold job handler. The conditional flip means a
// job delivered early, late or twice does nothing wrong: only a PENDING hold
// whose end time has truly passed is expired. The prepaid amount is forfeited
// on expiry.
func (u *UseCases) ExpireHold(reservationID string) error {
	now := time.Now()
	return repositories.RunInTransaction(u.db, func(tx *gorm.DB) error {
		row, expired, err := u.svc.ExpireHoldInTx(tx, reservationID, now)
		if err != nil {
			return err
		}
		if !expired {
			// Confirmed, cancelled or not yet due. Nothing to undo.
			return nil
		}
		return u.releaseExpired(tx, row)
	})
}

// ExpireOverdueHolds is the bulk sweep behind the periodic expiry pass. Each
// flipped row gets the same bike/rental release as the single-row path.
func (u *UseCases) ExpireOverdueHolds() (int, error) {
	now := time.Now()
	expired := 0
	err := repositories.RunInTransaction(u.db, func(tx *gorm.DB) error {
		rows, err := u.svc.MarkExpiredNow(tx, now)
		if err != nil {
			return err
		}
		for i := range rows {
			if err := u.releaseExpired(tx, &rows[i]); err != nil {
				return err
			}
		}
		expired = len(rows)
		return nil
	})
	return expired, err
}

func (u *UseCases) releaseExpired(tx *gorm.DB, row *models.Reservation) error {
	if _, err := u.rentals.WithTx(tx).CancelReserved(row.ID); err != nil {
		return err
	}
	if row.BikeID != nil {
		if _, err := u.bikes.WithTx(tx).ReleaseIfReserved(*row.BikeID); err != nil {
			return err
		}
	}
	_, _ = u.outbox.WithTx(tx).CancelByDedupeKey(models.JobTypeReservationNotifyNearExpiry, notifyDedupeKey(row.ID))
	return nil
}
