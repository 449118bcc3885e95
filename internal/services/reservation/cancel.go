package reservation

import (
	"context"
	"errors"
	"log"
	"time"

	"mebike/internal/models"
	"mebike/internal/repositories"
	"mebike/internal/services/wallet"

	"gorm.io/gorm"
)

// CancelReservation cancels the caller's PENDING hold: reservation ->
// CANCELLED, rental -> CANCELLED, bike released, jobs withdrawn — all in one
// transaction. The prepaid refund happens after commit: cancellation must not
// fail because the refund did, and the refund hash makes retries safe.
func (u *UseCases) CancelReservation(reservationID, userID string) (*models.Reservation, error) {
	var cancelled *models.Reservation
	err := repositories.RunInTransaction(u.db, func(tx *gorm.DB) error {
		row, err := u.svc.CancelPendingInTx(tx, reservationID, userID)
		if err != nil {
			return err
		}

		if _, err := u.rentals.WithTx(tx).CancelReserved(row.ID); err != nil {
			return err
		}

		if row.BikeID != nil {
			ok, err := u.bikes.WithTx(tx).ReleaseIfReserved(*row.BikeID)
			if err != nil {
				return err
			}
			if !ok {
				bike, err := u.bikes.WithTx(tx).GetByID(*row.BikeID)
				if err != nil {
					return err
				}
				// BOOKED or MAINTENANCE here means the state machine was
				// bypassed somewhere; refuse rather than paper over it.
				if bike.Status != models.BikeStatusAvailable {
					return ErrBikeUnavailable
				}
			}
		}

		u.cancelHoldJobs(tx, row.ID)
		cancelled = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.refundAfterCancel(cancelled)
	return cancelled, nil
}

// refundAfterCancel credits the prepaid amount back when the cancellation
// qualifies. Runs after the cancel transaction committed; failures are logged
// and swallowed because the cancellation itself already succeeded, and the
// refund hash keeps any retry from paying twice.
func (u *UseCases) refundAfterCancel(res *models.Reservation) {
	if res.ReservationOption != models.ReservationOptionOneTime {
		return
	}
	if res.SubscriptionID != nil || res.FixedSlotTemplateID != nil {
		return
	}
	if res.Prepaid <= 0 {
		return
	}
	if time.Since(res.CreatedAt) > u.cfg.RefundPeriod {
		return
	}

	hash := refundHash(res.ID)
	_, err := u.wallets.Credit(context.Background(), wallet.CreditInput{
		UserID:      res.UserID,
		Amount:      res.Prepaid,
		Description: "Reservation cancellation refund",
		Hash:        &hash,
		Type:        models.TransactionTypeRefund,
	})
	if err != nil && !errors.Is(err, wallet.ErrDuplicateOperation) {
		log.Printf("reservation %s cancelled but refund failed: %v", res.ID, err)
	}
}
