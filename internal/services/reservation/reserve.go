package reservation

import (
	"errors"
	"time"

	"mebike/internal/models"
	"mebike/internal/repositories"
	"mebike/internal/services/wallet"

	"gorm.io/gorm"
)

// ReserveBikeInput is the reserve-bike request after boundary validation.
type ReserveBikeInput struct {
	UserID         string
	BikeID         string
	StationID      string
	Option         string
	SubscriptionID *string
}

// ReserveBike grants the caller a time-boxed exclusive hold on a bike. The
// whole flow is one transaction: hold checks, payment (wallet debit or
// subscription use), reservation + rental insert, conditional bike flip and
// the expiry/notify/confirmation jobs all commit or roll back together.
func (u *UseCases) ReserveBike(input ReserveBikeInput) (*models.Reservation, error) {
	if input.Option == models.ReservationOptionFixedSlot {
		return nil, ErrFixedSlotUnsupported
	}
	if input.Option == "" {
		input.Option = models.ReservationOptionOneTime
	}

	now := time.Now()
	endTime := now.Add(u.cfg.HoldTTL)

	var created *models.Reservation
	err := repositories.RunInTransaction(u.db, func(tx *gorm.DB) error {
		resRepo := u.reservations.WithTx(tx)

		// Hold checks. The partial unique indexes are the real guard; these
		// reads exist to give callers a typed answer before any mutation.
		if _, err := resRepo.PendingHoldByUserNow(input.UserID, now); err == nil {
			return ErrActiveReservationExists
		} else if !errors.Is(err, repositories.ErrReservationNotFound) {
			return err
		}
		if _, err := resRepo.PendingHoldByBikeNow(input.BikeID, now); err == nil {
			return ErrBikeAlreadyReserved
		} else if !errors.Is(err, repositories.ErrReservationNotFound) {
			return err
		}
		// Broader than the hold check: FIXED_SLOT placeholders and ACTIVE
		// rides also block a new reservation.
		if _, err := resRepo.LatestPendingOrActiveByUser(input.UserID); err == nil {
			return ErrActiveReservationExists
		} else if !errors.Is(err, repositories.ErrReservationNotFound) {
			return err
		}

		bike, err := u.bikes.WithTx(tx).GetByID(input.BikeID)
		if err != nil {
			return err
		}
		if bike.StationID == nil || *bike.StationID != input.StationID {
			return ErrBikeNotAtStation
		}
		if bike.Status != models.BikeStatusAvailable {
			return ErrBikeUnavailable
		}

		prepaid := int64(0)
		switch input.Option {
		case models.ReservationOptionSubscription:
			if input.SubscriptionID == nil {
				return ErrSubscriptionRequired
			}
			if err := u.subscriptions.WithTx(tx).UseOne(*input.SubscriptionID); err != nil {
				if errors.Is(err, repositories.ErrSubscriptionNotFound) ||
					errors.Is(err, repositories.ErrSubscriptionExhausted) {
					return ErrSubscriptionRequired
				}
				return err
			}
		default:
			prepaid = u.cfg.PrepaidAmount
			if _, err := u.wallets.DebitInTx(tx, wallet.DebitInput{
				UserID:      input.UserID,
				Amount:      prepaid,
				Description: "Reservation prepaid charge",
				Type:        models.TransactionTypeDebit,
			}); err != nil {
				return err
			}
		}

		created, err = u.svc.ReserveHoldInTx(tx, repositories.CreateReservationInput{
			UserID:         input.UserID,
			BikeID:         &input.BikeID,
			StationID:      input.StationID,
			Option:         input.Option,
			Prepaid:        prepaid,
			StartTime:      now,
			EndTime:        &endTime,
			SubscriptionID: input.SubscriptionID,
		})
		if err != nil {
			return err
		}

		if _, err := u.rentals.WithTx(tx).CreateReservedForReservation(repositories.CreateRentalInput{
			UserID:         input.UserID,
			BikeID:         &input.BikeID,
			ReservationID:  created.ID,
			StartStationID: input.StationID,
			SubscriptionID: input.SubscriptionID,
			StartTime:      now,
		}); err != nil {
			return err
		}

		ok, err := u.bikes.WithTx(tx).ReserveIfAvailable(input.BikeID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrBikeAlreadyReserved
		}

		return u.enqueueHoldJobs(tx, created, endTime)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// enqueueHoldJobs schedules the near-expiry notice, the expiry execution and
// the confirmation email for a fresh hold. ErrDuplicateJob means a re-run
// already enqueued the job, which is the point of the dedupe key.
func (u *UseCases) enqueueHoldJobs(tx *gorm.DB, res *models.Reservation, endTime time.Time) error {
	outbox := u.outbox.WithTx(tx)

	notifyAt := endTime.Add(-u.cfg.NotifyLead)
	jobs := []repositories.EnqueueJobInput{
		{
			Type:      models.JobTypeReservationNotifyNearExpiry,
			DedupeKey: strPtr(notifyDedupeKey(res.ID)),
			Payload:   models.JSON{"reservationId": res.ID, "userId": res.UserID},
			RunAt:     notifyAt,
		},
		{
			Type:      models.JobTypeReservationExpireHold,
			DedupeKey: strPtr(expireDedupeKey(res.ID)),
			Payload:   models.JSON{"reservationId": res.ID},
			RunAt:     endTime,
		},
		{
			Type:      models.JobTypeEmailSend,
			DedupeKey: strPtr(confirmEmailDedupeKey(res.ID)),
			Payload: models.JSON{
				"template":      "reservation-confirmed",
				"userId":        res.UserID,
				"reservationId": res.ID,
			},
			RunAt: time.Now(),
		},
	}
	for _, job := range jobs {
		if _, err := outbox.Enqueue(job); err != nil && !errors.Is(err, repositories.ErrDuplicateJob) {
			return err
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }
