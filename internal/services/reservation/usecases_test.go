package reservation

import (
	"testing"
	"time"

	"mebike/internal/models"
	"mebike/internal/services/wallet"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	mock         sqlmock.Sqlmock
	reservations *fakeReservationRepo
	rentals      *fakeRentalRepo
	bikes        *fakeBikeRepo
	subs         *fakeSubscriptionRepo
	slots        *fakeFixedSlotRepo
	outbox       *fakeOutboxRepo
	wallets      *fakeWalletService
	uc           *UseCases
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock := newTestDB(t)

	f := &fixture{
		mock:         mock,
		reservations: newFakeReservationRepo(),
		rentals:      newFakeRentalRepo(),
		bikes:        newFakeBikeRepo(),
		subs:         newFakeSubscriptionRepo(),
		slots:        newFakeFixedSlotRepo(),
		outbox:       newFakeOutboxRepo(),
		wallets:      newFakeWalletService(),
	}
	svc := NewService(f.reservations, f.rentals)
	f.uc = NewUseCases(db, svc, f.wallets, f.reservations, f.rentals, f.bikes, f.subs, f.slots, f.outbox, Config{
		HoldTTL:       15 * time.Minute,
		PrepaidAmount: 10000,
		NotifyLead:    5 * time.Minute,
		RefundPeriod:  time.Hour,
	})
	return f
}

// expectTx records the transaction boundary the next use case call should
// produce. The fakes handle all row access, so only begin/commit/rollback
// reach the mocked connection.
func (f *fixture) expectTx(commit bool) {
	f.mock.ExpectBegin()
	if commit {
		f.mock.ExpectCommit()
	} else {
		f.mock.ExpectRollback()
	}
}

func TestReserveBike(t *testing.T) {
	t.Run("one time hold debits prepaid and reserves everything", func(t *testing.T) {
		f := newFixture(t)
		f.wallets.addWallet("user-1", 50000)
		f.bikes.addBike("bike-1", "station-1", models.BikeStatusAvailable)

		f.expectTx(true)
		res, err := f.uc.ReserveBike(ReserveBikeInput{
			UserID:    "user-1",
			BikeID:    "bike-1",
			StationID: "station-1",
			Option:    models.ReservationOptionOneTime,
		})
		require.NoError(t, err)

		assert.Equal(t, models.ReservationStatusPending, res.Status)
		require.NotNil(t, res.BikeID)
		assert.Equal(t, "bike-1", *res.BikeID)
		assert.Equal(t, int64(10000), res.Prepaid)
		require.NotNil(t, res.EndTime)
		assert.Equal(t, 15*time.Minute, res.EndTime.Sub(res.StartTime))

		assert.Equal(t, int64(40000), f.wallets.wallets["user-1"].Balance)
		assert.Equal(t, models.BikeStatusReserved, f.bikes.rows["bike-1"].Status)

		rental, err := f.rentals.FindByReservationID(res.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RentalStatusReserved, rental.Status)

		notify := f.outbox.pendingByKey(models.JobTypeReservationNotifyNearExpiry, "reservation:notify:"+res.ID)
		require.NotNil(t, notify)
		assert.Equal(t, res.EndTime.Add(-5*time.Minute), notify.RunAt)
		expire := f.outbox.pendingByKey(models.JobTypeReservationExpireHold, "reservation:expire:"+res.ID)
		require.NotNil(t, expire)
		assert.Equal(t, *res.EndTime, expire.RunAt)
		require.NotNil(t, f.outbox.pendingByKey(models.JobTypeEmailSend, "reservation-confirm:"+res.ID))

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("fixed slot option is rejected before any work", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-1", BikeID: "bike-1", StationID: "station-1",
			Option: models.ReservationOptionFixedSlot,
		})
		assert.ErrorIs(t, err, ErrFixedSlotUnsupported)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("existing hold blocks before wallet or bike are touched", func(t *testing.T) {
		f := newFixture(t)
		f.wallets.addWallet("user-1", 50000)
		f.bikes.addBike("bike-1", "station-1", models.BikeStatusAvailable)
		f.bikes.addBike("bike-2", "station-1", models.BikeStatusAvailable)

		f.expectTx(true)
		_, err := f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-1", BikeID: "bike-1", StationID: "station-1",
		})
		require.NoError(t, err)

		f.expectTx(false)
		_, err = f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-1", BikeID: "bike-2", StationID: "station-1",
		})
		assert.ErrorIs(t, err, ErrActiveReservationExists)

		// Only the first hold's debit went through and bike-2 never moved.
		assert.Equal(t, int64(40000), f.wallets.wallets["user-1"].Balance)
		assert.Equal(t, models.BikeStatusAvailable, f.bikes.rows["bike-2"].Status)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("second user cannot take a bike under hold", func(t *testing.T) {
		f := newFixture(t)
		f.wallets.addWallet("user-1", 50000)
		f.wallets.addWallet("user-2", 50000)
		f.bikes.addBike("bike-1", "station-1", models.BikeStatusAvailable)

		f.expectTx(true)
		_, err := f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-1", BikeID: "bike-1", StationID: "station-1",
		})
		require.NoError(t, err)

		f.expectTx(false)
		_, err = f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-2", BikeID: "bike-1", StationID: "station-1",
		})
		assert.ErrorIs(t, err, ErrBikeAlreadyReserved)
		assert.Equal(t, int64(50000), f.wallets.wallets["user-2"].Balance)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("bike in maintenance is unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.wallets.addWallet("user-1", 50000)
		f.bikes.addBike("bike-1", "station-1", models.BikeStatusMaintenance)

		f.expectTx(false)
		_, err := f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-1", BikeID: "bike-1", StationID: "station-1",
		})
		assert.ErrorIs(t, err, ErrBikeUnavailable)
		assert.Equal(t, int64(50000), f.wallets.wallets["user-1"].Balance)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("bike at another station is refused", func(t *testing.T) {
		f := newFixture(t)
		f.wallets.addWallet("user-1", 50000)
		f.bikes.addBike("bike-1", "station-2", models.BikeStatusAvailable)

		f.expectTx(false)
		_, err := f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-1", BikeID: "bike-1", StationID: "station-1",
		})
		assert.ErrorIs(t, err, ErrBikeNotAtStation)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("subscription hold consumes a use instead of money", func(t *testing.T) {
		f := newFixture(t)
		f.wallets.addWallet("user-1", 50000)
		f.bikes.addBike("bike-1", "station-1", models.BikeStatusAvailable)
		f.subs.rows["sub-1"] = &models.Subscription{
			ID: "sub-1", UserID: "user-1",
			Status: models.SubscriptionStatusActive, UsageLimit: 10, UsedCount: 3,
		}

		subID := "sub-1"
		f.expectTx(true)
		res, err := f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-1", BikeID: "bike-1", StationID: "station-1",
			Option: models.ReservationOptionSubscription, SubscriptionID: &subID,
		})
		require.NoError(t, err)

		assert.Equal(t, int64(0), res.Prepaid)
		assert.Equal(t, 4, f.subs.rows["sub-1"].UsedCount)
		assert.Equal(t, int64(50000), f.wallets.wallets["user-1"].Balance)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("exhausted subscription is refused", func(t *testing.T) {
		f := newFixture(t)
		f.wallets.addWallet("user-1", 50000)
		f.bikes.addBike("bike-1", "station-1", models.BikeStatusAvailable)
		f.subs.rows["sub-1"] = &models.Subscription{
			ID: "sub-1", UserID: "user-1",
			Status: models.SubscriptionStatusActive, UsageLimit: 5, UsedCount: 5,
		}

		subID := "sub-1"
		f.expectTx(false)
		_, err := f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-1", BikeID: "bike-1", StationID: "station-1",
			Option: models.ReservationOptionSubscription, SubscriptionID: &subID,
		})
		assert.ErrorIs(t, err, ErrSubscriptionRequired)
		assert.Equal(t, models.BikeStatusAvailable, f.bikes.rows["bike-1"].Status)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("insufficient available balance rolls everything back", func(t *testing.T) {
		f := newFixture(t)
		f.wallets.addWallet("user-1", 5000)
		f.bikes.addBike("bike-1", "station-1", models.BikeStatusAvailable)

		f.expectTx(false)
		_, err := f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-1", BikeID: "bike-1", StationID: "station-1",
		})
		assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)

		assert.Empty(t, f.reservations.rows)
		assert.Empty(t, f.outbox.jobs)
		assert.Equal(t, models.BikeStatusAvailable, f.bikes.rows["bike-1"].Status)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestConfirmReservation(t *testing.T) {
	reserve := func(t *testing.T, f *fixture) *models.Reservation {
		t.Helper()
		f.wallets.addWallet("user-1", 50000)
		f.bikes.addBike("bike-1", "station-1", models.BikeStatusAvailable)
		f.expectTx(true)
		res, err := f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-1", BikeID: "bike-1", StationID: "station-1",
		})
		require.NoError(t, err)
		return res
	}

	t.Run("pending hold becomes an active ride", func(t *testing.T) {
		f := newFixture(t)
		res := reserve(t, f)

		f.expectTx(true)
		confirmed, err := f.uc.ConfirmReservation(res.ID, "user-1")
		require.NoError(t, err)

		assert.Equal(t, models.ReservationStatusActive, confirmed.Status)
		assert.Equal(t, models.BikeStatusBooked, f.bikes.rows["bike-1"].Status)
		rental, err := f.rentals.FindByReservationID(res.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RentalStatusRented, rental.Status)

		// The pending expiry machinery is withdrawn on confirm.
		assert.Nil(t, f.outbox.pendingByKey(models.JobTypeReservationNotifyNearExpiry, "reservation:notify:"+res.ID))
		assert.Nil(t, f.outbox.pendingByKey(models.JobTypeReservationExpireHold, "reservation:expire:"+res.ID))
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("another user cannot confirm the hold", func(t *testing.T) {
		f := newFixture(t)
		res := reserve(t, f)

		f.expectTx(false)
		_, err := f.uc.ConfirmReservation(res.ID, "user-2")
		assert.ErrorIs(t, err, ErrReservationNotOwned)
		assert.Equal(t, models.ReservationStatusPending, f.reservations.rows[res.ID].Status)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("expired hold cannot be confirmed", func(t *testing.T) {
		f := newFixture(t)
		res := reserve(t, f)
		past := time.Now().Add(-time.Minute)
		f.reservations.rows[res.ID].EndTime = &past

		f.expectTx(false)
		_, err := f.uc.ConfirmReservation(res.ID, "user-1")
		assert.ErrorIs(t, err, ErrHoldExpired)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("confirming twice fails the second time", func(t *testing.T) {
		f := newFixture(t)
		res := reserve(t, f)

		f.expectTx(true)
		_, err := f.uc.ConfirmReservation(res.ID, "user-1")
		require.NoError(t, err)

		f.expectTx(false)
		_, err = f.uc.ConfirmReservation(res.ID, "user-1")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestCancelReservation(t *testing.T) {
	reserve := func(t *testing.T, f *fixture) *models.Reservation {
		t.Helper()
		f.wallets.addWallet("user-1", 50000)
		f.bikes.addBike("bike-1", "station-1", models.BikeStatusAvailable)
		f.expectTx(true)
		res, err := f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-1", BikeID: "bike-1", StationID: "station-1",
		})
		require.NoError(t, err)
		return res
	}

	t.Run("cancel releases the bike and refunds the prepaid amount", func(t *testing.T) {
		f := newFixture(t)
		res := reserve(t, f)
		require.Equal(t, int64(40000), f.wallets.wallets["user-1"].Balance)

		f.expectTx(true)
		cancelled, err := f.uc.CancelReservation(res.ID, "user-1")
		require.NoError(t, err)

		assert.Equal(t, models.ReservationStatusCancelled, cancelled.Status)
		assert.Equal(t, models.BikeStatusAvailable, f.bikes.rows["bike-1"].Status)
		rental, err := f.rentals.FindByReservationID(res.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RentalStatusCancelled, rental.Status)
		assert.Equal(t, int64(50000), f.wallets.wallets["user-1"].Balance)
		assert.True(t, f.wallets.hashes["refund:reservation:"+res.ID])
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("cancelling twice refuses and never refunds twice", func(t *testing.T) {
		f := newFixture(t)
		res := reserve(t, f)

		f.expectTx(true)
		_, err := f.uc.CancelReservation(res.ID, "user-1")
		require.NoError(t, err)

		f.expectTx(false)
		_, err = f.uc.CancelReservation(res.ID, "user-1")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, int64(50000), f.wallets.wallets["user-1"].Balance)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("refund failure does not undo the cancellation", func(t *testing.T) {
		f := newFixture(t)
		res := reserve(t, f)
		f.wallets.creditErr = assert.AnError

		f.expectTx(true)
		cancelled, err := f.uc.CancelReservation(res.ID, "user-1")
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusCancelled, cancelled.Status)
		assert.Equal(t, int64(40000), f.wallets.wallets["user-1"].Balance)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("subscription cancellation refunds nothing", func(t *testing.T) {
		f := newFixture(t)
		f.wallets.addWallet("user-1", 50000)
		f.bikes.addBike("bike-1", "station-1", models.BikeStatusAvailable)
		f.subs.rows["sub-1"] = &models.Subscription{
			ID: "sub-1", UserID: "user-1",
			Status: models.SubscriptionStatusActive, UsageLimit: 10,
		}
		subID := "sub-1"
		f.expectTx(true)
		res, err := f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-1", BikeID: "bike-1", StationID: "station-1",
			Option: models.ReservationOptionSubscription, SubscriptionID: &subID,
		})
		require.NoError(t, err)

		f.expectTx(true)
		_, err = f.uc.CancelReservation(res.ID, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(50000), f.wallets.wallets["user-1"].Balance)
		assert.False(t, f.wallets.hashes["refund:reservation:"+res.ID])
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestExpireHold(t *testing.T) {
	reserve := func(t *testing.T, f *fixture) *models.Reservation {
		t.Helper()
		f.wallets.addWallet("user-1", 50000)
		f.bikes.addBike("bike-1", "station-1", models.BikeStatusAvailable)
		f.expectTx(true)
		res, err := f.uc.ReserveBike(ReserveBikeInput{
			UserID: "user-1", BikeID: "bike-1", StationID: "station-1",
		})
		require.NoError(t, err)
		return res
	}

	t.Run("early delivery leaves the hold untouched", func(t *testing.T) {
		f := newFixture(t)
		res := reserve(t, f)

		f.expectTx(true)
		require.NoError(t, f.uc.ExpireHold(res.ID))

		assert.Equal(t, models.ReservationStatusPending, f.reservations.rows[res.ID].Status)
		assert.Equal(t, models.BikeStatusReserved, f.bikes.rows["bike-1"].Status)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("overdue hold expires and forfeits the prepaid amount", func(t *testing.T) {
		f := newFixture(t)
		res := reserve(t, f)
		past := time.Now().Add(-time.Minute)
		f.reservations.rows[res.ID].EndTime = &past

		f.expectTx(true)
		require.NoError(t, f.uc.ExpireHold(res.ID))

		assert.Equal(t, models.ReservationStatusExpired, f.reservations.rows[res.ID].Status)
		assert.Equal(t, models.BikeStatusAvailable, f.bikes.rows["bike-1"].Status)
		rental, err := f.rentals.FindByReservationID(res.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RentalStatusCancelled, rental.Status)
		// No refund on expiry.
		assert.Equal(t, int64(40000), f.wallets.wallets["user-1"].Balance)

		// Delivering the job again is a no-op.
		f.expectTx(true)
		require.NoError(t, f.uc.ExpireHold(res.ID))
		assert.Equal(t, models.ReservationStatusExpired, f.reservations.rows[res.ID].Status)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("bulk sweep expires every overdue hold", func(t *testing.T) {
		f := newFixture(t)
		res := reserve(t, f)
		past := time.Now().Add(-time.Minute)
		f.reservations.rows[res.ID].EndTime = &past

		f.expectTx(true)
		n, err := f.uc.ExpireOverdueHolds()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, models.ReservationStatusExpired, f.reservations.rows[res.ID].Status)

		f.expectTx(true)
		n, err = f.uc.ExpireOverdueHolds()
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}
