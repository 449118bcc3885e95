package reservation

import (
	"fmt"
	"time"

	"mebike/internal/repositories"
	"mebike/internal/services/wallet"

	"gorm.io/gorm"
)

// Config carries the reservation tuning knobs, resolved once at startup.
type Config struct {
	// HoldTTL is how long a hold stays reservable before expiry.
	HoldTTL time.Duration
	// PrepaidAmount is the ONE_TIME up-front charge in minor units.
	PrepaidAmount int64
	// NotifyLead is how long before expiry the near-expiry notice fires.
	NotifyLead time.Duration
	// RefundPeriod bounds how long after creation a cancellation still
	// refunds the prepaid amount.
	RefundPeriod time.Duration
}

// UseCases orchestrates reservations, money and bike state. Each operation
// runs in a single transaction; jobs are enqueued through the outbox in that
// same transaction so a commit produces both or neither.
type UseCases struct {
	db            *gorm.DB
	svc           *Service
	wallets       wallet.Service
	reservations  repositories.ReservationRepository
	rentals       repositories.RentalRepository
	bikes         repositories.BikeRepository
	subscriptions repositories.SubscriptionRepository
	fixedSlots    repositories.FixedSlotRepository
	outbox        repositories.JobOutboxRepository
	cfg           Config
}

func NewUseCases(
	db *gorm.DB,
	svc *Service,
	wallets wallet.Service,
	reservations repositories.ReservationRepository,
	rentals repositories.RentalRepository,
	bikes repositories.BikeRepository,
	subscriptions repositories.SubscriptionRepository,
	fixedSlots repositories.FixedSlotRepository,
	outbox repositories.JobOutboxRepository,
	cfg Config,
) *UseCases {
	return &UseCases{
		db:            db,
		svc:           svc,
		wallets:       wallets,
		reservations:  reservations,
		rentals:       rentals,
		bikes:         bikes,
		subscriptions: subscriptions,
		fixedSlots:    fixedSlots,
		outbox:        outbox,
		cfg:           cfg,
	}
}

// Outbox dedupe keys and idempotency hashes. Keyed by business id so
// re-enqueues and replays collapse onto the existing row.

func notifyDedupeKey(reservationID string) string {
	return fmt.Sprintf("reservation:notify:%s", reservationID)
}

func expireDedupeKey(reservationID string) string {
	return fmt.Sprintf("reservation:expire:%s", reservationID)
}

func confirmEmailDedupeKey(reservationID string) string {
	return fmt.Sprintf("reservation-confirm:%s", reservationID)
}

func refundHash(reservationID string) string {
	return fmt.Sprintf("refund:reservation:%s", reservationID)
}
