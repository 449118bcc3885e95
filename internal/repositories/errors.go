package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrWalletHashExists        = errors.New("wallet transaction hash already recorded")
	ErrInsufficientBalance     = errors.New("insufficient wallet balance")
	ErrDuplicateWallet         = errors.New("wallet already exists")
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrRentalNotFound          = errors.New("rental not found")
	ErrBikeAlreadyReserved     = errors.New("bike already reserved")
	ErrActiveReservationExists = errors.New("user already has an active reservation")
	ErrSlotAlreadyReserved     = errors.New("fixed slot already reserved for this start time")
	ErrWithdrawalNotFound      = errors.New("withdrawal not found")
	ErrHoldNotFound            = errors.New("wallet hold not found")
	ErrAttemptNotFound         = errors.New("payment attempt not found")
	ErrDuplicateProviderRef    = errors.New("provider reference already attached to another attempt")
	ErrDuplicateJob            = errors.New("job with this dedupe key is already pending")
	ErrBikeNotFound            = errors.New("bike not found")
	ErrStationNotFound         = errors.New("station not found")
	ErrUserNotFound            = errors.New("user not found")
	ErrSubscriptionNotFound    = errors.New("subscription not found")
	ErrSubscriptionExhausted   = errors.New("subscription usage limit reached")
	ErrTemplateNotFound        = errors.New("fixed slot template not found")
	ErrSlotDateScheduled       = errors.New("fixed slot date already scheduled")
)

const pgUniqueViolation = "23505"

// Constraint names created by InitDB; unique violations are mapped to typed
// conflicts by the constraint that fired.
const (
	constraintReservationUserActive = "uniq_reservations_user_active"
	constraintReservationBikeActive = "uniq_reservations_bike_active"
	constraintReservationSlotStart  = "uniq_reservations_template_start"
	constraintWalletTxHash          = "uniq_wallet_transactions_hash"
	constraintWithdrawalIdem        = "uniq_wallet_withdrawals_idem"
	constraintAttemptProviderRef    = "uniq_payment_attempts_provider_ref"
	constraintJobDedupe             = "uniq_job_outbox_type_dedupe"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func uniqueConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}
