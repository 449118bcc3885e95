package reservation

import "errors"

// Service errors
var (
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrReservationNotOwned     = errors.New("reservation belongs to another user")
	ErrInvalidTransition       = errors.New("reservation is not in a state that allows this transition")
	ErrReservationMissingBike  = errors.New("reservation has no bike assigned")
	ErrActiveReservationExists = errors.New("user already has an active reservation")
	ErrBikeAlreadyReserved     = errors.New("bike already reserved")
	ErrSlotAlreadyReserved     = errors.New("fixed slot already reserved for this start time")
	ErrFixedSlotUnsupported    = errors.New("fixed slot reservations are assigned by the batch job")
	ErrBikeUnavailable         = errors.New("bike is not available")
	ErrBikeNotAtStation        = errors.New("bike does not belong to the requested station")
	ErrSubscriptionRequired    = errors.New("subscription missing or not usable")
	ErrHoldExpired             = errors.New("reservation hold has expired")
)
