package withdrawal

import "errors"

// Service errors
var (
	ErrAmountBelowMinimum  = errors.New("withdrawal amount below minimum")
	ErrNoPayoutAccount     = errors.New("user has no payout-enabled account")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrUnsupportedCurrency = errors.New("withdrawal currency not supported")
)
