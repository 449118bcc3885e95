package payment

import "errors"

// Provider errors
var (
	ErrNoPayoutAccount   = errors.New("user has no linked payout account")
	ErrPayoutsDisabled   = errors.New("payout account is not payout-enabled")
	ErrAmountOutOfRange  = errors.New("amount not representable by the provider")
	ErrUnsupportedMoney  = errors.New("currency not supported by the provider")
	ErrProviderCall      = errors.New("payment provider call failed")
	ErrPayoutNotFound    = errors.New("payout not found at the provider")
	ErrSessionIncomplete = errors.New("checkout session is not paid")
)

// PayoutState is the provider-side terminal/in-flight view of a payout.
type PayoutState string

const (
	PayoutStatePaid     PayoutState = "paid"
	PayoutStateFailed   PayoutState = "failed"
	PayoutStateCanceled PayoutState = "canceled"
	PayoutStatePending  PayoutState = "pending"
)

// CheckoutSessionInput starts a hosted top-up checkout.
type CheckoutSessionInput struct {
	AttemptID   string
	UserID      string
	AmountMinor int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSessionResult carries what the attempt row needs to record.
type CheckoutSessionResult struct {
	SessionID string
	URL       string
}

// TransferInput moves platform funds to a connected account.
type TransferInput struct {
	WithdrawalID   string
	AccountID      string
	AmountMinor    int64
	Currency       string
	IdempotencyKey string
}

// PayoutInput pays a connected account's balance out to their bank.
type PayoutInput struct {
	WithdrawalID   string
	AccountID      string
	AmountMinor    int64
	Currency       string
	IdempotencyKey string
}

// Provider is the payment provider boundary. All mutating calls carry an
// idempotency key derived from internal entity ids so a retried call cannot
// move money twice.
type Provider interface {
	CreateCheckoutSession(input CheckoutSessionInput) (*CheckoutSessionResult, error)
	CreateTransfer(input TransferInput) (string, error)
	CreatePayout(input PayoutInput) (string, error)
	RetrievePayout(accountID, payoutID string) (PayoutState, error)
	CreateConnectedAccount(userID, email string) (string, error)
	CreateAccountLink(accountID, refreshURL, returnURL string) (string, error)
}
