package payment

import (
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/account"
	"github.com/stripe/stripe-go/v72/accountlink"
	checkoutsession "github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/payout"
	"github.com/stripe/stripe-go/v72/transfer"
)

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct{}

// NewStripeProvider sets the global API key and returns the adapter.
func NewStripeProvider(secretKey string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{}
}

func (p *StripeProvider) CreateCheckoutSession(input CheckoutSessionInput) (*CheckoutSessionResult, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(input.SuccessURL),
		CancelURL:  stripe.String(input.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(input.Currency),
					UnitAmount: stripe.Int64(input.AmountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Wallet top-up"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("attemptId", input.AttemptID)
	params.AddMetadata("userId", input.UserID)
	params.SetIdempotencyKey("topup:attempt:" + input.AttemptID)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSessionResult{SessionID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) CreateTransfer(input TransferInput) (string, error) {
	if input.AmountMinor <= 0 || input.AmountMinor > math.MaxInt64/2 {
		return "", ErrAmountOutOfRange
	}
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(input.AmountMinor),
		Currency:    stripe.String(input.Currency),
		Destination: stripe.String(input.AccountID),
	}
	params.AddMetadata("withdrawalId", input.WithdrawalID)
	params.SetIdempotencyKey(input.IdempotencyKey + ":transfer")

	tr, err := transfer.New(params)
	if err != nil {
		return "", fmt.Errorf("create transfer: %w", err)
	}
	return tr.ID, nil
}

func (p *StripeProvider) CreatePayout(input PayoutInput) (string, error) {
	if input.AmountMinor <= 0 || input.AmountMinor > math.MaxInt64/2 {
		return "", ErrAmountOutOfRange
	}
	params := &stripe.PayoutParams{
		Amount:   stripe.Int64(input.AmountMinor),
		Currency: stripe.String(input.Currency),
	}
	params.SetStripeAccount(input.AccountID)
	params.AddMetadata("withdrawalId", input.WithdrawalID)
	params.SetIdempotencyKey(input.IdempotencyKey + ":payout")

	po, err := payout.New(params)
	if err != nil {
		return "", fmt.Errorf("create payout: %w", err)
	}
	return po.ID, nil
}

func (p *StripeProvider) RetrievePayout(accountID, payoutID string) (PayoutState, error) {
	params := &stripe.PayoutParams{}
	params.SetStripeAccount(accountID)
	po, err := payout.Get(payoutID, params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.HTTPStatusCode == 404 {
			return "", ErrPayoutNotFound
		}
		return "", fmt.Errorf("retrieve payout: %w", err)
	}
	switch po.Status {
	case stripe.PayoutStatusPaid:
		return PayoutStatePaid, nil
	case stripe.PayoutStatusFailed:
		return PayoutStateFailed, nil
	case stripe.PayoutStatusCanceled:
		return PayoutStateCanceled, nil
	default:
		return PayoutStatePending, nil
	}
}

func (p *StripeProvider) CreateConnectedAccount(userID, email string) (string, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
	}
	params.AddMetadata("userId", userID)
	params.SetIdempotencyKey("connect:account:" + userID)

	acct, err := account.New(params)
	if err != nil {
		return "", fmt.Errorf("create connected account: %w", err)
	}
	return acct.ID, nil
}

func (p *StripeProvider) CreateAccountLink(accountID, refreshURL, returnURL string) (string, error) {
	link, err := accountlink.New(&stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		return "", fmt.Errorf("create account link: %w", err)
	}
	return link.URL, nil
}
