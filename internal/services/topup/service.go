package topup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"mebike/internal/models"
	"mebike/internal/repositories"
	"mebike/internal/services/payment"
	"mebike/internal/services/wallet"

	"gorm.io/gorm"
)

const providerStripe = "STRIPE"

// Service errors
var (
	ErrInvalidAmount   = errors.New("top-up amount must be positive")
	ErrAttemptNotFound = errors.New("payment attempt not found")
)

// Service owns the wallet credit path: a PaymentAttempt row per checkout and
// exactly-once credit on the provider's completion webhook.
type Service struct {
	db       *gorm.DB
	attempts repositories.PaymentAttemptRepository
	wallets  wallet.Service
	provider payment.Provider
}

func NewService(
	db *gorm.DB,
	attempts repositories.PaymentAttemptRepository,
	wallets wallet.Service,
	provider payment.Provider,
) *Service {
	return &Service{db: db, attempts: attempts, wallets: wallets, provider: provider}
}

// creditHash is the idempotency hash for a checkout session's wallet credit.
func creditHash(sessionID string) string {
	return fmt.Sprintf("stripe:checkout:%s", sessionID)
}

// StartCheckoutResult is what the boundary returns to the client.
type StartCheckoutResult struct {
	AttemptID   string
	CheckoutURL string
}

// StartCheckout creates the attempt row first, then the provider session, so
// a session-creation failure still leaves an audit trail.
func (s *Service) StartCheckout(ctx context.Context, userID string, amountMinor int64, currency, successURL, cancelURL string) (*StartCheckoutResult, error) {
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	w, err := s.wallets.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	attempt := &models.PaymentAttempt{
		UserID:      userID,
		WalletID:    w.ID,
		Provider:    providerStripe,
		Kind:        models.PaymentAttemptKindTopup,
		AmountMinor: amountMinor,
		Currency:    currency,
	}
	if err := s.attempts.Create(attempt); err != nil {
		return nil, err
	}

	sess, err := s.provider.CreateCheckoutSession(payment.CheckoutSessionInput{
		AttemptID:   attempt.ID,
		UserID:      userID,
		AmountMinor: amountMinor,
		Currency:    currency,
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
	})
	if err != nil {
		if _, markErr := s.attempts.MarkFailedIfPending(attempt.ID, "session_creation_failed"); markErr != nil {
			log.Printf("attempt %s: session creation failed and mark-failed also failed: %v", attempt.ID, markErr)
		}
		return nil, err
	}

	if err := s.attempts.AttachProviderRef(attempt.ID, providerStripe, sess.SessionID); err != nil {
		return nil, err
	}
	return &StartCheckoutResult{AttemptID: attempt.ID, CheckoutURL: sess.URL}, nil
}

// HandleCheckoutCompleted applies a "checkout session completed & paid"
// webhook. Replays are no-ops twice over: the conditional PENDING ->
// SUCCEEDED flip and the credit hash each independently stop a second credit.
func (s *Service) HandleCheckoutCompleted(sessionID string, amountMinor int64, currency string) error {
	attempt, err := s.attempts.FindByProviderRef(providerStripe, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrAttemptNotFound) {
			return ErrAttemptNotFound
		}
		return err
	}
	if attempt.Status != models.PaymentAttemptStatusPending {
		// Already processed or already failed.
		return nil
	}
	if amountMinor != attempt.AmountMinor || !currencyEqual(currency, attempt.Currency) {
		_, err := s.attempts.MarkFailedIfPending(attempt.ID, "amount_or_currency_mismatch")
		return err
	}

	hash := creditHash(sessionID)
	err = repositories.RunInTransaction(s.db, func(tx *gorm.DB) error {
		ok, err := s.attempts.WithTx(tx).MarkSucceededIfPending(attempt.ID)
		if err != nil {
			return err
		}
		if !ok {
			// A concurrent delivery won the flip; it owns the credit too.
			return nil
		}
		_, err = s.wallets.CreditInTx(tx, wallet.CreditInput{
			UserID:      attempt.UserID,
			Amount:      attempt.AmountMinor,
			Description: "Wallet top-up",
			Hash:        &hash,
			Type:        models.TransactionTypeDeposit,
		})
		if err != nil && !errors.Is(err, wallet.ErrDuplicateOperation) {
			return err
		}
		return nil
	})
	if errors.Is(err, wallet.ErrWalletNotFound) {
		// Do not leave the attempt stuck SUCCEEDED-but-uncredited.
		_, markErr := s.attempts.MarkFailedIfPending(attempt.ID, "wallet_missing")
		return markErr
	}
	return err
}

// HandleCheckoutExpired fails the attempt when the session expires unpaid.
func (s *Service) HandleCheckoutExpired(sessionID string) error {
	attempt, err := s.attempts.FindByProviderRef(providerStripe, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrAttemptNotFound) {
			return ErrAttemptNotFound
		}
		return err
	}
	_, err = s.attempts.MarkFailedIfPending(attempt.ID, "session_expired")
	return err
}

func (s *Service) GetAttempt(attemptID string) (*models.PaymentAttempt, error) {
	attempt, err := s.attempts.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, repositories.ErrAttemptNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return attempt, nil
}

func currencyEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
