package withdrawal

import (
	"errors"
	"fmt"
	"time"

	"mebike/internal/models"
	"mebike/internal/repositories"
	"mebike/internal/services/payment"
	"mebike/internal/services/wallet"

	"gorm.io/gorm"
)

// Config carries the withdrawal tuning knobs.
type Config struct {
	// MinAmount is the smallest withdrawal accepted, in minor units.
	MinAmount int64
	// ProcessingTTL is how long a PROCESSING claim stays exclusive before
	// another executor may re-claim it.
	ProcessingTTL time.Duration
	// SLA bounds how long a withdrawal may sit in-flight before the sweep
	// resolves it one way or the other.
	SLA time.Duration
}

var supportedCurrencies = map[string]bool{
	"vnd": true,
	"usd": true,
	"eur": true,
}

// Service drives withdrawals through PENDING -> PROCESSING -> SUCCEEDED |
// FAILED. Money is escrowed at request time (reservedBalance plus a
// WalletHold) and only actually debited at settlement; every failure path
// releases the escrow in the same transaction that marks the row FAILED.
type Service struct {
	db          *gorm.DB
	withdrawals repositories.WithdrawalRepository
	holds       repositories.WalletHoldRepository
	users       repositories.UserRepository
	outbox      repositories.JobOutboxRepository
	wallets     wallet.Service
	provider    payment.Provider
	cfg         Config
}

func NewService(
	db *gorm.DB,
	withdrawals repositories.WithdrawalRepository,
	holds repositories.WalletHoldRepository,
	users repositories.UserRepository,
	outbox repositories.JobOutboxRepository,
	wallets wallet.Service,
	provider payment.Provider,
	cfg Config,
) *Service {
	return &Service{
		db:          db,
		withdrawals: withdrawals,
		holds:       holds,
		users:       users,
		outbox:      outbox,
		wallets:     wallets,
		provider:    provider,
		cfg:         cfg,
	}
}

func executeDedupeKey(withdrawalID string) string {
	return fmt.Sprintf("withdrawal:execute:%s", withdrawalID)
}

// Request creates a withdrawal and escrows the funds. A duplicate idempotency
// key returns the existing row unchanged; callers must treat that as success.
func (s *Service) Request(userID string, amount int64, currency, idempotencyKey string) (*models.WalletWithdrawal, error) {
	if amount < s.cfg.MinAmount {
		return nil, ErrAmountBelowMinimum
	}
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user.StripeConnectedAccountID == nil || !user.StripePayoutsEnabled {
		return nil, ErrNoPayoutAccount
	}

	var result *models.WalletWithdrawal
	err = repositories.RunInTransaction(s.db, func(tx *gorm.DB) error {
		w, err := s.wallets.GetWalletInTx(tx, userID)
		if err != nil {
			return err
		}

		row, created, err := s.withdrawals.WithTx(tx).CreatePending(userID, w.ID, amount, currency, idempotencyKey)
		if err != nil {
			return err
		}
		result = row
		if !created {
			// Replayed request. The first one already escrowed the funds.
			return nil
		}

		if err := s.wallets.ReserveInTx(tx, w.ID, amount); err != nil {
			return err
		}
		if _, err := s.holds.WithTx(tx).Create(w.ID, row.ID, amount); err != nil {
			return err
		}

		_, err = s.outbox.WithTx(tx).Enqueue(repositories.EnqueueJobInput{
			Type:      models.JobTypeWithdrawalExecute,
			DedupeKey: strPtr(executeDedupeKey(row.ID)),
			Payload:   models.JSON{"withdrawalId": row.ID},
			RunAt:     time.Now(),
		})
		if err != nil && !errors.Is(err, repositories.ErrDuplicateJob) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Execute is the job-worker entry point. It claims the row, calls the
// provider and records the transfer/payout references. A fresh PROCESSING
// claim by someone else is a silent no-op; definitive rejections fail and
// refund in one transaction; transient provider errors bubble up so the job
// retries.
func (s *Service) Execute(withdrawalID string) error {
	now := time.Now()
	row, err := s.withdrawals.FindByID(withdrawalID)
	if err != nil {
		if errors.Is(err, repositories.ErrWithdrawalNotFound) {
			return ErrWithdrawalNotFound
		}
		return err
	}
	switch row.Status {
	case models.WithdrawalStatusSucceeded, models.WithdrawalStatusFailed:
		return nil
	}

	claimed, err := s.withdrawals.MarkProcessing(withdrawalID, now.Add(-s.cfg.ProcessingTTL))
	if err != nil {
		return err
	}
	if !claimed {
		// Another executor holds a fresh claim. It will finish or go stale.
		return nil
	}

	user, err := s.users.GetByID(row.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return s.failAndRefund(row, "user_missing")
		}
		return err
	}
	if user.StripeConnectedAccountID == nil || !user.StripePayoutsEnabled {
		return s.failAndRefund(row, "payout_account_missing")
	}
	if !supportedCurrencies[row.Currency] {
		return s.failAndRefund(row, "unsupported_currency")
	}

	accountID := *user.StripeConnectedAccountID

	transferID, err := s.provider.CreateTransfer(payment.TransferInput{
		WithdrawalID:   row.ID,
		AccountID:      accountID,
		AmountMinor:    row.Amount,
		Currency:       row.Currency,
		IdempotencyKey: row.IdempotencyKey,
	})
	if err != nil {
		return s.resolveProviderError(row, "transfer", err)
	}
	if err := s.withdrawals.SetStripeRefs(row.ID, &transferID, nil); err != nil {
		return err
	}

	payoutID, err := s.provider.CreatePayout(payment.PayoutInput{
		WithdrawalID:   row.ID,
		AccountID:      accountID,
		AmountMinor:    row.Amount,
		Currency:       row.Currency,
		IdempotencyKey: row.IdempotencyKey,
	})
	if err != nil {
		return s.resolveProviderError(row, "payout", err)
	}
	return s.withdrawals.SetStripeRefs(row.ID, nil, &payoutID)
}

// resolveProviderError decides between fail-and-refund (definitive
// rejections, or any error once the row has exceeded its SLA) and bubbling up
// for a retry.
func (s *Service) resolveProviderError(row *models.WalletWithdrawal, step string, err error) error {
	switch {
	case errors.Is(err, payment.ErrAmountOutOfRange),
		errors.Is(err, payment.ErrNoPayoutAccount),
		errors.Is(err, payment.ErrPayoutsDisabled),
		errors.Is(err, payment.ErrUnsupportedMoney):
		return s.failAndRefund(row, step+"_rejected: "+err.Error())
	}
	if time.Since(row.CreatedAt) > s.cfg.SLA {
		return s.failAndRefund(row, step+"_sla_exceeded: "+err.Error())
	}
	return fmt.Errorf("withdrawal %s %s: %w", row.ID, step, err)
}

// failAndRefund marks the row FAILED and releases the escrow in one
// transaction. A failure anywhere inside aborts the whole transaction: a
// FAILED row with an unreleased hold is exactly the partial write this path
// exists to prevent.
func (s *Service) failAndRefund(row *models.WalletWithdrawal, reason string) error {
	return repositories.RunInTransaction(s.db, func(tx *gorm.DB) error {
		ok, err := s.withdrawals.WithTx(tx).MarkFailed(row.ID, reason)
		if err != nil {
			return err
		}
		if !ok {
			// Already terminal; someone else resolved it.
			return nil
		}
		released, err := s.holds.WithTx(tx).ReleaseByWithdrawalID(row.ID)
		if err != nil {
			return err
		}
		if released {
			if err := s.wallets.ReleaseInTx(tx, row.WalletID, row.Amount); err != nil {
				return err
			}
		}
		return nil
	})
}

// SettleFromPayoutEvent applies a terminal "payout paid" webhook: mark
// SUCCEEDED, settle the hold, release the escrow and perform the real debit.
// The withdrawal's idempotency key doubles as the debit hash, so a replayed
// webhook cannot debit twice.
func (s *Service) SettleFromPayoutEvent(payoutID string) error {
	row, err := s.withdrawals.FindByPayoutID(payoutID)
	if err != nil {
		if errors.Is(err, repositories.ErrWithdrawalNotFound) {
			return ErrWithdrawalNotFound
		}
		return err
	}
	return s.settle(row)
}

func (s *Service) settle(row *models.WalletWithdrawal) error {
	return repositories.RunInTransaction(s.db, func(tx *gorm.DB) error {
		ok, err := s.withdrawals.WithTx(tx).MarkSucceeded(row.ID)
		if err != nil {
			return err
		}
		if !ok {
			// Replay or already resolved.
			return nil
		}
		if _, err := s.holds.WithTx(tx).SettleByWithdrawalID(row.ID); err != nil {
			return err
		}
		if err := s.wallets.ReleaseInTx(tx, row.WalletID, row.Amount); err != nil {
			return err
		}
		hash := row.IdempotencyKey
		_, err = s.wallets.DebitInTx(tx, wallet.DebitInput{
			UserID:      row.UserID,
			Amount:      row.Amount,
			Description: "Withdrawal settlement",
			Hash:        &hash,
			Type:        models.TransactionTypeDebit,
		})
		if err != nil && !errors.Is(err, wallet.ErrDuplicateOperation) {
			return err
		}
		return nil
	})
}

// HandlePayoutFailed applies a terminal "payout failed/canceled" webhook.
// No debit ever happened, so releasing the escrow is the whole refund.
func (s *Service) HandlePayoutFailed(payoutID, reason string) error {
	row, err := s.withdrawals.FindByPayoutID(payoutID)
	if err != nil {
		if errors.Is(err, repositories.ErrWithdrawalNotFound) {
			return ErrWithdrawalNotFound
		}
		return err
	}
	return s.failAndRefund(row, reason)
}

// Sweep reconciles withdrawals stuck in PROCESSING past the SLA. Webhook
// delivery is not guaranteed, so the sweep polls the provider directly and
// resolves each row the same way the webhook would have. Rows the provider
// still reports in flight are left alone. Per-row failures are isolated.
func (s *Service) Sweep(limit int) (int, error) {
	staleBefore := time.Now().Add(-s.cfg.SLA)
	rows, err := s.withdrawals.FindProcessingBefore(staleBefore, limit)
	if err != nil {
		return 0, err
	}

	errCount := 0
	for i := range rows {
		if err := s.sweepOne(&rows[i]); err != nil {
			errCount++
		}
	}
	return errCount, nil
}

func (s *Service) sweepOne(row *models.WalletWithdrawal) error {
	if row.StripePayoutID == nil {
		return s.failAndRefund(row, "sweep: no payout reference")
	}
	user, err := s.users.GetByID(row.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return s.failAndRefund(row, "sweep: user missing")
		}
		return err
	}
	if user.StripeConnectedAccountID == nil {
		return s.failAndRefund(row, "sweep: payout account missing")
	}

	state, err := s.provider.RetrievePayout(*user.StripeConnectedAccountID, *row.StripePayoutID)
	if err != nil {
		if errors.Is(err, payment.ErrPayoutNotFound) {
			return s.failAndRefund(row, "sweep: payout not found at provider")
		}
		return err
	}
	switch state {
	case payment.PayoutStatePaid:
		return s.settle(row)
	case payment.PayoutStateFailed, payment.PayoutStateCanceled:
		return s.failAndRefund(row, "sweep: payout "+string(state))
	default:
		// Still in flight at the provider. Leave it for the next pass.
		return nil
	}
}

func strPtr(s string) *string { return &s }
