package wallet

import (
	"context"
	"errors"
	"time"

	"mebike/internal/models"
	"mebike/internal/repositories"
	"mebike/internal/repositories/cache"

	"gorm.io/gorm"
)

type service struct {
	repo    repositories.WalletRepository
	cache   *cache.CacheService
	metrics MetricsCollector
}

// NewService creates a new wallet service
func NewService(
	repo repositories.WalletRepository,
	cacheService *cache.CacheService,
	metrics MetricsCollector,
) Service {
	if repo == nil {
		panic("repo is required")
	}
	// Metrics is optional, create no-op collector if nil
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	return &service{
		repo:    repo,
		cache:   cacheService,
		metrics: metrics,
	}
}

func (s *service) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	if s.cache != nil {
		if cached, err := s.cache.WalletCache().GetWallet(ctx, userID); err == nil && cached != nil {
			s.metrics.RecordCacheHit("get_wallet")
			return cached, nil
		}
		s.metrics.RecordCacheMiss("get_wallet")
	}

	wallet, err := s.repo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.WalletCache().SetWallet(ctx, wallet)
	}
	return wallet, nil
}

// GetWalletInTx reads the wallet through the caller's transaction, bypassing
// the cache.
func (s *service) GetWalletInTx(tx *gorm.DB, userID string) (*models.Wallet, error) {
	wallet, err := s.repo.WithTx(tx).GetByUserID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return wallet, nil
}

func (s *service) CreateWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	wallet, err := s.repo.CreateForUser(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateWallet) {
			return s.GetWallet(ctx, userID)
		}
		return nil, err
	}
	return wallet, nil
}

// GetBalance returns (balance, reservedBalance) in minor units.
func (s *service) GetBalance(ctx context.Context, userID string) (int64, int64, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	return wallet.Balance, wallet.ReservedBalance, nil
}

func (s *service) Credit(ctx context.Context, input CreditInput) (*models.Wallet, error) {
	return s.credit(ctx, s.repo, input)
}

func (s *service) CreditInTx(tx *gorm.DB, input CreditInput) (*models.Wallet, error) {
	return s.credit(context.Background(), s.repo.WithTx(tx), input)
}

func (s *service) credit(ctx context.Context, repo repositories.WalletRepository, input CreditInput) (*models.Wallet, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("credit", time.Since(start)) }()

	if input.Amount <= 0 || input.Fee < 0 || input.Fee > input.Amount {
		s.metrics.RecordError("credit", "invalid_amount")
		return nil, ErrInvalidAmount
	}

	wallet, err := repo.GetByUserID(input.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	if wallet.Status == models.WalletStatusFrozen {
		s.metrics.RecordError("credit", "wallet_frozen")
		return nil, ErrWalletFrozen
	}

	updated, err := repo.IncreaseBalance(repositories.IncreaseBalanceInput{
		UserID:      input.UserID,
		Amount:      input.Amount,
		Fee:         input.Fee,
		Description: input.Description,
		Hash:        input.Hash,
		Type:        input.Type,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrWalletHashExists) {
			s.metrics.RecordOperationResult("credit", "duplicate")
			return nil, ErrDuplicateOperation
		}
		s.metrics.RecordError("credit", "repository")
		return nil, err
	}

	s.metrics.RecordOperationResult("credit", "success")
	s.metrics.RecordBalanceChange(updated.ID, input.Amount-input.Fee)
	s.invalidate(ctx, input.UserID)
	return updated, nil
}

func (s *service) Debit(ctx context.Context, input DebitInput) (*models.Wallet, error) {
	return s.debit(ctx, s.repo, input)
}

func (s *service) DebitInTx(tx *gorm.DB, input DebitInput) (*models.Wallet, error) {
	return s.debit(context.Background(), s.repo.WithTx(tx), input)
}

func (s *service) debit(ctx context.Context, repo repositories.WalletRepository, input DebitInput) (*models.Wallet, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("debit", time.Since(start)) }()

	if input.Amount <= 0 {
		s.metrics.RecordError("debit", "invalid_amount")
		return nil, ErrInvalidAmount
	}

	wallet, err := repo.GetByUserID(input.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	if wallet.Status == models.WalletStatusFrozen {
		s.metrics.RecordError("debit", "wallet_frozen")
		return nil, ErrWalletFrozen
	}

	updated, err := repo.DecreaseBalance(repositories.DecreaseBalanceInput{
		UserID:      input.UserID,
		Amount:      input.Amount,
		Description: input.Description,
		Hash:        input.Hash,
		Type:        input.Type,
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrInsufficientBalance):
			s.metrics.RecordOperationResult("debit", "insufficient")
			return nil, ErrInsufficientBalance
		case errors.Is(err, repositories.ErrWalletHashExists):
			s.metrics.RecordOperationResult("debit", "duplicate")
			return nil, ErrDuplicateOperation
		}
		s.metrics.RecordError("debit", "repository")
		return nil, err
	}

	s.metrics.RecordOperationResult("debit", "success")
	s.metrics.RecordBalanceChange(updated.ID, -input.Amount)
	s.invalidate(ctx, input.UserID)
	return updated, nil
}

func (s *service) ReserveInTx(tx *gorm.DB, walletID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	ok, err := s.repo.WithTx(tx).ReserveBalance(walletID, amount)
	if err != nil {
		return err
	}
	if !ok {
		s.metrics.RecordOperationResult("reserve", "insufficient")
		return ErrInsufficientBalance
	}
	s.metrics.RecordOperationResult("reserve", "success")
	return nil
}

func (s *service) ReleaseInTx(tx *gorm.DB, walletID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	ok, err := s.repo.WithTx(tx).ReleaseReservedBalance(walletID, amount)
	if err != nil {
		return err
	}
	if !ok {
		s.metrics.RecordOperationResult("release", "nothing_reserved")
		return ErrNothingReserved
	}
	s.metrics.RecordOperationResult("release", "success")
	return nil
}

func (s *service) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]models.WalletTransaction, int64, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListTransactions(wallet.ID, limit, offset)
}

// invalidate drops the cached wallet after any balance move. Cache reads are
// best effort; a stale delete only costs one extra DB read.
func (s *service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.WalletCache().InvalidateWallet(ctx, userID)
}
