package wallet

import (
	"context"
	"testing"

	"mebike/internal/models"
	"mebike/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeWalletRepo is an in-memory WalletRepository honoring the same
// conditional-update semantics as the real one.
type fakeWalletRepo struct {
	wallets map[string]*models.Wallet // keyed by userID
	txs     []models.WalletTransaction
	hashes  map[string]bool
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{
		wallets: make(map[string]*models.Wallet),
		hashes:  make(map[string]bool),
	}
}

func (f *fakeWalletRepo) addWallet(userID string, balance, reserved int64, status string) *models.Wallet {
	w := &models.Wallet{
		ID:              "wallet-" + userID,
		UserID:          userID,
		Balance:         balance,
		ReservedBalance: reserved,
		Currency:        "VND",
		Status:          status,
	}
	f.wallets[userID] = w
	return w
}

func (f *fakeWalletRepo) WithTx(tx *gorm.DB) repositories.WalletRepository { return f }

func (f *fakeWalletRepo) CreateForUser(userID string) (*models.Wallet, error) {
	if _, ok := f.wallets[userID]; ok {
		return nil, repositories.ErrDuplicateWallet
	}
	return f.addWallet(userID, 0, 0, models.WalletStatusActive), nil
}

func (f *fakeWalletRepo) GetByUserID(userID string) (*models.Wallet, error) {
	w, ok := f.wallets[userID]
	if !ok {
		return nil, repositories.ErrWalletNotFound
	}
	copied := *w
	return &copied, nil
}

func (f *fakeWalletRepo) GetByID(id string) (*models.Wallet, error) {
	for _, w := range f.wallets {
		if w.ID == id {
			copied := *w
			return &copied, nil
		}
	}
	return nil, repositories.ErrWalletNotFound
}

func (f *fakeWalletRepo) IncreaseBalance(input repositories.IncreaseBalanceInput) (*models.Wallet, error) {
	w, ok := f.wallets[input.UserID]
	if !ok {
		return nil, repositories.ErrWalletNotFound
	}
	if input.Hash != nil {
		if f.hashes[*input.Hash] {
			return nil, repositories.ErrWalletHashExists
		}
		f.hashes[*input.Hash] = true
	}
	w.Balance += input.Amount - input.Fee
	f.txs = append(f.txs, models.WalletTransaction{
		WalletID: w.ID, Amount: input.Amount, Fee: input.Fee, Hash: input.Hash, Type: input.Type,
	})
	copied := *w
	return &copied, nil
}

func (f *fakeWalletRepo) DecreaseBalance(input repositories.DecreaseBalanceInput) (*models.Wallet, error) {
	w, ok := f.wallets[input.UserID]
	if !ok {
		return nil, repositories.ErrWalletNotFound
	}
	if input.Hash != nil && f.hashes[*input.Hash] {
		return nil, repositories.ErrWalletHashExists
	}
	if w.Balance-w.ReservedBalance < input.Amount {
		return nil, repositories.ErrInsufficientBalance
	}
	if input.Hash != nil {
		f.hashes[*input.Hash] = true
	}
	w.Balance -= input.Amount
	f.txs = append(f.txs, models.WalletTransaction{
		WalletID: w.ID, Amount: input.Amount, Hash: input.Hash, Type: input.Type,
	})
	copied := *w
	return &copied, nil
}

func (f *fakeWalletRepo) ReserveBalance(walletID string, amount int64) (bool, error) {
	for _, w := range f.wallets {
		if w.ID == walletID {
			if w.Balance-w.ReservedBalance < amount {
				return false, nil
			}
			w.ReservedBalance += amount
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWalletRepo) ReleaseReservedBalance(walletID string, amount int64) (bool, error) {
	for _, w := range f.wallets {
		if w.ID == walletID {
			if w.ReservedBalance < amount {
				return false, nil
			}
			w.ReservedBalance -= amount
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWalletRepo) ListTransactions(walletID string, limit, offset int) ([]models.WalletTransaction, int64, error) {
	var rows []models.WalletTransaction
	for _, tx := range f.txs {
		if tx.WalletID == walletID {
			rows = append(rows, tx)
		}
	}
	return rows, int64(len(rows)), nil
}

func TestService_Credit(t *testing.T) {
	hash := "stripe:checkout:cs_123"

	tests := []struct {
		name        string
		setup       func(*fakeWalletRepo)
		input       CreditInput
		wantErr     error
		wantBalance int64
	}{
		{
			name:  "net of fee is applied",
			setup: func(r *fakeWalletRepo) { r.addWallet("u1", 1000, 0, models.WalletStatusActive) },
			input: CreditInput{UserID: "u1", Amount: 500, Fee: 50},

			wantBalance: 1450,
		},
		{
			name:    "zero amount rejected",
			setup:   func(r *fakeWalletRepo) { r.addWallet("u1", 1000, 0, models.WalletStatusActive) },
			input:   CreditInput{UserID: "u1", Amount: 0},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "fee above amount rejected",
			setup:   func(r *fakeWalletRepo) { r.addWallet("u1", 1000, 0, models.WalletStatusActive) },
			input:   CreditInput{UserID: "u1", Amount: 100, Fee: 200},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "missing wallet",
			setup:   func(r *fakeWalletRepo) {},
			input:   CreditInput{UserID: "ghost", Amount: 100},
			wantErr: ErrWalletNotFound,
		},
		{
			name:    "frozen wallet rejected",
			setup:   func(r *fakeWalletRepo) { r.addWallet("u1", 1000, 0, models.WalletStatusFrozen) },
			input:   CreditInput{UserID: "u1", Amount: 100},
			wantErr: ErrWalletFrozen,
		},
		{
			name: "replayed hash is rejected without moving money",
			setup: func(r *fakeWalletRepo) {
				r.addWallet("u1", 1000, 0, models.WalletStatusActive)
				r.hashes[hash] = true
			},
			input:   CreditInput{UserID: "u1", Amount: 100, Hash: &hash},
			wantErr: ErrDuplicateOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeWalletRepo()
			tt.setup(repo)
			svc := NewService(repo, nil, nil)

			updated, err := svc.Credit(context.Background(), tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, updated.Balance)
		})
	}
}

func TestService_Debit(t *testing.T) {
	t.Run("reserved funds are not spendable", func(t *testing.T) {
		repo := newFakeWalletRepo()
		repo.addWallet("u1", 1000, 800, models.WalletStatusActive)
		svc := NewService(repo, nil, nil)

		_, err := svc.Debit(context.Background(), DebitInput{UserID: "u1", Amount: 300})
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		w, _ := repo.GetByUserID("u1")
		assert.Equal(t, int64(1000), w.Balance)
	})

	t.Run("debit within available balance succeeds", func(t *testing.T) {
		repo := newFakeWalletRepo()
		repo.addWallet("u1", 1000, 800, models.WalletStatusActive)
		svc := NewService(repo, nil, nil)

		updated, err := svc.Debit(context.Background(), DebitInput{UserID: "u1", Amount: 200})
		require.NoError(t, err)
		assert.Equal(t, int64(800), updated.Balance)
	})

	t.Run("replayed debit hash is a no-op", func(t *testing.T) {
		repo := newFakeWalletRepo()
		repo.addWallet("u1", 1000, 0, models.WalletStatusActive)
		svc := NewService(repo, nil, nil)

		hash := "withdrawal-key-1"
		_, err := svc.Debit(context.Background(), DebitInput{UserID: "u1", Amount: 100, Hash: &hash})
		require.NoError(t, err)

		_, err = svc.Debit(context.Background(), DebitInput{UserID: "u1", Amount: 100, Hash: &hash})
		assert.ErrorIs(t, err, ErrDuplicateOperation)

		w, _ := repo.GetByUserID("u1")
		assert.Equal(t, int64(900), w.Balance)
	})
}

func TestService_ReserveRelease(t *testing.T) {
	repo := newFakeWalletRepo()
	w := repo.addWallet("u1", 1000, 0, models.WalletStatusActive)
	svc := NewService(repo, nil, nil)

	require.NoError(t, svc.ReserveInTx(nil, w.ID, 400))
	got, _ := repo.GetByUserID("u1")
	assert.Equal(t, int64(400), got.ReservedBalance)
	assert.Equal(t, int64(1000), got.Balance)

	// Available is 600 now; a bigger reserve must fail untouched.
	err := svc.ReserveInTx(nil, w.ID, 700)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	got, _ = repo.GetByUserID("u1")
	assert.Equal(t, int64(400), got.ReservedBalance)

	require.NoError(t, svc.ReleaseInTx(nil, w.ID, 400))
	got, _ = repo.GetByUserID("u1")
	assert.Equal(t, int64(0), got.ReservedBalance)

	// Releasing more than reserved fails and leaves state unchanged.
	err = svc.ReleaseInTx(nil, w.ID, 1)
	assert.ErrorIs(t, err, ErrNothingReserved)
}
