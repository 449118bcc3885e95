package reservation

import (
	"context"
	"sort"
	"testing"
	"time"

	"mebike/internal/models"
	"mebike/internal/repositories"
	"mebike/internal/services/wallet"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newTestDB builds a gorm handle over sqlmock. The fakes below ignore the
// transaction handle, so tests only assert the BEGIN/COMMIT/ROLLBACK
// boundary.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)
	return db, mock
}

type fakeReservationRepo struct {
	rows map[string]*models.Reservation
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{rows: make(map[string]*models.Reservation)}
}

func (f *fakeReservationRepo) WithTx(tx *gorm.DB) repositories.ReservationRepository { return f }

func (f *fakeReservationRepo) add(row *models.Reservation) *models.Reservation {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	f.rows[row.ID] = row
	return row
}

func (f *fakeReservationRepo) Create(input repositories.CreateReservationInput) (*models.Reservation, error) {
	for _, r := range f.rows {
		live := r.Status == models.ReservationStatusPending || r.Status == models.ReservationStatusActive
		if !live {
			continue
		}
		if r.UserID == input.UserID {
			return nil, repositories.ErrActiveReservationExists
		}
		if input.BikeID != nil && r.BikeID != nil && *r.BikeID == *input.BikeID {
			return nil, repositories.ErrBikeAlreadyReserved
		}
		if input.FixedSlotTemplateID != nil && r.FixedSlotTemplateID != nil &&
			*r.FixedSlotTemplateID == *input.FixedSlotTemplateID && r.StartTime.Equal(input.StartTime) {
			return nil, repositories.ErrSlotAlreadyReserved
		}
	}
	return f.add(&models.Reservation{
		UserID:              input.UserID,
		BikeID:              input.BikeID,
		StationID:           input.StationID,
		ReservationOption:   input.Option,
		Prepaid:             input.Prepaid,
		StartTime:           input.StartTime,
		EndTime:             input.EndTime,
		Status:              models.ReservationStatusPending,
		SubscriptionID:      input.SubscriptionID,
		FixedSlotTemplateID: input.FixedSlotTemplateID,
	}), nil
}

func (f *fakeReservationRepo) FindByID(id string) (*models.Reservation, error) {
	r, ok := f.rows[id]
	if !ok {
		return nil, repositories.ErrReservationNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *fakeReservationRepo) PendingHoldByUserNow(userID string, now time.Time) (*models.Reservation, error) {
	for _, r := range f.rows {
		if r.UserID == userID && r.Status == models.ReservationStatusPending &&
			r.ReservationOption != models.ReservationOptionFixedSlot &&
			!r.StartTime.After(now) && r.EndTime != nil && r.EndTime.After(now) {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repositories.ErrReservationNotFound
}

func (f *fakeReservationRepo) PendingHoldByBikeNow(bikeID string, now time.Time) (*models.Reservation, error) {
	for _, r := range f.rows {
		if r.BikeID != nil && *r.BikeID == bikeID && r.Status == models.ReservationStatusPending &&
			r.ReservationOption != models.ReservationOptionFixedSlot &&
			!r.StartTime.After(now) && r.EndTime != nil && r.EndTime.After(now) {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repositories.ErrReservationNotFound
}

func (f *fakeReservationRepo) LatestPendingOrActiveByUser(userID string) (*models.Reservation, error) {
	for _, r := range f.rows {
		if r.UserID == userID &&
			(r.Status == models.ReservationStatusPending || r.Status == models.ReservationStatusActive) {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repositories.ErrReservationNotFound
}

func (f *fakeReservationRepo) PendingFixedSlotByTemplateAndStart(templateID string, startTime time.Time) (*models.Reservation, error) {
	for _, r := range f.rows {
		if r.FixedSlotTemplateID != nil && *r.FixedSlotTemplateID == templateID &&
			r.StartTime.Equal(startTime) && r.Status == models.ReservationStatusPending {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repositories.ErrReservationNotFound
}

func (f *fakeReservationRepo) AssignBikeToPending(reservationID, bikeID string) (bool, error) {
	r, ok := f.rows[reservationID]
	if !ok || r.Status != models.ReservationStatusPending || r.BikeID != nil {
		return false, nil
	}
	r.BikeID = &bikeID
	return true, nil
}

func (f *fakeReservationRepo) UpdateStatus(reservationID, from, to string) (bool, error) {
	r, ok := f.rows[reservationID]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	return true, nil
}

func (f *fakeReservationRepo) ExpirePendingHold(reservationID string, now time.Time) (bool, error) {
	r, ok := f.rows[reservationID]
	if !ok || r.Status != models.ReservationStatusPending || r.EndTime == nil || r.EndTime.After(now) {
		return false, nil
	}
	r.Status = models.ReservationStatusExpired
	return true, nil
}

func (f *fakeReservationRepo) MarkExpiredNow(now time.Time) ([]models.Reservation, error) {
	var flipped []models.Reservation
	for _, r := range f.rows {
		if r.Status == models.ReservationStatusPending && r.EndTime != nil && !r.EndTime.After(now) {
			r.Status = models.ReservationStatusExpired
			flipped = append(flipped, *r)
		}
	}
	return flipped, nil
}

func (f *fakeReservationRepo) NextUpcomingByUser(userID string, now time.Time) (*models.Reservation, error) {
	var candidates []*models.Reservation
	for _, r := range f.rows {
		if r.UserID == userID && r.StartTime.After(now) &&
			(r.Status == models.ReservationStatusPending || r.Status == models.ReservationStatusActive) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil, repositories.ErrReservationNotFound
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].StartTime.Before(candidates[j].StartTime) })
	copied := *candidates[0]
	return &copied, nil
}

func (f *fakeReservationRepo) ListForUser(userID string, limit, offset int) ([]models.Reservation, int64, error) {
	var rows []models.Reservation
	for _, r := range f.rows {
		if r.UserID == userID {
			rows = append(rows, *r)
		}
	}
	return rows, int64(len(rows)), nil
}

type fakeRentalRepo struct {
	rows map[string]*models.Rental // keyed by reservationID
}

func newFakeRentalRepo() *fakeRentalRepo {
	return &fakeRentalRepo{rows: make(map[string]*models.Rental)}
}

func (f *fakeRentalRepo) WithTx(tx *gorm.DB) repositories.RentalRepository { return f }

func (f *fakeRentalRepo) CreateReservedForReservation(input repositories.CreateRentalInput) (*models.Rental, error) {
	row := &models.Rental{
		ID:             uuid.NewString(),
		ReservationID:  &input.ReservationID,
		UserID:         input.UserID,
		BikeID:         input.BikeID,
		StartStationID: input.StartStationID,
		SubscriptionID: input.SubscriptionID,
		Status:         models.RentalStatusReserved,
		StartTime:      input.StartTime,
	}
	f.rows[input.ReservationID] = row
	return row, nil
}

func (f *fakeRentalRepo) FindByReservationID(reservationID string) (*models.Rental, error) {
	r, ok := f.rows[reservationID]
	if !ok {
		return nil, repositories.ErrRentalNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *fakeRentalRepo) StartReserved(reservationID string) (bool, error) {
	r, ok := f.rows[reservationID]
	if !ok || r.Status != models.RentalStatusReserved {
		return false, nil
	}
	r.Status = models.RentalStatusRented
	return true, nil
}

func (f *fakeRentalRepo) CancelReserved(reservationID string) (bool, error) {
	r, ok := f.rows[reservationID]
	if !ok || r.Status != models.RentalStatusReserved {
		return false, nil
	}
	r.Status = models.RentalStatusCancelled
	return true, nil
}

func (f *fakeRentalRepo) AssignBike(reservationID, bikeID string) (bool, error) {
	r, ok := f.rows[reservationID]
	if !ok || r.Status != models.RentalStatusReserved {
		return false, nil
	}
	r.BikeID = &bikeID
	return true, nil
}

type fakeBikeRepo struct {
	rows map[string]*models.Bike
}

func newFakeBikeRepo() *fakeBikeRepo {
	return &fakeBikeRepo{rows: make(map[string]*models.Bike)}
}

func (f *fakeBikeRepo) addBike(id, stationID, status string) *models.Bike {
	b := &models.Bike{ID: id, ChipID: "chip-" + id, StationID: &stationID, Status: status}
	f.rows[id] = b
	return b
}

func (f *fakeBikeRepo) WithTx(tx *gorm.DB) repositories.BikeRepository { return f }

func (f *fakeBikeRepo) GetByID(id string) (*models.Bike, error) {
	b, ok := f.rows[id]
	if !ok {
		return nil, repositories.ErrBikeNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBikeRepo) ReserveIfAvailable(bikeID string) (bool, error) {
	b, ok := f.rows[bikeID]
	if !ok || b.Status != models.BikeStatusAvailable {
		return false, nil
	}
	b.Status = models.BikeStatusReserved
	return true, nil
}

func (f *fakeBikeRepo) BookIfReserved(bikeID string) (bool, error) {
	b, ok := f.rows[bikeID]
	if !ok || b.Status != models.BikeStatusReserved {
		return false, nil
	}
	b.Status = models.BikeStatusBooked
	return true, nil
}

func (f *fakeBikeRepo) ReleaseIfReserved(bikeID string) (bool, error) {
	b, ok := f.rows[bikeID]
	if !ok || b.Status != models.BikeStatusReserved {
		return false, nil
	}
	b.Status = models.BikeStatusAvailable
	return true, nil
}

func (f *fakeBikeRepo) FindAvailableByStation(stationID string, limit int) ([]models.Bike, error) {
	var bikes []models.Bike
	var ids []string
	for id := range f.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		b := f.rows[id]
		if b.StationID != nil && *b.StationID == stationID && b.Status == models.BikeStatusAvailable {
			bikes = append(bikes, *b)
			if len(bikes) == limit {
				break
			}
		}
	}
	return bikes, nil
}

type fakeSubscriptionRepo struct {
	rows map[string]*models.Subscription
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{rows: make(map[string]*models.Subscription)}
}

func (f *fakeSubscriptionRepo) WithTx(tx *gorm.DB) repositories.SubscriptionRepository { return f }

func (f *fakeSubscriptionRepo) GetByID(id string) (*models.Subscription, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, repositories.ErrSubscriptionNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSubscriptionRepo) UseOne(id string) error {
	s, ok := f.rows[id]
	if !ok {
		return repositories.ErrSubscriptionNotFound
	}
	if s.Status != models.SubscriptionStatusActive || s.UsedCount >= s.UsageLimit {
		return repositories.ErrSubscriptionExhausted
	}
	s.UsedCount++
	return nil
}

type fakeFixedSlotRepo struct {
	templates map[string]*models.FixedSlotTemplate
	scheduled map[string][]time.Time // templateID -> dates
}

func newFakeFixedSlotRepo() *fakeFixedSlotRepo {
	return &fakeFixedSlotRepo{
		templates: make(map[string]*models.FixedSlotTemplate),
		scheduled: make(map[string][]time.Time),
	}
}

func (f *fakeFixedSlotRepo) WithTx(tx *gorm.DB) repositories.FixedSlotRepository { return f }

func (f *fakeFixedSlotRepo) GetTemplateByID(id string) (*models.FixedSlotTemplate, error) {
	t, ok := f.templates[id]
	if !ok {
		return nil, repositories.ErrTemplateNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeFixedSlotRepo) ActiveTemplatesForDate(slotDate time.Time) ([]models.FixedSlotTemplate, error) {
	day := slotDate.Truncate(24 * time.Hour)
	var matched []models.FixedSlotTemplate
	var ids []string
	for id := range f.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		t := f.templates[id]
		if t.Status != models.FixedSlotStatusActive {
			continue
		}
		for _, d := range f.scheduled[id] {
			if d.Equal(day) {
				matched = append(matched, *t)
				break
			}
		}
	}
	return matched, nil
}

func (f *fakeFixedSlotRepo) ScheduleDate(templateID string, slotDate time.Time) (*models.FixedSlotDate, error) {
	day := slotDate.Truncate(24 * time.Hour)
	f.scheduled[templateID] = append(f.scheduled[templateID], day)
	return &models.FixedSlotDate{ID: uuid.NewString(), TemplateID: templateID, SlotDate: day}, nil
}

type fakeOutboxRepo struct {
	jobs []*models.JobOutbox
}

func newFakeOutboxRepo() *fakeOutboxRepo { return &fakeOutboxRepo{} }

func (f *fakeOutboxRepo) WithTx(tx *gorm.DB) repositories.JobOutboxRepository { return f }

func (f *fakeOutboxRepo) Enqueue(input repositories.EnqueueJobInput) (*models.JobOutbox, error) {
	if input.DedupeKey != nil {
		for _, j := range f.jobs {
			if j.Status == models.JobStatusPending && j.Type == input.Type &&
				j.DedupeKey != nil && *j.DedupeKey == *input.DedupeKey {
				return nil, repositories.ErrDuplicateJob
			}
		}
	}
	job := &models.JobOutbox{
		ID:        uuid.NewString(),
		Type:      input.Type,
		DedupeKey: input.DedupeKey,
		Payload:   input.Payload,
		RunAt:     input.RunAt,
		Status:    models.JobStatusPending,
	}
	f.jobs = append(f.jobs, job)
	return job, nil
}

func (f *fakeOutboxRepo) ClaimDue(workerID string, limit int, now time.Time) ([]models.JobOutbox, error) {
	var claimed []models.JobOutbox
	for _, j := range f.jobs {
		if j.Status == models.JobStatusPending && !j.RunAt.After(now) && len(claimed) < limit {
			claimed = append(claimed, *j)
		}
	}
	return claimed, nil
}

func (f *fakeOutboxRepo) MarkSent(jobID string) error {
	for _, j := range f.jobs {
		if j.ID == jobID {
			j.Status = models.JobStatusSent
		}
	}
	return nil
}

func (f *fakeOutboxRepo) RescheduleOnFailure(jobID string, jobErr error, now time.Time) error {
	for _, j := range f.jobs {
		if j.ID == jobID {
			j.Attempts++
			msg := jobErr.Error()
			j.LastError = &msg
		}
	}
	return nil
}

func (f *fakeOutboxRepo) CancelByDedupeKey(jobType, dedupeKey string) (bool, error) {
	for _, j := range f.jobs {
		if j.Status == models.JobStatusPending && j.Type == jobType &&
			j.DedupeKey != nil && *j.DedupeKey == dedupeKey {
			j.Status = models.JobStatusCancelled
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOutboxRepo) FindByID(jobID string) (*models.JobOutbox, error) {
	for _, j := range f.jobs {
		if j.ID == jobID {
			copied := *j
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOutboxRepo) pendingByKey(jobType, dedupeKey string) *models.JobOutbox {
	for _, j := range f.jobs {
		if j.Status == models.JobStatusPending && j.Type == jobType &&
			j.DedupeKey != nil && *j.DedupeKey == dedupeKey {
			return j
		}
	}
	return nil
}

// fakeWalletService records debits/credits without a database.
type fakeWalletService struct {
	wallets   map[string]*models.Wallet // by userID
	hashes    map[string]bool
	debitErr  error
	creditErr error
}

func newFakeWalletService() *fakeWalletService {
	return &fakeWalletService{
		wallets: make(map[string]*models.Wallet),
		hashes:  make(map[string]bool),
	}
}

func (f *fakeWalletService) addWallet(userID string, balance int64) *models.Wallet {
	w := &models.Wallet{ID: "wallet-" + userID, UserID: userID, Balance: balance, Status: models.WalletStatusActive}
	f.wallets[userID] = w
	return w
}

func (f *fakeWalletService) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	w, ok := f.wallets[userID]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	return w, nil
}

func (f *fakeWalletService) GetWalletInTx(tx *gorm.DB, userID string) (*models.Wallet, error) {
	return f.GetWallet(context.Background(), userID)
}

func (f *fakeWalletService) CreateWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	return f.addWallet(userID, 0), nil
}

func (f *fakeWalletService) GetBalance(ctx context.Context, userID string) (int64, int64, error) {
	w, err := f.GetWallet(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	return w.Balance, w.ReservedBalance, nil
}

func (f *fakeWalletService) Credit(ctx context.Context, input wallet.CreditInput) (*models.Wallet, error) {
	return f.applyCredit(input)
}

func (f *fakeWalletService) CreditInTx(tx *gorm.DB, input wallet.CreditInput) (*models.Wallet, error) {
	return f.applyCredit(input)
}

func (f *fakeWalletService) applyCredit(input wallet.CreditInput) (*models.Wallet, error) {
	if f.creditErr != nil {
		return nil, f.creditErr
	}
	w, ok := f.wallets[input.UserID]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	if input.Hash != nil {
		if f.hashes[*input.Hash] {
			return nil, wallet.ErrDuplicateOperation
		}
		f.hashes[*input.Hash] = true
	}
	w.Balance += input.Amount - input.Fee
	return w, nil
}

func (f *fakeWalletService) Debit(ctx context.Context, input wallet.DebitInput) (*models.Wallet, error) {
	return f.applyDebit(input)
}

func (f *fakeWalletService) DebitInTx(tx *gorm.DB, input wallet.DebitInput) (*models.Wallet, error) {
	return f.applyDebit(input)
}

func (f *fakeWalletService) applyDebit(input wallet.DebitInput) (*models.Wallet, error) {
	if f.debitErr != nil {
		return nil, f.debitErr
	}
	w, ok := f.wallets[input.UserID]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	if input.Hash != nil {
		if f.hashes[*input.Hash] {
			return nil, wallet.ErrDuplicateOperation
		}
		f.hashes[*input.Hash] = true
	}
	if w.Balance-w.ReservedBalance < input.Amount {
		return nil, wallet.ErrInsufficientBalance
	}
	w.Balance -= input.Amount
	return w, nil
}

func (f *fakeWalletService) ReserveInTx(tx *gorm.DB, walletID string, amount int64) error {
	for _, w := range f.wallets {
		if w.ID == walletID {
			if w.Balance-w.ReservedBalance < amount {
				return wallet.ErrInsufficientBalance
			}
			w.ReservedBalance += amount
			return nil
		}
	}
	return wallet.ErrWalletNotFound
}

func (f *fakeWalletService) ReleaseInTx(tx *gorm.DB, walletID string, amount int64) error {
	for _, w := range f.wallets {
		if w.ID == walletID {
			if w.ReservedBalance < amount {
				return wallet.ErrNothingReserved
			}
			w.ReservedBalance -= amount
			return nil
		}
	}
	return wallet.ErrWalletNotFound
}

func (f *fakeWalletService) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]models.WalletTransaction, int64, error) {
	return nil, 0, nil
}
