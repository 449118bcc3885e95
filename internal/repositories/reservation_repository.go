package repositories

import (
	"errors"
	"time"

	"mebike/internal/models"

	"gorm.io/gorm"
)

// CreateReservationInput carries everything a new hold row needs. EndTime nil
// means the hold has no expiry (subscription and fixed-slot placeholders).
type CreateReservationInput struct {
	UserID              string
	BikeID              *string
	StationID           string
	Option              string
	Prepaid             int64
	StartTime           time.Time
	EndTime             *time.Time
	SubscriptionID      *string
	FixedSlotTemplateID *string
}

// ReservationRepository owns reservation rows. The partial unique indexes on
// (user), (bike) and (template, start_time) over PENDING/ACTIVE rows are the
// real concurrency guards; Create translates their violations into typed
// conflicts.
type ReservationRepository interface {
	WithTx(tx *gorm.DB) ReservationRepository

	Create(input CreateReservationInput) (*models.Reservation, error)
	FindByID(id string) (*models.Reservation, error)
	// PendingHoldByUserNow returns the user's PENDING hold whose window
	// covers now. FIXED_SLOT placeholders and expired-but-unswept rows do
	// not count.
	PendingHoldByUserNow(userID string, now time.Time) (*models.Reservation, error)
	PendingHoldByBikeNow(bikeID string, now time.Time) (*models.Reservation, error)
	LatestPendingOrActiveByUser(userID string) (*models.Reservation, error)
	PendingFixedSlotByTemplateAndStart(templateID string, startTime time.Time) (*models.Reservation, error)
	// AssignBikeToPending sets the bike on a PENDING reservation that has no
	// bike yet. False when the row moved on or already has one.
	AssignBikeToPending(reservationID, bikeID string) (bool, error)
	// UpdateStatus moves the row from one status to another. False when the
	// row was not in the expected status.
	UpdateStatus(reservationID, from, to string) (bool, error)
	// ExpirePendingHold flips a PENDING hold to EXPIRED only when its end
	// time has truly passed.
	ExpirePendingHold(reservationID string, now time.Time) (bool, error)
	// MarkExpiredNow sweeps every overdue PENDING hold to EXPIRED and
	// returns the rows it flipped.
	MarkExpiredNow(now time.Time) ([]models.Reservation, error)
	NextUpcomingByUser(userID string, now time.Time) (*models.Reservation, error)
	ListForUser(userID string, limit, offset int) ([]models.Reservation, int64, error)
}

type reservationRepositoryImpl struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepositoryImpl{db: db}
}

func (r *reservationRepositoryImpl) WithTx(tx *gorm.DB) ReservationRepository {
	return &reservationRepositoryImpl{db: tx}
}

func (r *reservationRepositoryImpl) Create(input CreateReservationInput) (*models.Reservation, error) {
	row := &models.Reservation{
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
	}
	if err := r.db.Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			switch uniqueConstraintName(err) {
			case constraintReservationUserActive:
				return nil, ErrActiveReservationExists
			case constraintReservationBikeActive:
				return nil, ErrBikeAlreadyReserved
			case constraintReservationSlotStart:
				return nil, ErrSlotAlreadyReserved
			}
		}
		return nil, err
	}
	return row, nil
}

func (r *reservationRepositoryImpl) FindByID(id string) (*models.Reservation, error) {
	var row models.Reservation
	err := r.db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *reservationRepositoryImpl) PendingHoldByUserNow(userID string, now time.Time) (*models.Reservation, error) {
	var row models.Reservation
	err := r.db.Where(
		"user_id = ? AND status = ? AND reservation_option <> ? AND start_time <= ? AND end_time IS NOT NULL AND end_time > ?",
		userID, models.ReservationStatusPending, models.ReservationOptionFixedSlot, now, now,
	).Order("created_at DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *reservationRepositoryImpl) PendingHoldByBikeNow(bikeID string, now time.Time) (*models.Reservation, error) {
	var row models.Reservation
	err := r.db.Where(
		"bike_id = ? AND status = ? AND reservation_option <> ? AND start_time <= ? AND end_time IS NOT NULL AND end_time > ?",
		bikeID, models.ReservationStatusPending, models.ReservationOptionFixedSlot, now, now,
	).Order("created_at DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *reservationRepositoryImpl) LatestPendingOrActiveByUser(userID string) (*models.Reservation, error) {
	var row models.Reservation
	err := r.db.Where(
		"user_id = ? AND status IN ?",
		userID, []string{models.ReservationStatusPending, models.ReservationStatusActive},
	).Order("created_at DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *reservationRepositoryImpl) PendingFixedSlotByTemplateAndStart(templateID string, startTime time.Time) (*models.Reservation, error) {
	var row models.Reservation
	err := r.db.Where(
		"fixed_slot_template_id = ? AND start_time = ? AND status = ?",
		templateID, startTime, models.ReservationStatusPending,
	).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *reservationRepositoryImpl) AssignBikeToPending(reservationID, bikeID string) (bool, error) {
	res := r.db.Model(&models.Reservation{}).
		Where("id = ? AND status = ? AND bike_id IS NULL", reservationID, models.ReservationStatusPending).
		Update("bike_id", bikeID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *reservationRepositoryImpl) UpdateStatus(reservationID, from, to string) (bool, error) {
	res := r.db.Model(&models.Reservation{}).
		Where("id = ? AND status = ?", reservationID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *reservationRepositoryImpl) ExpirePendingHold(reservationID string, now time.Time) (bool, error) {
	res := r.db.Model(&models.Reservation{}).
		Where(
			"id = ? AND status = ? AND end_time IS NOT NULL AND end_time <= ?",
			reservationID, models.ReservationStatusPending, now,
		).
		Update("status", models.ReservationStatusExpired)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *reservationRepositoryImpl) MarkExpiredNow(now time.Time) ([]models.Reservation, error) {
	var overdue []models.Reservation
	err := r.db.Where(
		"status = ? AND end_time IS NOT NULL AND end_time <= ?",
		models.ReservationStatusPending, now,
	).Find(&overdue).Error
	if err != nil {
		return nil, err
	}

	flipped := make([]models.Reservation, 0, len(overdue))
	for _, row := range overdue {
		ok, err := r.ExpirePendingHold(row.ID, now)
		if err != nil {
			return flipped, err
		}
		if ok {
			row.Status = models.ReservationStatusExpired
			flipped = append(flipped, row)
		}
	}
	return flipped, nil
}

func (r *reservationRepositoryImpl) NextUpcomingByUser(userID string, now time.Time) (*models.Reservation, error) {
	var row models.Reservation
	err := r.db.Where(
		"user_id = ? AND status IN ? AND start_time > ?",
		userID, []string{models.ReservationStatusPending, models.ReservationStatusActive}, now,
	).Order("start_time ASC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *reservationRepositoryImpl) ListForUser(userID string, limit, offset int) ([]models.Reservation, int64, error) {
	var total int64
	if err := r.db.Model(&models.Reservation{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Reservation
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
