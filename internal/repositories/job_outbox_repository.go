package repositories

import (
	"errors"
	"fmt"
	"time"

	"mebike/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// jobLockTTL is how long a claimed job stays invisible to other workers.
	jobLockTTL = 5 * time.Minute
	// jobMaxAttempts is the retry ceiling before a job goes FAILED for good.
	jobMaxAttempts = 5
)

// EnqueueJobInput describes one outbox job. DedupeKey nil means no
// deduplication; otherwise at most one PENDING job may exist per
// (type, dedupe_key).
type EnqueueJobInput struct {
	Type      string
	DedupeKey *string
	Payload   models.JSON
	RunAt     time.Time
}

// JobOutboxRepository is the transactional job queue. Jobs are enqueued
// inside the same transaction as the state change they announce, so a commit
// either produces both or neither.
type JobOutboxRepository interface {
	WithTx(tx *gorm.DB) JobOutboxRepository

	// Enqueue inserts a PENDING job. ErrDuplicateJob when an equivalent
	// PENDING job already exists.
	Enqueue(input EnqueueJobInput) (*models.JobOutbox, error)
	// ClaimDue locks up to limit due PENDING jobs for the named worker and
	// returns them. Uses FOR UPDATE SKIP LOCKED so concurrent workers never
	// block on each other. Jobs whose lock has outlived jobLockTTL are
	// reclaimed.
	ClaimDue(workerID string, limit int, now time.Time) ([]models.JobOutbox, error)
	MarkSent(jobID string) error
	// RescheduleOnFailure bumps attempts, records the error and pushes
	// run_at out with exponential backoff; at jobMaxAttempts the job goes
	// FAILED instead.
	RescheduleOnFailure(jobID string, jobErr error, now time.Time) error
	// CancelByDedupeKey cancels the PENDING job with this (type, dedupe_key)
	// if one exists.
	CancelByDedupeKey(jobType, dedupeKey string) (bool, error)
	FindByID(jobID string) (*models.JobOutbox, error)
}

type jobOutboxRepositoryImpl struct {
	db *gorm.DB
}

func NewJobOutboxRepository(db *gorm.DB) JobOutboxRepository {
	return &jobOutboxRepositoryImpl{db: db}
}

func (r *jobOutboxRepositoryImpl) WithTx(tx *gorm.DB) JobOutboxRepository {
	return &jobOutboxRepositoryImpl{db: tx}
}

func (r *jobOutboxRepositoryImpl) Enqueue(input EnqueueJobInput) (*models.JobOutbox, error) {
	job := &models.JobOutbox{
		Type:      input.Type,
		DedupeKey: input.DedupeKey,
		Payload:   input.Payload,
		RunAt:     input.RunAt,
		Status:    models.JobStatusPending,
	}
	if err := r.db.Create(job).Error; err != nil {
		if isUniqueViolation(err) && uniqueConstraintName(err) == constraintJobDedupe {
			return nil, ErrDuplicateJob
		}
		return nil, err
	}
	return job, nil
}

func (r *jobOutboxRepositoryImpl) ClaimDue(workerID string, limit int, now time.Time) ([]models.JobOutbox, error) {
	var claimed []models.JobOutbox
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var due []models.JobOutbox
		staleLock := now.Add(-jobLockTTL)
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(
				"status = ? AND run_at <= ? AND (locked_at IS NULL OR locked_at < ?)",
				models.JobStatusPending, now, staleLock,
			).
			Order("run_at ASC").
			Limit(limit).
			Find(&due).Error
		if err != nil {
			return err
		}
		for i := range due {
			res := tx.Model(&models.JobOutbox{}).
				Where("id = ?", due[i].ID).
				Updates(map[string]interface{}{
					"locked_at": &now,
					"locked_by": workerID,
				})
			if res.Error != nil {
				return res.Error
			}
			due[i].LockedAt = &now
			due[i].LockedBy = &workerID
		}
		claimed = due
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobOutboxRepositoryImpl) MarkSent(jobID string) error {
	now := time.Now()
	return r.db.Model(&models.JobOutbox{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusPending).
		Updates(map[string]interface{}{
			"status":    models.JobStatusSent,
			"sent_at":   &now,
			"locked_at": nil,
			"locked_by": nil,
		}).Error
}

func (r *jobOutboxRepositoryImpl) RescheduleOnFailure(jobID string, jobErr error, now time.Time) error {
	job, err := r.FindByID(jobID)
	if err != nil {
		return err
	}
	attempts := job.Attempts + 1
	updates := map[string]interface{}{
		"attempts":   attempts,
		"last_error": jobErr.Error(),
		"locked_at":  nil,
		"locked_by":  nil,
	}
	if attempts >= jobMaxAttempts {
		updates["status"] = models.JobStatusFailed
	} else {
		// 1m, 2m, 4m, 8m between retries.
		backoff := time.Duration(1<<(attempts-1)) * time.Minute
		updates["run_at"] = now.Add(backoff)
	}
	return r.db.Model(&models.JobOutbox{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusPending).
		Updates(updates).Error
}

func (r *jobOutboxRepositoryImpl) CancelByDedupeKey(jobType, dedupeKey string) (bool, error) {
	res := r.db.Model(&models.JobOutbox{}).
		Where("type = ? AND dedupe_key = ? AND status = ?", jobType, dedupeKey, models.JobStatusPending).
		Update("status", models.JobStatusCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobOutboxRepositoryImpl) FindByID(jobID string) (*models.JobOutbox, error) {
	var job models.JobOutbox
	err := r.db.Where("id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("outbox job %s not found", jobID)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}
