package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outbox job statuses
const (
	JobStatusPending   = "PENDING"
	JobStatusSent      = "SENT"
	JobStatusFailed    = "FAILED"
	JobStatusCancelled = "CANCELLED"
)

// Outbox job types
const (
	JobTypeReservationNotifyNearExpiry = "reservation:notify-near-expiry"
	JobTypeReservationExpireHold       = "reservation:expire-hold"
	JobTypeWithdrawalExecute           = "withdrawal:execute"
	JobTypeEmailSend                   = "email:send"
)

// JobOutbox is a durable "run this at/after RunAt" row. A partial unique
// index on (type, dedupe_key) over PENDING rows (created in InitDB) gives
// at-most-one-pending scheduling per business key; the consumer claims due
// rows with FOR UPDATE SKIP LOCKED and a lock TTL so a crashed worker's
// claim expires.
type JobOutbox struct {
	ID        string  `gorm:"primarykey;type:uuid"`
	Type      string  `gorm:"not null;index:idx_job_outbox_due"`
	DedupeKey *string `gorm:"index"`
	Payload   JSON    `gorm:"type:jsonb"`
	RunAt     time.Time `gorm:"not null;index:idx_job_outbox_due"`
	Status    string    `gorm:"not null;default:'PENDING';index:idx_job_outbox_due"`
	Attempts  int       `gorm:"not null;default:0"`
	LockedAt  *time.Time
	LockedBy  *string
	LastError *string
	SentAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (j *JobOutbox) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}
