package repositories

import (
	"errors"
	"time"

	"mebike/internal/models"

	"gorm.io/gorm"
)

// FixedSlotRepository serves the recurring-reservation schedule. The batch
// assignment job asks for every ACTIVE template scheduled on a given date.
type FixedSlotRepository interface {
	WithTx(tx *gorm.DB) FixedSlotRepository

	GetTemplateByID(id string) (*models.FixedSlotTemplate, error)
	// ActiveTemplatesForDate returns the ACTIVE templates that have a
	// FixedSlotDate row on slotDate (date component only).
	ActiveTemplatesForDate(slotDate time.Time) ([]models.FixedSlotTemplate, error)
	ScheduleDate(templateID string, slotDate time.Time) (*models.FixedSlotDate, error)
}

type fixedSlotRepositoryImpl struct {
	db *gorm.DB
}

func NewFixedSlotRepository(db *gorm.DB) FixedSlotRepository {
	return &fixedSlotRepositoryImpl{db: db}
}

func (r *fixedSlotRepositoryImpl) WithTx(tx *gorm.DB) FixedSlotRepository {
	return &fixedSlotRepositoryImpl{db: tx}
}

func (r *fixedSlotRepositoryImpl) GetTemplateByID(id string) (*models.FixedSlotTemplate, error) {
	var tpl models.FixedSlotTemplate
	err := r.db.Where("id = ?", id).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *fixedSlotRepositoryImpl) ActiveTemplatesForDate(slotDate time.Time) ([]models.FixedSlotTemplate, error) {
	day := slotDate.Truncate(24 * time.Hour)
	var templates []models.FixedSlotTemplate
	err := r.db.
		Joins("JOIN fixed_slot_dates ON fixed_slot_dates.template_id = fixed_slot_templates.id").
		Where("fixed_slot_dates.slot_date = ? AND fixed_slot_templates.status = ?", day, models.FixedSlotStatusActive).
		Order("fixed_slot_templates.created_at ASC").
		Find(&templates).Error
	if err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *fixedSlotRepositoryImpl) ScheduleDate(templateID string, slotDate time.Time) (*models.FixedSlotDate, error) {
	row := &models.FixedSlotDate{
		TemplateID: templateID,
		SlotDate:   slotDate.Truncate(24 * time.Hour),
	}
	if err := r.db.Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotDateScheduled
		}
		return nil, err
	}
	return row, nil
}
