package reservation

import (
	"errors"
	"fmt"
	"log"
	"time"

	"mebike/internal/models"
	"mebike/internal/repositories"

	"gorm.io/gorm"
)

// Fixed-slot assignment outcomes
const (
	FixedSlotOutcomeAssigned           = "ASSIGNED"
	FixedSlotOutcomeNoBike             = "NO_BIKE"
	FixedSlotOutcomeMissingReservation = "MISSING_RESERVATION"
	FixedSlotOutcomeConflict           = "CONFLICT"
)

// FixedSlotResult is one template's outcome from an assignment run.
type FixedSlotResult struct {
	TemplateID    string
	ReservationID string
	BikeID        string
	Outcome       string
}

// errAssignConflict aborts a template's transaction when a conditional step
// loses its race; the loop records CONFLICT and moves on.
var errAssignConflict = errors.New("fixed slot assignment lost a race")

func noBikeDedupeKey(templateID string, date time.Time) string {
	return fmt.Sprintf("fixed-slot:no-bike:%s:%s", templateID, date.Format("2006-01-02"))
}

func assignedDedupeKey(reservationID string) string {
	return fmt.Sprintf("fixed-slot:assigned:%s", reservationID)
}

// AssignFixedSlotsForDate binds a concrete bike to every fixed-slot
// reservation scheduled on date. Each template runs in its own transaction
// and failures are isolated per template: one broken row cannot starve the
// rest of the day's assignments. Returns the per-template outcomes and the
// number of infra errors encountered.
func (u *UseCases) AssignFixedSlotsForDate(date time.Time) ([]FixedSlotResult, int, error) {
	templates, err := u.fixedSlots.ActiveTemplatesForDate(date)
	if err != nil {
		return nil, 0, err
	}

	results := make([]FixedSlotResult, 0, len(templates))
	errCount := 0
	for i := range templates {
		result, err := u.assignOneSlot(&templates[i], date)
		if err != nil {
			errCount++
			log.Printf("fixed slot template %s assignment failed: %v", templates[i].ID, err)
			continue
		}
		results = append(results, result)
	}
	return results, errCount, nil
}

func (u *UseCases) assignOneSlot(tpl *models.FixedSlotTemplate, date time.Time) (FixedSlotResult, error) {
	startTime := slotStartOn(tpl.SlotStart, date)
	result := FixedSlotResult{TemplateID: tpl.ID}

	err := repositories.RunInTransaction(u.db, func(tx *gorm.DB) error {
		res, err := u.reservations.WithTx(tx).PendingFixedSlotByTemplateAndStart(tpl.ID, startTime)
		if err != nil {
			if errors.Is(err, repositories.ErrReservationNotFound) {
				result.Outcome = FixedSlotOutcomeMissingReservation
				return nil
			}
			return err
		}
		result.ReservationID = res.ID

		bikes, err := u.bikes.WithTx(tx).FindAvailableByStation(tpl.StationID, 1)
		if err != nil {
			return err
		}
		if len(bikes) == 0 {
			result.Outcome = FixedSlotOutcomeNoBike
			return u.enqueueNoBikeNotice(tx, tpl, res, date)
		}
		bike := bikes[0]

		// Three conditional flips; any lost race rolls the whole template
		// back and records CONFLICT.
		ok, err := u.reservations.WithTx(tx).AssignBikeToPending(res.ID, bike.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errAssignConflict
		}
		ok, err = u.rentals.WithTx(tx).AssignBike(res.ID, bike.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errAssignConflict
		}
		ok, err = u.bikes.WithTx(tx).ReserveIfAvailable(bike.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errAssignConflict
		}

		result.BikeID = bike.ID
		result.Outcome = FixedSlotOutcomeAssigned
		return u.enqueueAssignedNotice(tx, res, bike.ID)
	})
	if errors.Is(err, errAssignConflict) {
		result.Outcome = FixedSlotOutcomeConflict
		result.BikeID = ""
		return result, nil
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

func (u *UseCases) enqueueNoBikeNotice(tx *gorm.DB, tpl *models.FixedSlotTemplate, res *models.Reservation, date time.Time) error {
	_, err := u.outbox.WithTx(tx).Enqueue(repositories.EnqueueJobInput{
		Type:      models.JobTypeEmailSend,
		DedupeKey: strPtr(noBikeDedupeKey(tpl.ID, date)),
		Payload: models.JSON{
			"template":      "fixed-slot-no-bike",
			"userId":        tpl.UserID,
			"reservationId": res.ID,
			"stationId":     tpl.StationID,
		},
		RunAt: time.Now(),
	})
	if err != nil && !errors.Is(err, repositories.ErrDuplicateJob) {
		return err
	}
	return nil
}

func (u *UseCases) enqueueAssignedNotice(tx *gorm.DB, res *models.Reservation, bikeID string) error {
	_, err := u.outbox.WithTx(tx).Enqueue(repositories.EnqueueJobInput{
		Type:      models.JobTypeEmailSend,
		DedupeKey: strPtr(assignedDedupeKey(res.ID)),
		Payload: models.JSON{
			"template":      "fixed-slot-assigned",
			"userId":        res.UserID,
			"reservationId": res.ID,
			"bikeId":        bikeID,
		},
		RunAt: time.Now(),
	})
	if err != nil && !errors.Is(err, repositories.ErrDuplicateJob) {
		return err
	}
	return nil
}

// slotStartOn merges a template's time-of-day with a calendar date.
func slotStartOn(slotStart, date time.Time) time.Time {
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		slotStart.Hour(), slotStart.Minute(), slotStart.Second(), 0,
		date.Location(),
	)
}
