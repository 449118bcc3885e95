package jobs

import (
	"errors"
	"fmt"

	"mebike/internal/models"
	"mebike/internal/services/reservation"
	"mebike/internal/services/withdrawal"
)

var errMissingPayloadField = errors.New("job payload missing required field")

func payloadString(payload models.JSON, key string) (string, error) {
	raw, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", errMissingPayloadField, key)
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s", errMissingPayloadField, key)
	}
	return value, nil
}

// RegisterCoreHandlers binds the standard job types to their use cases.
func RegisterCoreHandlers(
	w *Worker,
	reservations *reservation.UseCases,
	withdrawals *withdrawal.Service,
	emails EmailSender,
) {
	w.Register(models.JobTypeReservationExpireHold, func(payload models.JSON) error {
		id, err := payloadString(payload, "reservationId")
		if err != nil {
			return err
		}
		return reservations.ExpireHold(id)
	})

	w.Register(models.JobTypeReservationNotifyNearExpiry, func(payload models.JSON) error {
		if _, err := payloadString(payload, "reservationId"); err != nil {
			return err
		}
		return emails.Send("reservation-near-expiry", payload)
	})

	w.Register(models.JobTypeWithdrawalExecute, func(payload models.JSON) error {
		id, err := payloadString(payload, "withdrawalId")
		if err != nil {
			return err
		}
		return withdrawals.Execute(id)
	})

	w.Register(models.JobTypeEmailSend, func(payload models.JSON) error {
		template, err := payloadString(payload, "template")
		if err != nil {
			return err
		}
		return emails.Send(template, payload)
	})
}
