package jobs

import (
	"log"

	"mebike/internal/models"
)

// EmailSender delivers templated notification emails. Delivery is at least
// once, deduplicated upstream by the job dedupe key.
type EmailSender interface {
	Send(template string, payload models.JSON) error
}

// LogEmailSender writes emails to the process log. Stands in for a real
// sender in development and tests.
type LogEmailSender struct{}

func (LogEmailSender) Send(template string, payload models.JSON) error {
	log.Printf("email [%s]: %v", template, payload)
	return nil
}
