package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"mebike/internal/models"
	"mebike/internal/repositories"
)

// Handler processes one claimed job. Returning an error reschedules the job
// with backoff until the attempt ceiling.
type Handler func(payload models.JSON) error

// Worker is the outbox consumer: it claims due jobs under FOR UPDATE SKIP
// LOCKED and dispatches them to registered handlers. Several workers may run
// concurrently; the claim semantics keep each job with exactly one of them at
// a time.
type Worker struct {
	id        string
	outbox    repositories.JobOutboxRepository
	handlers  map[string]Handler
	interval  time.Duration
	batchSize int
}

func NewWorker(id string, outbox repositories.JobOutboxRepository, interval time.Duration, batchSize int) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Worker{
		id:        id,
		outbox:    outbox,
		handlers:  make(map[string]Handler),
		interval:  interval,
		batchSize: batchSize,
	}
}

func (w *Worker) Register(jobType string, handler Handler) {
	w.handlers[jobType] = handler
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.RunOnce(); err != nil {
				log.Printf("worker %s: claim pass failed: %v", w.id, err)
			}
		}
	}
}

// RunOnce claims and processes one batch of due jobs.
func (w *Worker) RunOnce() error {
	now := time.Now()
	claimed, err := w.outbox.ClaimDue(w.id, w.batchSize, now)
	if err != nil {
		return err
	}
	for i := range claimed {
		w.process(&claimed[i], now)
	}
	return nil
}

func (w *Worker) process(job *models.JobOutbox, now time.Time) {
	handler, ok := w.handlers[job.Type]
	if !ok {
		w.fail(job, fmt.Errorf("no handler registered for job type %q", job.Type), now)
		return
	}
	if err := handler(job.Payload); err != nil {
		w.fail(job, err, now)
		return
	}
	if err := w.outbox.MarkSent(job.ID); err != nil {
		log.Printf("worker %s: job %s done but mark-sent failed: %v", w.id, job.ID, err)
	}
}

func (w *Worker) fail(job *models.JobOutbox, jobErr error, now time.Time) {
	log.Printf("worker %s: job %s (%s) failed: %v", w.id, job.ID, job.Type, jobErr)
	if err := w.outbox.RescheduleOnFailure(job.ID, jobErr, now); err != nil {
		log.Printf("worker %s: job %s reschedule failed: %v", w.id, job.ID, err)
	}
}
