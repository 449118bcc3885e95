// Package main is the background worker entry point. It consumes the job
// outbox (hold expiry, near-expiry notices, withdrawal execution, emails) and
// runs the periodic passes: overdue hold sweep, withdrawal reconciliation
// sweep and the daily fixed-slot assignment.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mebike/internal/config"
	"mebike/internal/jobs"
	"mebike/internal/repositories"
	"mebike/internal/services/payment"
	"mebike/internal/services/reservation"
	"mebike/internal/services/wallet"
	"mebike/internal/services/withdrawal"

	"github.com/google/uuid"
)

func main() {
	config.LoadEnv()
	repositories.InitDB()
	db := repositories.DB

	walletRepo := repositories.NewWalletRepository(db)
	holdRepo := repositories.NewWalletHoldRepository(db)
	withdrawalRepo := repositories.NewWithdrawalRepository(db)
	reservationRepo := repositories.NewReservationRepository(db)
	rentalRepo := repositories.NewRentalRepository(db)
	bikeRepo := repositories.NewBikeRepository(db)
	subscriptionRepo := repositories.NewSubscriptionRepository(db)
	fixedSlotRepo := repositories.NewFixedSlotRepository(db)
	outboxRepo := repositories.NewJobOutboxRepository(db)
	userRepo := repositories.NewUserRepository(db)

	provider := payment.NewStripeProvider(config.GetEnv("STRIPE_SECRET_KEY", ""))
	walletService := wallet.NewService(walletRepo, repositories.CacheService, nil)
	reservationService := reservation.NewService(reservationRepo, rentalRepo)
	reservationUseCases := reservation.NewUseCases(
		db,
		reservationService,
		walletService,
		reservationRepo,
		rentalRepo,
		bikeRepo,
		subscriptionRepo,
		fixedSlotRepo,
		outboxRepo,
		reservation.Config{
			HoldTTL:       config.ReservationHoldTTL(),
			PrepaidAmount: config.ReservationPrepaidAmount(),
			NotifyLead:    config.ExpiryNotifyLead(),
			RefundPeriod:  config.RefundPeriod(),
		},
	)
	withdrawalService := withdrawal.NewService(
		db,
		withdrawalRepo,
		holdRepo,
		userRepo,
		outboxRepo,
		walletService,
		provider,
		withdrawal.Config{
			MinAmount:     config.MinWithdrawalAmount(),
			ProcessingTTL: config.WithdrawalProcessingTTL(),
			SLA:           config.WithdrawalSLA(),
		},
	)

	workerID := "worker-" + uuid.NewString()[:8]
	worker := jobs.NewWorker(workerID, outboxRepo,
		time.Duration(config.GetIntEnv("WORKER_POLL_SECONDS", 5))*time.Second,
		config.GetIntEnv("WORKER_BATCH_SIZE", 20),
	)
	jobs.RegisterCoreHandlers(worker, reservationUseCases, withdrawalService, jobs.LogEmailSender{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runPeriodic(ctx, "expire-overdue-holds", time.Minute, func() {
		if n, err := reservationUseCases.ExpireOverdueHolds(); err != nil {
			log.Printf("overdue hold sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("expired %d overdue holds", n)
		}
	})

	go runPeriodic(ctx, "withdrawal-sweep", 5*time.Minute, func() {
		if errCount, err := withdrawalService.Sweep(50); err != nil {
			log.Printf("withdrawal sweep failed: %v", err)
		} else if errCount > 0 {
			log.Printf("withdrawal sweep finished with %d row errors", errCount)
		}
	})

	go runDaily(ctx, "fixed-slot-assignment", func() {
		results, errCount, err := reservationUseCases.AssignFixedSlotsForDate(time.Now())
		if err != nil {
			log.Printf("fixed slot assignment failed: %v", err)
			return
		}
		log.Printf("fixed slot assignment: %d templates, %d errors", len(results), errCount)
	})

	log.Printf("worker %s started", workerID)
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("worker stopped: %v", err)
	}
}

func runPeriodic(ctx context.Context, name string, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// runDaily fires fn shortly after each local midnight.
func runDaily(ctx context.Context, name string, fn func()) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 5, 0, 0, now.Location()).AddDate(0, 0, 1)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			fn()
		}
	}
}
