// Package routes defines the API routing configuration.
package routes

import (
	"mebike/internal/config"
	"mebike/internal/handlers"
	"mebike/internal/middleware"
	"mebike/internal/repositories"
	"mebike/internal/services/connect"
	"mebike/internal/services/payment"
	"mebike/internal/services/reservation"
	"mebike/internal/services/topup"
	"mebike/internal/services/wallet"
	"mebike/internal/services/withdrawal"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupRoutes configures all application routes.
// It groups routes by functionality and applies appropriate middleware.
func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Repositories
	walletRepo := repositories.NewWalletRepository(db)
	holdRepo := repositories.NewWalletHoldRepository(db)
	withdrawalRepo := repositories.NewWithdrawalRepository(db)
	reservationRepo := repositories.NewReservationRepository(db)
	rentalRepo := repositories.NewRentalRepository(db)
	bikeRepo := repositories.NewBikeRepository(db)
	subscriptionRepo := repositories.NewSubscriptionRepository(db)
	fixedSlotRepo := repositories.NewFixedSlotRepository(db)
	attemptRepo := repositories.NewPaymentAttemptRepository(db)
	outboxRepo := repositories.NewJobOutboxRepository(db)
	userRepo := repositories.NewUserRepository(db)

	// Services
	provider := payment.NewStripeProvider(config.GetEnv("STRIPE_SECRET_KEY", ""))
	walletService := wallet.NewService(walletRepo, repositories.CacheService, nil)
	reservationService := reservation.NewService(reservationRepo, rentalRepo)
	holdService := reservation.NewHoldService(reservationRepo)
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
	topupService := topup.NewService(db, attemptRepo, walletService, provider)
	connectService := connect.NewService(userRepo, provider)

	// Handlers
	walletHandler := handlers.NewWalletHandler(walletService)
	topupHandler := handlers.NewTopupHandler(topupService)
	reservationHandler := handlers.NewReservationHandler(reservationUseCases, holdService)
	withdrawalHandler := handlers.NewWithdrawalHandler(withdrawalService, withdrawalRepo)
	connectHandler := handlers.NewConnectHandler(connectService)
	webhookHandler := handlers.NewWebhookHandler(topupService, withdrawalService, connectService)

	app.Get("/health", handlers.Health)

	// Webhook endpoint is signature-verified, not JWT-authenticated.
	app.Post("/webhooks/stripe", webhookHandler.HandleStripeEvent)

	api := app.Group("/api", middleware.Auth)

	walletGroup := api.Group("/wallet")
	walletGroup.Get("/", walletHandler.GetWallet)
	walletGroup.Get("/balance", walletHandler.GetBalance)
	walletGroup.Get("/transactions", walletHandler.ListTransactions)
	walletGroup.Post("/topup", topupHandler.StartCheckout)
	walletGroup.Get("/topup/:id", topupHandler.GetAttempt)
	walletGroup.Post("/connect/onboarding", connectHandler.StartOnboarding)

	withdrawalGroup := api.Group("/withdrawals")
	withdrawalGroup.Post("/", withdrawalHandler.Request)
	withdrawalGroup.Get("/:id", withdrawalHandler.Get)

	reservationGroup := api.Group("/reservations")
	reservationGroup.Post("/", reservationHandler.ReserveBike)
	reservationGroup.Get("/", reservationHandler.List)
	reservationGroup.Get("/current-hold", reservationHandler.CurrentHold)
	reservationGroup.Get("/next", reservationHandler.NextUpcoming)
	reservationGroup.Post("/:id/confirm", reservationHandler.Confirm)
	reservationGroup.Post("/:id/cancel", reservationHandler.Cancel)
}
