package handlers

import (
	"encoding/json"
	"errors"
	"log"

	"mebike/internal/config"
	"mebike/internal/services/connect"
	"mebike/internal/services/topup"
	"mebike/internal/services/withdrawal"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
)

// WebhookHandler is the provider event boundary. Signature verification
// happens here; the services it calls are idempotent, so Stripe's
// at-least-once delivery is safe to apply blindly.
type WebhookHandler struct {
	topupService      *topup.Service
	withdrawalService *withdrawal.Service
	connectService    *connect.Service
}

func NewWebhookHandler(
	topupService *topup.Service,
	withdrawalService *withdrawal.Service,
	connectService *connect.Service,
) *WebhookHandler {
	return &WebhookHandler{
		topupService:      topupService,
		withdrawalService: withdrawalService,
		connectService:    connectService,
	}
}

func (h *WebhookHandler) HandleStripeEvent(c *fiber.Ctx) error {
	secret := config.GetEnv("STRIPE_WEBHOOK_SECRET", "")
	event, err := webhook.ConstructEvent(c.Body(), c.Get("Stripe-Signature"), secret)
	if err != nil {
		log.Printf("webhook signature verification failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid signature"})
	}

	if err := h.dispatch(event); err != nil {
		// Non-2xx makes Stripe redeliver; the handlers are idempotent so a
		// retry after a transient failure is safe.
		log.Printf("webhook %s (%s) failed: %v", event.ID, event.Type, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event processing failed"})
	}
	return c.JSON(fiber.Map{"received": true})
}

func (h *WebhookHandler) dispatch(event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return err
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return nil
		}
		err := h.topupService.HandleCheckoutCompleted(sess.ID, sess.AmountTotal, string(sess.Currency))
		if errors.Is(err, topup.ErrAttemptNotFound) {
			// Session from another environment; acknowledge and drop.
			return nil
		}
		return err

	case "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return err
		}
		err := h.topupService.HandleCheckoutExpired(sess.ID)
		if errors.Is(err, topup.ErrAttemptNotFound) {
			return nil
		}
		return err

	case "payout.paid":
		var po stripe.Payout
		if err := json.Unmarshal(event.Data.Raw, &po); err != nil {
			return err
		}
		err := h.withdrawalService.SettleFromPayoutEvent(po.ID)
		if errors.Is(err, withdrawal.ErrWithdrawalNotFound) {
			return nil
		}
		return err

	case "payout.failed", "payout.canceled":
		var po stripe.Payout
		if err := json.Unmarshal(event.Data.Raw, &po); err != nil {
			return err
		}
		reason := "payout " + string(po.Status)
		if po.FailureMessage != "" {
			reason = po.FailureMessage
		}
		err := h.withdrawalService.HandlePayoutFailed(po.ID, reason)
		if errors.Is(err, withdrawal.ErrWithdrawalNotFound) {
			return nil
		}
		return err

	case "account.updated":
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			return err
		}
		return h.connectService.HandleAccountUpdated(acct.ID, acct.PayoutsEnabled)
	}

	// Unhandled event types are acknowledged so Stripe stops retrying them.
	return nil
}
