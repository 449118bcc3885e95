package handlers

import (
	"errors"

	"mebike/internal/config"
	"mebike/internal/services/topup"
	"mebike/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type TopupHandler struct {
	topupService *topup.Service
}

func NewTopupHandler(topupService *topup.Service) *TopupHandler {
	return &TopupHandler{topupService: topupService}
}

func (h *TopupHandler) StartCheckout(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	var input struct {
		AmountMinor int64  `json:"amountMinor"`
		Currency    string `json:"currency"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if input.Currency == "" {
		input.Currency = "vnd"
	}

	base := config.GetEnv("APP_BASE_URL", "http://localhost:3000")
	result, err := h.topupService.StartCheckout(
		c.Context(), claims.UserID, input.AmountMinor, input.Currency,
		base+"/wallet/topup/success", base+"/wallet/topup/cancel",
	)
	if err != nil {
		if errors.Is(err, topup.ErrInvalidAmount) {
			return response.ValidationError(c, "amount must be positive")
		}
		return response.ServerError(c, "failed to start checkout")
	}

	return response.Success(c, "checkout session created", fiber.Map{
		"attemptId":   result.AttemptID,
		"checkoutUrl": result.CheckoutURL,
	})
}

func (h *TopupHandler) GetAttempt(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	attempt, err := h.topupService.GetAttempt(c.Params("id"))
	if err != nil {
		if errors.Is(err, topup.ErrAttemptNotFound) {
			return response.NotFound(c, "payment attempt not found")
		}
		return response.ServerError(c, "failed to load payment attempt")
	}
	if attempt.UserID != claims.UserID {
		return response.Forbidden(c, "not your payment attempt")
	}

	return response.Success(c, "payment attempt", fiber.Map{"attempt": attempt})
}
