package handlers

import (
	"errors"

	"mebike/internal/repositories"
	"mebike/internal/services/wallet"
	"mebike/internal/services/withdrawal"
	"mebike/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type WithdrawalHandler struct {
	withdrawalService *withdrawal.Service
	withdrawals       repositories.WithdrawalRepository
}

func NewWithdrawalHandler(withdrawalService *withdrawal.Service, withdrawals repositories.WithdrawalRepository) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalService: withdrawalService, withdrawals: withdrawals}
}

func (h *WithdrawalHandler) Request(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	var input struct {
		Amount         int64  `json:"amount"`
		Currency       string `json:"currency"`
		IdempotencyKey string `json:"idempotencyKey"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if input.Currency == "" {
		input.Currency = "vnd"
	}
	if input.IdempotencyKey == "" {
		// Clients that do not supply a key get no replay protection beyond
		// this request.
		input.IdempotencyKey = uuid.NewString()
	}

	row, err := h.withdrawalService.Request(claims.UserID, input.Amount, input.Currency, input.IdempotencyKey)
	if err != nil {
		switch {
		case errors.Is(err, withdrawal.ErrAmountBelowMinimum):
			return response.ValidationError(c, "amount below the withdrawal minimum")
		case errors.Is(err, withdrawal.ErrNoPayoutAccount):
			return response.ValidationError(c, "no payout-enabled account linked")
		case errors.Is(err, wallet.ErrInsufficientBalance):
			return response.Conflict(c, "insufficient available balance")
		case errors.Is(err, wallet.ErrWalletNotFound):
			return response.NotFound(c, "wallet not found")
		}
		return response.ServerError(c, "failed to request withdrawal")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "withdrawal requested",
		"data":    fiber.Map{"withdrawal": row},
	})
}

func (h *WithdrawalHandler) Get(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	row, err := h.withdrawals.FindByID(c.Params("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrWithdrawalNotFound) {
			return response.NotFound(c, "withdrawal not found")
		}
		return response.ServerError(c, "failed to load withdrawal")
	}
	if row.UserID != claims.UserID {
		return response.Forbidden(c, "not your withdrawal")
	}

	return response.Success(c, "withdrawal", fiber.Map{"withdrawal": row})
}
