package handlers

import (
	"errors"
	"time"

	"mebike/internal/services/reservation"
	"mebike/internal/services/wallet"
	"mebike/internal/utils/pagination"
	"mebike/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type ReservationHandler struct {
	useCases *reservation.UseCases
	holds    *reservation.HoldService
}

func NewReservationHandler(useCases *reservation.UseCases, holds *reservation.HoldService) *ReservationHandler {
	return &ReservationHandler{useCases: useCases, holds: holds}
}

func (h *ReservationHandler) ReserveBike(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	var input struct {
		BikeID         string  `json:"bikeId"`
		StationID      string  `json:"stationId"`
		Option         string  `json:"option"`
		SubscriptionID *string `json:"subscriptionId"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if input.BikeID == "" || input.StationID == "" {
		return response.ValidationError(c, "bikeId and stationId are required")
	}

	res, err := h.useCases.ReserveBike(reservation.ReserveBikeInput{
		UserID:         claims.UserID,
		BikeID:         input.BikeID,
		StationID:      input.StationID,
		Option:         input.Option,
		SubscriptionID: input.SubscriptionID,
	})
	if err != nil {
		return reservationError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "reservation created",
		"data":    fiber.Map{"reservation": res},
	})
}

func (h *ReservationHandler) Confirm(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	res, err := h.useCases.ConfirmReservation(c.Params("id"), claims.UserID)
	if err != nil {
		return reservationError(c, err)
	}
	return response.Success(c, "reservation confirmed", fiber.Map{"reservation": res})
}

func (h *ReservationHandler) Cancel(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	res, err := h.useCases.CancelReservation(c.Params("id"), claims.UserID)
	if err != nil {
		return reservationError(c, err)
	}
	return response.Success(c, "reservation cancelled", fiber.Map{"reservation": res})
}

func (h *ReservationHandler) CurrentHold(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	hold, err := h.holds.CurrentHoldForUser(claims.UserID, time.Now())
	if err != nil {
		return response.ServerError(c, "failed to query hold")
	}
	return response.Success(c, "current hold", fiber.Map{"hold": hold})
}

func (h *ReservationHandler) NextUpcoming(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	next, err := h.holds.NextUpcoming(claims.UserID, time.Now())
	if err != nil {
		return response.ServerError(c, "failed to query upcoming reservation")
	}
	return response.Success(c, "next upcoming reservation", fiber.Map{"reservation": next})
}

func (h *ReservationHandler) List(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	p := pagination.ParseFromRequest(c)
	rows, total, err := h.holds.ListForUser(claims.UserID, p.Limit, p.Offset)
	if err != nil {
		return response.ServerError(c, "failed to list reservations")
	}
	p.Total = total
	return c.JSON(pagination.Response(p, rows))
}

// reservationError maps domain conflicts to actionable HTTP responses.
func reservationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, reservation.ErrReservationNotFound):
		return response.NotFound(c, "reservation not found")
	case errors.Is(err, reservation.ErrReservationNotOwned):
		return response.Forbidden(c, "not your reservation")
	case errors.Is(err, reservation.ErrActiveReservationExists):
		return response.Conflict(c, "you already have an active reservation")
	case errors.Is(err, reservation.ErrBikeAlreadyReserved),
		errors.Is(err, reservation.ErrBikeUnavailable):
		return response.Conflict(c, "bike is not available")
	case errors.Is(err, reservation.ErrSlotAlreadyReserved):
		return response.Conflict(c, "slot already reserved")
	case errors.Is(err, reservation.ErrInvalidTransition),
		errors.Is(err, reservation.ErrHoldExpired),
		errors.Is(err, reservation.ErrReservationMissingBike):
		return response.Conflict(c, err.Error())
	case errors.Is(err, reservation.ErrFixedSlotUnsupported),
		errors.Is(err, reservation.ErrBikeNotAtStation):
		return response.ValidationError(c, err.Error())
	case errors.Is(err, reservation.ErrSubscriptionRequired):
		return response.ValidationError(c, "subscription missing or exhausted")
	case errors.Is(err, wallet.ErrInsufficientBalance):
		return response.Conflict(c, "insufficient wallet balance")
	case errors.Is(err, wallet.ErrWalletNotFound):
		return response.NotFound(c, "wallet not found")
	}
	return response.ServerError(c, "reservation operation failed")
}
