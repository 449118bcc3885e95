package handlers

import (
	"mebike/internal/config"
	"mebike/internal/services/connect"
	"mebike/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type ConnectHandler struct {
	connectService *connect.Service
}

func NewConnectHandler(connectService *connect.Service) *ConnectHandler {
	return &ConnectHandler{connectService: connectService}
}

// StartOnboarding returns a hosted onboarding URL for linking a payout
// account.
func (h *ConnectHandler) StartOnboarding(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	base := config.GetEnv("APP_BASE_URL", "http://localhost:3000")
	url, err := h.connectService.StartOnboarding(
		claims.UserID,
		base+"/wallet/connect/refresh",
		base+"/wallet/connect/return",
	)
	if err != nil {
		return response.ServerError(c, "failed to start payout onboarding")
	}

	return response.Success(c, "onboarding link created", fiber.Map{"url": url})
}
