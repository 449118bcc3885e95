package handlers

import (
	"mebike/internal/repositories"

	"github.com/gofiber/fiber/v2"
)

func Health(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok"}

	if repositories.CacheService != nil {
		if err := repositories.CacheService.HealthCheck(c.Context()); err != nil {
			status["cache"] = "unavailable"
		} else {
			status["cache"] = "ok"
		}
	}
	return c.JSON(status)
}
