package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/StreamPassApp/StreamPass/internal/pkg/metrics/counter"
)

// HandlePaymentStats returns operational payment counters.
func HandlePaymentStats(c *fiber.Ctx) error {
	snapshot, err := counter.Snapshot()
	if err != nil {
		log.Printf("[stats] counter snapshot failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load stats"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"counters": snapshot})
}
