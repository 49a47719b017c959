package router

import (
	"github.com/StreamPassApp/StreamPass/internal/pkg/constants"
	"github.com/StreamPassApp/StreamPass/internal/pkg/database"
	"github.com/StreamPassApp/StreamPass/internal/pkg/env"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Service identity at the root, pointing API consumers at the docs.
	app.Get(constants.PublicRoute, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"service": env.GetEnv("APP_NAME", "StreamPass"),
			"docs":    "/docs/api/v1",
		})
	})

	// Health endpoint for load balancers and uptime checks.
	app.Get("/up", func(c *fiber.Ctx) error {
		db := database.GetDB()
		if db == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": "down"})
		}
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": "down"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
