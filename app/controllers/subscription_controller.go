package controllers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/StreamPassApp/StreamPass/app/repository"
	"github.com/StreamPassApp/StreamPass/internal/pkg/cache"
	"github.com/StreamPassApp/StreamPass/internal/pkg/entitlements"
	"github.com/StreamPassApp/StreamPass/internal/pkg/registry"
)

// HandleSubscriptionStatus returns the caller's current entitlement state.
// Unknown emails read as unsubscribed rather than erroring.
func HandleSubscriptionStatus(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "email query parameter is required"})
	}

	reader := entitlements.NewReader(repository.GetGlobalFactory().GetSubscriberRepository(), cache.Store{})
	status, err := reader.Status(c.Context(), email)
	if err != nil {
		log.Printf("[entitlements] status lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription status"})
	}

	return c.Status(fiber.StatusOK).JSON(status)
}

// HandleListPlans returns the purchasable plan catalog.
func HandleListPlans(c *fiber.Ctx) error {
	repos := repository.GetGlobalRepositories()
	reg := registry.New(repos.Plan, repos.Provider)
	plans, err := reg.Plans(c.Context())
	if err != nil {
		log.Printf("[plans] listing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load plans"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"plans": plans})
}
