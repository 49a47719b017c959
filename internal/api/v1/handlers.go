package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/StreamPassApp/StreamPass/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// PostCheckout starts a payment checkout for a plan.
func (s *APIServer) PostCheckout(c *fiber.Ctx) error {
	return controllers.HandleCreateCheckout(c)
}

// PostPaymentWebhook ingests provider webhook deliveries.
func (s *APIServer) PostPaymentWebhook(c *fiber.Ctx) error {
	return controllers.HandlePaymentWebhook(c)
}

// PostVerifyPayment verifies a payment synchronously after checkout.
func (s *APIServer) PostVerifyPayment(c *fiber.Ctx) error {
	return controllers.HandleVerifyPayment(c)
}

// GetSubscriptionStatus returns entitlement state for an email.
func (s *APIServer) GetSubscriptionStatus(c *fiber.Ctx) error {
	return controllers.HandleSubscriptionStatus(c)
}

// GetPlans returns the purchasable plan catalog.
func (s *APIServer) GetPlans(c *fiber.Ctx) error {
	return controllers.HandleListPlans(c)
}

// GetStats returns operational payment counters.
func (s *APIServer) GetStats(c *fiber.Ctx) error {
	return controllers.HandlePaymentStats(c)
}
