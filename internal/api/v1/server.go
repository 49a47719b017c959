package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// Pong is the ping endpoint response.
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface is the contract the v1 API surface implements. It mirrors
// public/docs/v1/openapi.yml.
type ServerInterface interface {
	GetPing(c *fiber.Ctx) error
	PostCheckout(c *fiber.Ctx) error
	PostPaymentWebhook(c *fiber.Ctx) error
	PostVerifyPayment(c *fiber.Ctx) error
	GetSubscriptionStatus(c *fiber.Ctx) error
	GetPlans(c *fiber.Ctx) error
	GetStats(c *fiber.Ctx) error
}

// RegisterHandlers attaches the v1 routes to the given router group.
func RegisterHandlers(router fiber.Router, s ServerInterface) {
	router.Get("/ping", s.GetPing)
	router.Post("/checkout", s.PostCheckout)
	router.Post("/webhook/payments", s.PostPaymentWebhook)
	router.Post("/verify-payment", s.PostVerifyPayment)
	router.Get("/subscription/status", s.GetSubscriptionStatus)
	router.Get("/plans", s.GetPlans)
	router.Get("/stats", s.GetStats)
}
