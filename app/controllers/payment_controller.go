package controllers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/StreamPassApp/StreamPass/internal/pkg/cache"
	"github.com/StreamPassApp/StreamPass/internal/pkg/database"
	"github.com/StreamPassApp/StreamPass/internal/pkg/entitlements"
	"github.com/StreamPassApp/StreamPass/internal/pkg/mail"
	"github.com/StreamPassApp/StreamPass/internal/pkg/metrics/counter"
	"github.com/StreamPassApp/StreamPass/internal/pkg/payments"
	"github.com/StreamPassApp/StreamPass/internal/pkg/registry"
)

const webhookProcessingTimeout = 15 * time.Second

func newPaymentService() *payments.Service {
	db := database.GetDB()
	rec := entitlements.NewReconciler(entitlements.NewRepository(db), cache.Store{})
	return payments.NewServiceFromDB(db).WithReconciler(rec)
}

// HandleCreateCheckout starts a checkout against the highest-priority usable
// payment provider and returns the handoff the client needs to complete it.
func HandleCreateCheckout(c *fiber.Ctx) error {
	var req payments.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	svc := newPaymentService()
	handoff, err := svc.CreateCheckout(c.Context(), req)
	if err != nil {
		if errors.Is(err, registry.ErrPlanNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unknown plan"})
		}
		var allFailed *payments.AllProvidersFailedError
		if errors.As(err, &allFailed) || errors.Is(err, registry.ErrNoActiveProvider) {
			log.Printf("[payments] checkout failed on all providers: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "bad_gateway", "message": "No payment provider available"})
		}
		log.Printf("[payments] checkout failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create checkout"})
	}

	_ = counter.Add(counter.FieldCheckoutsCreated)
	return c.Status(fiber.StatusOK).JSON(handoff)
}

// HandlePaymentWebhook ingests provider webhook deliveries. Signature is
// checked before anything is written; duplicates are acknowledged without
// reprocessing; processing failures return 5xx so the provider redelivers.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	// Fiber reuses the request buffer after the handler returns.
	rawBody := make([]byte, len(c.Body()))
	copy(rawBody, c.Body())

	ctx, cancel := context.WithTimeout(context.Background(), webhookProcessingTimeout)
	defer cancel()

	svc := newPaymentService()
	signature := c.Get(payments.WebhookSignatureHeader)
	secret := svc.WebhookSecret(ctx)

	signatureValid := false
	if secret != "" {
		if !payments.VerifyWebhookSignature(rawBody, signature, secret) {
			_ = counter.Add(counter.FieldWebhooksRejected)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid webhook signature"})
		}
		signatureValid = true
	} else {
		log.Printf("[payments] no webhook secret configured, processing unverified delivery")
	}

	event, err := payments.ParseWebhookEvent(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid webhook payload"})
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, payments.WebhookEventInput{
		Provider:        payments.WebhookProviderRazorpay,
		ProviderEventID: c.Get(payments.WebhookEventIDHeader),
		EventType:       event.Event,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		log.Printf("[payments] failed to record webhook event: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to record event"})
	}
	if !created {
		if stored.ProcessedOK() {
			_ = counter.Add(counter.FieldWebhooksDuplicate)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok", "duplicate": true})
		}
		// An earlier attempt at this event failed with a 5xx; the provider is
		// redelivering it. Run it again instead of swallowing the retry.
		log.Printf("[payments] reprocessing redelivered event %s after failed attempt", stored.ProviderEventID)
	}

	switch {
	case !event.HasEntity():
		// Entity-less events carry nothing to act on; acknowledge so the
		// provider does not retry them.
		if err := svc.MarkWebhookProcessed(ctx, stored.ID, nil); err != nil {
			log.Printf("[payments] failed to mark webhook processed: %v", err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok", "ignored": event.Event})
	case event.Event == payments.EventPaymentCaptured:
		outcome, procErr := svc.ProcessCapturedPayment(ctx, event.Payment, signature)
		if procErr != nil {
			log.Printf("[payments] failed to process captured payment: %v", procErr)
			_ = svc.MarkWebhookProcessed(ctx, stored.ID, procErr)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to process event"})
		}
		if err := svc.MarkWebhookProcessed(ctx, stored.ID, nil); err != nil {
			log.Printf("[payments] failed to mark webhook processed: %v", err)
		}
		_ = counter.Add(counter.FieldWebhooksProcessed)
		if outcome.Granted {
			_ = counter.Add(counter.FieldPaymentsGranted)
			go func() {
				_ = mail.SendPaymentConfirmation(outcome.Email, outcome.PlanName, outcome.SubscriptionEnd)
			}()
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"granted": outcome.Granted,
		})
	case event.IsSubscriptionEvent():
		// Recurring lifecycle events are recorded for audit; entitlement
		// changes ride on the payment.captured deliveries.
		if err := svc.MarkWebhookProcessed(ctx, stored.ID, nil); err != nil {
			log.Printf("[payments] failed to mark webhook processed: %v", err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok", "acknowledged": event.Event})
	default:
		if err := svc.MarkWebhookProcessed(ctx, stored.ID, nil); err != nil {
			log.Printf("[payments] failed to mark webhook processed: %v", err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok", "ignored": event.Event})
	}
}

// HandleVerifyPayment is the synchronous verification path the client calls
// right after the provider checkout reports success.
func HandleVerifyPayment(c *fiber.Ctx) error {
	var req payments.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	svc := newPaymentService()
	result, err := svc.VerifyPayment(c.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrPaymentNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No matching payment record"})
		case errors.Is(err, payments.ErrOrderMismatch):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Payment does not belong to the given order"})
		case errors.Is(err, payments.ErrPaymentNotCompleted):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "payment_not_completed", "message": err.Error()})
		case errors.Is(err, registry.ErrNoActiveProvider):
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "bad_gateway", "message": "No payment provider available"})
		}
		log.Printf("[payments] verification failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Verification failed"})
	}

	if result.Success && !result.AlreadyProcessed {
		_ = counter.Add(counter.FieldPaymentsGranted)
		if result.SubscriptionEnd != nil {
			end := *result.SubscriptionEnd
			go func() {
				_ = mail.SendPaymentConfirmation(result.Email, result.PlanName, end)
			}()
		}
	}
	return c.Status(fiber.StatusOK).JSON(result)
}
