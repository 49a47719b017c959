package payments

import (
	"encoding/json"
	"strings"
)

// Webhook event names we act on. Everything else is acknowledged as-is.
const (
	EventPaymentCaptured    = "payment.captured"
	subscriptionEventPrefix = "subscription."
	WebhookProviderRazorpay = "razorpay"
	WebhookSignatureHeader  = "X-Razorpay-Signature"
	WebhookEventIDHeader    = "X-Razorpay-Event-Id"
)

// PaymentEntity is the payment object embedded in a webhook envelope.
type PaymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Method  string `json:"method"`
	Email   string `json:"email"`
	Amount  int64  `json:"amount"`
}

// SubscriptionEntity is the subscription object embedded in a webhook
// envelope. Recurring lifecycle events are acknowledged but not yet applied
// to entitlements.
type SubscriptionEntity struct {
	ID     string `json:"id"`
	PlanID string `json:"plan_id"`
	Status string `json:"status"`
}

// WebhookEvent is the parsed provider envelope.
type WebhookEvent struct {
	Event        string
	Payment      *PaymentEntity
	Subscription *SubscriptionEntity
}

// HasEntity reports whether the envelope carried any entity at all. Events
// without one are acknowledged as no-ops so the provider does not retry them.
func (e *WebhookEvent) HasEntity() bool {
	return e.Payment != nil || e.Subscription != nil
}

// IsSubscriptionEvent reports whether this is a recurring-subscription
// lifecycle event.
func (e *WebhookEvent) IsSubscriptionEvent() bool {
	return strings.HasPrefix(e.Event, subscriptionEventPrefix)
}

// ParseWebhookEvent decodes the provider webhook envelope:
// {event, payload: {payment: {entity}, subscription: {entity}}}.
func ParseWebhookEvent(raw []byte) (*WebhookEvent, error) {
	var envelope struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity *PaymentEntity `json:"entity"`
			} `json:"payment"`
			Subscription struct {
				Entity *SubscriptionEntity `json:"entity"`
			} `json:"subscription"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}

	return &WebhookEvent{
		Event:        strings.TrimSpace(envelope.Event),
		Payment:      envelope.Payload.Payment.Entity,
		Subscription: envelope.Payload.Subscription.Entity,
	}, nil
}
