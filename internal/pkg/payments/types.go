package payments

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
)

// ProviderClient is the gateway surface the service needs. *RazorpayClient
// satisfies it; tests inject fakes.
type ProviderClient interface {
	CreateOrder(ctx context.Context, in OrderRequest) (*RazorpayOrder, error)
	CreateSubscription(ctx context.Context, in SubscriptionRequest) (*RazorpaySubscription, error)
	FetchPayment(ctx context.Context, paymentID string) (*RazorpayPayment, error)
	CapturePayment(ctx context.Context, paymentID string, amount int64) (*RazorpayPayment, error)
}

// ClientFactory builds a provider client for an explicit key pair.
type ClientFactory func(keyID, keySecret string) ProviderClient

// CheckoutRequest is the client-facing checkout initiation payload.
type CheckoutRequest struct {
	PlanID        string `json:"plan_id" validate:"required,min=1,max=64"`
	CustomerName  string `json:"customer_name,omitempty" validate:"max=150"`
	CustomerEmail string `json:"customer_email,omitempty" validate:"omitempty,email,max=200"`
}

func (r *CheckoutRequest) Validate() error {
	v := validator.New()

	return v.Struct(r)
}

// CheckoutPrefill carries customer fields the gateway checkout form
// pre-populates.
type CheckoutPrefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CheckoutHandoff is what the client needs to complete payment at the
// provider: order parameters for the one-time flow, or a hosted checkout URL
// for the recurring flow.
type CheckoutHandoff struct {
	OrderID     string           `json:"order_id,omitempty"`
	ProviderKey string           `json:"provider_key,omitempty"`
	Amount      int64            `json:"amount,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	Name        string           `json:"name,omitempty"`
	Description string           `json:"description,omitempty"`
	Prefill     *CheckoutPrefill `json:"prefill,omitempty"`

	SubscriptionID string `json:"subscription_id,omitempty"`
	CheckoutURL    string `json:"checkout_url,omitempty"`
}

// VerifyRequest is the synchronous verification payload the client sends
// right after the gateway checkout reports success.
type VerifyRequest struct {
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	Signature string `json:"razorpay_signature,omitempty"`
}

func (r *VerifyRequest) Validate() error {
	v := validator.New()

	return v.Struct(r)
}

// VerifyResult reports the outcome of the synchronous verification path.
// Email and PlanName feed the confirmation mail, not the response body.
type VerifyResult struct {
	Success          bool       `json:"success"`
	AlreadyProcessed bool       `json:"alreadyProcessed,omitempty"`
	Status           string     `json:"status,omitempty"`
	SubscriptionEnd  *time.Time `json:"subscription_end,omitempty"`

	Email    string `json:"-"`
	PlanName string `json:"-"`
}

// CaptureOutcome reports what the webhook path did with a captured-payment
// event.
type CaptureOutcome struct {
	UnknownOrder     bool
	AlreadyProcessed bool
	Granted          bool
	SubscriptionEnd  time.Time

	Email    string
	PlanName string
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
