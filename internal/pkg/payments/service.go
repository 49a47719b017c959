package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strings"

	"github.com/StreamPassApp/StreamPass/app/models"
	"github.com/StreamPassApp/StreamPass/internal/pkg/entitlements"
	"github.com/StreamPassApp/StreamPass/internal/pkg/env"
	"github.com/StreamPassApp/StreamPass/internal/pkg/registry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service implements checkout initiation with provider failover, webhook
// event processing and synchronous payment verification. Both notification
// paths converge on the entitlements reconciler.
type Service struct {
	repo       Repository
	registry   *registry.Registry
	reconciler *entitlements.Reconciler
	newClient  ClientFactory
}

// NewService creates a payments service from injected collaborators.
func NewService(repo Repository, reg *registry.Registry, rec *entitlements.Reconciler) *Service {
	return &Service{
		repo:       repo,
		registry:   reg,
		reconciler: rec,
		newClient: func(keyID, keySecret string) ProviderClient {
			return NewRazorpayClient(keyID, keySecret)
		},
	}
}

// NewServiceFromDB creates a payments service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), registry.NewFromDB(db), entitlements.NewReconcilerFromDB(db))
}

// WithClientFactory overrides how provider clients are built. Used by tests.
func (s *Service) WithClientFactory(factory ClientFactory) *Service {
	s.newClient = factory
	return s
}

// WithReconciler replaces the reconciler. Used by the controllers to share a
// cache-aware reconciler instance.
func (s *Service) WithReconciler(rec *entitlements.Reconciler) *Service {
	s.reconciler = rec
	return s
}

type checkoutIntent struct {
	providerOrderID string
	receipt         string
	handoff         *CheckoutHandoff
}

// CreateCheckout builds a payment intent against the highest-priority usable
// provider and persists a pending ledger row. It never grants entitlement.
func (s *Service) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutHandoff, error) {
	planID := strings.TrimSpace(req.PlanID)
	if planID == "" {
		return nil, registry.ErrPlanNotFound
	}

	plan, err := s.registry.PlanByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	providers, err := s.registry.ActiveProviders(ctx)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i := range providers {
		provider := &providers[i]
		if provider.Type != models.ProviderTypeRazorpay {
			log.Printf("[payments] provider %s of type %s not supported, skipping", provider.Name, provider.Type)
			continue
		}
		if !provider.HasCredentials() {
			log.Printf("[payments] provider %s is missing credentials, skipping", provider.Name)
			continue
		}

		client := s.newClient(provider.APIKey, provider.APISecret)
		intent, err := s.createIntent(ctx, client, provider, plan, req)
		if err != nil {
			log.Printf("[payments] provider %s failed: %v", provider.Name, err)
			lastErr = err
			continue
		}

		payment := &models.Payment{
			ProviderOrderID: intent.providerOrderID,
			UserEmail:       customerEmailOrDefault(req.CustomerEmail),
			PlanID:          plan.ID,
			Amount:          orderAmount(plan),
			Currency:        planCurrency(plan),
			Status:          models.PaymentStatusCreated,
			Receipt:         intent.receipt,
		}
		if err := s.repo.CreatePayment(payment); err != nil {
			// A ledger failure is not a provider failure; failing over here
			// would create a second provider-side intent for one request.
			return nil, err
		}
		return intent.handoff, nil
	}

	return nil, &AllProvidersFailedError{LastErr: lastErr}
}

func (s *Service) createIntent(ctx context.Context, client ProviderClient, provider *models.PaymentProvider, plan *models.Plan, req CheckoutRequest) (*checkoutIntent, error) {
	if plan.IsRecurring() {
		sub, err := client.CreateSubscription(ctx, SubscriptionRequest{
			PlanID:        plan.ProviderPlanID,
			TotalCount:    12,
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
		})
		if err != nil {
			return nil, err
		}
		return &checkoutIntent{
			providerOrderID: sub.ID,
			handoff: &CheckoutHandoff{
				SubscriptionID: sub.ID,
				CheckoutURL:    sub.ShortURL,
			},
		}, nil
	}

	receipt := "receipt_" + uuid.NewString()
	order, err := client.CreateOrder(ctx, OrderRequest{
		Amount:   orderAmount(plan),
		Currency: planCurrency(plan),
		Receipt:  receipt,
		Notes: map[string]string{
			"plan_id":       plan.ID,
			"plan_name":     plan.Name,
			"user_email":    customerEmailOrDefault(req.CustomerEmail),
			"customer_name": req.CustomerName,
		},
	})
	if err != nil {
		return nil, err
	}

	return &checkoutIntent{
		providerOrderID: order.ID,
		receipt:         receipt,
		handoff: &CheckoutHandoff{
			OrderID:     order.ID,
			ProviderKey: provider.APIKey,
			Amount:      order.Amount,
			Currency:    order.Currency,
			Name:        env.GetEnv("APP_NAME", "StreamPass"),
			Description: plan.Name + " Plan",
			Prefill: &CheckoutPrefill{
				Name:  req.CustomerName,
				Email: req.CustomerEmail,
			},
		},
	}, nil
}

// WebhookSecret resolves the webhook signing secret: environment first, then
// the primary active provider's stored secret. Empty means unverified,
// degraded processing.
func (s *Service) WebhookSecret(ctx context.Context) string {
	if secret := strings.TrimSpace(env.GetEnv("RAZORPAY_WEBHOOK_SECRET", "")); secret != "" {
		return secret
	}
	provider, err := s.registry.PrimaryProvider(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(provider.WebhookSecret)
}

// RecordWebhookEvent persists webhook payloads idempotently. Deliveries
// without a provider event id are deduplicated by payload hash. A false
// created return with a stored event that is not ProcessedOK is a redelivery
// of a failed attempt; callers process those again.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.PaymentWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.PaymentWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional
// error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// ProcessCapturedPayment applies a payment.captured webhook entity to the
// local ledger and reconciles entitlement. Unknown order ids are
// acknowledged but not processed. The grant insert-if-absent is the
// idempotency boundary, not the ledger status: a redelivery after a failed
// reconcile still reaches the reconciler even though the row already reads
// paid.
func (s *Service) ProcessCapturedPayment(ctx context.Context, entity *PaymentEntity, signature string) (*CaptureOutcome, error) {
	if entity == nil || strings.TrimSpace(entity.OrderID) == "" {
		return &CaptureOutcome{UnknownOrder: true}, nil
	}

	payment, err := s.repo.GetPaymentByOrderID(entity.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[payments] captured webhook for unknown order %s, acknowledging", entity.OrderID)
			return &CaptureOutcome{UnknownOrder: true}, nil
		}
		return nil, err
	}

	if !models.IsSuccessPaymentStatus(payment.Status) {
		payment.ProviderPaymentID = entity.ID
		payment.Status = models.PaymentStatusPaid
		payment.PaymentMethod = entity.Method
		payment.ProviderSignature = signature
		if err := s.repo.UpdatePayment(payment); err != nil {
			return nil, err
		}
	}

	plan, err := s.registry.PlanByID(ctx, payment.PlanID)
	if err != nil {
		return nil, err
	}

	result, err := s.reconciler.Grant(ctx, payment.UserEmail, plan.ID, plan.PeriodDays, payment.ProviderOrderID)
	if err != nil {
		return nil, err
	}
	return &CaptureOutcome{
		Granted:          result.Applied,
		AlreadyProcessed: !result.Applied,
		SubscriptionEnd:  result.SubscriptionEnd,
		Email:            payment.UserEmail,
		PlanName:         plan.Name,
	}, nil
}

// VerifyPayment is the synchronous verification path: re-fetch the
// authoritative payment state from the provider, capture if still only
// authorized, validate the order id against the local ledger and reconcile.
func (s *Service) VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	paymentID := strings.TrimSpace(req.PaymentID)
	orderID := strings.TrimSpace(req.OrderID)
	if paymentID == "" || orderID == "" {
		return nil, errors.New("razorpay_payment_id and razorpay_order_id are required")
	}

	client, err := s.providerClient(ctx)
	if err != nil {
		return nil, err
	}

	providerPayment, err := client.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if providerPayment.Status == models.PaymentStatusAuthorized {
		// Auto-capture usually lands seconds later; try to settle now so the
		// entitlement activates immediately. Failure keeps authorized, which
		// still counts as success — the webhook reconciles the rest.
		if captured, capErr := client.CapturePayment(ctx, paymentID, providerPayment.Amount); capErr != nil {
			log.Printf("[payments] capture attempt failed (non-blocking): %v", capErr)
		} else if captured != nil && captured.Status != "" {
			providerPayment.Status = captured.Status
		}
	}

	if !models.IsSuccessPaymentStatus(providerPayment.Status) {
		return nil, errors.Join(ErrPaymentNotCompleted, errors.New("status="+providerPayment.Status))
	}
	if providerPayment.OrderID != orderID {
		return nil, ErrOrderMismatch
	}

	payment, err := s.repo.GetPaymentByOrderID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	// Rows already in a success status keep their recorded method and
	// signature, but the grant still runs: it conflicts into a no-op when the
	// webhook won the race, and lands the entitlement when an earlier attempt
	// failed after marking the row.
	if !models.IsSuccessPaymentStatus(payment.Status) {
		payment.ProviderPaymentID = paymentID
		payment.Status = providerPayment.Status
		payment.PaymentMethod = providerPayment.Method
		payment.ProviderSignature = strings.TrimSpace(req.Signature)
		if err := s.repo.UpdatePayment(payment); err != nil {
			return nil, err
		}
	}

	plan, err := s.registry.PlanByID(ctx, payment.PlanID)
	if err != nil {
		return nil, err
	}

	result, err := s.reconciler.Grant(ctx, payment.UserEmail, plan.ID, plan.PeriodDays, payment.ProviderOrderID)
	if err != nil {
		return nil, err
	}

	end := result.SubscriptionEnd
	return &VerifyResult{
		Success:          true,
		AlreadyProcessed: !result.Applied,
		Status:           payment.Status,
		SubscriptionEnd:  &end,
		Email:            payment.UserEmail,
		PlanName:         plan.Name,
	}, nil
}

// providerClient builds a client from environment credentials, falling back
// to the primary active provider row. Credentials are threaded explicitly —
// concurrent requests never share selection state.
func (s *Service) providerClient(ctx context.Context) (ProviderClient, error) {
	keyID := strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_ID", ""))
	keySecret := strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_SECRET", ""))
	if keyID != "" && keySecret != "" {
		return s.newClient(keyID, keySecret), nil
	}

	provider, err := s.registry.PrimaryProvider(ctx)
	if err != nil {
		return nil, err
	}
	if !provider.HasCredentials() {
		return nil, registry.ErrNoActiveProvider
	}
	return s.newClient(provider.APIKey, provider.APISecret), nil
}

func customerEmailOrDefault(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "unknown"
	}
	return email
}

func orderAmount(plan *models.Plan) int64 {
	// Plan prices are stored in major units; provider orders are minor units.
	return plan.Price * 100
}

func planCurrency(plan *models.Plan) string {
	if strings.TrimSpace(plan.Currency) == "" {
		return "INR"
	}
	return plan.Currency
}
