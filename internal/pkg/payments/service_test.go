package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/StreamPassApp/StreamPass/app/models"
	"github.com/StreamPassApp/StreamPass/internal/pkg/entitlements"
	"github.com/StreamPassApp/StreamPass/internal/pkg/registry"
)

// --- fakes ---

type fakePaymentRepo struct {
	payments map[string]*models.Payment
	events   map[string]*models.PaymentWebhookEvent
	created  int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments: map[string]*models.Payment{},
		events:   map[string]*models.PaymentWebhookEvent{},
	}
}

func (f *fakePaymentRepo) CreatePayment(p *models.Payment) error {
	f.created++
	cp := *p
	f.payments[p.ProviderOrderID] = &cp
	return nil
}

func (f *fakePaymentRepo) GetPaymentByOrderID(orderID string) (*models.Payment, error) {
	p, ok := f.payments[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePaymentRepo) UpdatePayment(p *models.Payment) error {
	cp := *p
	f.payments[p.ProviderOrderID] = &cp
	return nil
}

func (f *fakePaymentRepo) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if stored, ok := f.events[key]; ok {
		return false, stored, nil
	}
	cp := *event
	cp.ID = uint(len(f.events) + 1)
	f.events[key] = &cp
	return true, &cp, nil
}

func (f *fakePaymentRepo) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	for _, e := range f.events {
		if e.ID == id {
			e.ProcessedAt = &now
			e.ProcessingError = processingError
		}
	}
	return nil
}

type fakePlanRepo struct {
	plans map[string]*models.Plan
}

func (f *fakePlanRepo) GetByID(id string) (*models.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakePlanRepo) List() ([]models.Plan, error) {
	out := make([]models.Plan, 0, len(f.plans))
	for _, p := range f.plans {
		out = append(out, *p)
	}
	return out, nil
}

type fakeProviderRepo struct {
	providers []models.PaymentProvider
}

func (f *fakeProviderRepo) ListActive() ([]models.PaymentProvider, error) {
	return f.providers, nil
}

func (f *fakeProviderRepo) GetPrimary() (*models.PaymentProvider, error) {
	for i := range f.providers {
		if f.providers[i].IsPrimary {
			return &f.providers[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeEntitlementRepo struct {
	grants      map[string]bool
	subscribers map[string]*models.Subscriber
	grantErr    error // consumed by the next CreateGrantIfNotExists call
}

func newFakeEntitlementRepo() *fakeEntitlementRepo {
	return &fakeEntitlementRepo{
		grants:      map[string]bool{},
		subscribers: map[string]*models.Subscriber{},
	}
}

func (f *fakeEntitlementRepo) CreateGrantIfNotExists(grant *models.EntitlementGrant) (bool, error) {
	if f.grantErr != nil {
		err := f.grantErr
		f.grantErr = nil
		return false, err
	}
	if f.grants[grant.PaymentRef] {
		return false, nil
	}
	f.grants[grant.PaymentRef] = true
	return true, nil
}

func (f *fakeEntitlementRepo) GetSubscriberByEmail(email string) (*models.Subscriber, error) {
	s, ok := f.subscribers[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeEntitlementRepo) UpsertSubscriber(sub *models.Subscriber) error {
	cp := *sub
	f.subscribers[sub.Email] = &cp
	return nil
}

type fakeClient struct {
	keyID string

	orderErr   error
	order      *RazorpayOrder
	sub        *RazorpaySubscription
	payment    *RazorpayPayment
	captureErr error
	captured   *RazorpayPayment

	orders   []OrderRequest
	captures []string
}

func (f *fakeClient) CreateOrder(ctx context.Context, in OrderRequest) (*RazorpayOrder, error) {
	f.orders = append(f.orders, in)
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return f.order, nil
}

func (f *fakeClient) CreateSubscription(ctx context.Context, in SubscriptionRequest) (*RazorpaySubscription, error) {
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return f.sub, nil
}

func (f *fakeClient) FetchPayment(ctx context.Context, paymentID string) (*RazorpayPayment, error) {
	if f.payment == nil {
		return nil, errors.New("payment not found at provider")
	}
	return f.payment, nil
}

func (f *fakeClient) CapturePayment(ctx context.Context, paymentID string, amount int64) (*RazorpayPayment, error) {
	f.captures = append(f.captures, paymentID)
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return f.captured, nil
}

// --- fixtures ---

func monthlyPlan() *models.Plan {
	return &models.Plan{
		ID:         "premium-monthly",
		Name:       "Premium Monthly",
		Price:      499,
		Currency:   "INR",
		PeriodDays: 30,
	}
}

func activeProvider(name string, primary bool) models.PaymentProvider {
	return models.PaymentProvider{
		Name:      name,
		Type:      models.ProviderTypeRazorpay,
		APIKey:    "key_" + name,
		APISecret: "secret_" + name,
		IsPrimary: primary,
		IsActive:  true,
	}
}

func newTestService(repo Repository, providers []models.PaymentProvider, clients map[string]*fakeClient) (*Service, *fakeEntitlementRepo) {
	entRepo := newFakeEntitlementRepo()
	reg := registry.New(
		&fakePlanRepo{plans: map[string]*models.Plan{"premium-monthly": monthlyPlan()}},
		&fakeProviderRepo{providers: providers},
	)
	svc := NewService(repo, reg, entitlements.NewReconciler(entRepo, nil)).
		WithClientFactory(func(keyID, keySecret string) ProviderClient {
			return clients[keyID]
		})
	return svc, entRepo
}

// --- CreateCheckout ---

func TestCreateCheckoutUsesPrimaryProvider(t *testing.T) {
	repo := newFakePaymentRepo()
	primary := &fakeClient{order: &RazorpayOrder{ID: "order_1", Amount: 49900, Currency: "INR"}}
	svc, _ := newTestService(repo, []models.PaymentProvider{activeProvider("primary", true)},
		map[string]*fakeClient{"key_primary": primary})

	handoff, err := svc.CreateCheckout(context.Background(), CheckoutRequest{
		PlanID:        "premium-monthly",
		CustomerEmail: "Viewer@Example.COM",
		CustomerName:  "Viewer",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_1", handoff.OrderID)
	assert.Equal(t, "key_primary", handoff.ProviderKey)
	assert.Equal(t, int64(49900), handoff.Amount)

	// price is converted to minor units for the provider
	require.Len(t, primary.orders, 1)
	assert.Equal(t, int64(49900), primary.orders[0].Amount)

	// exactly one ledger row, pending, with normalized email
	require.Equal(t, 1, repo.created)
	stored, err := repo.GetPaymentByOrderID("order_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCreated, stored.Status)
	assert.Equal(t, "viewer@example.com", stored.UserEmail)
	assert.Equal(t, "premium-monthly", stored.PlanID)
}

func TestCreateCheckoutFailsOverToNextProvider(t *testing.T) {
	repo := newFakePaymentRepo()
	broken := &fakeClient{orderErr: errors.New("gateway down")}
	backup := &fakeClient{order: &RazorpayOrder{ID: "order_2", Amount: 49900, Currency: "INR"}}
	svc, _ := newTestService(repo,
		[]models.PaymentProvider{activeProvider("primary", true), activeProvider("backup", false)},
		map[string]*fakeClient{"key_primary": broken, "key_backup": backup})

	handoff, err := svc.CreateCheckout(context.Background(), CheckoutRequest{PlanID: "premium-monthly"})
	require.NoError(t, err)
	assert.Equal(t, "order_2", handoff.OrderID)
	assert.Equal(t, "key_backup", handoff.ProviderKey)
	assert.Equal(t, 1, repo.created)
}

func TestCreateCheckoutSkipsProviderWithoutCredentials(t *testing.T) {
	repo := newFakePaymentRepo()
	bare := activeProvider("bare", true)
	bare.APISecret = ""
	backup := &fakeClient{order: &RazorpayOrder{ID: "order_3", Amount: 49900, Currency: "INR"}}
	svc, _ := newTestService(repo,
		[]models.PaymentProvider{bare, activeProvider("backup", false)},
		map[string]*fakeClient{"key_backup": backup})

	handoff, err := svc.CreateCheckout(context.Background(), CheckoutRequest{PlanID: "premium-monthly"})
	require.NoError(t, err)
	assert.Equal(t, "order_3", handoff.OrderID)
}

func TestCreateCheckoutAllProvidersFail(t *testing.T) {
	repo := newFakePaymentRepo()
	broken := &fakeClient{orderErr: errors.New("gateway down")}
	svc, _ := newTestService(repo,
		[]models.PaymentProvider{activeProvider("primary", true), activeProvider("backup", false)},
		map[string]*fakeClient{"key_primary": broken, "key_backup": broken})

	_, err := svc.CreateCheckout(context.Background(), CheckoutRequest{PlanID: "premium-monthly"})
	var allFailed *AllProvidersFailedError
	require.ErrorAs(t, err, &allFailed)
	assert.Equal(t, 0, repo.created)
}

func TestCreateCheckoutUnknownPlan(t *testing.T) {
	svc, _ := newTestService(newFakePaymentRepo(),
		[]models.PaymentProvider{activeProvider("primary", true)}, nil)

	_, err := svc.CreateCheckout(context.Background(), CheckoutRequest{PlanID: "nope"})
	assert.ErrorIs(t, err, registry.ErrPlanNotFound)
}

func TestCreateCheckoutRecurringPlanCreatesSubscription(t *testing.T) {
	repo := newFakePaymentRepo()
	client := &fakeClient{sub: &RazorpaySubscription{ID: "sub_9", ShortURL: "https://rzp.io/i/xyz"}}

	entRepo := newFakeEntitlementRepo()
	recurring := monthlyPlan()
	recurring.ProviderPlanID = "plan_provider_9"
	reg := registry.New(
		&fakePlanRepo{plans: map[string]*models.Plan{"premium-monthly": recurring}},
		&fakeProviderRepo{providers: []models.PaymentProvider{activeProvider("primary", true)}},
	)
	svc := NewService(repo, reg, entitlements.NewReconciler(entRepo, nil)).
		WithClientFactory(func(keyID, keySecret string) ProviderClient { return client })

	handoff, err := svc.CreateCheckout(context.Background(), CheckoutRequest{PlanID: "premium-monthly"})
	require.NoError(t, err)
	assert.Equal(t, "sub_9", handoff.SubscriptionID)
	assert.Equal(t, "https://rzp.io/i/xyz", handoff.CheckoutURL)
	assert.Empty(t, handoff.OrderID)

	stored, err := repo.GetPaymentByOrderID("sub_9")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCreated, stored.Status)
}

// --- ProcessCapturedPayment ---

func capturedEntity(orderID string) *PaymentEntity {
	return &PaymentEntity{
		ID:      "pay_777",
		OrderID: orderID,
		Status:  "captured",
		Method:  "upi",
	}
}

func seedPendingPayment(repo *fakePaymentRepo, orderID string) {
	repo.payments[orderID] = &models.Payment{
		ProviderOrderID: orderID,
		UserEmail:       "viewer@example.com",
		PlanID:          "premium-monthly",
		Amount:          49900,
		Currency:        "INR",
		Status:          models.PaymentStatusCreated,
	}
}

func TestProcessCapturedPaymentGrantsEntitlement(t *testing.T) {
	repo := newFakePaymentRepo()
	seedPendingPayment(repo, "order_1")
	svc, entRepo := newTestService(repo, []models.PaymentProvider{activeProvider("primary", true)}, nil)

	outcome, err := svc.ProcessCapturedPayment(context.Background(), capturedEntity("order_1"), "sig")
	require.NoError(t, err)
	assert.True(t, outcome.Granted)
	assert.False(t, outcome.AlreadyProcessed)
	assert.Equal(t, "viewer@example.com", outcome.Email)
	assert.Equal(t, "Premium Monthly", outcome.PlanName)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), outcome.SubscriptionEnd, 5*time.Second)

	stored, _ := repo.GetPaymentByOrderID("order_1")
	assert.Equal(t, models.PaymentStatusPaid, stored.Status)
	assert.Equal(t, "pay_777", stored.ProviderPaymentID)
	assert.Equal(t, "upi", stored.PaymentMethod)

	sub, err := entRepo.GetSubscriberByEmail("viewer@example.com")
	require.NoError(t, err)
	assert.True(t, sub.Subscribed)
	assert.Equal(t, "premium-monthly", sub.SubscriptionTier)
}

func TestProcessCapturedPaymentUnknownOrderAcknowledged(t *testing.T) {
	svc, entRepo := newTestService(newFakePaymentRepo(), []models.PaymentProvider{activeProvider("primary", true)}, nil)

	outcome, err := svc.ProcessCapturedPayment(context.Background(), capturedEntity("order_unknown"), "sig")
	require.NoError(t, err)
	assert.True(t, outcome.UnknownOrder)
	assert.Empty(t, entRepo.grants)
}

func TestProcessCapturedPaymentAlreadyProcessed(t *testing.T) {
	repo := newFakePaymentRepo()
	seedPendingPayment(repo, "order_1")
	repo.payments["order_1"].Status = models.PaymentStatusPaid
	svc, entRepo := newTestService(repo, []models.PaymentProvider{activeProvider("primary", true)}, nil)
	entRepo.grants["order_1"] = true

	outcome, err := svc.ProcessCapturedPayment(context.Background(), capturedEntity("order_1"), "sig")
	require.NoError(t, err)
	assert.True(t, outcome.AlreadyProcessed)
	assert.False(t, outcome.Granted)
	require.Len(t, entRepo.grants, 1)
}

func TestProcessCapturedPaymentRetriesGrantAfterFailure(t *testing.T) {
	repo := newFakePaymentRepo()
	seedPendingPayment(repo, "order_1")
	svc, entRepo := newTestService(repo, []models.PaymentProvider{activeProvider("primary", true)}, nil)
	entRepo.grantErr = errors.New("deadlock")

	// First delivery marks the ledger row paid but the grant fails.
	_, err := svc.ProcessCapturedPayment(context.Background(), capturedEntity("order_1"), "sig")
	require.Error(t, err)
	assert.Empty(t, entRepo.grants)
	stored, _ := repo.GetPaymentByOrderID("order_1")
	assert.Equal(t, models.PaymentStatusPaid, stored.Status)

	// The redelivery must still reach the reconciler despite the row already
	// reading paid.
	outcome, err := svc.ProcessCapturedPayment(context.Background(), capturedEntity("order_1"), "sig")
	require.NoError(t, err)
	assert.True(t, outcome.Granted)
	require.Len(t, entRepo.grants, 1)
}

func TestWebhookAndVerifierRaceConvergesToOneGrant(t *testing.T) {
	repo := newFakePaymentRepo()
	seedPendingPayment(repo, "order_1")
	client := &fakeClient{payment: &RazorpayPayment{ID: "pay_777", OrderID: "order_1", Status: "captured", Amount: 49900}}
	svc, entRepo := newTestService(repo,
		[]models.PaymentProvider{activeProvider("primary", true)},
		map[string]*fakeClient{"key_primary": client})

	outcome, err := svc.ProcessCapturedPayment(context.Background(), capturedEntity("order_1"), "sig")
	require.NoError(t, err)
	require.True(t, outcome.Granted)
	firstEnd := outcome.SubscriptionEnd

	// The verifier arrives second: the payment row is already in a success
	// status, so it reports success without a second grant.
	result, err := svc.VerifyPayment(context.Background(), VerifyRequest{PaymentID: "pay_777", OrderID: "order_1"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.AlreadyProcessed)

	require.Len(t, entRepo.grants, 1)
	sub, err := entRepo.GetSubscriberByEmail("viewer@example.com")
	require.NoError(t, err)
	assert.Equal(t, firstEnd.Unix(), sub.SubscriptionEnd.Unix())
}

// --- VerifyPayment ---

func TestVerifyPaymentSuccess(t *testing.T) {
	repo := newFakePaymentRepo()
	seedPendingPayment(repo, "order_1")
	client := &fakeClient{payment: &RazorpayPayment{ID: "pay_777", OrderID: "order_1", Status: "captured", Amount: 49900}}
	svc, entRepo := newTestService(repo,
		[]models.PaymentProvider{activeProvider("primary", true)},
		map[string]*fakeClient{"key_primary": client})

	result, err := svc.VerifyPayment(context.Background(), VerifyRequest{PaymentID: "pay_777", OrderID: "order_1"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, models.PaymentStatusCaptured, result.Status)
	require.NotNil(t, result.SubscriptionEnd)

	stored, _ := repo.GetPaymentByOrderID("order_1")
	assert.Equal(t, models.PaymentStatusCaptured, stored.Status)
	assert.Equal(t, "pay_777", stored.ProviderPaymentID)
	require.Len(t, entRepo.grants, 1)
}

func TestVerifyPaymentCapturesAuthorized(t *testing.T) {
	repo := newFakePaymentRepo()
	seedPendingPayment(repo, "order_1")
	client := &fakeClient{
		payment:  &RazorpayPayment{ID: "pay_777", OrderID: "order_1", Status: "authorized", Amount: 49900},
		captured: &RazorpayPayment{ID: "pay_777", OrderID: "order_1", Status: "captured"},
	}
	svc, _ := newTestService(repo,
		[]models.PaymentProvider{activeProvider("primary", true)},
		map[string]*fakeClient{"key_primary": client})

	result, err := svc.VerifyPayment(context.Background(), VerifyRequest{PaymentID: "pay_777", OrderID: "order_1"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, models.PaymentStatusCaptured, result.Status)
	assert.Equal(t, []string{"pay_777"}, client.captures)
}

func TestVerifyPaymentCaptureFailureStillSucceeds(t *testing.T) {
	repo := newFakePaymentRepo()
	seedPendingPayment(repo, "order_1")
	client := &fakeClient{
		payment:    &RazorpayPayment{ID: "pay_777", OrderID: "order_1", Status: "authorized", Amount: 49900},
		captureErr: errors.New("capture rejected"),
	}
	svc, _ := newTestService(repo,
		[]models.PaymentProvider{activeProvider("primary", true)},
		map[string]*fakeClient{"key_primary": client})

	result, err := svc.VerifyPayment(context.Background(), VerifyRequest{PaymentID: "pay_777", OrderID: "order_1"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, models.PaymentStatusAuthorized, result.Status)
}

func TestVerifyPaymentNotCompleted(t *testing.T) {
	client := &fakeClient{payment: &RazorpayPayment{ID: "pay_777", OrderID: "order_1", Status: "failed"}}
	svc, _ := newTestService(newFakePaymentRepo(),
		[]models.PaymentProvider{activeProvider("primary", true)},
		map[string]*fakeClient{"key_primary": client})

	_, err := svc.VerifyPayment(context.Background(), VerifyRequest{PaymentID: "pay_777", OrderID: "order_1"})
	assert.ErrorIs(t, err, ErrPaymentNotCompleted)
}

func TestVerifyPaymentOrderMismatch(t *testing.T) {
	client := &fakeClient{payment: &RazorpayPayment{ID: "pay_777", OrderID: "order_other", Status: "captured"}}
	svc, _ := newTestService(newFakePaymentRepo(),
		[]models.PaymentProvider{activeProvider("primary", true)},
		map[string]*fakeClient{"key_primary": client})

	_, err := svc.VerifyPayment(context.Background(), VerifyRequest{PaymentID: "pay_777", OrderID: "order_1"})
	assert.ErrorIs(t, err, ErrOrderMismatch)
}

func TestVerifyPaymentNoLocalRecord(t *testing.T) {
	client := &fakeClient{payment: &RazorpayPayment{ID: "pay_777", OrderID: "order_1", Status: "captured"}}
	svc, _ := newTestService(newFakePaymentRepo(),
		[]models.PaymentProvider{activeProvider("primary", true)},
		map[string]*fakeClient{"key_primary": client})

	_, err := svc.VerifyPayment(context.Background(), VerifyRequest{PaymentID: "pay_777", OrderID: "order_1"})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

// --- webhook bookkeeping ---

func TestRecordWebhookEventDeduplicates(t *testing.T) {
	svc, _ := newTestService(newFakePaymentRepo(), []models.PaymentProvider{activeProvider("primary", true)}, nil)

	in := WebhookEventInput{
		Provider:        WebhookProviderRazorpay,
		ProviderEventID: "evt_1",
		EventType:       EventPaymentCaptured,
		PayloadJSON:     `{}`,
		SignatureValid:  true,
	}
	created, stored, err := svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, stored)

	created, _, err = svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestRecordWebhookEventFallsBackToPayloadHash(t *testing.T) {
	svc, _ := newTestService(newFakePaymentRepo(), []models.PaymentProvider{activeProvider("primary", true)}, nil)

	created, stored, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:    WebhookProviderRazorpay,
		EventType:   EventPaymentCaptured,
		PayloadJSON: `{"event":"payment.captured"}`,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, stored.ProviderEventID, "hash:")

	// Same payload, still no event id: must dedupe on the hash.
	created, _, err = svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:    WebhookProviderRazorpay,
		EventType:   EventPaymentCaptured,
		PayloadJSON: `{"event":"payment.captured"}`,
	})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestWebhookRedeliveryAfterFailedProcessingIsReprocessed(t *testing.T) {
	repo := newFakePaymentRepo()
	seedPendingPayment(repo, "order_1")
	svc, entRepo := newTestService(repo, []models.PaymentProvider{activeProvider("primary", true)}, nil)
	entRepo.grantErr = errors.New("db timeout")

	in := WebhookEventInput{
		Provider:        WebhookProviderRazorpay,
		ProviderEventID: "evt_1",
		EventType:       EventPaymentCaptured,
		PayloadJSON:     `{"event":"payment.captured"}`,
		SignatureValid:  true,
	}

	// Delivery one: recorded, processing fails, failure stored on the event.
	created, stored, err := svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	require.True(t, created)
	_, procErr := svc.ProcessCapturedPayment(context.Background(), capturedEntity("order_1"), "sig")
	require.Error(t, procErr)
	require.NoError(t, svc.MarkWebhookProcessed(context.Background(), stored.ID, procErr))
	assert.Empty(t, entRepo.grants)

	// Delivery two carries the same event id. It reads as a duplicate, but the
	// stored event did not complete, so it is eligible for reprocessing.
	created, stored, err = svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, created)
	require.False(t, stored.ProcessedOK())

	outcome, err := svc.ProcessCapturedPayment(context.Background(), capturedEntity("order_1"), "sig")
	require.NoError(t, err)
	assert.True(t, outcome.Granted)
	require.Len(t, entRepo.grants, 1)

	// After the successful run the event reads as cleanly processed and later
	// redeliveries short-circuit as duplicates.
	require.NoError(t, svc.MarkWebhookProcessed(context.Background(), stored.ID, nil))
	_, stored, err = svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, stored.ProcessedOK())
}

func TestVerifyPaymentLandsGrantAfterFailedWebhookAttempt(t *testing.T) {
	repo := newFakePaymentRepo()
	seedPendingPayment(repo, "order_1")
	client := &fakeClient{payment: &RazorpayPayment{ID: "pay_777", OrderID: "order_1", Status: "captured", Amount: 49900}}
	svc, entRepo := newTestService(repo,
		[]models.PaymentProvider{activeProvider("primary", true)},
		map[string]*fakeClient{"key_primary": client})
	entRepo.grantErr = errors.New("deadlock")

	// The webhook marked the row paid but never landed the grant.
	_, err := svc.ProcessCapturedPayment(context.Background(), capturedEntity("order_1"), "sig")
	require.Error(t, err)

	result, err := svc.VerifyPayment(context.Background(), VerifyRequest{PaymentID: "pay_777", OrderID: "order_1"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.AlreadyProcessed)
	require.Len(t, entRepo.grants, 1)
}

func TestWebhookSecretPrefersEnvironment(t *testing.T) {
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "whsec_env")
	provider := activeProvider("primary", true)
	provider.WebhookSecret = "whsec_db"
	svc, _ := newTestService(newFakePaymentRepo(), []models.PaymentProvider{provider}, nil)

	assert.Equal(t, "whsec_env", svc.WebhookSecret(context.Background()))
}

func TestWebhookSecretFallsBackToPrimaryProvider(t *testing.T) {
	provider := activeProvider("primary", true)
	provider.WebhookSecret = "whsec_db"
	svc, _ := newTestService(newFakePaymentRepo(), []models.PaymentProvider{provider}, nil)

	assert.Equal(t, "whsec_db", svc.WebhookSecret(context.Background()))
}
