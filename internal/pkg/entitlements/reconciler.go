package entitlements

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/StreamPassApp/StreamPass/app/models"
	"gorm.io/gorm"
)

// GrantResult reports what a reconciliation did. Applied is false when the
// payment had already been applied by a previous or concurrent invocation.
type GrantResult struct {
	Applied         bool
	SubscriptionEnd time.Time
}

// Reconciler is the single function both notification paths call to turn a
// confirmed payment into an updated entitlement window. It is idempotent per
// payment reference: the insert-if-absent on entitlement_grants is the
// authoritative boundary, so the webhook-vs-verifier race needs no lock.
type Reconciler struct {
	repo  Repository
	cache StatusCache
	now   func() time.Time
}

// NewReconciler creates a reconciler from an injected repository. The cache
// may be nil.
func NewReconciler(repo Repository, cache StatusCache) *Reconciler {
	return &Reconciler{repo: repo, cache: cache, now: time.Now}
}

// NewReconcilerFromDB creates a reconciler from a GORM DB handle.
func NewReconcilerFromDB(db *gorm.DB) *Reconciler {
	return NewReconciler(NewRepository(db), nil)
}

// Grant extends the subscriber's entitlement window by periodDays, stacking
// on the current end date when the subscription is still active. A duplicate
// paymentRef is absorbed as a no-op, never an error.
func (r *Reconciler) Grant(ctx context.Context, email, planID string, periodDays int, paymentRef string) (*GrantResult, error) {
	_ = ctx
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(planID) == "" || periodDays <= 0 || strings.TrimSpace(paymentRef) == "" {
		return nil, errors.New("email, plan_id, period_days and payment_ref are required")
	}

	applied, err := r.repo.CreateGrantIfNotExists(&models.EntitlementGrant{
		PaymentRef: strings.TrimSpace(paymentRef),
		Email:      email,
		PlanID:     planID,
		PeriodDays: periodDays,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		// Already applied by the other notification path; report the
		// current window without extending it again.
		result := &GrantResult{Applied: false}
		if sub, err := r.repo.GetSubscriberByEmail(email); err == nil && sub.SubscriptionEnd != nil {
			result.SubscriptionEnd = *sub.SubscriptionEnd
		}
		return result, nil
	}

	now := r.now()
	base := now
	sub, err := r.repo.GetSubscriberByEmail(email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	} else if sub.IsActiveAt(now) {
		// Stacking: a renewal before expiry keeps the remaining paid time.
		base = *sub.SubscriptionEnd
	}

	newEnd := base.AddDate(0, 0, periodDays)
	if err := r.repo.UpsertSubscriber(&models.Subscriber{
		Email:            email,
		Subscribed:       true,
		SubscriptionTier: planID,
		SubscriptionEnd:  &newEnd,
	}); err != nil {
		return nil, err
	}

	if r.cache != nil {
		_ = r.cache.Delete(statusCacheKey(email))
	}
	return &GrantResult{Applied: true, SubscriptionEnd: newEnd}, nil
}
