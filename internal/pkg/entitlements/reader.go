package entitlements

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/StreamPassApp/StreamPass/app/repository"
	"gorm.io/gorm"
)

const statusCacheTTL = 30 * time.Second

// StatusCache is the minimal cache surface the reader and reconciler use.
// A nil cache disables caching entirely.
type StatusCache interface {
	Get(key string) (string, error)
	Set(key, value string, expiration time.Duration) error
	Delete(key string) error
}

// Status is the consumer-facing entitlement state.
type Status struct {
	Subscribed       bool       `json:"subscribed"`
	SubscriptionTier string     `json:"subscription_tier,omitempty"`
	SubscriptionEnd  *time.Time `json:"subscription_end,omitempty"`
}

// Reader exposes current entitlement state to consumers, with lazy expiry
// detection: a stored subscribed=true past its end date reads as false and
// is corrected opportunistically.
type Reader struct {
	repo  repository.SubscriberRepository
	cache StatusCache
	now   func() time.Time
}

// NewReader creates a reader from an injected subscriber repository. The
// cache may be nil.
func NewReader(repo repository.SubscriberRepository, cache StatusCache) *Reader {
	return &Reader{repo: repo, cache: cache, now: time.Now}
}

// NewReaderFromDB creates a reader from a GORM DB handle.
func NewReaderFromDB(db *gorm.DB) *Reader {
	return NewReader(repository.NewSubscriberRepository(db), nil)
}

// Status returns the subscriber's current entitlement state. Unknown emails
// read as unsubscribed.
func (r *Reader) Status(ctx context.Context, email string) (*Status, error) {
	_ = ctx
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("email is required")
	}

	if r.cache != nil {
		if raw, err := r.cache.Get(statusCacheKey(email)); err == nil && raw != "" {
			var cached Status
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return &cached, nil
			}
		}
	}

	sub, err := r.repo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Status{Subscribed: false}, nil
		}
		return nil, err
	}

	now := r.now()
	status := &Status{
		Subscribed:       sub.IsActiveAt(now),
		SubscriptionTier: sub.SubscriptionTier,
		SubscriptionEnd:  sub.SubscriptionEnd,
	}
	if sub.Subscribed && !sub.IsActiveAt(now) {
		// Best effort: the boolean check above is already correct either way.
		_ = r.repo.MarkExpired(email)
	}

	if r.cache != nil {
		if raw, jsonErr := json.Marshal(status); jsonErr == nil {
			_ = r.cache.Set(statusCacheKey(email), string(raw), statusCacheTTL)
		}
	}
	return status, nil
}

// IsSubscribed reports whether the email currently holds an active
// entitlement.
func (r *Reader) IsSubscribed(ctx context.Context, email string) (bool, error) {
	status, err := r.Status(ctx, email)
	if err != nil {
		return false, err
	}
	return status.Subscribed, nil
}

func statusCacheKey(email string) string {
	return "entitlement:" + email
}
