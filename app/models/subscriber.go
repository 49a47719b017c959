package models

import "time"

// Subscriber is the authoritative, queryable entitlement row. "Subscribed"
// means subscribed=true AND subscription_end in the future; expiry is
// computed at read time, never by a background job.
type Subscriber struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Email            string     `gorm:"type:varchar(200);not null;uniqueIndex" json:"email"`
	Subscribed       bool       `gorm:"default:false;index" json:"subscribed"`
	SubscriptionTier string     `gorm:"type:varchar(64);not null;default:''" json:"subscription_tier"`
	SubscriptionEnd  *time.Time `gorm:"type:timestamp;default:null" json:"subscription_end,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActiveAt reports whether the entitlement window covers the given instant.
func (s *Subscriber) IsActiveAt(now time.Time) bool {
	return s.Subscribed && s.SubscriptionEnd != nil && s.SubscriptionEnd.After(now)
}
