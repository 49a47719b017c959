package models

import "time"

// EntitlementGrant marks a payment as applied to a subscriber's entitlement
// window. The unique PaymentRef is the reconciler's idempotency boundary: the
// webhook and verifier paths may both attempt the same grant concurrently,
// and exactly one insert wins.
type EntitlementGrant struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PaymentRef string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"payment_ref"`
	Email      string    `gorm:"type:varchar(200);not null;index" json:"email"`
	PlanID     string    `gorm:"type:varchar(64);not null" json:"plan_id"`
	PeriodDays int       `gorm:"not null" json:"period_days"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
