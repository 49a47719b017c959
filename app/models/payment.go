package models

import "time"

// Payment status machine: created -> authorized|paid|captured, or into the
// terminal failed/cancelled states. A record never regresses from a success
// status back to created.
const (
	PaymentStatusCreated    = "created"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusPaid       = "paid"
	PaymentStatusCaptured   = "captured"
	PaymentStatusFailed     = "failed"
	PaymentStatusCancelled  = "cancelled"
)

// IsSuccessPaymentStatus reports whether a status counts as "sufficiently
// successful" for entitlement purposes. Authorized is included because a
// capture may settle seconds later while the user is already entitled.
func IsSuccessPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusAuthorized, PaymentStatusPaid, PaymentStatusCaptured:
		return true
	default:
		return false
	}
}

// Payment is the local ledger record for a provider checkout.
// ProviderOrderID is the idempotency key for "have we already started
// processing this payment".
type Payment struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ProviderOrderID   string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_order_id"`
	ProviderPaymentID string    `gorm:"type:varchar(191);not null;default:'';index" json:"provider_payment_id,omitempty"`
	UserEmail         string    `gorm:"type:varchar(200);not null;index" json:"user_email"`
	PlanID            string    `gorm:"type:varchar(64);not null;index" json:"plan_id"`
	Amount            int64     `gorm:"not null" json:"amount"`
	Currency          string    `gorm:"type:varchar(8);not null;default:'INR'" json:"currency"`
	Status            string    `gorm:"type:varchar(20);not null;default:'created';index" json:"status"`
	PaymentMethod     string    `gorm:"type:varchar(50);not null;default:''" json:"payment_method,omitempty"`
	ProviderSignature string    `gorm:"type:varchar(255);not null;default:''" json:"-"`
	Receipt           string    `gorm:"type:varchar(100);not null;default:''" json:"receipt,omitempty"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
