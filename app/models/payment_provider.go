package models

import (
	"strings"
	"time"
)

// Payment provider type constants.
const (
	ProviderTypeRazorpay = "razorpay"
)

// PaymentProvider stores a payment gateway's credentials and selection flags.
// The registry orders providers by is_primary desc, created_at desc; at most
// one row has is_primary set at any time (enforced by the admin surface).
type PaymentProvider struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(100);not null" json:"name"`
	Type          string    `gorm:"type:varchar(20);not null;index" json:"type"`
	APIKey        string    `gorm:"type:varchar(191);not null;default:''" json:"-"`
	APISecret     string    `gorm:"type:varchar(191);not null;default:''" json:"-"`
	WebhookSecret string    `gorm:"type:varchar(191);not null;default:''" json:"-"`
	IsPrimary     bool      `gorm:"default:false;index" json:"is_primary"`
	IsActive      bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasCredentials reports whether the provider carries a usable key pair.
func (p *PaymentProvider) HasCredentials() bool {
	return strings.TrimSpace(p.APIKey) != "" && strings.TrimSpace(p.APISecret) != ""
}
