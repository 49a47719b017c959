package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Plan is a purchasable entitlement plan. Plans are managed by the external
// admin surface and treated as immutable once a payment references them.
type Plan struct {
	ID             string    `gorm:"type:varchar(64);primaryKey" json:"id" validate:"required,min=1,max=64"`
	Name           string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Price          int64     `gorm:"not null" json:"price" validate:"gte=0"`
	Currency       string    `gorm:"type:varchar(8);not null;default:'INR'" json:"currency"`
	PeriodDays     int       `gorm:"not null" json:"period_days" validate:"gt=0"`
	ProviderPlanID string    `gorm:"type:varchar(191);not null;default:''" json:"provider_plan_id,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Plan) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// IsRecurring reports whether the plan maps to a provider-side recurring
// subscription rather than a one-time order.
func (p *Plan) IsRecurring() bool {
	return p.ProviderPlanID != ""
}
