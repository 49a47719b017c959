package repository

import (
	"github.com/StreamPassApp/StreamPass/app/models"
	"gorm.io/gorm"
)

// PlanRepository defines plan lookups used by the registry and public API.
type PlanRepository interface {
	GetByID(id string) (*models.Plan, error)
	List() ([]models.Plan, error)
}

// ProviderRepository defines payment-provider lookups used by the registry.
type ProviderRepository interface {
	// ListActive returns active providers ordered by is_primary desc,
	// created_at desc — the failover priority order.
	ListActive() ([]models.PaymentProvider, error)
	GetPrimary() (*models.PaymentProvider, error)
}

// SubscriberRepository defines entitlement-row access for the reader.
type SubscriberRepository interface {
	GetByEmail(email string) (*models.Subscriber, error)
	MarkExpired(email string) error
}

// Repositories holds all repository instances.
type Repositories struct {
	Plan       PlanRepository
	Provider   ProviderRepository
	Subscriber SubscriberRepository
}

// NewRepositories creates all repositories with the given database connection.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Plan:       NewPlanRepository(db),
		Provider:   NewProviderRepository(db),
		Subscriber: NewSubscriberRepository(db),
	}
}
