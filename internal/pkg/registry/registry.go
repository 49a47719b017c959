package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/StreamPassApp/StreamPass/app/models"
	"github.com/StreamPassApp/StreamPass/app/repository"
	"gorm.io/gorm"
)

// Registry errors indicate operator misconfiguration. They are fatal to the
// request that hits them and are never retried.
var (
	ErrNoActiveProvider = errors.New("no active payment provider configured")
	ErrPlanNotFound     = errors.New("plan not found")
)

// Registry is the read-only lookup for pricing plans and active payment
// provider credentials, ordered by failover priority.
type Registry struct {
	plans     repository.PlanRepository
	providers repository.ProviderRepository
}

// New creates a registry from injected repositories.
func New(plans repository.PlanRepository, providers repository.ProviderRepository) *Registry {
	return &Registry{plans: plans, providers: providers}
}

// NewFromDB creates a registry from a GORM DB handle.
func NewFromDB(db *gorm.DB) *Registry {
	repos := repository.NewFactory(db).GetRepositories()
	return New(repos.Plan, repos.Provider)
}

// ActiveProviders returns active providers in priority order
// (is_primary desc, created_at desc).
func (r *Registry) ActiveProviders(ctx context.Context) ([]models.PaymentProvider, error) {
	_ = ctx
	providers, err := r.providers.ListActive()
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, ErrNoActiveProvider
	}
	return providers, nil
}

// PrimaryProvider returns the single primary active provider, if any.
func (r *Registry) PrimaryProvider(ctx context.Context) (*models.PaymentProvider, error) {
	_ = ctx
	provider, err := r.providers.GetPrimary()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveProvider
		}
		return nil, err
	}
	return provider, nil
}

// PlanByID resolves a plan id to its full record.
func (r *Registry) PlanByID(ctx context.Context, id string) (*models.Plan, error) {
	_ = ctx
	plan, err := r.plans.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
		}
		return nil, err
	}
	return plan, nil
}

// Plans lists all plans for the public catalogue.
func (r *Registry) Plans(ctx context.Context) ([]models.Plan, error) {
	_ = ctx
	return r.plans.List()
}
