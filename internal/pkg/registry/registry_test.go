package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/StreamPassApp/StreamPass/app/models"
)

type fakePlans struct {
	plans map[string]*models.Plan
}

func (f *fakePlans) GetByID(id string) (*models.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakePlans) List() ([]models.Plan, error) {
	out := make([]models.Plan, 0, len(f.plans))
	for _, p := range f.plans {
		out = append(out, *p)
	}
	return out, nil
}

type fakeProviders struct {
	providers []models.PaymentProvider
}

func (f *fakeProviders) ListActive() ([]models.PaymentProvider, error) {
	return f.providers, nil
}

func (f *fakeProviders) GetPrimary() (*models.PaymentProvider, error) {
	for i := range f.providers {
		if f.providers[i].IsPrimary {
			return &f.providers[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func TestActiveProvidersEmptyIsError(t *testing.T) {
	reg := New(&fakePlans{}, &fakeProviders{})

	_, err := reg.ActiveProviders(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveProvider)
}

func TestActiveProvidersKeepsPriorityOrder(t *testing.T) {
	reg := New(&fakePlans{}, &fakeProviders{providers: []models.PaymentProvider{
		{Name: "primary", IsPrimary: true},
		{Name: "backup"},
	}})

	providers, err := reg.ActiveProviders(context.Background())
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "primary", providers[0].Name)
}

func TestPrimaryProviderMissing(t *testing.T) {
	reg := New(&fakePlans{}, &fakeProviders{providers: []models.PaymentProvider{{Name: "backup"}}})

	_, err := reg.PrimaryProvider(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveProvider)
}

func TestPlanByIDUnknownWrapsSentinel(t *testing.T) {
	reg := New(&fakePlans{plans: map[string]*models.Plan{}}, &fakeProviders{})

	_, err := reg.PlanByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPlanNotFound)
	assert.Contains(t, err.Error(), "nope")
}

func TestPlanByIDFound(t *testing.T) {
	reg := New(&fakePlans{plans: map[string]*models.Plan{
		"premium-monthly": {ID: "premium-monthly", Name: "Premium Monthly", PeriodDays: 30},
	}}, &fakeProviders{})

	plan, err := reg.PlanByID(context.Background(), "premium-monthly")
	require.NoError(t, err)
	assert.Equal(t, "Premium Monthly", plan.Name)
}
