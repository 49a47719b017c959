package repository

import (
	"github.com/StreamPassApp/StreamPass/app/models"
	"gorm.io/gorm"
)

type providerRepository struct {
	db *gorm.DB
}

// NewProviderRepository creates a payment-provider repository backed by GORM.
func NewProviderRepository(db *gorm.DB) ProviderRepository {
	return &providerRepository{db: db}
}

func (r *providerRepository) ListActive() ([]models.PaymentProvider, error) {
	var providers []models.PaymentProvider
	err := r.db.
		Where("is_active = ?", true).
		Order("is_primary desc, created_at desc").
		Find(&providers).Error
	return providers, err
}

func (r *providerRepository) GetPrimary() (*models.PaymentProvider, error) {
	var provider models.PaymentProvider
	err := r.db.
		Where("is_primary = ? AND is_active = ?", true, true).
		First(&provider).Error
	if err != nil {
		return nil, err
	}
	return &provider, nil
}
