package entitlements

import (
	"github.com/StreamPassApp/StreamPass/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the reconciler. Read-side
// subscriber access lives in app/repository.
type Repository interface {
	// CreateGrantIfNotExists atomically records that a payment has been
	// applied. Returns false when another invocation already claimed it.
	CreateGrantIfNotExists(grant *models.EntitlementGrant) (bool, error)
	GetSubscriberByEmail(email string) (*models.Subscriber, error)
	UpsertSubscriber(sub *models.Subscriber) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an entitlements repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateGrantIfNotExists(grant *models.EntitlementGrant) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_ref"}},
		DoNothing: true,
	}).Create(grant)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) GetSubscriberByEmail(email string) (*models.Subscriber, error) {
	var sub models.Subscriber
	if err := r.db.Where("email = ?", email).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscriber(sub *models.Subscriber) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"subscribed",
			"subscription_tier",
			"subscription_end",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("email = ?", sub.Email).First(sub).Error
}
